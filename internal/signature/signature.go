// Package signature detects and caches the technology profile of a codebase:
// language, framework, package manager, and notable libraries. Detection is
// recomputed only when the codebase content fingerprint changes.
package signature

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/DhavalSuthar-24/miow-context-master/internal/mioerr"
	"github.com/DhavalSuthar-24/miow-context-master/internal/storage"
)

// Unknown is the value a signature field takes when detection is ambiguous.
// Fields are never guessed.
const Unknown = "Unknown"

// Signature is the detected technology profile of a codebase.
type Signature struct {
	Language          string `json:"language"`
	Framework         string `json:"framework"`
	PackageManager    string `json:"packageManager"`
	UILibrary         string `json:"uiLibrary"`
	ValidationLibrary string `json:"validationLibrary"`
	AuthLibrary       string `json:"authLibrary"`
	Description       string `json:"description"`
}

// empty returns a signature with every field Unknown.
func empty() Signature {
	return Signature{
		Language:          Unknown,
		Framework:         Unknown,
		PackageManager:    Unknown,
		UILibrary:         Unknown,
		ValidationLibrary: Unknown,
		AuthLibrary:       Unknown,
		Description:       Unknown,
	}
}

// Resolver resolves signatures with a fingerprint-keyed cache.
type Resolver struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewResolver creates a signature resolver backed by the shared database.
func NewResolver(db *storage.DB, logger *slog.Logger) *Resolver {
	return &Resolver{db: db, logger: logger}
}

// Resolve returns the cached signature for root if its content fingerprint
// is unchanged, otherwise recomputes and caches it. An unreadable root is an
// IOError.
func (r *Resolver) Resolve(ctx context.Context, root string) (Signature, error) {
	if _, err := os.Stat(root); err != nil {
		return Signature{}, mioerr.IO("signature", fmt.Sprintf("cannot read codebase root %s", root), err)
	}

	fp, err := Fingerprint(root)
	if err != nil {
		return Signature{}, mioerr.IO("signature", "fingerprint failed", err)
	}

	if cached, ok, err := r.lookup(root, fp); err != nil {
		return Signature{}, err
	} else if ok {
		r.logger.Debug("signature cache hit", "path", root, "fingerprint", fp)
		return cached, nil
	}

	if err := ctx.Err(); err != nil {
		return Signature{}, err
	}

	sig := Detect(root)
	if err := r.store(root, fp, sig); err != nil {
		return Signature{}, err
	}
	r.logger.Info("signature recomputed",
		"path", root, "language", sig.Language, "framework", sig.Framework)
	return sig, nil
}

func (r *Resolver) lookup(root, fingerprint string) (Signature, bool, error) {
	var storedFP, payload string
	err := r.db.QueryRow(
		`SELECT fingerprint, payload FROM signatures WHERE path = ?`, root).
		Scan(&storedFP, &payload)
	if err == sql.ErrNoRows {
		return Signature{}, false, nil
	}
	if err != nil {
		return Signature{}, false, fmt.Errorf("signature cache lookup: %w", err)
	}
	if storedFP != fingerprint {
		return Signature{}, false, nil
	}
	var sig Signature
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		return Signature{}, false, fmt.Errorf("corrupt cached signature: %w", err)
	}
	return sig, true, nil
}

func (r *Resolver) store(root, fingerprint string, sig Signature) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(
		`INSERT INTO signatures (path, fingerprint, payload) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET fingerprint = excluded.fingerprint,
		     payload = excluded.payload`, root, fingerprint, string(payload))
	if err != nil {
		return fmt.Errorf("signature cache store: %w", err)
	}
	return nil
}

// Describe renders the signature as a one-line profile for planner prompts
// and compiled document headers.
func (s Signature) Describe() string {
	parts := []string{}
	if s.Language != Unknown {
		parts = append(parts, s.Language)
	}
	if s.Framework != Unknown {
		parts = append(parts, s.Framework)
	}
	if s.PackageManager != Unknown {
		parts = append(parts, "managed by "+s.PackageManager)
	}
	extras := []string{}
	if s.UILibrary != Unknown {
		extras = append(extras, "UI: "+s.UILibrary)
	}
	if s.ValidationLibrary != Unknown {
		extras = append(extras, "validation: "+s.ValidationLibrary)
	}
	if s.AuthLibrary != Unknown {
		extras = append(extras, "auth: "+s.AuthLibrary)
	}
	if len(parts) == 0 && len(extras) == 0 {
		return "Unknown project"
	}
	desc := strings.Join(parts, " ")
	if len(extras) > 0 {
		desc += " (" + strings.Join(extras, ", ") + ")"
	}
	return strings.TrimSpace(desc)
}
