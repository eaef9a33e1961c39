package graph

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/DhavalSuthar-24/miow-context-master/internal/mioerr"
	"github.com/DhavalSuthar-24/miow-context-master/internal/storage"
)

// Store provides knowledge graph operations over the shared database.
type Store struct {
	db      *storage.DB
	logger  *slog.Logger
	entropy *ulid.MonotonicEntropy
}

// NewStore creates a graph store on top of an open database.
func NewStore(db *storage.DB, logger *slog.Logger) *Store {
	return &Store{
		db:      db,
		logger:  logger,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// newSymbolID issues a fresh, time-ordered symbol id.
func (s *Store) newSymbolID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// UpsertFile records a file, updating language and fingerprint in place.
func (s *Store) UpsertFile(path, language, fingerprint string) (File, error) {
	var f File
	err := s.db.WithTx(func(tx *sql.Tx) error {
		var err error
		f, err = upsertFileTx(tx, path, language, fingerprint)
		return err
	})
	return f, err
}

func upsertFileTx(tx *sql.Tx, path, language, fingerprint string) (File, error) {
	_, err := tx.Exec(
		`INSERT INTO files (path, language, fingerprint) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET language = excluded.language, fingerprint = excluded.fingerprint`,
		path, language, fingerprint)
	if err != nil {
		return File{}, fmt.Errorf("upsert file %s: %w", path, err)
	}
	f := File{Path: path, Language: language, Fingerprint: fingerprint}
	if err := tx.QueryRow(`SELECT id FROM files WHERE path = ?`, path).Scan(&f.ID); err != nil {
		return File{}, fmt.Errorf("read back file %s: %w", path, err)
	}
	return f, nil
}

// ReplaceFileSymbols commits one file's extraction atomically: the file row
// is upserted, its previous symbols retired (fresh ids for the replacements),
// and the intra-file edges inserted. An edge naming an unknown endpoint
// fails the whole transaction with an IntegrityError, leaving the file's
// previous generation intact.
func (s *Store) ReplaceFileSymbols(path, language, fingerprint string, symbols []SymbolInput, edges []EdgeInput) (File, int, error) {
	var f File
	inserted := 0
	err := s.db.WithTx(func(tx *sql.Tx) error {
		var err error
		f, err = upsertFileTx(tx, path, language, fingerprint)
		if err != nil {
			return err
		}

		// Retire the previous generation of this file's symbols. Edges and
		// embeddings referencing them go with the CASCADE.
		if _, err := tx.Exec(`DELETE FROM symbols WHERE file_id = ?`, f.ID); err != nil {
			return fmt.Errorf("retire symbols for %s: %w", path, err)
		}

		ids := make(map[symbolKey]string, len(symbols))
		for _, sym := range symbols {
			if !ValidSymbolKind(sym.Kind) {
				return mioerr.Integrity("graph", fmt.Sprintf("unknown symbol kind %q in %s", sym.Kind, path))
			}
			if _, dup := ids[symbolKey{sym.Name, sym.Kind}]; dup {
				continue // duplicate extraction, first declaration wins
			}
			id := s.newSymbolID()
			_, err := tx.Exec(
				`INSERT INTO symbols (id, file_id, name, kind, start_line, end_line, preview)
				 VALUES (?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(file_id, name, kind) DO NOTHING`,
				id, f.ID, sym.Name, sym.Kind, sym.StartLine, sym.EndLine,
				storage.CompressBlob(sym.Preview))
			if err != nil {
				return fmt.Errorf("insert symbol %s in %s: %w", sym.Name, path, err)
			}
			ids[symbolKey{sym.Name, sym.Kind}] = id
			inserted++
		}

		for _, e := range edges {
			if !ValidEdgeKind(e.Kind) {
				return mioerr.Integrity("graph", fmt.Sprintf("unknown edge kind %q in %s", e.Kind, path))
			}
			fromID, ok := ids[symbolKey{e.FromName, e.FromKind}]
			if !ok {
				return mioerr.Integrity("graph",
					fmt.Sprintf("edge source %s/%s missing in %s", e.FromName, e.FromKind, path))
			}
			toID, ok := ids[symbolKey{e.ToName, e.ToKind}]
			if !ok {
				// Cross-file reference: resolve against committed symbols.
				// Ambiguous names resolve to the lexically first path.
				err := tx.QueryRow(
					`SELECT s.id FROM symbols s JOIN files f ON s.file_id = f.id
					 WHERE s.name = ? AND s.kind = ? ORDER BY f.path, s.id LIMIT 1`,
					e.ToName, e.ToKind).Scan(&toID)
				if err == sql.ErrNoRows {
					return mioerr.Integrity("graph",
						fmt.Sprintf("edge target %s/%s missing in %s", e.ToName, e.ToKind, path))
				}
				if err != nil {
					return fmt.Errorf("resolve edge target: %w", err)
				}
			}
			if err := addEdgeTx(tx, fromID, toID, e.Kind); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return File{}, 0, err
	}
	return f, inserted, nil
}

type symbolKey struct {
	name string
	kind SymbolKind
}

// AddEdge inserts a relationship between two committed symbols. Both
// endpoints must exist; a dangling edge is rejected with an IntegrityError.
func (s *Store) AddEdge(fromID, toID string, kind EdgeKind) error {
	if !ValidEdgeKind(kind) {
		return mioerr.Integrity("graph", fmt.Sprintf("unknown edge kind %q", kind))
	}
	return s.db.WithTx(func(tx *sql.Tx) error {
		return addEdgeTx(tx, fromID, toID, kind)
	})
}

func addEdgeTx(tx *sql.Tx, fromID, toID string, kind EdgeKind) error {
	for _, id := range []string{fromID, toID} {
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM symbols WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return mioerr.Integrity("graph", fmt.Sprintf("edge endpoint %s does not exist", id))
		}
		if err != nil {
			return fmt.Errorf("check edge endpoint: %w", err)
		}
	}
	_, err := tx.Exec(
		`INSERT INTO edges (from_id, to_id, kind) VALUES (?, ?, ?)
		 ON CONFLICT(from_id, to_id, kind) DO NOTHING`, fromID, toID, kind)
	if err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}
	return nil
}

const symbolColumns = `s.id, s.file_id, f.path, s.name, s.kind, s.start_line, s.end_line, s.preview`

func scanSymbols(rows *sql.Rows) ([]Symbol, error) {
	defer rows.Close()
	var out []Symbol
	for rows.Next() {
		var sym Symbol
		var preview []byte
		if err := rows.Scan(&sym.ID, &sym.FileID, &sym.Path, &sym.Name, &sym.Kind,
			&sym.StartLine, &sym.EndLine, &preview); err != nil {
			return nil, err
		}
		text, err := storage.DecompressBlob(preview)
		if err != nil {
			return nil, err
		}
		sym.Preview = text
		out = append(out, sym)
	}
	return out, rows.Err()
}

// QueryByKind returns all symbols of the given kind, ordered by path then name.
func (s *Store) QueryByKind(kind SymbolKind) ([]Symbol, error) {
	rows, err := s.db.Query(
		`SELECT `+symbolColumns+` FROM symbols s JOIN files f ON s.file_id = f.id
		 WHERE s.kind = ? ORDER BY f.path, s.name`, kind)
	if err != nil {
		return nil, fmt.Errorf("query by kind %s: %w", kind, err)
	}
	return scanSymbols(rows)
}

// QueryByName returns symbols whose name matches the LIKE pattern, optionally
// restricted to a kind. Ordering is deterministic (path, name).
func (s *Store) QueryByName(pattern string, kind SymbolKind) ([]Symbol, error) {
	query := `SELECT ` + symbolColumns + ` FROM symbols s JOIN files f ON s.file_id = f.id
		 WHERE s.name LIKE ?`
	args := []any{"%" + pattern + "%"}
	if kind != "" {
		query += ` AND s.kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY f.path, s.name`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by name %q: %w", pattern, err)
	}
	return scanSymbols(rows)
}

// QueryNeighbors returns symbols reachable from symbolID over edges of the
// given kind, ordered by path then name.
func (s *Store) QueryNeighbors(symbolID string, kind EdgeKind) ([]Symbol, error) {
	rows, err := s.db.Query(
		`SELECT `+symbolColumns+` FROM edges e
		 JOIN symbols s ON e.to_id = s.id
		 JOIN files f ON s.file_id = f.id
		 WHERE e.from_id = ? AND e.kind = ?
		 ORDER BY f.path, s.name`, symbolID, kind)
	if err != nil {
		return nil, fmt.Errorf("query neighbors of %s: %w", symbolID, err)
	}
	return scanSymbols(rows)
}

// SymbolsForFile returns a file's committed symbols ordered by name and kind.
func (s *Store) SymbolsForFile(fileID int64) ([]Symbol, error) {
	rows, err := s.db.Query(
		`SELECT `+symbolColumns+` FROM symbols s JOIN files f ON s.file_id = f.id
		 WHERE s.file_id = ? ORDER BY s.name, s.kind`, fileID)
	if err != nil {
		return nil, fmt.Errorf("symbols for file %d: %w", fileID, err)
	}
	return scanSymbols(rows)
}

// FilesSnapshot returns the committed path → fingerprint map.
func (s *Store) FilesSnapshot() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT path, fingerprint FROM files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var path, fp string
		if err := rows.Scan(&path, &fp); err != nil {
			return nil, err
		}
		out[path] = fp
	}
	return out, rows.Err()
}

// DeleteFile removes a file and, via cascade, its symbols, edges, and
// embeddings.
func (s *Store) DeleteFile(path string) error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM files WHERE path = ?`, path)
		return err
	})
}

// RecordParseFailure notes a file whose extraction failed; the pass continues.
func (s *Store) RecordParseFailure(path, message string) error {
	_, err := s.db.Exec(
		`INSERT INTO parse_failures (path, message) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET message = excluded.message`, path, message)
	return err
}

// ClearParseFailure removes a recorded failure once the file indexes cleanly.
func (s *Store) ClearParseFailure(path string) error {
	_, err := s.db.Exec(`DELETE FROM parse_failures WHERE path = ?`, path)
	return err
}

// ParseFailures returns the recorded per-file extraction failures.
func (s *Store) ParseFailures() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT path, message FROM parse_failures`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var path, msg string
		if err := rows.Scan(&path, &msg); err != nil {
			return nil, err
		}
		out[path] = msg
	}
	return out, rows.Err()
}

// LanguageCounts returns the number of committed files per language.
func (s *Store) LanguageCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT language, COUNT(*) FROM files GROUP BY language`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, err
		}
		out[lang] = n
	}
	return out, rows.Err()
}

// Stats counts committed files, symbols, and edges.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&st.Files); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM symbols`).Scan(&st.Symbols); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&st.Edges); err != nil {
		return st, err
	}
	return st, nil
}
