// Package indexer walks a codebase and writes its symbols into the graph
// and vector stores. Indexing is single-writer per codebase path; each
// file commits atomically, and readers only ever see the last completed
// generation.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/DhavalSuthar-24/miow-context-master/internal/config"
	"github.com/DhavalSuthar-24/miow-context-master/internal/extract"
	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
	"github.com/DhavalSuthar-24/miow-context-master/internal/llm"
	"github.com/DhavalSuthar-24/miow-context-master/internal/mioerr"
	"github.com/DhavalSuthar-24/miow-context-master/internal/signature"
	"github.com/DhavalSuthar-24/miow-context-master/internal/storage"
	"github.com/DhavalSuthar-24/miow-context-master/internal/vector"
)

// Stats is the index pass summary returned to the caller.
type Stats struct {
	TotalFiles   int            `json:"totalFiles"`
	TotalSymbols int            `json:"totalSymbols"`
	ParseErrors  int            `json:"parseErrors"`
	Languages    map[string]int `json:"languages,omitempty"`
}

// pathLocks serializes index passes per codebase path, process-wide.
var pathLocks sync.Map // string -> *sync.Mutex

// lockFor keys on the resolved root so aliases of the same directory
// (trailing slash, symlink) share one lock.
func lockFor(path string) *sync.Mutex {
	key := filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(key); err == nil {
		key = resolved
	}
	mu, _ := pathLocks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Indexer owns all writes to the graph and vector stores for one codebase.
type Indexer struct {
	root      string
	cfg       config.IndexConfig
	db        *storage.DB
	graph     *graph.Store
	vectors   *vector.Store
	embedder  llm.Embedder
	extractor *extract.Extractor
	logger    *slog.Logger
}

// New creates an indexer for the codebase at root.
func New(root string, cfg config.IndexConfig, db *storage.DB, g *graph.Store, v *vector.Store, embedder llm.Embedder, logger *slog.Logger) *Indexer {
	if embedder == nil {
		embedder = llm.NoopEmbedder{}
	}
	return &Indexer{
		root:      root,
		cfg:       cfg,
		db:        db,
		graph:     g,
		vectors:   v,
		embedder:  embedder,
		extractor: extract.NewExtractor(),
		logger:    logger,
	}
}

// Index walks the codebase and brings the stores up to date. Unchanged
// files are skipped unless force is set; per-file extraction failures are
// recorded and skipped; entries for deleted files are purged. The pass is
// idempotent: an unchanged tree produces identical symbol and edge sets.
func (ix *Indexer) Index(ctx context.Context, force bool) (Stats, error) {
	if _, err := os.Stat(ix.root); err != nil {
		return Stats{}, mioerr.IO("indexer", fmt.Sprintf("cannot read codebase root %s", ix.root), err)
	}

	mu := lockFor(ix.root)
	mu.Lock()
	defer mu.Unlock()

	snapshot, err := ix.graph.FilesSnapshot()
	if err != nil {
		return Stats{}, fmt.Errorf("indexer: load snapshot: %w", err)
	}

	files, err := newWalker(ix.root, ix.cfg).files()
	if err != nil {
		return Stats{}, mioerr.IO("indexer", "walk failed", err)
	}

	stats := Stats{TotalFiles: len(files)}
	embedderDown := false
	seen := make(map[string]bool, len(files))

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}
		seen[rel] = true

		abs := filepath.Join(ix.root, rel)
		hash, err := signature.HashFile(abs)
		if err != nil {
			ix.recordFailure(rel, err)
			stats.ParseErrors++
			continue
		}
		if !force && snapshot[rel] == hash {
			continue
		}

		source, err := os.ReadFile(abs)
		if err != nil {
			ix.recordFailure(rel, err)
			stats.ParseErrors++
			continue
		}

		res, err := ix.extractor.ExtractFile(ctx, rel, source)
		if err != nil {
			// Single-file extraction failure: recorded, pass continues.
			ix.recordFailure(rel, err)
			stats.ParseErrors++
			continue
		}

		file, _, err := ix.graph.ReplaceFileSymbols(rel, string(res.Language), hash, res.Symbols, res.Edges)
		if err != nil {
			if mioerr.Is(err, mioerr.CodeIntegrity) {
				// That file's transaction rolled back; everything else stands.
				ix.recordFailure(rel, err)
				stats.ParseErrors++
				continue
			}
			return Stats{}, fmt.Errorf("indexer: commit %s: %w", rel, err)
		}
		_ = ix.graph.ClearParseFailure(rel)

		if !embedderDown {
			embedderDown = ix.embedFile(ctx, file)
		}
	}

	// Purge graph rows (and, via cascade, embeddings) of deleted files.
	for path := range snapshot {
		if !seen[path] {
			if err := ix.graph.DeleteFile(path); err != nil {
				return Stats{}, fmt.Errorf("indexer: purge %s: %w", path, err)
			}
			ix.logger.Debug("purged deleted file", "path", path)
		}
	}

	if _, err := ix.db.BumpGeneration(); err != nil {
		return Stats{}, fmt.Errorf("indexer: bump generation: %w", err)
	}

	gstats, err := ix.graph.Stats()
	if err != nil {
		return Stats{}, err
	}
	stats.TotalSymbols = gstats.Symbols
	stats.Languages, err = ix.graph.LanguageCounts()
	if err != nil {
		return Stats{}, err
	}

	ix.logger.Info("index pass complete",
		"path", ix.root, "files", stats.TotalFiles,
		"symbols", stats.TotalSymbols, "parse_errors", stats.ParseErrors,
		"embedder_down", embedderDown)
	return stats, nil
}

// embedFile upserts vectors for a file's committed symbols. Returns true
// when the embedder is unavailable, which switches the rest of the pass to
// graph-only.
func (ix *Indexer) embedFile(ctx context.Context, file graph.File) bool {
	symbols, err := ix.graph.SymbolsForFile(file.ID)
	if err != nil {
		ix.logger.Warn("skipping embeddings, symbol read failed", "path", file.Path, "error", err.Error())
		return false
	}
	for _, sym := range symbols {
		text := sym.Name + "\n" + sym.Preview
		vec, err := ix.embedder.Embed(ctx, text)
		if err != nil {
			if errors.Is(err, llm.ErrUnavailable) || mioerr.Is(err, mioerr.CodeUpstream) {
				// Embedding provider down: index proceeds graph-only.
				ix.logger.Warn("embedding provider unavailable, continuing graph-only",
					"path", file.Path, "error", err.Error())
				return true
			}
			ix.logger.Warn("embedding failed for symbol", "symbol", sym.Name, "error", err.Error())
			continue
		}
		payload := vector.Payload{
			Path:    file.Path,
			Name:    sym.Name,
			Kind:    string(sym.Kind),
			Preview: sym.Preview,
		}
		if err := ix.vectors.Upsert(sym.ID, file.ID, vec, payload); err != nil {
			ix.logger.Warn("vector upsert failed", "symbol", sym.Name, "error", err.Error())
		}
	}
	return false
}

func (ix *Indexer) recordFailure(rel string, err error) {
	ix.logger.Warn("file skipped", "path", rel, "error", err.Error())
	if rerr := ix.graph.RecordParseFailure(rel, err.Error()); rerr != nil {
		ix.logger.Error("failed to record parse failure", "path", rel, "error", rerr.Error())
	}
}
