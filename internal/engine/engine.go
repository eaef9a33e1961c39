// Package engine is the core facade: indexing, signature resolution,
// relevance queries, and context generation for one codebase.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DhavalSuthar-24/miow-context-master/internal/compiler"
	"github.com/DhavalSuthar-24/miow-context-master/internal/config"
	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
	"github.com/DhavalSuthar-24/miow-context-master/internal/indexer"
	"github.com/DhavalSuthar-24/miow-context-master/internal/llm"
	"github.com/DhavalSuthar-24/miow-context-master/internal/router"
	"github.com/DhavalSuthar-24/miow-context-master/internal/signature"
	"github.com/DhavalSuthar-24/miow-context-master/internal/storage"
	"github.com/DhavalSuthar-24/miow-context-master/internal/vector"
)

// RelevantFile is one ranked hit from a relevance query.
type RelevantFile struct {
	Path           string  `json:"path"`
	SymbolName     string  `json:"symbolName"`
	SymbolKind     string  `json:"symbolKind"`
	RelevanceScore float64 `json:"relevanceScore"`
	Preview        string  `json:"preview"`
}

const relevantFileLimit = 20

// Engine owns all pipeline components for one codebase root.
type Engine struct {
	root       string
	cfg        *config.Config
	db         *storage.DB
	graph      *graph.Store
	vectors    *vector.Store
	signatures *signature.Resolver
	indexer    *indexer.Indexer
	router     *router.Router
	compiler   *compiler.Compiler
	embedder   llm.Embedder
	logger     *slog.Logger
}

// New opens the engine for root, building providers from configuration.
// A missing embedding API key degrades to graph-only operation; a missing
// completion key degrades planning to the deterministic fallback plan.
func New(root string, logger *slog.Logger) (*Engine, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("engine: load config: %w", err)
	}

	var embedder llm.Embedder
	if c, err := llm.NewClient(cfg.Providers.Embedding, cfg.Retry, logger); err == nil {
		embedder = c
	} else {
		logger.Warn("embedding provider unavailable, running graph-only", "error", err.Error())
	}

	var completer llm.Completer
	if c, err := llm.NewClient(cfg.Providers.Completion, cfg.Retry, logger); err == nil {
		completer = c
	} else {
		logger.Warn("completion provider unavailable, planning falls back", "error", err.Error())
	}

	return NewWithProviders(root, cfg, embedder, completer, logger)
}

// NewWithProviders opens the engine with explicit collaborators. Tests and
// embedding callers use this directly.
func NewWithProviders(root string, cfg *config.Config, embedder llm.Embedder, completer llm.Completer, logger *slog.Logger) (*Engine, error) {
	db, err := storage.Open(root, logger)
	if err != nil {
		return nil, fmt.Errorf("engine: open store: %w", err)
	}
	if embedder == nil {
		embedder = llm.NoopEmbedder{}
	}

	g := graph.NewStore(db, logger)
	v := vector.NewStore(db, logger)
	planner := router.NewPlanner(completer, logger)

	return &Engine{
		root:       root,
		cfg:        cfg,
		db:         db,
		graph:      g,
		vectors:    v,
		signatures: signature.NewResolver(db, logger),
		indexer:    indexer.New(root, cfg.Index, db, g, v, embedder, logger),
		router:     router.New(planner, g, v, embedder, db, cfg.Retry.MaxAttempts, logger),
		compiler:   compiler.New(compiler.CharEstimator{}, cfg.Compile.CategoryMinimum, logger),
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// Close releases the engine's database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Config returns the loaded configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// IndexCodebase walks the codebase and brings the index up to date.
func (e *Engine) IndexCodebase(ctx context.Context, force bool) (indexer.Stats, error) {
	return e.indexer.Index(ctx, force)
}

// GetSignature resolves the codebase's technology profile, cached by
// content fingerprint.
func (e *Engine) GetSignature(ctx context.Context) (signature.Signature, error) {
	return e.signatures.Resolve(ctx, e.root)
}

// GetRelevantFiles ranks indexed symbols against the prompt. The result is
// deterministic for unchanged index state; when the embedding provider is
// unavailable or the index is empty, it is empty rather than an error.
func (e *Engine) GetRelevantFiles(ctx context.Context, prompt string) ([]RelevantFile, error) {
	if err := e.ensureIndexed(ctx); err != nil {
		return nil, err
	}
	gen, err := e.db.Generation()
	if err != nil {
		return nil, err
	}

	vec, err := e.embedder.Embed(ctx, prompt)
	if err != nil {
		e.logger.Warn("embedding unavailable, relevance query returns nothing", "error", err.Error())
		return nil, nil
	}

	hits, err := e.vectors.Query(vec, relevantFileLimit, nil)
	if err != nil {
		return nil, err
	}

	out := make([]RelevantFile, 0, len(hits))
	for _, hit := range hits {
		out = append(out, RelevantFile{
			Path:           hit.Payload.Path,
			SymbolName:     hit.Payload.Name,
			SymbolKind:     hit.Payload.Kind,
			RelevanceScore: hit.Score,
			Preview:        hit.Payload.Preview,
		})
	}
	e.logger.Debug("relevance query served", "generation", gen, "hits", len(out))
	return out, nil
}

// GenerateContext compiles the bounded context document for a task prompt.
// selected, when non-empty, restricts compilation to those paths (or biases
// toward them with compile.selectedFilesSoft).
func (e *Engine) GenerateContext(ctx context.Context, prompt string, selected []string) (string, error) {
	sig, err := e.signatures.Resolve(ctx, e.root)
	if err != nil {
		return "", err
	}

	// Refresh the index incrementally; unchanged trees are a no-op pass.
	if _, err := e.indexer.Index(ctx, false); err != nil {
		return "", err
	}
	gen, err := e.db.Generation()
	if err != nil {
		return "", err
	}

	outcome, err := e.router.Execute(ctx, router.Request{
		Root:      e.root,
		Prompt:    prompt,
		Signature: sig,
		Selected:  selected,
		Soft:      e.cfg.Compile.SelectedFilesSoft,
	})
	if err != nil {
		return "", err
	}
	for _, warning := range outcome.Warnings {
		e.logger.Warn("worker degraded during compilation",
			"request_id", outcome.RequestID, "warning", warning)
	}

	doc := e.compiler.Compile(sig.Describe(), outcome.Fragments, e.cfg.Compile.TokenBudget)
	e.logger.Info("context compiled",
		"request_id", outcome.RequestID, "generation", gen,
		"fragments", len(outcome.Fragments), "budget", e.cfg.Compile.TokenBudget)
	return doc, nil
}

// ensureIndexed runs a first index pass for a codebase that has never been
// indexed.
func (e *Engine) ensureIndexed(ctx context.Context) error {
	gen, err := e.db.Generation()
	if err != nil {
		return err
	}
	if gen > 0 {
		return nil
	}
	_, err = e.indexer.Index(ctx, false)
	return err
}
