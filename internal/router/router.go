// Package router selects and schedules analysis workers per request. Plans
// are validated before anything executes; execution within one request is
// strictly sequential in dependency order, and identical in-flight requests
// share a single execution.
package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/DhavalSuthar-24/miow-context-master/internal/compiler"
	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
	"github.com/DhavalSuthar-24/miow-context-master/internal/llm"
	"github.com/DhavalSuthar-24/miow-context-master/internal/mioerr"
	"github.com/DhavalSuthar-24/miow-context-master/internal/signature"
	"github.com/DhavalSuthar-24/miow-context-master/internal/vector"
	"github.com/DhavalSuthar-24/miow-context-master/internal/workers"
)

// Request is one context-compilation request against an indexed codebase.
type Request struct {
	Root      string
	Prompt    string
	Signature signature.Signature
	Selected  []string
	Soft      bool
}

// Outcome carries the fragments every worker produced plus warnings for
// workers that degraded.
type Outcome struct {
	RequestID string
	Fragments []compiler.Fragment
	Warnings  []string
}

// GenerationReader reports the committed index generation.
type GenerationReader interface {
	Generation() (int64, error)
}

// maxGenerationRetries bounds re-runs of a request whose workers raced a
// completing index pass.
const maxGenerationRetries = 3

// Router validates plans and runs workers sequentially. Identical concurrent
// requests coalesce: late joiners block and receive the shared outcome.
type Router struct {
	planner     Planner
	graph       *graph.Store
	vectors     *vector.Store
	embedder    llm.Embedder
	gens        GenerationReader
	maxAttempts int
	logger      *slog.Logger

	group singleflight.Group

	// lookup resolves worker kinds; tests substitute recording workers.
	lookup func(workers.Kind) (workers.Worker, bool)
}

// New creates a router. maxAttempts bounds per-worker tries, including the
// first.
func New(planner Planner, g *graph.Store, v *vector.Store, embedder llm.Embedder, gens GenerationReader, maxAttempts int, logger *slog.Logger) *Router {
	if embedder == nil {
		embedder = llm.NoopEmbedder{}
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Router{
		planner:     planner,
		graph:       g,
		vectors:     v,
		embedder:    embedder,
		gens:        gens,
		maxAttempts: maxAttempts,
		logger:      logger,
		lookup:      workers.ForKind,
	}
}

// Execute runs the plan for req. Concurrent calls with the same codebase,
// prompt, and selection share one execution.
func (r *Router) Execute(ctx context.Context, req Request) (Outcome, error) {
	key := requestKey(req)
	result, err, shared := r.group.Do(key, func() (any, error) {
		return r.run(ctx, req)
	})
	if err != nil {
		return Outcome{}, err
	}
	outcome := result.(Outcome)
	if shared {
		r.logger.Debug("request joined in-flight execution",
			"request_id", outcome.RequestID, "key", key)
	}
	return outcome, nil
}

// requestKey fingerprints a request for coalescing.
func requestKey(req Request) string {
	selected := append([]string(nil), req.Selected...)
	sort.Strings(selected)
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%v\x00%s", req.Root, req.Prompt, req.Soft, strings.Join(selected, "\x00"))
	return hex.EncodeToString(h.Sum(nil))
}

// run executes the request against a pinned index generation. Workers read
// the live stores, so a pass completing mid-request would let later workers
// observe a newer generation than earlier ones; the generation is read
// before and after execution, and on a mismatch the whole request re-runs.
func (r *Router) run(ctx context.Context, req Request) (Outcome, error) {
	requestID := uuid.NewString()
	logger := r.logger.With("request_id", requestID)

	for attempt := 1; ; attempt++ {
		startGen, err := r.gens.Generation()
		if err != nil {
			return Outcome{}, fmt.Errorf("router: read generation: %w", err)
		}
		outcome, err := r.runPinned(ctx, req, requestID, logger)
		if err != nil {
			return Outcome{}, err
		}
		endGen, err := r.gens.Generation()
		if err != nil {
			return Outcome{}, fmt.Errorf("router: read generation: %w", err)
		}
		if endGen == startGen {
			return outcome, nil
		}
		if attempt >= maxGenerationRetries {
			return Outcome{}, mioerr.Integrity("router",
				fmt.Sprintf("index generation moved %d -> %d during request", startGen, endGen))
		}
		logger.Warn("index generation moved during request, re-running workers",
			"from", startGen, "to", endGen, "attempt", attempt)
	}
}

func (r *Router) runPinned(ctx context.Context, req Request, requestID string, logger *slog.Logger) (Outcome, error) {
	stats, err := r.graph.Stats()
	if err != nil {
		return Outcome{}, fmt.Errorf("router: read stats: %w", err)
	}

	plan, err := r.planner.Plan(ctx, req.Signature, req.Prompt, stats)
	if err != nil {
		return Outcome{}, mioerr.Plan("router", "planner failed: "+err.Error())
	}
	if err := plan.Validate(); err != nil {
		return Outcome{}, err
	}
	order, err := plan.topoOrder()
	if err != nil {
		return Outcome{}, err
	}
	logger.Info("plan accepted", "workers", len(order))

	var selected map[string]bool
	if len(req.Selected) > 0 {
		selected = make(map[string]bool, len(req.Selected))
		for _, path := range req.Selected {
			selected[path] = true
		}
	}

	outcome := Outcome{RequestID: requestID}
	for _, step := range order {
		// A cancelled request never starts pending workers.
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		worker, ok := r.lookup(step.Kind)
		if !ok {
			return Outcome{}, mioerr.Plan("router", fmt.Sprintf("unknown worker kind %q", step.Kind))
		}

		in := workers.Input{
			Graph:         r.graph,
			Vectors:       r.vectors,
			Embedder:      r.embedder,
			Signature:     req.Signature,
			Prompt:        req.Prompt,
			Focus:         step.Focus,
			Prior:         outcome.Fragments,
			SelectedFiles: selected,
			Soft:          req.Soft,
		}

		frags, err := r.runWorker(ctx, logger, step.Kind, worker, in)

		// A started worker runs to completion, but a cancelled request
		// discards its result.
		if cerr := ctx.Err(); cerr != nil {
			return Outcome{}, cerr
		}
		if err != nil {
			werr := mioerr.Worker(string(step.Kind), "retries exhausted", err)
			logger.Warn("worker degraded", "worker", step.Kind, "error", err.Error())
			outcome.Warnings = append(outcome.Warnings, werr.Error())
			continue
		}
		outcome.Fragments = append(outcome.Fragments, frags...)
	}

	logger.Info("request complete",
		"fragments", len(outcome.Fragments), "warnings", len(outcome.Warnings))
	return outcome, nil
}

// runWorker retries a worker up to the router's bound. Context cancellation
// is never retried.
func (r *Router) runWorker(ctx context.Context, logger *slog.Logger, kind workers.Kind, worker workers.Worker, in workers.Input) ([]compiler.Fragment, error) {
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		var frags []compiler.Fragment
		frags, err = worker(ctx, in)
		if err == nil {
			return frags, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < r.maxAttempts {
			logger.Warn("worker attempt failed, retrying",
				"worker", kind, "attempt", attempt, "error", err.Error())
		}
	}
	return nil, err
}
