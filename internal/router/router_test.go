package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DhavalSuthar-24/miow-context-master/internal/compiler"
	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
	"github.com/DhavalSuthar-24/miow-context-master/internal/llm"
	"github.com/DhavalSuthar-24/miow-context-master/internal/mioerr"
	"github.com/DhavalSuthar-24/miow-context-master/internal/signature"
	"github.com/DhavalSuthar-24/miow-context-master/internal/slogutil"
	"github.com/DhavalSuthar-24/miow-context-master/internal/storage"
	"github.com/DhavalSuthar-24/miow-context-master/internal/vector"
	"github.com/DhavalSuthar-24/miow-context-master/internal/workers"
)

type staticPlanner struct {
	plan  Plan
	calls atomic.Int32
}

func (p *staticPlanner) Plan(context.Context, signature.Signature, string, graph.Stats) (Plan, error) {
	p.calls.Add(1)
	return p.plan, nil
}

func newTestRouter(t *testing.T, planner Planner, maxAttempts int) *Router {
	t.Helper()
	logger := slogutil.NewDiscardLogger()
	db, err := storage.Open(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	g := graph.NewStore(db, logger)
	v := vector.NewStore(db, logger)
	return New(planner, g, v, llm.NoopEmbedder{}, db, maxAttempts, logger)
}

func TestValidateRejectsMalformedPlans(t *testing.T) {
	cases := []struct {
		name string
		plan Plan
	}{
		{"empty", Plan{}},
		{"unknown kind", Plan{Workers: []PlanStep{{Kind: "made-up"}}}},
		{"duplicate", Plan{Workers: []PlanStep{
			{Kind: workers.KindTypeCollector},
			{Kind: workers.KindTypeCollector},
		}}},
		{"dependency not scheduled", Plan{Workers: []PlanStep{
			{Kind: workers.KindTypeCollector, DependsOn: []workers.Kind{workers.KindSchemaFinder}},
		}}},
		{"cycle", Plan{Workers: []PlanStep{
			{Kind: workers.KindTypeCollector, DependsOn: []workers.Kind{workers.KindSchemaFinder}},
			{Kind: workers.KindSchemaFinder, DependsOn: []workers.Kind{workers.KindTypeCollector}},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.plan.Validate()
			require.True(t, mioerr.Is(err, mioerr.CodePlan), "got %v", err)
		})
	}
}

func TestMalformedPlanExecutesNothing(t *testing.T) {
	planner := &staticPlanner{plan: Plan{Workers: []PlanStep{{Kind: "made-up"}}}}
	r := newTestRouter(t, planner, 1)

	var ran atomic.Int32
	r.lookup = func(workers.Kind) (workers.Worker, bool) {
		return func(context.Context, workers.Input) ([]compiler.Fragment, error) {
			ran.Add(1)
			return nil, nil
		}, true
	}

	_, err := r.Execute(context.Background(), Request{Root: "/repo", Prompt: "x"})
	require.True(t, mioerr.Is(err, mioerr.CodePlan))
	require.Zero(t, ran.Load())
}

func TestWorkersRunInDependencyOrder(t *testing.T) {
	planner := &staticPlanner{plan: Plan{Workers: []PlanStep{
		{Kind: workers.KindSimilarComponentFinder,
			DependsOn: []workers.Kind{workers.KindDesignTokenCollector, workers.KindTypeCollector}},
		{Kind: workers.KindTypeCollector,
			DependsOn: []workers.Kind{workers.KindDesignTokenCollector}},
		{Kind: workers.KindDesignTokenCollector},
	}}}
	r := newTestRouter(t, planner, 1)

	var mu sync.Mutex
	var order []workers.Kind
	r.lookup = func(kind workers.Kind) (workers.Worker, bool) {
		return func(context.Context, workers.Input) ([]compiler.Fragment, error) {
			mu.Lock()
			order = append(order, kind)
			mu.Unlock()
			return nil, nil
		}, true
	}

	_, err := r.Execute(context.Background(), Request{Root: "/repo", Prompt: "x"})
	require.NoError(t, err)
	require.Equal(t, []workers.Kind{
		workers.KindDesignTokenCollector,
		workers.KindTypeCollector,
		workers.KindSimilarComponentFinder,
	}, order)
}

func TestLaterWorkersSeeEarlierFragments(t *testing.T) {
	planner := &staticPlanner{plan: Plan{Workers: []PlanStep{
		{Kind: workers.KindDesignTokenCollector},
		{Kind: workers.KindSimilarComponentFinder,
			DependsOn: []workers.Kind{workers.KindDesignTokenCollector}},
	}}}
	r := newTestRouter(t, planner, 1)

	tokenFrag := compiler.Fragment{Text: "tokens", Relevance: 0.5, Category: workers.CategoryDesignTokens}
	var sawPrior []compiler.Fragment
	r.lookup = func(kind workers.Kind) (workers.Worker, bool) {
		return func(_ context.Context, in workers.Input) ([]compiler.Fragment, error) {
			if kind == workers.KindDesignTokenCollector {
				return []compiler.Fragment{tokenFrag}, nil
			}
			sawPrior = in.Prior
			return nil, nil
		}, true
	}

	outcome, err := r.Execute(context.Background(), Request{Root: "/repo", Prompt: "x"})
	require.NoError(t, err)
	require.Equal(t, []compiler.Fragment{tokenFrag}, sawPrior)
	require.Equal(t, []compiler.Fragment{tokenFrag}, outcome.Fragments)
}

func TestTransientWorkerFailureIsRetried(t *testing.T) {
	planner := &staticPlanner{plan: Plan{Workers: []PlanStep{
		{Kind: workers.KindTypeCollector},
	}}}
	r := newTestRouter(t, planner, 3)

	var attempts atomic.Int32
	r.lookup = func(workers.Kind) (workers.Worker, bool) {
		return func(context.Context, workers.Input) ([]compiler.Fragment, error) {
			if attempts.Add(1) < 3 {
				return nil, errors.New("flaky")
			}
			return []compiler.Fragment{{Text: "ok", Relevance: 1, Category: workers.CategoryTypes}}, nil
		}, true
	}

	outcome, err := r.Execute(context.Background(), Request{Root: "/repo", Prompt: "x"})
	require.NoError(t, err)
	require.Len(t, outcome.Fragments, 1)
	require.Empty(t, outcome.Warnings)
	require.Equal(t, int32(3), attempts.Load())
}

func TestExhaustedWorkerDegradesNotAborts(t *testing.T) {
	planner := &staticPlanner{plan: Plan{Workers: []PlanStep{
		{Kind: workers.KindTypeCollector},
		{Kind: workers.KindSchemaFinder},
	}}}
	r := newTestRouter(t, planner, 2)

	r.lookup = func(kind workers.Kind) (workers.Worker, bool) {
		return func(context.Context, workers.Input) ([]compiler.Fragment, error) {
			if kind == workers.KindTypeCollector {
				return nil, errors.New("broken")
			}
			return []compiler.Fragment{{Text: "schemas", Relevance: 1, Category: workers.CategorySchemas}}, nil
		}, true
	}

	outcome, err := r.Execute(context.Background(), Request{Root: "/repo", Prompt: "x"})
	require.NoError(t, err)
	require.Len(t, outcome.Fragments, 1)
	require.Len(t, outcome.Warnings, 1)
	require.Contains(t, outcome.Warnings[0], string(workers.KindTypeCollector))
}

func TestConcurrentIdenticalRequestsCoalesce(t *testing.T) {
	planner := &staticPlanner{plan: Plan{Workers: []PlanStep{
		{Kind: workers.KindTypeCollector},
	}}}
	r := newTestRouter(t, planner, 1)

	var executions atomic.Int32
	r.lookup = func(workers.Kind) (workers.Worker, bool) {
		return func(context.Context, workers.Input) ([]compiler.Fragment, error) {
			executions.Add(1)
			time.Sleep(50 * time.Millisecond) // hold the flight open for joiners
			return []compiler.Fragment{{Text: "t", Relevance: 1, Category: workers.CategoryTypes}}, nil
		}, true
	}

	req := Request{Root: "/repo", Prompt: "add login form"}
	const callers = 8
	var wg sync.WaitGroup
	outcomes := make([]Outcome, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := r.Execute(context.Background(), req)
			require.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), executions.Load())
	require.Equal(t, int32(1), planner.calls.Load())
	for i := 1; i < callers; i++ {
		require.Equal(t, outcomes[0].RequestID, outcomes[i].RequestID)
	}
}

func TestDifferentPromptsDoNotCoalesce(t *testing.T) {
	require.NotEqual(t,
		requestKey(Request{Root: "/repo", Prompt: "a"}),
		requestKey(Request{Root: "/repo", Prompt: "b"}))
	require.NotEqual(t,
		requestKey(Request{Root: "/repo", Prompt: "a"}),
		requestKey(Request{Root: "/repo", Prompt: "a", Selected: []string{"src/a.ts"}}))
	require.Equal(t,
		requestKey(Request{Root: "/repo", Prompt: "a", Selected: []string{"b", "a"}}),
		requestKey(Request{Root: "/repo", Prompt: "a", Selected: []string{"a", "b"}}))
}

func TestCancelledRequestStartsNoPendingWorkers(t *testing.T) {
	planner := &staticPlanner{plan: Plan{Workers: []PlanStep{
		{Kind: workers.KindDesignTokenCollector},
		{Kind: workers.KindTypeCollector,
			DependsOn: []workers.Kind{workers.KindDesignTokenCollector}},
	}}}
	r := newTestRouter(t, planner, 1)

	ctx, cancel := context.WithCancel(context.Background())
	var started []workers.Kind
	r.lookup = func(kind workers.Kind) (workers.Worker, bool) {
		return func(context.Context, workers.Input) ([]compiler.Fragment, error) {
			started = append(started, kind)
			cancel() // cancel mid-flight; the next worker must not start
			return []compiler.Fragment{{Text: "t", Relevance: 1, Category: "x"}}, nil
		}, true
	}

	_, err := r.Execute(ctx, Request{Root: "/repo", Prompt: "x"})
	require.ErrorIs(t, err, context.Canceled)
	// The started worker finished, but only it ran and its result was discarded.
	require.Equal(t, []workers.Kind{workers.KindDesignTokenCollector}, started)
}

// seqGens replays a fixed sequence of generation readings, holding the
// last value once the sequence is exhausted.
type seqGens struct {
	calls atomic.Int64
	seq   []int64
}

func (g *seqGens) Generation() (int64, error) {
	i := int(g.calls.Add(1)) - 1
	if i >= len(g.seq) {
		i = len(g.seq) - 1
	}
	return g.seq[i], nil
}

// tickingGens reports a new generation on every read, like an index pass
// completing during every request.
type tickingGens struct{ calls atomic.Int64 }

func (g *tickingGens) Generation() (int64, error) {
	return g.calls.Add(1), nil
}

func TestGenerationShiftRerunsWorkers(t *testing.T) {
	planner := &staticPlanner{plan: Plan{Workers: []PlanStep{
		{Kind: workers.KindTypeCollector},
	}}}
	r := newTestRouter(t, planner, 1)
	// An index pass completes during the first execution; the second runs
	// entirely within generation 2.
	r.gens = &seqGens{seq: []int64{1, 2, 2, 2}}

	var executions atomic.Int32
	r.lookup = func(workers.Kind) (workers.Worker, bool) {
		return func(context.Context, workers.Input) ([]compiler.Fragment, error) {
			executions.Add(1)
			return []compiler.Fragment{{Text: "t", Relevance: 1, Category: workers.CategoryTypes}}, nil
		}, true
	}

	outcome, err := r.Execute(context.Background(), Request{Root: "/repo", Prompt: "x"})
	require.NoError(t, err)
	require.Equal(t, int32(2), executions.Load())
	require.Equal(t, int32(2), planner.calls.Load())
	// The re-run replaces, not appends to, the discarded first pass.
	require.Len(t, outcome.Fragments, 1)
}

func TestGenerationChurnIsIntegrityError(t *testing.T) {
	planner := &staticPlanner{plan: Plan{Workers: []PlanStep{
		{Kind: workers.KindTypeCollector},
	}}}
	r := newTestRouter(t, planner, 1)
	r.gens = &tickingGens{}

	r.lookup = func(workers.Kind) (workers.Worker, bool) {
		return func(context.Context, workers.Input) ([]compiler.Fragment, error) {
			return nil, nil
		}, true
	}

	_, err := r.Execute(context.Background(), Request{Root: "/repo", Prompt: "x"})
	require.True(t, mioerr.Is(err, mioerr.CodeIntegrity), "got %v", err)
}

func TestParsePlanToleratesCodeFences(t *testing.T) {
	raw := "```json\n{\"execution_plan\":[{\"kind\":\"type-collector\"}]}\n```"
	plan, err := parsePlan(raw)
	require.NoError(t, err)
	require.Len(t, plan.Workers, 1)
	require.Equal(t, workers.KindTypeCollector, plan.Workers[0].Kind)
}

func TestParsePlanRejectsGarbage(t *testing.T) {
	_, err := parsePlan("sure, here is a plan!")
	require.Error(t, err)
	_, err = parsePlan(`{"execution_plan":[]}`)
	require.Error(t, err)
}

func TestFallbackPlanIsDeterministicAndValid(t *testing.T) {
	sig := signature.Signature{
		Framework:         "react",
		ValidationLibrary: "zod",
		AuthLibrary:       signature.Unknown,
	}
	first := FallbackPlan(sig, "add login form")
	require.NoError(t, first.Validate())
	require.Equal(t, first, FallbackPlan(sig, "add login form"))

	kinds := map[workers.Kind]bool{}
	for _, step := range first.Workers {
		kinds[step.Kind] = true
	}
	require.True(t, kinds[workers.KindDesignTokenCollector])
	require.True(t, kinds[workers.KindSimilarComponentFinder])
	require.True(t, kinds[workers.KindValidationPatternFinder]) // zod detected
	require.True(t, kinds[workers.KindAuthPatternFinder])       // "login" in prompt
}

func TestLLMPlannerFallsBackOnCompleterFailure(t *testing.T) {
	p := NewPlanner(failingCompleter{}, slogutil.NewDiscardLogger())
	plan, err := p.Plan(context.Background(),
		signature.Signature{ValidationLibrary: signature.Unknown, AuthLibrary: signature.Unknown},
		"refactor helpers", graph.Stats{})
	require.NoError(t, err)
	require.NoError(t, plan.Validate())
}

type failingCompleter struct{}

func (failingCompleter) Complete(context.Context, string, int) (string, error) {
	return "", errors.New("provider down")
}
