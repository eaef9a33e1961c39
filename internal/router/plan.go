package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
	"github.com/DhavalSuthar-24/miow-context-master/internal/llm"
	"github.com/DhavalSuthar-24/miow-context-master/internal/mioerr"
	"github.com/DhavalSuthar-24/miow-context-master/internal/signature"
	"github.com/DhavalSuthar-24/miow-context-master/internal/workers"
)

// PlanStep schedules one worker with its declared dependencies.
type PlanStep struct {
	Kind      workers.Kind   `json:"kind"`
	DependsOn []workers.Kind `json:"depends_on,omitempty"`
	Focus     string         `json:"focus,omitempty"`
}

// Plan is a worker-selection plan. Plans come from an external reasoning
// collaborator and are untrusted until Validate passes.
type Plan struct {
	Workers []PlanStep `json:"execution_plan"`
}

// Validate rejects plans with unknown kinds, duplicate steps, dependencies
// on absent steps, or cycles. A rejected plan executes nothing.
func (p Plan) Validate() error {
	if len(p.Workers) == 0 {
		return mioerr.Plan("router", "plan schedules no workers")
	}
	index := make(map[workers.Kind]int, len(p.Workers))
	for i, step := range p.Workers {
		if !workers.ValidKind(step.Kind) {
			return mioerr.Plan("router", fmt.Sprintf("unknown worker kind %q", step.Kind))
		}
		if _, dup := index[step.Kind]; dup {
			return mioerr.Plan("router", fmt.Sprintf("worker %s scheduled twice", step.Kind))
		}
		index[step.Kind] = i
	}
	for _, step := range p.Workers {
		for _, dep := range step.DependsOn {
			if _, ok := index[dep]; !ok {
				return mioerr.Plan("router",
					fmt.Sprintf("worker %s depends on %s, which the plan does not schedule", step.Kind, dep))
			}
		}
	}
	if _, err := p.topoOrder(); err != nil {
		return err
	}
	return nil
}

// topoOrder returns the steps in dependency order. Among ready steps, plan
// order breaks ties so execution is deterministic.
func (p Plan) topoOrder() ([]PlanStep, error) {
	indegree := make(map[workers.Kind]int, len(p.Workers))
	for _, step := range p.Workers {
		indegree[step.Kind] = len(step.DependsOn)
	}

	var order []PlanStep
	done := make(map[workers.Kind]bool, len(p.Workers))
	for len(order) < len(p.Workers) {
		progressed := false
		for _, step := range p.Workers {
			if done[step.Kind] || indegree[step.Kind] != 0 {
				continue
			}
			order = append(order, step)
			done[step.Kind] = true
			for _, other := range p.Workers {
				for _, dep := range other.DependsOn {
					if dep == step.Kind {
						indegree[other.Kind]--
					}
				}
			}
			progressed = true
		}
		if !progressed {
			return nil, mioerr.Plan("router", "worker plan contains a dependency cycle")
		}
	}
	return order, nil
}

// Planner produces a worker-selection plan for one request.
type Planner interface {
	Plan(ctx context.Context, sig signature.Signature, prompt string, stats graph.Stats) (Plan, error)
}

// llmPlanner asks the completion provider for a plan and falls back to the
// deterministic plan when the provider is absent, fails, or returns
// something unparsable.
type llmPlanner struct {
	completer llm.Completer
	logger    *slog.Logger
}

// NewPlanner builds the default planner. completer may be nil, in which
// case every request gets the fallback plan.
func NewPlanner(completer llm.Completer, logger *slog.Logger) Planner {
	return &llmPlanner{completer: completer, logger: logger}
}

const planPromptTemplate = `You select analysis workers for a code context engine.
Project: %s
Index: %d files, %d symbols.
Task: %s

Available workers: %s.
Reply with JSON only:
{"execution_plan":[{"kind":"<worker>","depends_on":["<worker>"],"focus":"<short hint>"}]}`

func (p *llmPlanner) Plan(ctx context.Context, sig signature.Signature, prompt string, stats graph.Stats) (Plan, error) {
	if p.completer == nil {
		return FallbackPlan(sig, prompt), nil
	}

	kinds := make([]string, 0, len(workers.Known()))
	for _, k := range workers.Known() {
		kinds = append(kinds, string(k))
	}
	planPrompt := fmt.Sprintf(planPromptTemplate,
		sig.Describe(), stats.Files, stats.Symbols, prompt, strings.Join(kinds, ", "))

	raw, err := p.completer.Complete(ctx, planPrompt, 512)
	if err != nil {
		p.logger.Warn("planner completion failed, using fallback plan", "error", err.Error())
		return FallbackPlan(sig, prompt), nil
	}

	plan, err := parsePlan(raw)
	if err != nil {
		p.logger.Warn("planner output unparsable, using fallback plan", "error", err.Error())
		return FallbackPlan(sig, prompt), nil
	}
	return plan, nil
}

// parsePlan decodes the provider's JSON, tolerating markdown code fences.
func parsePlan(raw string) (Plan, error) {
	text := strings.TrimSpace(raw)
	if i := strings.Index(text, "{"); i > 0 {
		text = text[i:]
	}
	if i := strings.LastIndex(text, "}"); i >= 0 {
		text = text[:i+1]
	}
	var plan Plan
	if err := json.Unmarshal([]byte(text), &plan); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if len(plan.Workers) == 0 {
		return Plan{}, fmt.Errorf("plan schedules no workers")
	}
	return plan, nil
}

// FallbackPlan is the deterministic plan used when no planner output is
// usable. Design tokens are collected first so the component finder can
// consult them; auth and validation workers join only when the prompt or
// the signature suggests they apply.
func FallbackPlan(sig signature.Signature, prompt string) Plan {
	lower := strings.ToLower(prompt)
	mentions := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	steps := []PlanStep{
		{Kind: workers.KindDesignTokenCollector},
		{Kind: workers.KindTypeCollector},
		{Kind: workers.KindSimilarComponentFinder,
			DependsOn: []workers.Kind{workers.KindDesignTokenCollector}},
	}
	if sig.ValidationLibrary != signature.Unknown || mentions("form", "input", "validate", "validation") {
		steps = append(steps,
			PlanStep{Kind: workers.KindSchemaFinder},
			PlanStep{Kind: workers.KindValidationPatternFinder,
				DependsOn: []workers.Kind{workers.KindSchemaFinder}})
	}
	if sig.AuthLibrary != signature.Unknown || mentions("login", "auth", "signin", "sign in", "session", "logout") {
		steps = append(steps, PlanStep{Kind: workers.KindAuthPatternFinder})
	}
	return Plan{Workers: steps}
}
