// Package workers holds the closed set of analysis tasks the router can
// schedule. Each worker is a pure function over the pinned graph and vector
// snapshots plus the prompt and any fragments earlier workers produced.
package workers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/DhavalSuthar-24/miow-context-master/internal/compiler"
	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
	"github.com/DhavalSuthar-24/miow-context-master/internal/llm"
	"github.com/DhavalSuthar-24/miow-context-master/internal/signature"
	"github.com/DhavalSuthar-24/miow-context-master/internal/vector"
)

// Kind identifies one worker in the closed set.
type Kind string

const (
	KindSimilarComponentFinder  Kind = "similar-component-finder"
	KindValidationPatternFinder Kind = "validation-pattern-finder"
	KindAuthPatternFinder       Kind = "auth-pattern-finder"
	KindDesignTokenCollector    Kind = "design-token-collector"
	KindTypeCollector           Kind = "type-collector"
	KindSchemaFinder            Kind = "schema-finder"
)

// Known is the full worker set in a stable order.
func Known() []Kind {
	return []Kind{
		KindSimilarComponentFinder,
		KindValidationPatternFinder,
		KindAuthPatternFinder,
		KindDesignTokenCollector,
		KindTypeCollector,
		KindSchemaFinder,
	}
}

// ValidKind reports whether k names a known worker.
func ValidKind(k Kind) bool {
	for _, known := range Known() {
		if k == known {
			return true
		}
	}
	return false
}

// Fragment categories, one per worker.
const (
	CategoryComponents   = "components"
	CategoryValidation   = "validation"
	CategoryAuth         = "auth"
	CategoryDesignTokens = "design-tokens"
	CategoryTypes        = "types"
	CategorySchemas      = "schemas"
)

// Input is everything a worker may read. Prior carries fragments from
// workers that already completed in this request, in execution order.
type Input struct {
	Graph     *graph.Store
	Vectors   *vector.Store
	Embedder  llm.Embedder
	Signature signature.Signature
	Prompt    string
	Focus     string
	Prior     []compiler.Fragment

	// SelectedFiles, when non-nil, restricts results to these paths.
	// With Soft set the restriction becomes a relevance bias instead.
	SelectedFiles map[string]bool
	Soft          bool
}

// Worker is one analysis task. Errors are retried by the router up to its
// bound; exhaustion degrades the fragment, never the request.
type Worker func(ctx context.Context, in Input) ([]compiler.Fragment, error)

// ForKind returns the worker implementing k.
func ForKind(k Kind) (Worker, bool) {
	switch k {
	case KindSimilarComponentFinder:
		return findSimilarComponents, true
	case KindValidationPatternFinder:
		return findValidationPatterns, true
	case KindAuthPatternFinder:
		return findAuthPatterns, true
	case KindDesignTokenCollector:
		return collectDesignTokens, true
	case KindTypeCollector:
		return collectTypes, true
	case KindSchemaFinder:
		return findSchemas, true
	default:
		return nil, false
	}
}

const maxHitsPerWorker = 5

// pathAllowed applies the hard selected-files filter.
func pathAllowed(in Input, path string) bool {
	if in.SelectedFiles == nil || in.Soft {
		return true
	}
	return in.SelectedFiles[path]
}

// scoreBias nudges relevance for selected files in soft mode.
func scoreBias(in Input, path string, score float64) float64 {
	if in.Soft && in.SelectedFiles != nil && in.SelectedFiles[path] {
		score += 0.1
		if score > 1 {
			score = 1
		}
	}
	return score
}

func symbolFragment(sym graph.Symbol, category string, relevance float64) compiler.Fragment {
	text := fmt.Sprintf("// %s (%s) in %s, lines %d-%d\n%s",
		sym.Name, sym.Kind, sym.Path, sym.StartLine, sym.EndLine, sym.Preview)
	return compiler.Fragment{Text: text, Relevance: relevance, Category: category}
}

// findSimilarComponents ranks components against the prompt by embedding
// similarity, falling back to the graph when the vector index is empty or
// the embedder is down. Components that use design tokens already collected
// in this request rank slightly higher.
func findSimilarComponents(ctx context.Context, in Input) ([]compiler.Fragment, error) {
	tokens := priorDesignTokens(in.Prior)

	promptVec, err := in.Embedder.Embed(ctx, in.Prompt)
	if err == nil {
		filter := func(p vector.Payload) bool {
			return p.Kind == string(graph.KindComponent) && pathAllowed(in, p.Path)
		}
		hits, err := in.Vectors.Query(promptVec, maxHitsPerWorker, filter)
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 {
			var out []compiler.Fragment
			for _, hit := range hits {
				score := scoreBias(in, hit.Payload.Path, hit.Score)
				if usesAnyToken(hit.Payload.Preview, tokens) {
					score = scoreBias(in, hit.Payload.Path, score+0.05)
				}
				text := fmt.Sprintf("// %s (component) in %s\n%s",
					hit.Payload.Name, hit.Payload.Path, hit.Payload.Preview)
				out = append(out, compiler.Fragment{
					Text: text, Relevance: clamp(score), Category: CategoryComponents,
				})
			}
			return out, nil
		}
	}

	// Graph fallback: deterministic, modest relevance.
	syms, err := in.Graph.QueryByKind(graph.KindComponent)
	if err != nil {
		return nil, err
	}
	return fragmentsFromSymbols(in, syms, CategoryComponents, 0.5), nil
}

// findValidationPatterns surfaces schema symbols and validation helpers that
// match the detected validation library.
func findValidationPatterns(_ context.Context, in Input) ([]compiler.Fragment, error) {
	syms, err := in.Graph.QueryByKind(graph.KindSchema)
	if err != nil {
		return nil, err
	}
	out := fragmentsFromSymbols(in, syms, CategoryValidation, 0.7)

	if lib := in.Signature.ValidationLibrary; lib != signature.Unknown {
		named, err := in.Graph.QueryByName(lib, "")
		if err != nil {
			return nil, err
		}
		out = append(out, fragmentsFromSymbols(in, named, CategoryValidation, 0.6)...)
	}
	return dedupe(out), nil
}

var authNamePatterns = []string{"auth", "login", "session", "token", "credential"}

// findAuthPatterns looks for symbols whose names suggest authentication flow.
func findAuthPatterns(_ context.Context, in Input) ([]compiler.Fragment, error) {
	var out []compiler.Fragment
	for _, pattern := range authNamePatterns {
		syms, err := in.Graph.QueryByName(pattern, "")
		if err != nil {
			return nil, err
		}
		out = append(out, fragmentsFromSymbols(in, syms, CategoryAuth, 0.65)...)
	}
	return dedupe(out), nil
}

// collectDesignTokens gathers the codebase's design tokens into one fragment
// so later pattern finders can consult them.
func collectDesignTokens(_ context.Context, in Input) ([]compiler.Fragment, error) {
	syms, err := in.Graph.QueryByKind(graph.KindDesignToken)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, sym := range syms {
		if !pathAllowed(in, sym.Path) {
			continue
		}
		lines = append(lines, sym.Preview)
	}
	if len(lines) == 0 {
		return nil, nil
	}
	text := "// Design tokens\n" + strings.Join(lines, "\n")
	return []compiler.Fragment{
		{Text: text, Relevance: 0.6, Category: CategoryDesignTokens},
	}, nil
}

// collectTypes surfaces type declarations, prompt mentions first.
func collectTypes(_ context.Context, in Input) ([]compiler.Fragment, error) {
	syms, err := in.Graph.QueryByKind(graph.KindType)
	if err != nil {
		return nil, err
	}
	prompt := strings.ToLower(in.Prompt)
	var out []compiler.Fragment
	for _, sym := range syms {
		if !pathAllowed(in, sym.Path) {
			continue
		}
		relevance := 0.5
		if strings.Contains(prompt, strings.ToLower(sym.Name)) {
			relevance = 0.85
		}
		out = append(out, symbolFragment(sym, CategoryTypes, scoreBias(in, sym.Path, relevance)))
		if len(out) == maxHitsPerWorker {
			break
		}
	}
	return out, nil
}

// findSchemas surfaces data schemas (zod objects, pydantic models, JSON
// Schema documents).
func findSchemas(_ context.Context, in Input) ([]compiler.Fragment, error) {
	syms, err := in.Graph.QueryByKind(graph.KindSchema)
	if err != nil {
		return nil, err
	}
	return fragmentsFromSymbols(in, syms, CategorySchemas, 0.6), nil
}

func fragmentsFromSymbols(in Input, syms []graph.Symbol, category string, relevance float64) []compiler.Fragment {
	var out []compiler.Fragment
	for _, sym := range syms {
		if !pathAllowed(in, sym.Path) {
			continue
		}
		out = append(out, symbolFragment(sym, category, scoreBias(in, sym.Path, relevance)))
		if len(out) == maxHitsPerWorker {
			break
		}
	}
	return out
}

// priorDesignTokens pulls token names out of earlier design-token fragments.
func priorDesignTokens(prior []compiler.Fragment) []string {
	var tokens []string
	for _, f := range prior {
		if f.Category != CategoryDesignTokens {
			continue
		}
		for _, line := range strings.Split(f.Text, "\n") {
			name, _, ok := strings.Cut(strings.TrimSpace(line), ":")
			if ok && strings.HasPrefix(name, "--") {
				tokens = append(tokens, name)
			}
		}
	}
	sort.Strings(tokens)
	return tokens
}

func usesAnyToken(preview string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(preview, tok) {
			return true
		}
	}
	return false
}

func dedupe(fragments []compiler.Fragment) []compiler.Fragment {
	seen := map[string]bool{}
	var out []compiler.Fragment
	for _, f := range fragments {
		if seen[f.Text] {
			continue
		}
		seen[f.Text] = true
		out = append(out, f)
	}
	return out
}

func clamp(score float64) float64 {
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}
