// Package compiler assembles worker fragments into one bounded context
// document. Selection is deterministic: the same fragment set and budget
// always produce the same document.
package compiler

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Fragment is one scored, costed unit of context text. Fragments are
// immutable and included whole or not at all.
type Fragment struct {
	Text      string  `json:"text"`
	TokenCost int     `json:"tokenCost"`
	Relevance float64 `json:"relevance"`
	Category  string  `json:"category"`
}

// TokenEstimator prices text in tokens. The estimate only has to be
// consistent, not exact; the budget law is enforced against it.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator approximates one token per four characters, rounding up.
type CharEstimator struct{}

func (CharEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Compiler selects and renders fragments under a token budget.
type Compiler struct {
	estimator       TokenEstimator
	categoryMinimum int
	logger          *slog.Logger
}

// New creates a compiler. categoryMinimum is the number of fragments each
// represented category is guaranteed before the budget opens up globally.
func New(estimator TokenEstimator, categoryMinimum int, logger *slog.Logger) *Compiler {
	if estimator == nil {
		estimator = CharEstimator{}
	}
	if categoryMinimum < 0 {
		categoryMinimum = 0
	}
	return &Compiler{estimator: estimator, categoryMinimum: categoryMinimum, logger: logger}
}

// Select picks the fragments that make the document. Two phases: each
// category gets up to categoryMinimum of its best fragments, then the
// remaining budget fills greedily across all categories by relevance.
// Ties break toward the cheaper fragment, then lexically by text. The
// total cost of the selection never exceeds budget.
func (c *Compiler) Select(fragments []Fragment, budget int) []Fragment {
	if budget <= 0 || len(fragments) == 0 {
		return nil
	}

	priced := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		if f.Text == "" {
			continue
		}
		if f.TokenCost <= 0 {
			f.TokenCost = c.estimator.Estimate(f.Text)
		}
		priced = append(priced, f)
	}
	sortFragments(priced)

	remaining := budget
	// Selection tracks indices, so byte-identical fragments from different
	// workers remain distinct candidates.
	taken := make([]bool, len(priced))
	var selected []Fragment

	take := func(i int) {
		taken[i] = true
		selected = append(selected, priced[i])
		remaining -= priced[i].TokenCost
	}

	// Phase 1: per-category minimum, categories in lexical order.
	byCategory := map[string][]int{}
	for i, f := range priced {
		byCategory[f.Category] = append(byCategory[f.Category], i)
	}
	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	for _, cat := range categories {
		quota := c.categoryMinimum
		for _, i := range byCategory[cat] {
			if quota == 0 {
				break
			}
			if priced[i].TokenCost > remaining {
				continue
			}
			take(i)
			quota--
		}
	}

	// Phase 2: remaining budget across all categories by relevance.
	for i, f := range priced {
		if taken[i] {
			continue
		}
		if f.TokenCost > remaining {
			continue
		}
		take(i)
	}

	if c.logger != nil {
		c.logger.Debug("fragments selected",
			"candidates", len(priced), "selected", len(selected),
			"budget", budget, "spent", budget-remaining)
	}
	return selected
}

// Compile renders the final document: header, then sections by category in
// lexical order, fragments within a section in selection order.
func (c *Compiler) Compile(header string, fragments []Fragment, budget int) string {
	selected := c.Select(fragments, budget)

	byCategory := map[string][]Fragment{}
	for _, f := range selected {
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}
	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	var b strings.Builder
	if header != "" {
		b.WriteString("# Project context\n\n")
		b.WriteString(header)
		b.WriteString("\n")
	}
	for _, cat := range categories {
		b.WriteString(fmt.Sprintf("\n## %s\n\n", cat))
		for _, f := range byCategory[cat] {
			b.WriteString(f.Text)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// TotalCost sums the token costs of a fragment set.
func TotalCost(fragments []Fragment) int {
	total := 0
	for _, f := range fragments {
		total += f.TokenCost
	}
	return total
}

// sortFragments orders by relevance desc, token cost asc, text asc.
func sortFragments(fragments []Fragment) {
	sort.Slice(fragments, func(i, j int) bool {
		if fragments[i].Relevance != fragments[j].Relevance {
			return fragments[i].Relevance > fragments[j].Relevance
		}
		if fragments[i].TokenCost != fragments[j].TokenCost {
			return fragments[i].TokenCost < fragments[j].TokenCost
		}
		return fragments[i].Text < fragments[j].Text
	})
}
