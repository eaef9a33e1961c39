package extract

import (
	"regexp"
	"strings"

	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
)

// CSS custom properties are the design tokens: --name: value;
var cssTokenRe = regexp.MustCompile(`(--[A-Za-z][A-Za-z0-9_-]*)\s*:\s*([^;]+);`)

// extractCSS collects design tokens from CSS custom property declarations.
func extractCSS(path string, source []byte) Result {
	res := Result{Language: LangCSS}

	lines := strings.Split(string(source), "\n")
	seen := map[string]bool{}
	for i, line := range lines {
		for _, m := range cssTokenRe.FindAllStringSubmatch(line, -1) {
			name := m[1]
			if seen[name] {
				continue // first declaration wins
			}
			seen[name] = true
			res.Symbols = append(res.Symbols, graph.SymbolInput{
				Name:      name,
				Kind:      graph.KindDesignToken,
				StartLine: i + 1,
				EndLine:   i + 1,
				Preview:   name + ": " + strings.TrimSpace(m[2]) + ";",
			})
		}
	}
	return res
}
