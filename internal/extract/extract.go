package extract

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
	"github.com/DhavalSuthar-24/miow-context-master/internal/mioerr"
)

const maxPreviewLines = 25

// Result is one file's extraction output.
type Result struct {
	Language Language
	Symbols  []graph.SymbolInput
	Edges    []graph.EdgeInput
}

// rawSymbol carries the full body text alongside the stored input so edge
// scanning can see more than the preview.
type rawSymbol struct {
	input graph.SymbolInput
	body  string
}

// Extractor dispatches files to language-specific symbol extraction.
type Extractor struct {
	parser *Parser
}

// NewExtractor creates a file extractor.
func NewExtractor() *Extractor {
	return &Extractor{parser: NewParser()}
}

// ExtractFile extracts symbols and intra-file edges from one source file.
// Unsupported extensions yield an empty result, not an error.
func (e *Extractor) ExtractFile(ctx context.Context, path string, source []byte) (Result, error) {
	lang, ok := LanguageFromExtension(filepath.Ext(path))
	if !ok {
		return Result{Language: LangUnknown}, nil
	}

	switch lang {
	case LangCSS:
		return extractCSS(path, source), nil
	case LangJSON:
		return extractJSONSchema(path, source), nil
	}

	root, err := e.parser.Parse(ctx, source, lang)
	if err != nil {
		return Result{}, mioerr.Parse("extract", "parse failed for "+path, err)
	}

	var raws []rawSymbol
	switch lang {
	case LangTypeScript, LangTSX, LangJavaScript:
		raws = extractScript(root, source, lang)
	case LangPython:
		raws = extractPython(root, source)
	case LangGo:
		raws = extractGo(root, source)
	}

	res := Result{Language: lang}
	for _, r := range raws {
		res.Symbols = append(res.Symbols, r.input)
	}
	res.Edges = linkSymbols(raws)
	return res, nil
}

// linkSymbols derives intra-file edges: a symbol whose body mentions another
// symbol's name gets a calls edge (function targets) or a references edge.
func linkSymbols(raws []rawSymbol) []graph.EdgeInput {
	var edges []graph.EdgeInput
	for _, from := range raws {
		if from.input.Kind != graph.KindFunction && from.input.Kind != graph.KindComponent {
			continue
		}
		for _, to := range raws {
			if from.input.Name == to.input.Name && from.input.Kind == to.input.Kind {
				continue
			}
			if !mentionsIdentifier(from.body, to.input.Name) {
				continue
			}
			kind := graph.EdgeReferences
			if to.input.Kind == graph.KindFunction || to.input.Kind == graph.KindComponent {
				kind = graph.EdgeCalls
			}
			edges = append(edges, graph.EdgeInput{
				FromName: from.input.Name, FromKind: from.input.Kind,
				ToName: to.input.Name, ToKind: to.input.Kind,
				Kind: kind,
			})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FromName != edges[j].FromName {
			return edges[i].FromName < edges[j].FromName
		}
		return edges[i].ToName < edges[j].ToName
	})
	return edges
}

// mentionsIdentifier reports whether name appears in body as a standalone
// identifier. The body's own declaration line will match too, so callers
// exclude self-references by name.
func mentionsIdentifier(body, name string) bool {
	if name == "" || !strings.Contains(body, name) {
		return false
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	return re.MatchString(body)
}
