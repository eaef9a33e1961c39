package extract

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
)

// extractJSONSchema indexes JSON Schema documents as schema symbols. Other
// JSON files (manifests, lockfiles) produce no symbols.
func extractJSONSchema(path string, source []byte) Result {
	res := Result{Language: LangJSON}

	base := filepath.Base(path)
	isSchemaFile := strings.HasSuffix(base, ".schema.json")

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(source, &doc); err != nil {
		return res // malformed or non-object JSON is simply not a schema
	}
	if _, hasMarker := doc["$schema"]; !hasMarker && !isSchemaFile {
		return res
	}

	name := strings.TrimSuffix(strings.TrimSuffix(base, ".json"), ".schema")
	if title, ok := doc["title"]; ok {
		var t string
		if json.Unmarshal(title, &t) == nil && t != "" {
			name = t
		}
	}

	lineCount := strings.Count(string(source), "\n") + 1
	res.Symbols = append(res.Symbols, graph.SymbolInput{
		Name:      name,
		Kind:      graph.KindSchema,
		StartLine: 1,
		EndLine:   lineCount,
		Preview:   previewOf(string(source), maxPreviewLines),
	})
	return res
}
