package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
)

var goDeclTypes = map[string]bool{
	"function_declaration": true,
	"method_declaration":   true,
	"type_declaration":     true,
	"const_declaration":    true,
}

// extractGo handles Go sources: functions, methods, types, and constants.
func extractGo(root *sitter.Node, source []byte) []rawSymbol {
	var out []rawSymbol

	for _, node := range findNodes(root, goDeclTypes) {
		switch node.Type() {
		case "function_declaration", "method_declaration":
			name := fieldText(node, "name", source)
			if name == "" {
				continue
			}
			out = append(out, makeRaw(name, graph.KindFunction, node, nodeText(node, source)))

		case "type_declaration":
			// type_declaration wraps one or more type_spec children.
			for i := uint32(0); i < node.ChildCount(); i++ {
				spec := node.Child(int(i))
				if spec == nil || spec.Type() != "type_spec" {
					continue
				}
				name := fieldText(spec, "name", source)
				if name == "" {
					continue
				}
				out = append(out, makeRaw(name, graph.KindType, node, nodeText(node, source)))
			}

		case "const_declaration":
			for i := uint32(0); i < node.ChildCount(); i++ {
				spec := node.Child(int(i))
				if spec == nil || spec.Type() != "const_spec" {
					continue
				}
				name := fieldText(spec, "name", source)
				if name == "" {
					continue
				}
				out = append(out, makeRaw(name, graph.KindConstant, spec, nodeText(spec, source)))
			}
		}
	}
	return out
}
