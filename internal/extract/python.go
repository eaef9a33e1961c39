package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
)

var pythonDeclTypes = map[string]bool{
	"function_definition":  true,
	"class_definition":     true,
	"expression_statement": true,
}

// extractPython handles Python sources: functions, classes, module-level
// constants, and pydantic models as schemas.
func extractPython(root *sitter.Node, source []byte) []rawSymbol {
	var out []rawSymbol

	for _, node := range findNodes(root, pythonDeclTypes) {
		switch node.Type() {
		case "function_definition":
			name := fieldText(node, "name", source)
			if name == "" || strings.HasPrefix(name, "__") {
				continue
			}
			out = append(out, makeRaw(name, graph.KindFunction, node, nodeText(node, source)))

		case "class_definition":
			name := fieldText(node, "name", source)
			if name == "" {
				continue
			}
			body := nodeText(node, source)
			kind := graph.KindType
			if isPydanticModel(node, source) {
				kind = graph.KindSchema
			}
			out = append(out, makeRaw(name, kind, node, body))

		case "expression_statement":
			// Module-level NAME = value assignments become constants.
			if node.Parent() == nil || node.Parent().Type() != "module" {
				continue
			}
			assign := node.Child(0)
			if assign == nil || assign.Type() != "assignment" {
				continue
			}
			name := fieldText(assign, "left", source)
			if !isScreamingSnake(name) {
				continue
			}
			out = append(out, makeRaw(name, graph.KindConstant, node, nodeText(node, source)))
		}
	}
	return out
}

// isPydanticModel checks the superclass list for BaseModel.
func isPydanticModel(classNode *sitter.Node, source []byte) bool {
	supers := classNode.ChildByFieldName("superclasses")
	if supers == nil {
		return false
	}
	return strings.Contains(nodeText(supers, source), "BaseModel")
}
