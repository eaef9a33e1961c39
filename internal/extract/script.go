package extract

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
)

var scriptDeclTypes = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"class_declaration":              true,
	"interface_declaration":          true,
	"type_alias_declaration":         true,
	"enum_declaration":               true,
	"lexical_declaration":            true,
	"variable_declaration":           true,
}

// extractScript handles the TypeScript/TSX/JavaScript family.
func extractScript(root *sitter.Node, source []byte, lang Language) []rawSymbol {
	var out []rawSymbol

	for _, node := range findNodes(root, scriptDeclTypes) {
		switch node.Type() {
		case "function_declaration", "generator_function_declaration":
			name := fieldText(node, "name", source)
			if name == "" {
				continue
			}
			body := nodeText(node, source)
			out = append(out, makeRaw(name, scriptCallableKind(name, body, lang), node, body))

		case "class_declaration", "interface_declaration", "type_alias_declaration", "enum_declaration":
			name := fieldText(node, "name", source)
			if name == "" {
				continue
			}
			body := nodeText(node, source)
			kind := graph.KindType
			if node.Type() == "class_declaration" && isComponentName(name) && looksLikeJSX(body, lang) {
				kind = graph.KindComponent
			}
			out = append(out, makeRaw(name, kind, node, body))

		case "lexical_declaration", "variable_declaration":
			for i := uint32(0); i < node.ChildCount(); i++ {
				decl := node.Child(int(i))
				if decl == nil || decl.Type() != "variable_declarator" {
					continue
				}
				name := fieldText(decl, "name", source)
				if name == "" {
					continue
				}
				value := decl.ChildByFieldName("value")
				body := nodeText(node, source)
				kind := classifyDeclarator(name, value, source, body, lang)
				if kind == "" {
					continue
				}
				out = append(out, makeRaw(name, kind, node, body))
			}
		}
	}
	return out
}

// classifyDeclarator decides what a const/let declaration is: a schema, a
// callable, a constant, or nothing worth indexing.
func classifyDeclarator(name string, value *sitter.Node, source []byte, body string, lang Language) graph.SymbolKind {
	valueText := ""
	if value != nil {
		valueText = nodeText(value, source)
	}

	if isSchemaValue(valueText) || strings.HasSuffix(name, "Schema") {
		return graph.KindSchema
	}
	if value != nil && (value.Type() == "arrow_function" || value.Type() == "function_expression" || value.Type() == "function") {
		return scriptCallableKind(name, body, lang)
	}
	if isScreamingSnake(name) {
		return graph.KindConstant
	}
	return ""
}

// scriptCallableKind distinguishes React components from plain functions:
// a capitalized name plus JSX in the body.
func scriptCallableKind(name, body string, lang Language) graph.SymbolKind {
	if isComponentName(name) && looksLikeJSX(body, lang) {
		return graph.KindComponent
	}
	return graph.KindFunction
}

// isSchemaValue recognizes zod/yup/joi builder chains.
func isSchemaValue(valueText string) bool {
	trimmed := strings.TrimSpace(valueText)
	for _, prefix := range []string{"z.", "yup.", "Joi.", "joi."} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func looksLikeJSX(body string, lang Language) bool {
	if lang == LangTSX {
		return strings.Contains(body, "<")
	}
	// Plain ts/js rarely returns markup; require an explicit JSX-ish return.
	return strings.Contains(body, "return <") || strings.Contains(body, "=> <")
}

func isComponentName(name string) bool {
	if name == "" {
		return false
	}
	return unicode.IsUpper(rune(name[0]))
}

func isScreamingSnake(name string) bool {
	if name == "" {
		return false
	}
	hasLetter := false
	for _, r := range name {
		switch {
		case unicode.IsUpper(r):
			hasLetter = true
		case r == '_' || unicode.IsDigit(r):
		default:
			return false
		}
	}
	return hasLetter
}

func fieldText(node *sitter.Node, field string, source []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return nodeText(child, source)
}

func makeRaw(name string, kind graph.SymbolKind, node *sitter.Node, body string) rawSymbol {
	return rawSymbol{
		input: graph.SymbolInput{
			Name:      name,
			Kind:      kind,
			StartLine: int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
			Preview:   previewOf(body, maxPreviewLines),
		},
		body: body,
	}
}
