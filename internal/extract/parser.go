// Package extract turns source files into graph symbols and intra-file
// relationships. Languages are dispatched by extension; each extractor is
// best effort and returns a ParseError for files it cannot read.
package extract

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies a supported source language.
type Language string

const (
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangGo         Language = "go"
	LangCSS        Language = "css"
	LangJSON       Language = "json"
	LangUnknown    Language = "unknown"
)

// LanguageFromExtension maps a file extension (with dot) to a language.
func LanguageFromExtension(ext string) (Language, bool) {
	switch strings.ToLower(ext) {
	case ".ts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	case ".js", ".mjs", ".cjs":
		return LangJavaScript, true
	case ".jsx":
		return LangTSX, true // jsx shares the tsx grammar
	case ".py":
		return LangPython, true
	case ".go":
		return LangGo, true
	case ".css":
		return LangCSS, true
	case ".json":
		return LangJSON, true
	default:
		return LangUnknown, false
	}
}

// Parser wraps tree-sitter for multi-language parsing.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a new tree-sitter parser.
func NewParser() *Parser {
	return &Parser{parser: sitter.NewParser()}
}

// Parse parses source code and returns the AST root node.
func (p *Parser) Parse(ctx context.Context, source []byte, lang Language) (*sitter.Node, error) {
	tsLang, err := grammarFor(lang)
	if err != nil {
		return nil, err
	}
	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return tree.RootNode(), nil
}

func grammarFor(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	case LangGo:
		return golang.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("no grammar for language %s", lang)
	}
}

// findNodes collects all nodes of the given types under root.
func findNodes(root *sitter.Node, types map[string]bool) []*sitter.Node {
	if len(types) == 0 {
		return nil
	}
	var result []*sitter.Node
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if types[node.Type()] {
			result = append(result, node)
		}
		for i := uint32(0); i < node.ChildCount(); i++ {
			walk(node.Child(int(i)))
		}
	}
	walk(root)
	return result
}

// nodeText slices the source for a node.
func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// previewOf trims a symbol body to a bounded preview: at most maxLines lines,
// never truncated mid-line.
func previewOf(text string, maxLines int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= maxLines {
		return strings.TrimRight(text, "\n")
	}
	return strings.Join(lines[:maxLines], "\n") + "\n// ..."
}
