// Package graph is the durable relational index of files, symbols, and the
// relationships between them. Writes for one file commit atomically; readers
// only ever see fully committed files.
package graph

// SymbolKind is the closed set of symbol categories the extractors produce.
type SymbolKind string

const (
	KindFunction    SymbolKind = "function"
	KindComponent   SymbolKind = "component"
	KindType        SymbolKind = "type"
	KindConstant    SymbolKind = "constant"
	KindDesignToken SymbolKind = "designToken"
	KindSchema      SymbolKind = "schema"
)

// ValidSymbolKind reports whether k is a known symbol kind.
func ValidSymbolKind(k SymbolKind) bool {
	switch k {
	case KindFunction, KindComponent, KindType, KindConstant, KindDesignToken, KindSchema:
		return true
	}
	return false
}

// EdgeKind is the closed set of relationship categories.
type EdgeKind string

const (
	EdgeImports    EdgeKind = "imports"
	EdgeCalls      EdgeKind = "calls"
	EdgeDefines    EdgeKind = "defines"
	EdgeReferences EdgeKind = "references"
)

// ValidEdgeKind reports whether k is a known edge kind.
func ValidEdgeKind(k EdgeKind) bool {
	switch k {
	case EdgeImports, EdgeCalls, EdgeDefines, EdgeReferences:
		return true
	}
	return false
}

// File is one indexed file.
type File struct {
	ID          int64
	Path        string
	Language    string
	Fingerprint string
}

// Symbol is a named, typed unit of source with a location. Symbols are never
// mutated: a changed symbol is replaced under a fresh id so references held
// by readers stay stable within a generation.
type Symbol struct {
	ID        string
	FileID    int64
	Path      string // file path, joined in on reads
	Name      string
	Kind      SymbolKind
	StartLine int
	EndLine   int
	Preview   string
}

// Edge is a directed relationship between two symbols.
type Edge struct {
	FromID string
	ToID   string
	Kind   EdgeKind
}

// SymbolInput is an extracted symbol before an id has been issued.
type SymbolInput struct {
	Name      string
	Kind      SymbolKind
	StartLine int
	EndLine   int
	Preview   string
}

// EdgeInput names an intra-file relationship by symbol name; the store
// resolves names to ids at commit time.
type EdgeInput struct {
	FromName string
	FromKind SymbolKind
	ToName   string
	ToKind   SymbolKind
	Kind     EdgeKind
}

// Stats summarizes the committed index, fed to the planner.
type Stats struct {
	Files   int
	Symbols int
	Edges   int
}
