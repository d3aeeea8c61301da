// Package lang provides a language registry mapping file extensions to
// tree-sitter languages and the hooks the symbol extractor needs for each.
package lang

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/bit/internal/model"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language

	// Definition reports whether node defines a function or method and, if
	// so, returns its local name and kind. Go methods return "Recv.Name".
	Definition func(node *sitter.Node, source []byte) (name string, kind model.SymbolKind, ok bool)

	// Scope reports whether node opens a named scope that is not itself a
	// symbol (a Python class). Returns "" otherwise.
	Scope func(node *sitter.Node, source []byte) string

	// IsDocstring reports whether a body statement is documentation rather
	// than logic. Nil means the language has none.
	IsDocstring func(stmt *sitter.Node) bool

	// StringValue reduces a string literal node to a form independent of
	// its quoting style. ok is false for nodes that are not string literals.
	StringValue func(node *sitter.Node, source []byte) (value string, ok bool)

	// ExtractSignature returns a signature string for a definition node.
	ExtractSignature func(node *sitter.Node, source []byte) string

	// ModuleName derives the module a file belongs to from its path.
	ModuleName func(path string) string

	// Extent returns the node whose line range the symbol reports, which
	// includes decorators where the language has them. Nil means node itself.
	Extent func(node *sitter.Node) *sitter.Node
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// Names returns the registered language names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Languages))
	for name := range Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// FieldText returns the text of the named field child, or "".
func FieldText(node *sitter.Node, field string, source []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return NodeText(child, source)
}
