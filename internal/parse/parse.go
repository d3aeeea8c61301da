// Package parse extracts function-level symbols from source files using tree-sitter.
package parse

import (
	"context"
	"fmt"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/bit/internal/fingerprint"
	"github.com/phobologic/bit/internal/lang"
	"github.com/phobologic/bit/internal/model"
)

// Error reports that a source text is not valid syntax for its language.
// Callers treat it as "no symbols known for this file at this revision".
type Error struct {
	Path   string
	Line   int
	Column int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error", e.Path, e.Line, e.Column)
}

// Extract parses a source file and returns every function and method
// definition it contains, keyed by identity. The parser must be created for
// the correct language. filePath should be the repo-relative, slash-separated
// path; it is used for identities and module names.
func Extract(ctx context.Context, l *lang.Language, parser *sitter.Parser, source []byte, filePath string) (model.SymbolTable, error) {
	table := model.SymbolTable{}
	if len(source) == 0 {
		return table, nil
	}

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root, filePath)
	}

	x := &extractor{
		lang:   l,
		source: source,
		path:   filePath,
		module: l.ModuleName(filePath),
		table:  table,
		seen:   make(map[string]int),
	}
	x.walk(root, "")
	return table, nil
}

type extractor struct {
	lang   *lang.Language
	source []byte
	path   string
	module string
	table  model.SymbolTable
	seen   map[string]int
}

// walk visits n's children. scope is the dotted name of the enclosing
// classes and functions, "" at module level.
func (x *extractor) walk(n *sitter.Node, scope string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)

		if name, kind, ok := x.lang.Definition(child, x.source); ok {
			qualified := x.unique(join(scope, name))
			x.define(child, qualified, kind)
			x.walk(child, qualified)
			continue
		}

		if name := x.lang.Scope(child, x.source); name != "" {
			x.walk(child, join(scope, name))
			continue
		}

		x.walk(child, scope)
	}
}

func (x *extractor) define(def *sitter.Node, name string, kind model.SymbolKind) {
	body := def.ChildByFieldName("body")
	if body == nil {
		return
	}

	extent := def
	if x.lang.Extent != nil {
		extent = x.lang.Extent(def)
	}

	normalized, fp := fingerprint.Of(x.lang, body, x.source)
	id := model.SymbolID{Path: x.path, Name: name}
	x.table[id] = &model.Symbol{
		ID:          id,
		Module:      x.module,
		Kind:        kind,
		StartLine:   int(extent.StartPoint().Row) + 1,
		EndLine:     int(extent.EndPoint().Row) + 1,
		Signature:   x.lang.ExtractSignature(def, x.source),
		Body:        string(normalized),
		Source:      lang.NodeText(body, x.source),
		Fingerprint: fp,
	}
}

// unique suffixes repeated definitions of one name (a property getter and
// setter, a conditional redefinition) with #2, #3 in source order.
func (x *extractor) unique(name string) string {
	x.seen[name]++
	if n := x.seen[name]; n > 1 {
		return name + "#" + strconv.Itoa(n)
	}
	return name
}

func join(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

// syntaxError locates the first ERROR or missing node under root.
func syntaxError(root *sitter.Node, path string) *Error {
	bad := firstError(root)
	if bad == nil {
		bad = root
	}
	p := bad.StartPoint()
	return &Error{Path: path, Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstError(n.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}
