package lang

import (
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/phobologic/bit/internal/model"
)

func init() {
	Languages["python"] = &Language{
		Name:             "python",
		Extensions:       []string{".py", ".pyw"},
		lang:             python.GetLanguage(),
		Definition:       pythonDefinition,
		Scope:            pythonScope,
		IsDocstring:      pythonIsDocstring,
		StringValue:      pythonStringValue,
		ExtractSignature: pythonExtractFunctionSignature,
		ModuleName:       pythonModuleName,
		Extent:           pythonExtent,
	}
}

func pythonDefinition(node *sitter.Node, source []byte) (string, model.SymbolKind, bool) {
	if node.Type() != "function_definition" {
		return "", "", false
	}
	name := FieldText(node, "name", source)
	if name == "" {
		return "", "", false
	}
	if pythonFindEnclosingClass(node) != nil {
		return name, model.Method, true
	}
	return name, model.Function, true
}

func pythonScope(node *sitter.Node, source []byte) string {
	if node.Type() != "class_definition" {
		return ""
	}
	return FieldText(node, "name", source)
}

func pythonFindEnclosingClass(funcNode *sitter.Node) *sitter.Node {
	parent := funcNode.Parent()
	if parent == nil {
		return nil
	}

	// Direct: func -> block -> class_definition
	if parent.Type() == "block" && parent.Parent() != nil && parent.Parent().Type() == "class_definition" {
		return parent.Parent()
	}

	// Decorated: func -> decorated_definition -> block -> class_definition
	if parent.Type() == "decorated_definition" {
		gp := parent.Parent()
		if gp != nil && gp.Type() == "block" && gp.Parent() != nil && gp.Parent().Type() == "class_definition" {
			return gp.Parent()
		}
	}

	return nil
}

// pythonExtent widens a decorated function to include its decorators.
func pythonExtent(node *sitter.Node) *sitter.Node {
	if p := node.Parent(); p != nil && p.Type() == "decorated_definition" {
		return p
	}
	return node
}

// pythonIsDocstring matches a bare string expression statement. The caller
// only asks about the first statement of a body.
func pythonIsDocstring(stmt *sitter.Node) bool {
	if stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return false
	}
	switch stmt.NamedChild(0).Type() {
	case "string", "concatenated_string":
		return true
	}
	return false
}

// pythonStringValue strips the prefix and quotes of a string literal so that
// 'x', "x" and """x""" compare equal. Prefixes that change meaning (r, b, f)
// are kept, lowercased; the no-op u prefix is dropped.
func pythonStringValue(node *sitter.Node, source []byte) (string, bool) {
	if node.Type() != "string" {
		return "", false
	}
	text := NodeText(node, source)

	i := 0
	for i < len(text) && text[i] != '"' && text[i] != '\'' {
		i++
	}
	prefix := strings.ReplaceAll(strings.ToLower(text[:i]), "u", "")
	body := text[i:]

	quote := ""
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(body, q) && strings.HasSuffix(body, q) && len(body) >= 2*len(q) {
			quote = q
			break
		}
	}
	if quote == "" {
		return prefix + "|" + body, true
	}
	content := body[len(quote) : len(body)-len(quote)]
	if !strings.Contains(prefix, "r") {
		content = strings.NewReplacer(`\'`, `'`, `\"`, `"`).Replace(content)
	}
	return prefix + "|" + content, true
}

func pythonExtractFunctionSignature(node *sitter.Node, source []byte) string {
	var name, params, returnType string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			if name == "" {
				name = NodeText(child, source)
			}
		case "parameters":
			params = CollapseWhitespace(NodeText(child, source))
		case "type":
			returnType = NodeText(child, source)
		}
	}
	sig := name + params
	if returnType != "" {
		sig += " -> " + returnType
	}
	return sig
}

// pythonModuleName turns pkg/util.py into pkg.util and pkg/__init__.py into pkg.
func pythonModuleName(p string) string {
	p = strings.TrimSuffix(p, path.Ext(p))
	if p == "__init__" {
		return ""
	}
	p = strings.TrimSuffix(p, "/__init__")
	return strings.ReplaceAll(p, "/", ".")
}
