package lang

import (
	"path"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/phobologic/bit/internal/model"
)

func init() {
	Languages["go"] = &Language{
		Name:             "go",
		Extensions:       []string{".go"},
		lang:             golang.GetLanguage(),
		Definition:       goDefinition,
		Scope:            func(*sitter.Node, []byte) string { return "" },
		StringValue:      goStringValue,
		ExtractSignature: goExtractSignature,
		ModuleName:       goModuleName,
	}
}

func goDefinition(node *sitter.Node, source []byte) (string, model.SymbolKind, bool) {
	switch node.Type() {
	case "function_declaration":
		name := FieldText(node, "name", source)
		return name, model.Function, name != ""
	case "method_declaration":
		name := FieldText(node, "name", source)
		if name == "" {
			return "", "", false
		}
		if recv := goFindReceiverType(node, source); recv != "" {
			name = recv + "." + name
		}
		return name, model.Method, true
	}
	return "", "", false
}

// goFindReceiverType extracts the receiver type name from a method_declaration node.
// Navigates: method_declaration → parameter_list (receiver) → parameter_declaration → type.
func goFindReceiverType(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for j := 0; j < int(recv.NamedChildCount()); j++ {
		param := recv.NamedChild(j)
		if param.Type() == "parameter_declaration" {
			return goExtractTypeName(param, source)
		}
	}
	return ""
}

// goExtractTypeName extracts the type name from a parameter_declaration,
// unwrapping pointer_type and generic_type if present.
func goExtractTypeName(param *sitter.Node, source []byte) string {
	typ := param.ChildByFieldName("type")
	for typ != nil {
		switch typ.Type() {
		case "type_identifier":
			return NodeText(typ, source)
		case "pointer_type", "generic_type":
			typ = typ.NamedChild(0)
		default:
			return ""
		}
	}
	return ""
}

// goStringValue evaluates interpreted and raw string literals, so "a\tb"
// and a raw literal holding a tab compare equal.
func goStringValue(node *sitter.Node, source []byte) (string, bool) {
	switch node.Type() {
	case "interpreted_string_literal", "raw_string_literal":
	default:
		return "", false
	}
	text := NodeText(node, source)
	v, err := strconv.Unquote(text)
	if err != nil {
		return text, true
	}
	return v, true
}

func goExtractSignature(defNode *sitter.Node, source []byte) string {
	name := FieldText(defNode, "name", source)
	params := CollapseWhitespace(FieldText(defNode, "parameters", source))
	result := CollapseWhitespace(FieldText(defNode, "result", source))

	sig := name + params
	if result != "" {
		sig += " " + result
	}
	return sig
}

// goModuleName uses the package directory, which is how Go code refers to a file's scope.
func goModuleName(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}
