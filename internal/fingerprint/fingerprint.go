// Package fingerprint reduces a function body to a fixed-width hash that is
// stable under formatting changes.
//
// The body is first serialized to a canonical byte sequence: node kinds and
// leaf tokens in tree order, each written as "len:value" so that no two token
// streams share an encoding. Comments, line continuations, bracket and comma
// punctuation, and a leading docstring are dropped; parentheses around a single expression are
// unwrapped; string literals are reduced to their value independent of
// quoting, and the expressions interpolated into a format string are encoded
// like any other expression. The canonical form is then hashed with
// BLAKE2b-256.
package fingerprint

import (
	"bytes"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/crypto/blake2b"

	"github.com/phobologic/bit/internal/lang"
	"github.com/phobologic/bit/internal/model"
)

// punctuation tokens carry no information that the enclosing node kind does
// not already carry.
var punctuation = map[string]struct{}{
	"(": {}, ")": {},
	"[": {}, "]": {},
	"{": {}, "}": {},
	",": {}, ";": {},
	"\n": {}, "\x00": {},
}

// Sum hashes a normalized body.
func Sum(normalized []byte) model.Fingerprint {
	return model.Fingerprint(blake2b.Sum256(normalized))
}

// Normalize serializes the statements of body to their canonical form.
// body is the block node of a definition; its own delimiters are not part
// of the output.
func Normalize(l *lang.Language, body *sitter.Node, source []byte) []byte {
	e := &encoder{lang: l, source: source}
	first := true
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		if isExtra(child) {
			continue
		}
		if first && child.IsNamed() {
			first = false
			if l.IsDocstring != nil && l.IsDocstring(child) {
				continue
			}
		}
		e.node(child)
	}
	return e.buf.Bytes()
}

// Of is Normalize followed by Sum.
func Of(l *lang.Language, body *sitter.Node, source []byte) (normalized []byte, fp model.Fingerprint) {
	normalized = Normalize(l, body, source)
	return normalized, Sum(normalized)
}

type encoder struct {
	buf    bytes.Buffer
	lang   *lang.Language
	source []byte
}

func (e *encoder) token(s string) {
	e.buf.WriteString(strconv.Itoa(len(s)))
	e.buf.WriteByte(':')
	e.buf.WriteString(s)
}

func (e *encoder) node(n *sitter.Node) {
	typ := n.Type()
	if isExtra(n) {
		return
	}
	if !n.IsNamed() {
		if _, ok := punctuation[typ]; ok {
			return
		}
	}

	if typ == "parenthesized_expression" {
		if inner := soleOperand(n); inner != nil {
			e.node(inner)
			return
		}
	}

	if typ == "string" && hasChild(n, "interpolation") {
		e.interpolated(n)
		return
	}

	if v, ok := e.lang.StringValue(n, e.source); ok {
		e.token("str")
		e.token(v)
		return
	}

	if n.ChildCount() == 0 {
		e.token(typ)
		if n.IsNamed() {
			e.token(lang.NodeText(n, e.source))
		}
		return
	}

	e.token("(" + typ)
	for i := 0; i < int(n.ChildCount()); i++ {
		e.node(n.Child(i))
	}
	e.token(")")
}

// interpolated encodes a format string: its prefix, the literal pieces
// without quotes, and each interpolation as an expression.
func (e *encoder) interpolated(n *sitter.Node) {
	text := lang.NodeText(n, e.source)
	open := strings.IndexAny(text, `"'`)
	if open < 0 {
		e.token(text)
		return
	}
	prefix := strings.ReplaceAll(strings.ToLower(text[:open]), "u", "")
	quote := text[open : open+1]
	if strings.HasPrefix(text[open:], strings.Repeat(quote, 3)) && len(text)-open >= 6 {
		quote = strings.Repeat(quote, 3)
	}
	raw := strings.Contains(prefix, "r")
	literal := func(from, to uint32) {
		if to <= from {
			return
		}
		piece := string(e.source[from:to])
		if !raw {
			piece = unescapeQuotes.Replace(piece)
		}
		e.token(piece)
	}

	e.token("(fstr")
	e.token(prefix)
	cursor := n.StartByte() + uint32(open+len(quote))
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "interpolation" {
			continue
		}
		literal(cursor, c.StartByte())
		e.node(c)
		cursor = c.EndByte()
	}
	literal(cursor, n.EndByte()-uint32(len(quote)))
	e.token(")")
}

var unescapeQuotes = strings.NewReplacer(`\'`, `'`, `\"`, `"`)

func hasChild(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() == typ {
			return true
		}
	}
	return false
}

// soleOperand returns the only non-comment named child of n, or nil.
func soleOperand(n *sitter.Node) *sitter.Node {
	var inner *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if isExtra(c) {
			continue
		}
		if inner != nil {
			return nil
		}
		inner = c
	}
	return inner
}

// isExtra matches nodes the grammar allows anywhere: comments and explicit
// line continuations.
func isExtra(n *sitter.Node) bool {
	switch n.Type() {
	case "comment", "line_continuation":
		return true
	}
	return false
}
