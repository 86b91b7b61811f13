package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// WalkTree visits node and its descendants depth-first. Returning false from
// fn skips the children of the visited node.
func WalkTree(node *sitter.Node, fn func(*sitter.Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		WalkTree(node.Child(i), fn)
	}
}

// FindChild returns the first direct child of the given type.
func FindChild(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// FindNamedChildren returns the direct named children of the given type.
func FindNamedChildren(node *sitter.Node, nodeType string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == nodeType {
			out = append(out, child)
		}
	}
	return out
}

// Unquote strips identifier quoting ("x", `x`, [x]) from a single name segment.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	switch {
	case s[0] == '"' && s[len(s)-1] == '"',
		s[0] == '`' && s[len(s)-1] == '`',
		s[0] == '[' && s[len(s)-1] == ']':
		return s[1 : len(s)-1]
	}
	return s
}

// StringValue returns the contents of a host-language string literal with
// any prefix and surrounding quotes removed.
func StringValue(node *sitter.Node, src []byte) string {
	text := node.Content(src)
	start := strings.IndexAny(text, "'\"`")
	if start < 0 {
		return text
	}
	q := text[start]
	i := start
	for i < len(text) && text[i] == q {
		i++
	}
	j := len(text)
	for j > i && text[j-1] == q {
		j--
	}
	return text[i:j]
}
