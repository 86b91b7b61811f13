package javascript

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
)

var scriptLanguages = []parser.Language{parser.LangJavaScript, parser.LangTypeScript}

// compileAll compiles pattern for JavaScript and TypeScript, whose
// expression grammars share node names.
func compileAll(g *parser.Grammars, pattern string) (map[parser.Language]*parser.Query, error) {
	out := make(map[parser.Language]*parser.Query, len(scriptLanguages))
	for _, l := range scriptLanguages {
		lang, err := g.Language(l)
		if err != nil {
			return nil, err
		}
		q, err := parser.NewQuery(lang, pattern)
		if err != nil {
			return nil, err
		}
		out[l] = q
	}
	return out, nil
}

// firstObject returns the first argument when it is an object literal.
func firstObject(args *sitter.Node) *sitter.Node {
	if args == nil || args.NamedChildCount() == 0 {
		return nil
	}
	if first := args.NamedChild(0); first.Type() == "object" {
		return first
	}
	return nil
}

// objectKeys returns the property names of an object literal in order,
// including shorthand properties.
func objectKeys(obj *sitter.Node, src []byte) []string {
	if obj == nil {
		return nil
	}
	var keys []string
	for i := 0; i < int(obj.NamedChildCount()); i++ {
		child := obj.NamedChild(i)
		switch child.Type() {
		case "pair":
			if key := child.ChildByFieldName("key"); key != nil {
				if k := keyName(key, src); k != "" {
					keys = append(keys, k)
				}
			}
		case "shorthand_property_identifier":
			keys = append(keys, child.Content(src))
		}
	}
	return keys
}

// keyName returns a property key without quotes. Computed keys yield "".
func keyName(key *sitter.Node, src []byte) string {
	switch key.Type() {
	case "property_identifier", "identifier", "number":
		return key.Content(src)
	case "string":
		return parser.StringValue(key, src)
	}
	return ""
}

// findObjectProp returns the value of the named property of an object
// literal, or nil.
func findObjectProp(obj *sitter.Node, prop string, src []byte) *sitter.Node {
	if obj == nil {
		return nil
	}
	for _, pair := range parser.FindNamedChildren(obj, "pair") {
		key := pair.ChildByFieldName("key")
		if key != nil && keyName(key, src) == prop {
			return pair.ChildByFieldName("value")
		}
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil &&
		a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// extractRootIdentifier walks down nested member expressions to the object
// they start from, e.g. prisma for prisma.user.findUnique.
func extractRootIdentifier(node *sitter.Node, src []byte) string {
	current := node
	for current != nil && current.Type() == "member_expression" {
		current = current.ChildByFieldName("object")
	}
	if current == nil || current.Type() != "identifier" {
		return ""
	}
	return current.Content(src)
}
