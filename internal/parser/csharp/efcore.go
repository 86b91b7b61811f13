// Package csharp holds the C# pattern indexers.
package csharp

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
)

// EFCoreIndexer recognizes Entity Framework Core mappings: [Table] entity
// classes and DbSet<T> properties on a context.
type EFCoreIndexer struct{}

func NewEFCoreIndexer(*parser.Grammars) (*EFCoreIndexer, error) {
	return &EFCoreIndexer{}, nil
}

func (ix *EFCoreIndexer) Name() string { return "efcore" }

func (ix *EFCoreIndexer) Languages() []parser.Language {
	return []parser.Language{parser.LangCSharp}
}

func (ix *EFCoreIndexer) Index(file parser.FileInput, tree *sitter.Tree) []parser.Invocation {
	src := file.Content
	var out []parser.Invocation

	parser.WalkTree(tree.RootNode(), func(node *sitter.Node) bool {
		switch node.Type() {
		case "class_declaration":
			if inv, ok := tableClass(node, src); ok {
				inv.FilePath = file.Path
				out = append(out, inv)
			}
		case "property_declaration":
			if inv, ok := dbSetProperty(node, src); ok {
				inv.FilePath = file.Path
				out = append(out, inv)
			}
			return false
		}
		return true
	})
	return out
}

// tableClass builds a record for a class carrying [Table("name")].
func tableClass(node *sitter.Node, src []byte) (parser.Invocation, bool) {
	attr := findAttribute(node, "Table", src)
	if attr == nil {
		return parser.Invocation{}, false
	}
	name, schema := attributeArgs(attr, src)
	if name == nil {
		return parser.Invocation{}, false
	}

	entity := parser.StringValue(name, src)
	if schema != "" {
		entity = schema + "." + entity
	}
	inv := parser.Invocation{
		Entity:     entity,
		ColumnRefs: mappedProperties(node.ChildByFieldName("body"), src),
		Confidence: 1,
	}
	inv.SetSpan(parser.NodeSpan(name, parser.Offset{}))
	return inv, true
}

// dbSetProperty builds a record for a DbSet<T> property, which EF Core maps
// to a table named after the property.
func dbSetProperty(node *sitter.Node, src []byte) (parser.Invocation, bool) {
	if extractDbSetType(node, src) == "" {
		return parser.Invocation{}, false
	}
	name := node.ChildByFieldName("name")
	if name == nil {
		return parser.Invocation{}, false
	}
	inv := parser.Invocation{
		Entity:     name.Content(src),
		Confidence: 0.8,
	}
	inv.SetSpan(parser.NodeSpan(name, parser.Offset{}))
	return inv, true
}

// mappedProperties returns the column names of an entity's public
// properties, honouring [Column("name")] and skipping [NotMapped] and
// virtual navigation properties.
func mappedProperties(body *sitter.Node, src []byte) []parser.ColumnRef {
	columns := []parser.ColumnRef{}
	if body == nil {
		return columns
	}
	for _, prop := range parser.FindNamedChildren(body, "property_declaration") {
		if !hasModifier(prop, "public", src) || hasModifier(prop, "virtual", src) || hasModifier(prop, "static", src) {
			continue
		}
		if findAttribute(prop, "NotMapped", src) != nil {
			continue
		}
		nameNode := prop.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nameNode.Content(src)
		if col := findAttribute(prop, "Column", src); col != nil {
			if override, _ := attributeArgs(col, src); override != nil {
				name = parser.StringValue(override, src)
			}
		}
		columns = append(columns, parser.ColumnRef{Name: name, Confidence: 1})
	}
	return columns
}

// findAttribute returns the attribute of a declaration with the given
// simple name, with or without the Attribute suffix.
func findAttribute(decl *sitter.Node, name string, src []byte) *sitter.Node {
	for _, list := range parser.FindNamedChildren(decl, "attribute_list") {
		for _, attr := range parser.FindNamedChildren(list, "attribute") {
			n := attr.ChildByFieldName("name")
			if n == nil {
				continue
			}
			text := n.Content(src)
			if i := strings.LastIndexByte(text, '.'); i >= 0 {
				text = text[i+1:]
			}
			if text == name || text == name+"Attribute" {
				return attr
			}
		}
	}
	return nil
}

// attributeArgs returns the first positional string argument of an
// attribute and the value of its Schema named argument.
func attributeArgs(attr *sitter.Node, src []byte) (*sitter.Node, string) {
	args := parser.FindChild(attr, "attribute_argument_list")
	if args == nil {
		return nil, ""
	}
	var positional *sitter.Node
	schema := ""
	for _, arg := range parser.FindNamedChildren(args, "attribute_argument") {
		lit := stringLiteral(arg)
		if lit == nil {
			continue
		}
		text := arg.Content(src)
		if eq := strings.IndexByte(text, '='); eq >= 0 && eq < strings.IndexByte(text, '"') {
			if strings.TrimSpace(text[:eq]) == "Schema" {
				schema = parser.StringValue(lit, src)
			}
			continue
		}
		if positional == nil {
			positional = lit
		}
	}
	return positional, schema
}

func stringLiteral(node *sitter.Node) *sitter.Node {
	var found *sitter.Node
	parser.WalkTree(node, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Type() == "string_literal" || n.Type() == "verbatim_string_literal" {
			found = n
			return false
		}
		return true
	})
	return found
}

func hasModifier(decl *sitter.Node, keyword string, src []byte) bool {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		child := decl.NamedChild(i)
		if child.Type() == "modifier" && child.Content(src) == keyword {
			return true
		}
	}
	return false
}

func extractDbSetType(node *sitter.Node, src []byte) string {
	typ := node.ChildByFieldName("type")
	if typ == nil || typ.Type() != "generic_name" {
		return ""
	}
	text := typ.Content(src)
	if !strings.HasPrefix(text, "DbSet<") || !strings.HasSuffix(text, ">") {
		return ""
	}
	return text[len("DbSet<") : len(text)-1]
}
