package java

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
)

// fieldSkips are annotations marking fields that hold no column of their own.
var fieldSkips = map[string]bool{
	"Transient":         true,
	"OneToMany":         true,
	"ManyToMany":        true,
	"ElementCollection": true,
}

// JPAIndexer reports @Entity and @Table classes along with their mapped
// columns.
type JPAIndexer struct{}

func NewJPAIndexer(*parser.Grammars) (*JPAIndexer, error) {
	return &JPAIndexer{}, nil
}

func (ix *JPAIndexer) Name() string { return "jpa" }

func (ix *JPAIndexer) Languages() []parser.Language {
	return []parser.Language{parser.LangJava}
}

func (ix *JPAIndexer) Index(file parser.FileInput, tree *sitter.Tree) []parser.Invocation {
	src := file.Content
	var out []parser.Invocation

	parser.WalkTree(tree.RootNode(), func(node *sitter.Node) bool {
		if node.Type() != "class_declaration" {
			return true
		}
		annos := annotations(parser.FindChild(node, "modifiers"), src)
		table, isTable := annos["Table"]
		if _, isEntity := annos["Entity"]; !isEntity && !isTable {
			return true
		}

		name := node.ChildByFieldName("name")
		if name == nil {
			return true
		}
		entity := name.Content(src)
		anchor := name

		if isTable {
			if v := annotationParam(table, "name", src); v != nil {
				entity = parser.StringValue(v, src)
				anchor = v
			}
			if s := annotationParam(table, "schema", src); s != nil {
				entity = parser.StringValue(s, src) + "." + entity
			}
		}

		inv := parser.Invocation{
			FilePath:   file.Path,
			Entity:     entity,
			ColumnRefs: entityColumns(node.ChildByFieldName("body"), src),
			Confidence: 1,
		}
		inv.SetSpan(parser.NodeSpan(anchor, parser.Offset{}))
		out = append(out, inv)
		return true
	})
	return out
}

// entityColumns returns the persistent fields of an entity body, renamed by
// @Column or @JoinColumn where given.
func entityColumns(body *sitter.Node, src []byte) []parser.ColumnRef {
	columns := []parser.ColumnRef{}
	if body == nil {
		return columns
	}
	for _, field := range parser.FindNamedChildren(body, "field_declaration") {
		mods := parser.FindChild(field, "modifiers")
		if hasModifier(mods, "static") || hasModifier(mods, "transient") {
			continue
		}
		annos := annotations(mods, src)
		if skipField(annos) {
			continue
		}

		override := ""
		for _, key := range []string{"Column", "JoinColumn"} {
			if a, ok := annos[key]; ok {
				if v := annotationParam(a, "name", src); v != nil {
					override = parser.StringValue(v, src)
					break
				}
			}
		}

		for _, decl := range parser.FindNamedChildren(field, "variable_declarator") {
			name := extractFieldName(decl, src)
			if override != "" {
				name = override
			}
			if name != "" {
				columns = append(columns, parser.ColumnRef{Name: name, Confidence: 1})
			}
		}
	}
	return columns
}

func skipField(annos map[string]*sitter.Node) bool {
	for name := range annos {
		if fieldSkips[name] {
			return true
		}
	}
	return false
}

// annotations indexes the annotations in a modifiers node by simple name.
func annotations(mods *sitter.Node, src []byte) map[string]*sitter.Node {
	out := make(map[string]*sitter.Node)
	if mods == nil {
		return out
	}
	for i := 0; i < int(mods.NamedChildCount()); i++ {
		child := mods.NamedChild(i)
		if child.Type() != "marker_annotation" && child.Type() != "annotation" {
			continue
		}
		name := child.ChildByFieldName("name")
		if name == nil {
			continue
		}
		n := name.Content(src)
		if i := strings.LastIndexByte(n, '.'); i >= 0 {
			n = n[i+1:]
		}
		out[n] = child
	}
	return out
}

// annotationParam returns the string literal assigned to key inside an
// annotation's argument list, or nil.
func annotationParam(anno *sitter.Node, key string, src []byte) *sitter.Node {
	args := anno.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	for _, pair := range parser.FindNamedChildren(args, "element_value_pair") {
		k := pair.ChildByFieldName("key")
		v := pair.ChildByFieldName("value")
		if k == nil || v == nil || v.Type() != "string_literal" {
			continue
		}
		if k.Content(src) == key {
			return v
		}
	}
	return nil
}

func extractFieldName(decl *sitter.Node, src []byte) string {
	if name := decl.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	return ""
}
