// Package java holds the Java pattern indexers.
package java

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
)

// POJOIndexer treats a public class whose private fields mostly have
// matching getters as a data object mirroring a table.
type POJOIndexer struct {
	classes *parser.Query
}

func NewPOJOIndexer(g *parser.Grammars) (*POJOIndexer, error) {
	lang, err := g.Language(parser.LangJava)
	if err != nil {
		return nil, err
	}
	classes, err := parser.NewQuery(lang, `(class_declaration
		(modifiers) @mods
		name: (identifier) @name
		body: (class_body) @body)`)
	if err != nil {
		return nil, err
	}
	return &POJOIndexer{classes: classes}, nil
}

func (ix *POJOIndexer) Name() string { return "pojo" }

func (ix *POJOIndexer) Languages() []parser.Language {
	return []parser.Language{parser.LangJava}
}

func (ix *POJOIndexer) Index(file parser.FileInput, tree *sitter.Tree) []parser.Invocation {
	src := file.Content
	var out []parser.Invocation

	for _, m := range ix.classes.Matches(tree.RootNode(), src) {
		if !hasModifier(m.Node("mods"), "public") {
			continue
		}
		name := m.Node("name")
		fields, getters := members(m.Node("body"), src)

		var columns []parser.ColumnRef
		for _, f := range fields {
			if getters["get"+strings.ToLower(f)] {
				columns = append(columns, parser.ColumnRef{Name: f, Confidence: 1})
			}
		}
		if len(columns) < 2 {
			continue
		}

		inv := parser.Invocation{
			FilePath:   file.Path,
			Entity:     name.Content(src),
			ColumnRefs: columns,
			Confidence: 2 * float64(len(columns)) / float64(len(fields)+len(getters)),
		}
		inv.SetSpan(parser.NodeSpan(name, parser.Offset{}))
		out = append(out, inv)
	}
	return out
}

// members returns the distinct private field names declared directly in a
// class body, in order, and the lowercased names of its public getters.
func members(body *sitter.Node, src []byte) ([]string, map[string]bool) {
	var fields []string
	seen := make(map[string]bool)
	getters := make(map[string]bool)

	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		mods := parser.FindChild(child, "modifiers")

		switch child.Type() {
		case "field_declaration":
			if !hasModifier(mods, "private") {
				continue
			}
			for _, decl := range parser.FindNamedChildren(child, "variable_declarator") {
				name := decl.ChildByFieldName("name")
				if name == nil {
					continue
				}
				f := name.Content(src)
				if !seen[f] {
					seen[f] = true
					fields = append(fields, f)
				}
			}

		case "method_declaration":
			if !hasModifier(mods, "public") {
				continue
			}
			if name := child.ChildByFieldName("name"); name != nil && isGetter(name.Content(src)) {
				getters[strings.ToLower(name.Content(src))] = true
			}
		}
	}
	return fields, getters
}

func isGetter(name string) bool {
	return len(name) > 3 && strings.HasPrefix(name, "get") && name[3] >= 'A' && name[3] <= 'Z'
}

// hasModifier reports whether a modifiers node carries the keyword.
func hasModifier(mods *sitter.Node, keyword string) bool {
	if mods == nil {
		return false
	}
	for i := 0; i < int(mods.ChildCount()); i++ {
		if mods.Child(i).Type() == keyword {
			return true
		}
	}
	return false
}
