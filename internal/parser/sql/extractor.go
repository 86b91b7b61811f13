// Package sql finds table and column references in SQL text and the schema
// changes made by migration scripts.
package sql

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
	"github.com/ectomigo/ectomigo/internal/parser/sqlutil"
)

// Object references under these nodes name functions, qualifiers or other
// non-relation objects.
var nonRelationParents = map[string]bool{
	"field":            true,
	"all_fields":       true,
	"invocation":       true,
	"create_function":  true,
	"drop_function":    true,
	"create_sequence":  true,
	"alter_sequence":   true,
	"drop_sequence":    true,
	"create_type":      true,
	"drop_type":        true,
	"create_extension": true,
	"drop_extension":   true,
}

// Extractor produces invocation records for the tables referenced by SQL text.
type Extractor struct {
	grammars *parser.Grammars
	refs     *parser.Query
	fields   *parser.Query
	columns  *parser.Query
}

func NewExtractor(g *parser.Grammars) (*Extractor, error) {
	lang, err := g.Language(parser.LangSQL)
	if err != nil {
		return nil, err
	}
	refs, err := parser.NewQuery(lang, `(object_reference) @ref`)
	if err != nil {
		return nil, err
	}
	fields, err := parser.NewQuery(lang, `(field) @field`)
	if err != nil {
		return nil, err
	}
	// INSERT column lists are bare column nodes rather than fields.
	columns, err := parser.NewQuery(lang, `(column (identifier) @name)`)
	if err != nil {
		return nil, err
	}
	return &Extractor{grammars: g, refs: refs, fields: fields, columns: columns}, nil
}

// tableRef is a relation found in a statement.
type tableRef struct {
	node   *sitter.Node
	entity string
	alias  string
}

// Extract parses src as SQL and returns one record per table reference. Text
// that does not parse as SQL yields no records. off is added to every
// position so that records point into the file src was taken from.
func (e *Extractor) Extract(ctx context.Context, path string, src []byte, off parser.Offset) ([]parser.Invocation, error) {
	tree, err := e.grammars.Parse(ctx, parser.LangSQL, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if notSQL(root) {
		return nil, nil
	}

	statements := parser.FindNamedChildren(root, "statement")
	if len(statements) == 0 {
		statements = []*sitter.Node{root}
	}

	var out []parser.Invocation
	for _, stmt := range statements {
		out = append(out, e.extractStatement(path, stmt, src, off)...)
	}
	return out, nil
}

// notSQL reports whether the parse failed so badly that the text was most
// likely not SQL to begin with: a string that opens with a keyword but has
// nothing recognizable after it.
func notSQL(root *sitter.Node) bool {
	if root.NamedChildCount() == 0 {
		return true
	}
	if root.ChildCount() == 0 {
		return root.Type() == "ERROR"
	}
	if root.ChildCount() > 1 {
		return false
	}
	// The grammar wraps everything in program, so the error is usually
	// one level down.
	only := root.Child(0)
	return (root.Type() == "ERROR" || only.Type() == "ERROR") && only.ChildCount() < 2
}

func (e *Extractor) extractStatement(path string, stmt *sitter.Node, src []byte, off parser.Offset) []parser.Invocation {
	var tables []tableRef
	for _, m := range e.refs.Matches(stmt, src) {
		ref := m.Node("ref")
		parent := ref.Parent()
		if parent != nil && nonRelationParents[parent.Type()] {
			continue
		}
		t := tableRef{node: ref, entity: QualifiedName(ref, src)}
		if parent != nil {
			if alias := parent.ChildByFieldName("alias"); alias != nil {
				t.alias = parser.Unquote(alias.Content(src))
			}
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil
	}

	columns := e.collectColumns(stmt, src)
	stars := collectStars(stmt, src)
	ambiguity := 1 / float64(len(tables))

	out := make([]parser.Invocation, 0, len(tables))
	for _, t := range tables {
		refs := []parser.ColumnRef{}
		if t.alias != "" && t.alias != t.entity {
			for _, c := range columns.get(t.alias) {
				refs = append(refs, parser.ColumnRef{Name: c, Confidence: 1})
			}
		}
		for _, c := range columns.get(t.entity) {
			refs = append(refs, parser.ColumnRef{Name: c, Confidence: 1})
		}
		for _, c := range columns.get("") {
			refs = append(refs, parser.ColumnRef{Name: c, Confidence: ambiguity})
		}

		inv := parser.Invocation{
			FilePath:     path,
			Entity:       t.entity,
			ColumnRefs:   refs,
			IsAllColumns: stars[""] || (t.alias != "" && stars[t.alias]) || stars[t.entity],
			Confidence:   1,
		}
		inv.SetSpan(parser.NodeSpan(t.node, off))
		out = append(out, inv)
	}
	return out
}

// columnSet groups column names by qualifier, deduplicated in first-seen order.
type columnSet struct {
	order map[string][]string
	seen  map[string]map[string]bool
}

func newColumnSet() *columnSet {
	return &columnSet{order: make(map[string][]string), seen: make(map[string]map[string]bool)}
}

func (s *columnSet) add(qualifier, name string) {
	if s.seen[qualifier] == nil {
		s.seen[qualifier] = make(map[string]bool)
	}
	if s.seen[qualifier][name] {
		return
	}
	s.seen[qualifier][name] = true
	s.order[qualifier] = append(s.order[qualifier], name)
}

func (s *columnSet) get(qualifier string) []string {
	return s.order[qualifier]
}

func (e *Extractor) collectColumns(stmt *sitter.Node, src []byte) *columnSet {
	cols := newColumnSet()
	for _, m := range e.fields.Matches(stmt, src) {
		field := m.Node("field")
		name := field.ChildByFieldName("name")
		if name == nil {
			ids := parser.FindNamedChildren(field, "identifier")
			if len(ids) == 0 {
				continue
			}
			name = ids[len(ids)-1]
		}
		column := parser.Unquote(name.Content(src))
		if column == "" || sqlutil.IsSQLKeyword(column) {
			continue
		}
		qualifier := ""
		if ref := parser.FindChild(field, "object_reference"); ref != nil {
			qualifier = QualifiedName(ref, src)
		}
		cols.add(qualifier, column)
	}
	for _, m := range e.columns.Matches(stmt, src) {
		column := parser.Unquote(m.Node("name").Content(src))
		if column == "" || sqlutil.IsSQLKeyword(column) {
			continue
		}
		cols.add("", column)
	}
	return cols
}

// collectStars returns the qualifiers of every star projection in the
// statement; an unqualified star is keyed by the empty string. Stars inside
// function calls such as count(*) are ignored.
func collectStars(stmt *sitter.Node, src []byte) map[string]bool {
	stars := make(map[string]bool)
	parser.WalkTree(stmt, func(n *sitter.Node) bool {
		switch n.Type() {
		case "invocation":
			return false
		case "all_fields":
			qualifier := ""
			if ref := parser.FindChild(n, "object_reference"); ref != nil {
				qualifier = QualifiedName(ref, src)
			}
			stars[qualifier] = true
			return false
		}
		return true
	})
	return stars
}

// QualifiedName joins the de-quoted identifier segments of an object reference.
func QualifiedName(ref *sitter.Node, src []byte) string {
	ids := parser.FindNamedChildren(ref, "identifier")
	if len(ids) == 0 {
		return parser.Unquote(ref.Content(src))
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, parser.Unquote(id.Content(src)))
	}
	return strings.Join(parts, ".")
}
