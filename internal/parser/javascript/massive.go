// Package javascript holds the JavaScript and TypeScript pattern indexers.
package javascript

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
)

// massiveCalls matches db.table.fn(...), with an optional schema between db
// and the table and an optional context object before db.
const massiveCalls = `(call_expression
	function: (member_expression
		object: (member_expression
			object: [
				(identifier) @db
				(member_expression
					object: (identifier) @db
					property: (property_identifier) @schema)
				(member_expression
					object: (_) @ctx
					property: (property_identifier) @db)
				(member_expression
					object: (member_expression
						object: (_) @ctx
						property: (property_identifier) @db)
					property: (property_identifier) @schema)
			]
			property: (property_identifier) @table)
		property: (property_identifier) @fn)
	arguments: (arguments) @args) @call`

// reservedJoinKeys are descriptor options rather than joined-table aliases.
var reservedJoinKeys = map[string]bool{
	"relation":    true,
	"rel":         true,
	"on":          true,
	"type":        true,
	"omit":        true,
	"pk":          true,
	"decomposeTo": true,
}

// MassiveIndexer recognizes MassiveJS data access calls, including join
// descriptors.
type MassiveIndexer struct {
	queries map[parser.Language]*parser.Query
}

func NewMassiveIndexer(g *parser.Grammars) (*MassiveIndexer, error) {
	queries, err := compileAll(g, massiveCalls)
	if err != nil {
		return nil, err
	}
	return &MassiveIndexer{queries: queries}, nil
}

func (ix *MassiveIndexer) Name() string { return "massive" }

func (ix *MassiveIndexer) Languages() []parser.Language {
	return scriptLanguages
}

func (ix *MassiveIndexer) Index(file parser.FileInput, tree *sitter.Tree) []parser.Invocation {
	q, ok := ix.queries[file.Language]
	if !ok {
		return nil
	}
	src := file.Content
	seen := make(map[uint32]bool)

	var out []parser.Invocation
	for _, m := range q.Matches(tree.RootNode(), src) {
		call := m.Node("call")
		if m.Node("db").Content(src) != "db" || seen[call.StartByte()] {
			continue
		}
		seen[call.StartByte()] = true

		table := m.Node("table")
		entity := table.Content(src)
		if schema := m.Node("schema"); schema != nil {
			entity = schema.Content(src) + "." + entity
		}

		var invs []parser.Invocation
		if m.Node("fn").Content(src) == "join" {
			invs = indexJoin(call, table, entity, m.Node("args"), src)
		} else {
			inv := parser.Invocation{
				Entity:     entity,
				ColumnRefs: criteriaColumns(firstObject(m.Node("args")), src),
			}
			inv.SetSpan(parser.NodeSpan(table, parser.Offset{}))
			invs = []parser.Invocation{inv}
		}

		for _, inv := range invs {
			inv.FilePath = file.Path
			inv.Confidence = 1
			out = append(out, inv)
		}
	}
	return out
}

// joinEntry accumulates what a join mentions about one table.
type joinEntry struct {
	name    string
	span    parser.Span
	columns []string
}

func (e *joinEntry) add(col string) {
	for _, c := range e.columns {
		if c == col {
			return
		}
	}
	e.columns = append(e.columns, col)
}

// joinSet maps aliases to entries, keeping the order aliases were found in.
type joinSet struct {
	keys    []string
	entries map[string]*joinEntry
}

func newJoinSet() *joinSet {
	return &joinSet{entries: make(map[string]*joinEntry)}
}

// entry returns the entry for alias, creating it at span when missing.
func (s *joinSet) entry(alias string, span parser.Span) *joinEntry {
	if e, ok := s.entries[alias]; ok {
		return e
	}
	e := &joinEntry{span: span}
	s.entries[alias] = e
	s.keys = append(s.keys, alias)
	return e
}

// resolve finds the entry a qualifier refers to, by alias first and then by
// relation name.
func (s *joinSet) resolve(qualifier string) *joinEntry {
	if e, ok := s.entries[qualifier]; ok {
		return e
	}
	for _, k := range s.keys {
		if s.entries[k].name == qualifier {
			return s.entries[k]
		}
	}
	return nil
}

// assign adds a possibly dotted column to the table its qualifier names,
// falling back to owner when it is unqualified.
func (s *joinSet) assign(owner *joinEntry, col string, span parser.Span) {
	i := strings.LastIndexByte(col, '.')
	if i < 0 {
		owner.add(col)
		return
	}
	prefix, name := col[:i], col[i+1:]
	e := s.resolve(prefix)
	if e == nil {
		e = s.entry(prefix, span)
	}
	e.add(name)
}

// indexJoin builds records for a join call: the origin table first, then
// every joined table in the order the descriptor names them.
func indexJoin(call, table *sitter.Node, entity string, args *sitter.Node, src []byte) []parser.Invocation {
	set := newJoinSet()
	origin := set.entry(table.Content(src), parser.NodeSpan(table, parser.Offset{}))
	origin.name = entity

	if args.NamedChildCount() > 0 {
		switch desc := args.NamedChild(0); desc.Type() {
		case "string", "template_string":
			set.entry(parser.StringValue(desc, src), parser.NodeSpan(desc, parser.Offset{}))
		case "object":
			collectAliases(set, desc, src)
		}
	}

	// Criteria passed to the chained call, as in db.a.join(...).find({...}).
	if criteria := chainedCriteria(call); criteria != nil {
		for _, key := range objectKeys(criteria, src) {
			col := trimOperator(key)
			i := strings.LastIndexByte(col, '.')
			if i < 0 {
				origin.add(col)
				continue
			}
			if e := set.resolve(col[:i]); e != nil {
				e.add(col[i+1:])
			}
		}
	}

	out := make([]parser.Invocation, 0, len(set.keys))
	for i, k := range set.keys {
		e := set.entries[k]
		inv := parser.Invocation{Entity: k, Join: i > 0}
		if e.name != "" {
			inv.Entity = e.name
		}
		for _, c := range e.columns {
			inv.ColumnRefs = append(inv.ColumnRefs, parser.ColumnRef{Name: c, Confidence: 1})
		}
		inv.SetSpan(e.span)
		out = append(out, inv)
	}
	return out
}

// collectAliases walks a join descriptor object. Every object-valued
// property that is not an option is a joined table alias, and may itself
// hold further aliases.
func collectAliases(set *joinSet, desc *sitter.Node, src []byte) {
	for _, pair := range parser.FindNamedChildren(desc, "pair") {
		key, value := pair.ChildByFieldName("key"), pair.ChildByFieldName("value")
		if key == nil || value == nil || value.Type() != "object" {
			continue
		}
		alias := keyName(key, src)
		if alias == "" || reservedJoinKeys[alias] {
			continue
		}

		e := set.entry(alias, parser.NodeSpan(key, parser.Offset{}))
		for _, opt := range []string{"relation", "rel"} {
			if rel := findObjectProp(value, opt, src); rel != nil && rel.Type() == "string" {
				e.name = parser.StringValue(rel, src)
			}
		}
		if on := findObjectProp(value, "on", src); on != nil && on.Type() == "object" {
			collectOn(set, e, on, src)
		}
		collectAliases(set, value, src)
	}
}

// collectOn harvests the keys and string values of an on clause as columns.
func collectOn(set *joinSet, owner *joinEntry, on *sitter.Node, src []byte) {
	for _, pair := range parser.FindNamedChildren(on, "pair") {
		key, value := pair.ChildByFieldName("key"), pair.ChildByFieldName("value")
		if key == nil || value == nil || value.Type() != "string" {
			continue
		}
		set.assign(owner, keyName(key, src), parser.NodeSpan(key, parser.Offset{}))
		set.assign(owner, parser.StringValue(value, src), parser.NodeSpan(value, parser.Offset{}))
	}
}

// chainedCriteria returns the first object argument of the call chained
// onto a join, or nil.
func chainedCriteria(call *sitter.Node) *sitter.Node {
	member := call.Parent()
	if member == nil || member.Type() != "member_expression" {
		return nil
	}
	outer := member.Parent()
	if outer == nil || outer.Type() != "call_expression" || !sameNode(outer.ChildByFieldName("function"), member) {
		return nil
	}
	return firstObject(outer.ChildByFieldName("arguments"))
}

// criteriaColumns returns the keys of a criteria object as column refs, or
// nil when there are none.
func criteriaColumns(obj *sitter.Node, src []byte) []parser.ColumnRef {
	var refs []parser.ColumnRef
	for _, key := range objectKeys(obj, src) {
		refs = append(refs, parser.ColumnRef{Name: trimOperator(key), Confidence: 1})
	}
	return refs
}

// trimOperator drops a comparison suffix such as the " >" in 'age >'.
func trimOperator(key string) string {
	key = strings.TrimSpace(key)
	if i := strings.IndexByte(key, ' '); i >= 0 {
		return key[:i]
	}
	return key
}
