// Package python holds the Python pattern indexers.
package python

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
)

// tableCalls matches imperative Table("name", metadata, Column(...), ...)
// definitions.
const tableCalls = `(call
	function: [
		(identifier) @fn
		(attribute attribute: (identifier) @fn)
	]
	arguments: (argument_list . (string) @table) @args
	(#eq? @fn "Table"))`

// Declarative classes are matched twice, with and without a schema in
// __table_args__, and reconciled by the position of the class name.
const (
	ormClasses = `(class_definition
	name: (identifier) @ref
	body: (block
		(expression_statement
			(assignment
				left: (identifier) @tablename
				right: (string) @table)))
	(#eq? @tablename "__tablename__")) @class`

	ormClassesWithSchema = `(class_definition
	name: (identifier) @ref
	body: (block
		(expression_statement
			(assignment
				left: (identifier) @tablename
				right: (string) @table))
		(expression_statement
			(assignment
				left: (identifier) @tableargs
				right: [
					(dictionary (pair key: (string) @schema_arg value: (string) @schema))
					(tuple (dictionary (pair key: (string) @schema_arg value: (string) @schema)) .)
				])))
	(#eq? @tablename "__tablename__")
	(#eq? @tableargs "__table_args__")
	(#match? @schema_arg "^.schema.$")) @class`
)

var columnFactories = map[string]bool{"Column": true, "mapped_column": true}

// SQLAlchemyIndexer recognizes SQLAlchemy Core tables and declarative ORM
// classes.
type SQLAlchemyIndexer struct {
	tables     *parser.Query
	classes    *parser.Query
	withSchema *parser.Query
}

func NewSQLAlchemyIndexer(g *parser.Grammars) (*SQLAlchemyIndexer, error) {
	lang, err := g.Language(parser.LangPython)
	if err != nil {
		return nil, err
	}
	ix := &SQLAlchemyIndexer{}
	for _, q := range []struct {
		dst     **parser.Query
		pattern string
	}{
		{&ix.tables, tableCalls},
		{&ix.classes, ormClasses},
		{&ix.withSchema, ormClassesWithSchema},
	} {
		compiled, err := parser.NewQuery(lang, q.pattern)
		if err != nil {
			return nil, err
		}
		*q.dst = compiled
	}
	return ix, nil
}

func (ix *SQLAlchemyIndexer) Name() string { return "sqlalchemy" }

func (ix *SQLAlchemyIndexer) Languages() []parser.Language {
	return []parser.Language{parser.LangPython}
}

func (ix *SQLAlchemyIndexer) Index(file parser.FileInput, tree *sitter.Tree) []parser.Invocation {
	root := tree.RootNode()
	src := file.Content
	var out []parser.Invocation

	for _, m := range ix.tables.Matches(root, src) {
		args := m.Node("args")
		table := m.Node("table")
		entity := parser.StringValue(table, src)
		if schema := keywordString(args, "schema", src); schema != "" {
			entity = schema + "." + entity
		}
		out = append(out, record(file.Path, entity, table, coreColumns(args, src)))
	}

	for _, m := range ix.declarative(root, src) {
		table := m.Node("table")
		entity := parser.StringValue(table, src)
		if schema := m.Node("schema"); schema != nil {
			entity = parser.StringValue(schema, src) + "." + entity
		}
		out = append(out, record(file.Path, entity, table, ormColumns(m.Node("class"), src)))
	}
	return out
}

// declarative runs both class queries and keeps one match per class,
// preferring the one that found a schema.
func (ix *SQLAlchemyIndexer) declarative(root *sitter.Node, src []byte) []parser.Match {
	schemaByClass := make(map[sitter.Point]parser.Match)
	for _, m := range ix.withSchema.Matches(root, src) {
		pos := m.Node("ref").StartPoint()
		if _, ok := schemaByClass[pos]; !ok {
			schemaByClass[pos] = m
		}
	}

	var out []parser.Match
	seen := make(map[sitter.Point]bool)
	for _, m := range ix.classes.Matches(root, src) {
		pos := m.Node("ref").StartPoint()
		if seen[pos] {
			continue
		}
		seen[pos] = true
		if ws, ok := schemaByClass[pos]; ok {
			m = ws
		}
		out = append(out, m)
	}
	return out
}

func record(path, entity string, anchor *sitter.Node, columns []parser.ColumnRef) parser.Invocation {
	inv := parser.Invocation{
		FilePath:   path,
		Entity:     entity,
		ColumnRefs: columns,
		Confidence: 1,
	}
	inv.SetSpan(parser.NodeSpan(anchor, parser.Offset{}))
	return inv
}

// coreColumns returns the names given to Column(...) arguments of a Table
// call.
func coreColumns(args *sitter.Node, src []byte) []parser.ColumnRef {
	columns := []parser.ColumnRef{}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if !isColumnCall(arg, src) {
			continue
		}
		if name := firstStringArg(arg, src); name != "" {
			columns = append(columns, parser.ColumnRef{Name: name, Confidence: 1})
		}
	}
	return columns
}

// ormColumns returns the class-level attributes assigned a Column or
// mapped_column, named by the column's string argument when it has one.
func ormColumns(class *sitter.Node, src []byte) []parser.ColumnRef {
	columns := []parser.ColumnRef{}
	body := class.ChildByFieldName("body")
	if body == nil {
		return columns
	}
	for _, stmt := range parser.FindNamedChildren(body, "expression_statement") {
		assign := parser.FindChild(stmt, "assignment")
		if assign == nil {
			continue
		}
		left, right := assign.ChildByFieldName("left"), assign.ChildByFieldName("right")
		if left == nil || right == nil || left.Type() != "identifier" || !isColumnCall(right, src) {
			continue
		}
		name := left.Content(src)
		if override := firstStringArg(right, src); override != "" {
			name = override
		}
		columns = append(columns, parser.ColumnRef{Name: name, Confidence: 1})
	}
	return columns
}

func isColumnCall(n *sitter.Node, src []byte) bool {
	if n.Type() != "call" {
		return false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return false
	}
	if fn.Type() == "attribute" {
		fn = fn.ChildByFieldName("attribute")
	}
	return fn != nil && fn.Type() == "identifier" && columnFactories[fn.Content(src)]
}

// firstStringArg returns the value of a call's leading positional string
// argument, or "".
func firstStringArg(call *sitter.Node, src []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	if first := args.NamedChild(0); first.Type() == "string" {
		return parser.StringValue(first, src)
	}
	return ""
}

// keywordString returns the string passed as keyword argument name.
func keywordString(args *sitter.Node, name string, src []byte) string {
	for _, kw := range parser.FindNamedChildren(args, "keyword_argument") {
		key, value := kw.ChildByFieldName("name"), kw.ChildByFieldName("value")
		if key != nil && value != nil && key.Content(src) == name && value.Type() == "string" {
			return parser.StringValue(value, src)
		}
	}
	return ""
}
