package javascript

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
)

// knexTableMethods start a query on the table named by their first argument.
var knexTableMethods = map[string]bool{"table": true, "from": true, "into": true}

// knexCriteria take an object whose keys are columns.
var knexCriteria = map[string]bool{
	"where": true, "andWhere": true, "orWhere": true, "whereNot": true,
	"insert": true, "update": true,
}

// knexColumnLists take column names as string arguments.
var knexColumnLists = map[string]bool{
	"select": true, "pluck": true, "column": true, "first": true,
	"orderBy": true, "groupBy": true, "returning": true,
	"whereIn": true, "whereNull": true, "whereNotNull": true,
}

// knexSingleColumn take one column followed by values or a direction.
var knexSingleColumn = map[string]bool{
	"whereIn": true, "whereNull": true, "whereNotNull": true, "orderBy": true,
}

// KnexIndexer recognizes knex('table') query builder chains.
type KnexIndexer struct{}

func NewKnexIndexer(*parser.Grammars) (*KnexIndexer, error) {
	return &KnexIndexer{}, nil
}

func (ix *KnexIndexer) Name() string { return "knex" }

func (ix *KnexIndexer) Languages() []parser.Language {
	return scriptLanguages
}

func (ix *KnexIndexer) Index(file parser.FileInput, tree *sitter.Tree) []parser.Invocation {
	src := file.Content
	var out []parser.Invocation

	parser.WalkTree(tree.RootNode(), func(node *sitter.Node) bool {
		if node.Type() != "call_expression" {
			return true
		}
		table := knexTable(node, src)
		if table == nil {
			return true
		}
		inv := parser.Invocation{
			FilePath:   file.Path,
			Entity:     parser.StringValue(table, src),
			ColumnRefs: chainColumns(node, src),
			Confidence: 0.9,
		}
		inv.SetSpan(parser.NodeSpan(table, parser.Offset{}))
		out = append(out, inv)
		return true
	})
	return out
}

// knexTable returns the table name literal of knex('t') or knex.from('t').
func knexTable(call *sitter.Node, src []byte) *sitter.Node {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return nil
	}
	switch fn.Type() {
	case "identifier":
		if fn.Content(src) != "knex" {
			return nil
		}
	case "member_expression":
		prop := fn.ChildByFieldName("property")
		if prop == nil || !knexTableMethods[prop.Content(src)] || extractRootIdentifier(fn, src) != "knex" {
			return nil
		}
	default:
		return nil
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 || args.NamedChild(0).Type() != "string" {
		return nil
	}
	return args.NamedChild(0)
}

// chainColumns follows the method calls chained onto a table call and
// collects the columns they name.
func chainColumns(call *sitter.Node, src []byte) []parser.ColumnRef {
	refs := []parser.ColumnRef{}
	seen := make(map[string]bool)
	add := func(name string) {
		name = trimOperator(name)
		if name == "" || name == "*" || seen[name] {
			return
		}
		seen[name] = true
		refs = append(refs, parser.ColumnRef{Name: name, Confidence: 1})
	}

	for cur := call; ; {
		member := cur.Parent()
		if member == nil || member.Type() != "member_expression" {
			break
		}
		next := member.Parent()
		if next == nil || next.Type() != "call_expression" || !sameNode(next.ChildByFieldName("function"), member) {
			break
		}
		method := member.ChildByFieldName("property").Content(src)
		args := next.ChildByFieldName("arguments")
		if args == nil || args.Type() != "arguments" {
			break
		}

		switch {
		case knexCriteria[method]:
			if obj := firstObject(args); obj != nil {
				for _, k := range objectKeys(obj, src) {
					add(k)
				}
			} else if args.NamedChildCount() > 0 && args.NamedChild(0).Type() == "string" {
				add(parser.StringValue(args.NamedChild(0), src))
			}
		case knexColumnLists[method]:
			for i := 0; i < int(args.NamedChildCount()); i++ {
				arg := args.NamedChild(i)
				if arg.Type() == "string" {
					add(parser.StringValue(arg, src))
				}
				if knexSingleColumn[method] {
					break
				}
			}
		}
		cur = next
	}
	return refs
}
