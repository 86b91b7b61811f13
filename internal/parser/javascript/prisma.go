package javascript

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
)

var prismaMethods = map[string]bool{
	"findMany": true, "findFirst": true, "findUnique": true,
	"findFirstOrThrow": true, "findUniqueOrThrow": true,
	"create": true, "createMany": true,
	"update": true, "updateMany": true,
	"upsert": true,
	"delete": true, "deleteMany": true,
	"count": true, "aggregate": true, "groupBy": true,
}

// prismaArgs are the query arguments whose keys name model fields.
var prismaArgs = []string{"where", "select", "data", "orderBy", "create", "update"}

// prismaLogical are where-clause combinators rather than fields.
var prismaLogical = map[string]bool{"AND": true, "OR": true, "NOT": true}

// PrismaIndexer recognizes prisma.model.method(...) client calls.
type PrismaIndexer struct {
	queries map[parser.Language]*parser.Query
}

func NewPrismaIndexer(g *parser.Grammars) (*PrismaIndexer, error) {
	queries, err := compileAll(g, `(call_expression
		function: (member_expression
			object: (member_expression
				object: (_) @client
				property: (property_identifier) @model)
			property: (property_identifier) @method)
		arguments: (arguments) @args)`)
	if err != nil {
		return nil, err
	}
	return &PrismaIndexer{queries: queries}, nil
}

func (ix *PrismaIndexer) Name() string { return "prisma" }

func (ix *PrismaIndexer) Languages() []parser.Language {
	return scriptLanguages
}

func (ix *PrismaIndexer) Index(file parser.FileInput, tree *sitter.Tree) []parser.Invocation {
	q, ok := ix.queries[file.Language]
	if !ok {
		return nil
	}
	src := file.Content

	var out []parser.Invocation
	for _, m := range q.Matches(tree.RootNode(), src) {
		if !prismaMethods[m.Node("method").Content(src)] || !isPrismaClient(m.Node("client"), src) {
			continue
		}
		model := m.Node("model")
		inv := parser.Invocation{
			FilePath:   file.Path,
			Entity:     model.Content(src),
			ColumnRefs: prismaFields(firstObject(m.Node("args")), src),
			Confidence: 0.8,
		}
		inv.SetSpan(parser.NodeSpan(model, parser.Offset{}))
		out = append(out, inv)
	}
	return out
}

// isPrismaClient accepts prisma and any member ending in .prisma, such as
// this.prisma.
func isPrismaClient(client *sitter.Node, src []byte) bool {
	switch client.Type() {
	case "identifier":
		return client.Content(src) == "prisma"
	case "member_expression":
		prop := client.ChildByFieldName("property")
		return prop != nil && prop.Content(src) == "prisma"
	}
	return false
}

// prismaFields collects field names from the query argument object.
func prismaFields(args *sitter.Node, src []byte) []parser.ColumnRef {
	var refs []parser.ColumnRef
	seen := make(map[string]bool)
	for _, name := range prismaArgs {
		obj := findObjectProp(args, name, src)
		if obj == nil || obj.Type() != "object" {
			continue
		}
		for _, key := range objectKeys(obj, src) {
			if prismaLogical[key] || seen[key] {
				continue
			}
			seen[key] = true
			refs = append(refs, parser.ColumnRef{Name: key, Confidence: 1})
		}
	}
	return refs
}
