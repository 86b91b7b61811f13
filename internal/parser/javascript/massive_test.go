package javascript

import (
	"context"
	"reflect"
	"strings"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
)

type indexer interface {
	Index(file parser.FileInput, tree *sitter.Tree) []parser.Invocation
}

func index(t *testing.T, g *parser.Grammars, ix indexer, lang parser.Language, path, src string) []parser.Invocation {
	t.Helper()
	tree, err := g.Parse(context.Background(), lang, []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()
	return ix.Index(parser.FileInput{Path: path, Content: []byte(src), Language: lang}, tree)
}

func newMassive(t *testing.T) (*parser.Grammars, *MassiveIndexer) {
	t.Helper()
	g := parser.NewGrammars()
	ix, err := NewMassiveIndexer(g)
	if err != nil {
		t.Fatal(err)
	}
	return g, ix
}

func columnNames(refs []parser.ColumnRef) []string {
	var names []string
	for _, c := range refs {
		names = append(names, c.Name)
	}
	return names
}

func checkColumns(t *testing.T, inv parser.Invocation, want ...string) {
	t.Helper()
	if got := columnNames(inv.ColumnRefs); !reflect.DeepEqual(got, want) {
		t.Errorf("%s: expected columns %v, got %v", inv.Entity, want, got)
	}
}

func checkCount(t *testing.T, refs []parser.Invocation, want int) {
	t.Helper()
	if len(refs) != want {
		var got []string
		for _, r := range refs {
			got = append(got, r.Entity)
		}
		t.Fatalf("expected %d invocations, got %d: %v", want, len(refs), got)
	}
}

func byEntity(t *testing.T, refs []parser.Invocation, entity string) parser.Invocation {
	t.Helper()
	for _, r := range refs {
		if r.Entity == entity {
			return r
		}
	}
	t.Fatalf("no record for %q", entity)
	return parser.Invocation{}
}

// sourceSpan returns the 1-based span of the first occurrence of needle.
func sourceSpan(t *testing.T, src, needle string) parser.Span {
	t.Helper()
	idx := strings.Index(src, needle)
	if idx < 0 {
		t.Fatalf("needle %q not in source", needle)
	}
	row := strings.Count(src[:idx], "\n")
	col := idx - (strings.LastIndex(src[:idx], "\n") + 1)
	return parser.Span{X1: col + 1, Y1: row + 1, X2: col + len(needle) + 1, Y2: row + 1}
}

func spanOf(inv parser.Invocation) parser.Span {
	return parser.Span{X1: inv.X1, Y1: inv.Y1, X2: inv.X2, Y2: inv.Y2}
}

func checkSpan(t *testing.T, inv parser.Invocation, want parser.Span) {
	t.Helper()
	if got := spanOf(inv); got != want {
		t.Errorf("%s: expected span %+v, got %+v", inv.Entity, want, got)
	}
}

func TestMassiveJoinRelationOverridesAlias(t *testing.T) {
	src := `const rows = await db.orders.join({customers: {relation: "customer", on: {"customers.id": "orders.customer_id"}}});
`
	g, ix := newMassive(t)
	refs := index(t, g, ix, parser.LangJavaScript, "orders.js", src)
	checkCount(t, refs, 2)

	orders := refs[0]
	if orders.Entity != "orders" || orders.Join {
		t.Errorf("expected origin orders, got %s join=%v", orders.Entity, orders.Join)
	}
	checkColumns(t, orders, "customer_id")
	checkSpan(t, orders, sourceSpan(t, src, "orders"))

	customer := refs[1]
	if customer.Entity != "customer" || !customer.Join {
		t.Errorf("expected joined customer, got %s join=%v", customer.Entity, customer.Join)
	}
	checkColumns(t, customer, "id")
	// the span covers the key without its colon
	want := sourceSpan(t, src, "customers:")
	want.X2--
	checkSpan(t, customer, want)

	for _, r := range refs {
		if r.FilePath != "orders.js" || r.Confidence != 1 {
			t.Errorf("%s: expected orders.js with confidence 1, got %s %v", r.Entity, r.FilePath, r.Confidence)
		}
		for _, c := range r.ColumnRefs {
			if c.Confidence != 1 {
				t.Errorf("%s.%s: expected confidence 1, got %v", r.Entity, c.Name, c.Confidence)
			}
		}
	}
}

func TestMassiveJoinStringTarget(t *testing.T) {
	src := `ctx.db.public.users.join('profiles').find({id: 1, 'profiles.bio': 'x'});
`
	g, ix := newMassive(t)
	refs := index(t, g, ix, parser.LangJavaScript, "users.js", src)
	checkCount(t, refs, 2)

	if refs[0].Entity != "public.users" || refs[0].Join {
		t.Errorf("expected origin public.users, got %s join=%v", refs[0].Entity, refs[0].Join)
	}
	checkColumns(t, refs[0], "id")

	if refs[1].Entity != "profiles" || !refs[1].Join {
		t.Errorf("expected joined profiles, got %s join=%v", refs[1].Entity, refs[1].Join)
	}
	checkSpan(t, refs[1], sourceSpan(t, src, "'profiles'"))
	checkColumns(t, refs[1], "bio")
}

func TestMassiveJoinCallSiteCriteria(t *testing.T) {
	src := `
db.libraries.join({
  books: {
    type: 'INNER',
    on: {library_id: 'id'},
    authors: {
      on: {id: 'books.author_id'}
    }
  }
}).find({
  'state >': 'EV',
  'books.title': 'Jane Eyre',
  'authors.name': 'Charlotte'
});
`
	g, ix := newMassive(t)
	refs := index(t, g, ix, parser.LangJavaScript, "libraries.js", src)
	checkCount(t, refs, 3)

	got := []string{refs[0].Entity, refs[1].Entity, refs[2].Entity}
	if want := []string{"libraries", "books", "authors"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	checkColumns(t, byEntity(t, refs, "libraries"), "state")
	checkColumns(t, byEntity(t, refs, "books"), "library_id", "id", "author_id", "title")
	checkColumns(t, byEntity(t, refs, "authors"), "id", "name")
}

func TestMassivePlainCalls(t *testing.T) {
	src := `
async function load(db) {
  const user = await db.users.findOne({id: 42, 'age >': 18});
  const all = await db.audit.events.find();
  return db.query('SELECT 1');
}
`
	g, ix := newMassive(t)
	refs := index(t, g, ix, parser.LangJavaScript, "load.js", src)
	checkCount(t, refs, 2)

	if refs[0].Entity != "users" {
		t.Errorf("expected users, got %s", refs[0].Entity)
	}
	checkColumns(t, refs[0], "id", "age")
	checkSpan(t, refs[0], sourceSpan(t, src, "users"))

	if refs[1].Entity != "audit.events" {
		t.Errorf("expected audit.events, got %s", refs[1].Entity)
	}
	if refs[1].ColumnRefs != nil || refs[1].Join {
		t.Errorf("expected no columns and no join, got %v join=%v", refs[1].ColumnRefs, refs[1].Join)
	}
}

func TestMassiveIgnoresOtherReceivers(t *testing.T) {
	src := `api.users.find({id: 1}); this.cache.users.get('x');
`
	g, ix := newMassive(t)
	checkCount(t, index(t, g, ix, parser.LangJavaScript, "other.js", src), 0)
}

func TestMassiveTypeScript(t *testing.T) {
	src := `export async function list(db: Database): Promise<User[]> {
  return db.users.find({active: true});
}
`
	g, ix := newMassive(t)
	refs := index(t, g, ix, parser.LangTypeScript, "list.ts", src)
	checkCount(t, refs, 1)
	if refs[0].Entity != "users" {
		t.Errorf("expected users, got %s", refs[0].Entity)
	}
	checkColumns(t, refs[0], "active")
}
