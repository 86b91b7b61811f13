package embedded

import (
	"context"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/ectomigo/ectomigo/internal/parser"
	"github.com/ectomigo/ectomigo/internal/parser/sql"
)

func extractEmbedded(t *testing.T, path string, lang parser.Language, src string) []parser.Invocation {
	t.Helper()
	g := parser.NewGrammars()
	sqlx, err := sql.NewExtractor(g)
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(g, sqlx, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}

	tree, err := g.Parse(context.Background(), lang, []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()

	refs, err := e.Extract(context.Background(), parser.FileInput{Path: path, Content: []byte(src), Language: lang}, tree)
	if err != nil {
		t.Fatal(err)
	}
	return refs
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

func columnNames(refs []parser.ColumnRef) []string {
	var names []string
	for _, c := range refs {
		names = append(names, c.Name)
	}
	return names
}

// checkSingle asserts that refs holds exactly one record of entity spanning
// the first occurrence of entity in src.
func checkSingle(t *testing.T, refs []parser.Invocation, src, entity string) parser.Invocation {
	t.Helper()
	if len(refs) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(refs))
	}
	if refs[0].Entity != entity {
		t.Errorf("expected %s, got %s", entity, refs[0].Entity)
	}
	if want := sourceSpan(t, src, entity); spanOf(refs[0]) != want {
		t.Errorf("expected span %+v, got %+v", want, spanOf(refs[0]))
	}
	return refs[0]
}

func checkColumns(t *testing.T, inv parser.Invocation, want ...string) {
	t.Helper()
	if got := columnNames(inv.ColumnRefs); !reflect.DeepEqual(got, want) {
		t.Errorf("%s: expected columns %v, got %v", inv.Entity, want, got)
	}
}

func TestJavaStringLiteral(t *testing.T) {
	src := `
class UserDao {
    User find(int id) {
        String q = "SELECT id, name FROM users WHERE id = ?";
        return run(q, id);
    }
}
`
	users := checkSingle(t, extractEmbedded(t, "UserDao.java", parser.LangJava, src), src, "users")
	if users.FilePath != "UserDao.java" {
		t.Errorf("expected UserDao.java, got %s", users.FilePath)
	}
	got := columnNames(users.ColumnRefs)
	slices.Sort(got)
	if !reflect.DeepEqual(got, []string{"id", "name"}) {
		t.Errorf("expected columns id and name, got %v", got)
	}
}

func TestJavaConcatenationKeepsCoordinates(t *testing.T) {
	src := `
class OrderDao {
    void load() {
        String q = "SELECT o.id, o.total " +
                   "FROM orders o " +
                   "WHERE o.customer_id = ?";
    }
}
`
	// nested concatenations collapse to one statement
	orders := checkSingle(t, extractEmbedded(t, "OrderDao.java", parser.LangJava, src), src, "orders")
	checkColumns(t, orders, "id", "total", "customer_id")
	for _, c := range orders.ColumnRefs {
		if c.Confidence != 1 {
			t.Errorf("%s: expected confidence 1, got %v", c.Name, c.Confidence)
		}
	}
}

func TestJavaStringBuilderChain(t *testing.T) {
	src := `
class CustomerDao {
    void load() {
        StringBuilder sb = new StringBuilder();
        sb.append("SELECT name ");
        sb.append("FROM customers ");
        sb.append("WHERE active = true");
        run(sb.toString());
    }
}
`
	customers := checkSingle(t, extractEmbedded(t, "CustomerDao.java", parser.LangJava, src), src, "customers")
	checkColumns(t, customers, "name", "active")
}

func TestJavaAnnotationArray(t *testing.T) {
	src := `
interface ThingRepo {
    @SqlQuery({"SELECT id", "FROM things"})
    List<Thing> all();
}
`
	checkSingle(t, extractEmbedded(t, "ThingRepo.java", parser.LangJava, src), src, "things")
}

func TestPythonFStringInterpolation(t *testing.T) {
	src := `def load(cur, account_id):
    cur.execute(f"SELECT name FROM accounts WHERE id = {account_id}")
`
	accounts := checkSingle(t, extractEmbedded(t, "load.py", parser.LangPython, src), src, "accounts")
	checkColumns(t, accounts, "name", "id")
}

func TestPythonTripleQuoted(t *testing.T) {
	src := `QUERY = """
    SELECT a.id, b.label
    FROM alpha a
    JOIN beta b ON b.alpha_id = a.id
    WHERE a.created_at > %s
"""
`
	refs := extractEmbedded(t, "queries.py", parser.LangPython, src)
	if len(refs) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(refs))
	}
	if refs[0].Entity != "alpha" {
		t.Errorf("expected alpha, got %s", refs[0].Entity)
	}
	want := sourceSpan(t, src, "alpha")
	if spanOf(refs[0]) != want {
		t.Errorf("expected span %+v, got %+v", want, spanOf(refs[0]))
	}
	if refs[1].Entity != "beta" || refs[1].Y1 != 4 {
		t.Errorf("expected beta on line 4, got %s on line %d", refs[1].Entity, refs[1].Y1)
	}
	checkColumns(t, refs[1], "label", "alpha_id")
}

func TestJavaScriptTemplate(t *testing.T) {
	src := "async function invoices(db, id) {\n" +
		"  return db.query(`SELECT * FROM invoices WHERE customer = ${id}`);\n" +
		"}\n"
	refs := extractEmbedded(t, "invoices.js", parser.LangJavaScript, src)
	if len(refs) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(refs))
	}
	if refs[0].Entity != "invoices" || !refs[0].IsAllColumns {
		t.Errorf("expected invoices with all columns, got %s all=%v", refs[0].Entity, refs[0].IsAllColumns)
	}
	want := sourceSpan(t, src, "invoices WHERE")
	want.X2 -= len(" WHERE")
	if spanOf(refs[0]) != want {
		t.Errorf("expected span %+v, got %+v", want, spanOf(refs[0]))
	}
}

func TestGoRawString(t *testing.T) {
	src := "package store\n\nconst selectByID = `SELECT id, label FROM widgets WHERE id = $1`\n"
	checkSingle(t, extractEmbedded(t, "store.go", parser.LangGo, src), src, "widgets")
}

func TestIgnoresOrdinaryStrings(t *testing.T) {
	src := `
class Greeter {
    String greet() { return "hello " + "world"; }
    String sel() { return "selected"; }
}
`
	if refs := extractEmbedded(t, "Greeter.java", parser.LangJava, src); len(refs) != 0 {
		t.Errorf("expected no invocations, got %v", refs)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	src := `x = "SELECT a FROM b"` + "\n" + `y = "DELETE FROM c WHERE d = %s"` + "\n"
	first := extractEmbedded(t, "q.py", parser.LangPython, src)
	second := extractEmbedded(t, "q.py", parser.LangPython, src)
	if len(first) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(first))
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("extraction differs between runs:\n%v\n%v", first, second)
	}
	if first[0].Entity != "b" || first[1].Entity != "c" {
		t.Errorf("expected b then c, got %s then %s", first[0].Entity, first[1].Entity)
	}
}
