package parser

import (
	"context"
	"encoding/json"
	"reflect"
	"slices"
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"db/001.sql", LangSQL, true},
		{"src/Repo.JAVA", LangJava, true},
		{"web/app.mjs", LangJavaScript, true},
		{"web/view.tsx", LangTypeScript, true},
		{"models.py", LangPython, true},
		{"Data/Context.cs", LangCSharp, true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := r.ForFile(tt.path)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ForFile(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
			}
		})
	}

	if !slices.Contains(r.SupportedExtensions(), ".cjs") {
		t.Errorf("expected .cjs among %v", r.SupportedExtensions())
	}
}

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Dialect
	}{
		{"tsql", "ALTER TABLE [dbo].[Orders] ADD [Note] NVARCHAR(100)\nGO\nEXEC sp_rename 'dbo.Orders.Note', 'Notes', 'COLUMN'\nGO\n", DialectSQLServer},
		{"pgsql", "ALTER TABLE orders ALTER COLUMN note TYPE JSONB;\nDROP VIEW IF EXISTS order_totals CASCADE;\n", DialectPostgres},
		{"neutral", "DROP TABLE t;", DialectPostgres},
	}
	for _, tt := range tests {
		if got := DetectDialect([]byte(tt.src)); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}
}

func TestUnquote(t *testing.T) {
	tests := map[string]string{
		`"users"`: "users",
		"`users`": "users",
		"[Users]": "Users",
		" users ": "users",
		"x":       "x",
		`"x`:      `"x`,
	}
	for in, want := range tests {
		if got := Unquote(in); got != want {
			t.Errorf("Unquote(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChangesMarshalKeepsOrder(t *testing.T) {
	c := NewChanges()
	c.Add("zeta", Change{Kind: DropTable, X1: 1, Y1: 1, X2: 16, Y2: 1})
	c.Add("alpha", Change{Kind: AlterTable, X1: 1, Y1: 2, X2: 30, Y2: 2})
	c.Add("zeta", Change{Kind: DropView, X1: 1, Y1: 3, X2: 15, Y2: 3})

	if got := c.Entities(); !reflect.DeepEqual(got, []string{"zeta", "alpha"}) {
		t.Errorf("expected [zeta alpha], got %v", got)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entities, got %d", c.Len())
	}
	if n := len(c.Get("zeta")); n != 2 {
		t.Errorf("expected 2 changes for zeta, got %d", n)
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"zeta":[{"kind":"drop_table","x1":1,"y1":1,"x2":16,"y2":1},{"kind":"drop_view","x1":1,"y1":3,"x2":15,"y2":3}],` +
		`"alpha":[{"kind":"alter_table","x1":1,"y1":2,"x2":30,"y2":2}]}`
	if string(data) != want {
		t.Errorf("unexpected JSON:\n got %s\nwant %s", data, want)
	}

	empty, err := json.Marshal(NewChanges())
	if err != nil {
		t.Fatal(err)
	}
	if string(empty) != `{}` {
		t.Errorf("expected {}, got %s", empty)
	}
}

func TestNodeSpanOffset(t *testing.T) {
	g := NewGrammars()
	tree, err := g.Parse(context.Background(), LangSQL, []byte("SELECT a FROM t"))
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()

	root := tree.RootNode()
	span := NodeSpan(root, Offset{})
	if span.X1 != 1 || span.Y1 != 1 {
		t.Errorf("expected span to start at 1:1, got %d:%d", span.Y1, span.X1)
	}

	shifted := NodeSpan(root, Offset{Row: 4, Column: 2})
	want := Span{X1: span.X1 + 2, Y1: span.Y1 + 4, X2: span.X2 + 2, Y2: span.Y2 + 4}
	if shifted != want {
		t.Errorf("expected %+v, got %+v", want, shifted)
	}

	var inv Invocation
	inv.SetSpan(shifted)
	if inv.X2 != shifted.X2 {
		t.Errorf("expected x2 %d, got %d", shifted.X2, inv.X2)
	}
}

func TestGrammarsUnknownLanguage(t *testing.T) {
	g := NewGrammars()
	if _, err := g.Language(Language("cobol")); err == nil {
		t.Error("expected error for unknown language")
	}
}
