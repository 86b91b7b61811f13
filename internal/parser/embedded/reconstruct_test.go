package embedded

import (
	"strings"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

func TestEraseInterpolationKeepsLength(t *testing.T) {
	single := []byte(`f"SELECT * FROM t WHERE id = {user.id}"`)
	from := strings.Index(string(single), "{")
	to := strings.Index(string(single), "}") + 1
	before := len(single)
	eraseInterpolation(single, interpolation{from: from, to: to})
	if len(single) != before {
		t.Errorf("expected length %d, got %d", before, len(single))
	}
	if want := `f"SELECT * FROM t WHERE id = 000000000"`; string(single) != want {
		t.Errorf("expected %q, got %q", want, single)
	}

	multi := []byte("`SELECT ${\n  a +\n  b\n} FROM t`")
	from = strings.Index(string(multi), "$")
	to = strings.Index(string(multi), "}") + 1
	eraseInterpolation(multi, interpolation{from: from, to: to, multiline: true})
	if want := "`SELECT   \n     \n   \n  FROM t`"; string(multi) != want {
		t.Errorf("expected %q, got %q", want, multi)
	}
}

func TestCleanBlanksQuotesInPlace(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`"SELECT a FROM b"`, ` SELECT a FROM b `},
		{`f"SELECT a"`, `  SELECT a `},
		{`@"UPDATE t SET a = 1"`, `  UPDATE t SET a = 1 `},
		{`"""SELECT a"""`, `   SELECT a   `},
		{`"SELECT a\n"`, ` SELECT a `},
	}
	for _, tc := range cases {
		if got := clean(fragment{text: []byte(tc.in)}); got != tc.want {
			t.Errorf("clean(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLayoutPadsToSourceColumns(t *testing.T) {
	frags := []fragment{
		{text: []byte(`"SELECT a "`), start: sitter.Point{Row: 3, Column: 8}},
		{text: []byte(`"FROM b"`), start: sitter.Point{Row: 3, Column: 22}},
		{text: []byte(`"WHERE c = ?"`), start: sitter.Point{Row: 5, Column: 4}},
	}
	lines := strings.Split(layout(3, frags), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), lines)
	}
	if i := strings.Index(lines[0], "SELECT"); i != 9 {
		t.Errorf("expected SELECT at column 9, got %d", i)
	}
	if i := strings.Index(lines[0], "FROM"); i != 23 {
		t.Errorf("expected FROM at column 23, got %d", i)
	}
	if strings.TrimSpace(lines[1]) != "" {
		t.Errorf("expected blank middle line, got %q", lines[1])
	}
	if i := strings.Index(lines[2], "WHERE"); i != 5 {
		t.Errorf("expected WHERE at column 5, got %d", i)
	}
}
