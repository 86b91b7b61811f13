package sqlutil

import (
	"testing"
)

func TestStartsWithStatement(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{`"SELECT * FROM users"`, true},
		{`'  insert into t values (1)'`, true},
		{"`with x as (select 1) select * from x`", true},
		{`f"select id from {table}"`, true},
		{`@"UPDATE users SET a = 1"`, true},
		{`"""` + "\n    DELETE FROM t" + `"""`, true},
		{`"SELECT " + where`, true},
		{`"selected items"`, false},
		{`"update the thing"`, true},
		{`"users"`, false},
		{`name + "SELECT"`, false},
	}
	for _, tc := range cases {
		if got := StartsWithStatement(tc.text); got != tc.want {
			t.Errorf("StartsWithStatement(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestIsSQLKeyword(t *testing.T) {
	for _, kw := range []string{"from", "RETURNING"} {
		if !IsSQLKeyword(kw) {
			t.Errorf("expected %s to be a keyword", kw)
		}
	}
	if IsSQLKeyword("users") {
		t.Error("users is not a keyword")
	}
}

func TestNormalizePlaceholders(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"select * from t where a = ?", "select * from t where a = 0"},
		{"where a = %s and b = %s", "where a = 00 and b = 00"},
		{"where a = %(name)s", "where a = 00000000"},
		{"where a = $1 and b = $12", "where a = 01 and b = 012"},
		{"where a = :id", "where a =  id"},
		{"select a::text from t", "select a::text from t"},
		{"select '12:30' from t", "select '12:30' from t"},
		{"where pct like '%'", "where pct like '%'"},
	}
	for _, tc := range cases {
		got := NormalizePlaceholders(tc.in)
		if got != tc.want {
			t.Errorf("NormalizePlaceholders(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if len(got) != len(tc.in) {
			t.Errorf("NormalizePlaceholders(%q) changed length from %d to %d", tc.in, len(tc.in), len(got))
		}
	}
}
