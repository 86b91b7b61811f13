package patterns

import (
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/ectomigo/ectomigo/internal/parser"
)

func TestDefaultRegistry(t *testing.T) {
	r, err := Default(parser.NewGrammars())
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"efcore", "jpa", "knex", "massive", "pojo", "prisma", "sqlalchemy"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	ix, err := r.Lookup("pojo")
	if err != nil {
		t.Fatal(err)
	}
	if got := ix.Languages(); !reflect.DeepEqual(got, []parser.Language{parser.LangJava}) {
		t.Errorf("expected pojo to index java only, got %v", got)
	}

	ix, err = r.Lookup("massive")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(ix.Languages(), parser.LangTypeScript) {
		t.Errorf("expected massive to index typescript, got %v", ix.Languages())
	}
}

func TestLookupUnknownPattern(t *testing.T) {
	r, err := Default(parser.NewGrammars())
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Lookup("hibernate")
	if err == nil {
		t.Fatal("expected error for unknown pattern")
	}
	if !errors.Is(err, ErrUnknownPattern) {
		t.Errorf("expected ErrUnknownPattern, got %v", err)
	}
	if !strings.Contains(err.Error(), "hibernate") {
		t.Errorf("expected the pattern name in %q", err.Error())
	}
}
