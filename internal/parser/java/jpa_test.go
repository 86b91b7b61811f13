package java

import (
	"reflect"
	"testing"

	"github.com/ectomigo/ectomigo/internal/parser"
)

func TestJPATableAnnotation(t *testing.T) {
	src := `
package com.example;

@Entity
@Table(name = "users", schema = "auth")
public class User {
    @Id
    private Long id;

    @Column(name = "full_name")
    private String name;

    @Transient
    private String display;

    @OneToMany(mappedBy = "user")
    private List<Order> orders;

    private static final long serialVersionUID = 1L;
}
`
	g := parser.NewGrammars()
	ix, err := NewJPAIndexer(g)
	if err != nil {
		t.Fatal(err)
	}

	refs := index(t, g, ix, "User.java", src)
	if len(refs) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(refs))
	}
	if refs[0].Entity != "auth.users" {
		t.Errorf("expected auth.users, got %s", refs[0].Entity)
	}
	if got := columnNames(refs[0].ColumnRefs); !reflect.DeepEqual(got, []string{"id", "full_name"}) {
		t.Errorf("expected columns [id full_name], got %v", got)
	}
	// the span covers the table name literal
	if refs[0].Y1 != 5 || refs[0].X1 != 15 {
		t.Errorf("expected span start 5:15, got %d:%d", refs[0].Y1, refs[0].X1)
	}
}

func TestJPAEntityDefaultsToClassName(t *testing.T) {
	src := `
@javax.persistence.Entity
public class Invoice {
    @Id private Long id;
}
`
	g := parser.NewGrammars()
	ix, err := NewJPAIndexer(g)
	if err != nil {
		t.Fatal(err)
	}

	refs := index(t, g, ix, "Invoice.java", src)
	if len(refs) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(refs))
	}
	if refs[0].Entity != "Invoice" {
		t.Errorf("expected Invoice, got %s", refs[0].Entity)
	}
	if got := columnNames(refs[0].ColumnRefs); !reflect.DeepEqual(got, []string{"id"}) {
		t.Errorf("expected columns [id], got %v", got)
	}
}

func TestJPAIgnoresPlainClasses(t *testing.T) {
	src := `
public class Helper {
    private int a;
}
`
	g := parser.NewGrammars()
	ix, err := NewJPAIndexer(g)
	if err != nil {
		t.Fatal(err)
	}
	if refs := index(t, g, ix, "Helper.java", src); len(refs) != 0 {
		t.Errorf("expected no invocations, got %v", refs)
	}
}
