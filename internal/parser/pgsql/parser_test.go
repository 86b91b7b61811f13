package pgsql

import (
	"reflect"
	"testing"

	"github.com/ectomigo/ectomigo/internal/parser"
)

func TestMatchAlterTable(t *testing.T) {
	changes, err := MatchChanges([]byte(`ALTER TABLE public.users ADD COLUMN x int;`))
	if err != nil {
		t.Fatal(err)
	}

	if got := changes.Entities(); !reflect.DeepEqual(got, []string{"public.users"}) {
		t.Fatalf("expected [public.users], got %v", got)
	}
	want := []parser.Change{{Kind: parser.AlterTable, X1: 13, Y1: 1, X2: 25, Y2: 1}}
	if got := changes.Get("public.users"); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMatchDropTables(t *testing.T) {
	src := `
DROP TABLE IF EXISTS users, "Audit"."Log" CASCADE;
DROP VIEW active_users;
`
	changes, err := MatchChanges([]byte(src))
	if err != nil {
		t.Fatal(err)
	}

	wantEntities := []string{"users", "Audit.Log", "active_users"}
	if got := changes.Entities(); !reflect.DeepEqual(got, wantEntities) {
		t.Fatalf("expected %v, got %v", wantEntities, got)
	}
	if got, want := changes.Get("users")[0], (parser.Change{Kind: parser.DropTable, X1: 22, Y1: 2, X2: 27, Y2: 2}); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	audit := changes.Get("Audit.Log")[0]
	if audit.Kind != parser.DropTable || audit.X1 != 29 {
		t.Errorf("expected drop_table at column 29, got %s at %d", audit.Kind, audit.X1)
	}
	view := changes.Get("active_users")[0]
	if view.Kind != parser.DropView || view.Y1 != 3 {
		t.Errorf("expected drop_view on line 3, got %s on line %d", view.Kind, view.Y1)
	}
}

func TestMatchRename(t *testing.T) {
	src := `ALTER TABLE orders RENAME COLUMN total TO amount;
ALTER VIEW recent_orders RENAME TO latest_orders;
ALTER TABLE orders ALTER COLUMN amount TYPE numeric(10, 2);`
	changes, err := MatchChanges([]byte(src))
	if err != nil {
		t.Fatal(err)
	}

	if got := changes.Entities(); !reflect.DeepEqual(got, []string{"orders", "recent_orders"}) {
		t.Fatalf("expected [orders recent_orders], got %v", got)
	}
	orders := changes.Get("orders")
	if len(orders) != 2 {
		t.Fatalf("expected 2 changes for orders, got %d", len(orders))
	}
	if orders[0].Kind != parser.AlterTable || orders[0].Y1 != 1 || orders[1].Y1 != 3 {
		t.Errorf("unexpected orders changes %+v", orders)
	}
	if got := changes.Get("recent_orders")[0].Kind; got != parser.AlterView {
		t.Errorf("expected alter_view, got %s", got)
	}
}

func TestMatchIgnoresOtherStatements(t *testing.T) {
	changes, err := MatchChanges([]byte(`CREATE TABLE t (id int); DROP INDEX idx_t; SELECT 1;`))
	if err != nil {
		t.Fatal(err)
	}
	if changes.Len() != 0 {
		t.Errorf("expected no changes, got %v", changes.Entities())
	}
}

func TestMatchInvalidSQL(t *testing.T) {
	if _, err := MatchChanges([]byte(`ALTER TABLE WHERE`)); err == nil {
		t.Error("expected parse error")
	}
}

func TestFoldName(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{foldName("Public.USERS"), "public.users"},
		{foldName(`"Audit".log`), "Audit.log"},
		{entityName(`"Audit"."Log"`), "Audit.Log"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, tt.got)
		}
	}
}
