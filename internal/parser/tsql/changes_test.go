package tsql

import (
	"reflect"
	"testing"

	"github.com/ectomigo/ectomigo/internal/parser"
)

func TestTokenizeBatches(t *testing.T) {
	toks := NewLexer("SELECT [Name] FROM dbo.Users -- trailing\nGO\n").Tokenize()

	var types []TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	want := []TokenType{
		TokenKeyword, TokenIdent, TokenKeyword, TokenIdent, TokenPunctuation, TokenIdent,
		TokenComment, TokenNewline, TokenGO, TokenNewline, TokenEOF,
	}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("expected token types %v, got %v", want, types)
	}

	name := toks[1]
	if name.Value != "Name" {
		t.Errorf("expected Name, got %s", name.Value)
	}
	if name.Col != 8 || name.End != 14 {
		t.Errorf("expected columns 8-14, got %d-%d", name.Col, name.End)
	}
}

func TestTokenizeStrings(t *testing.T) {
	toks := NewLexer("N'it''s'").Tokenize()
	if len(toks) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(toks))
	}
	if toks[0].Type != TokenString || toks[0].Value != "it's" {
		t.Errorf("expected string it's, got %v %q", toks[0].Type, toks[0].Value)
	}
}

func TestMatchAlterAndDrop(t *testing.T) {
	src := "ALTER TABLE [dbo].[Orders] ADD [Note] NVARCHAR(MAX) NULL;\nGO\n" +
		"DROP TABLE IF EXISTS dbo.Legacy, dbo.Archive;\n" +
		"DROP VIEW [reporting].[Totals];\n"

	changes := MatchChanges([]byte(src))
	wantEntities := []string{"dbo.Orders", "dbo.Legacy", "dbo.Archive", "reporting.Totals"}
	if got := changes.Entities(); !reflect.DeepEqual(got, wantEntities) {
		t.Fatalf("expected %v, got %v", wantEntities, got)
	}

	wantOrders := []parser.Change{{Kind: parser.AlterTable, X1: 13, Y1: 1, X2: 27, Y2: 1}}
	if got := changes.Get("dbo.Orders"); !reflect.DeepEqual(got, wantOrders) {
		t.Errorf("expected %v, got %v", wantOrders, got)
	}
	archive := changes.Get("dbo.Archive")[0]
	if archive.Kind != parser.DropTable || archive.Y1 != 3 {
		t.Errorf("expected drop_table on line 3, got %s on line %d", archive.Kind, archive.Y1)
	}
	if got := changes.Get("reporting.Totals")[0].Kind; got != parser.DropView {
		t.Errorf("expected drop_view, got %s", got)
	}
}

func TestMatchRename(t *testing.T) {
	src := "EXEC sp_rename 'dbo.Customers', 'Clients';\n" +
		"EXEC sys.sp_rename N'dbo.[Orders].Total', 'Amount', 'COLUMN';\n" +
		"EXEC sp_rename 'dbo.Orders.IX_Total', 'IX_Amount', 'INDEX';\n"

	changes := MatchChanges([]byte(src))
	want := []string{"dbo.Customers", "dbo.Orders"}
	if got := changes.Entities(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := changes.Get("dbo.Customers")[0].Kind; got != parser.AlterTable {
		t.Errorf("expected alter_table, got %s", got)
	}
	if n := len(changes.Get("dbo.Orders")); n != 1 {
		t.Errorf("expected the index rename to be skipped, got %d changes", n)
	}
}

func TestMatchIgnoresOtherStatements(t *testing.T) {
	src := "ALTER PROCEDURE dbo.Load AS SELECT 1;\nCREATE TABLE dbo.T (id INT);\nDROP INDEX IX_A ON dbo.T;\n"
	if changes := MatchChanges([]byte(src)); changes.Len() != 0 {
		t.Errorf("expected no changes, got %v", changes.Entities())
	}
}
