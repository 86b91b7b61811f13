// Package pgsql matches migration changes with the PostgreSQL parser. It backs
// up the tree-sitter matcher for scripts using syntax that grammar rejects.
package pgsql

import (
	"bytes"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/ectomigo/ectomigo/internal/parser"
)

// MatchChanges parses src with libpg_query and returns the tables and views
// altered, renamed or dropped by it.
func MatchChanges(src []byte) (*parser.Changes, error) {
	tree, err := pg_query.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("pg_query parse: %w", err)
	}

	w := &walker{src: src, changes: parser.NewChanges()}
	for _, stmt := range tree.Stmts {
		w.walkStatement(stmt)
	}
	return w.changes, nil
}

type walker struct {
	src     []byte
	changes *parser.Changes
}

func (w *walker) walkStatement(rawStmt *pg_query.RawStmt) {
	if rawStmt.Stmt == nil {
		return
	}

	node := rawStmt.Stmt
	start := int(rawStmt.StmtLocation)
	end := len(w.src)
	if rawStmt.StmtLen > 0 {
		end = start + int(rawStmt.StmtLen)
	}

	switch {
	case node.GetAlterTableStmt() != nil:
		stmt := node.GetAlterTableStmt()
		if kind, ok := alterKind(stmt.Objtype); ok {
			w.addRangeVar(kind, stmt.Relation)
		}
	case node.GetRenameStmt() != nil:
		w.walkRename(node.GetRenameStmt())
	case node.GetDropStmt() != nil:
		w.walkDrop(node.GetDropStmt(), start, end)
	}
}

func alterKind(t pg_query.ObjectType) (parser.ChangeKind, bool) {
	switch t {
	case pg_query.ObjectType_OBJECT_TABLE:
		return parser.AlterTable, true
	case pg_query.ObjectType_OBJECT_VIEW:
		return parser.AlterView, true
	}
	return "", false
}

// walkRename handles ALTER TABLE/VIEW ... RENAME, which libpg_query reports
// separately from other alterations.
func (w *walker) walkRename(stmt *pg_query.RenameStmt) {
	if stmt.Relation == nil {
		return
	}
	kind, ok := alterKind(stmt.RenameType)
	if !ok {
		kind, ok = alterKind(stmt.RelationType)
	}
	if ok {
		w.addRangeVar(kind, stmt.Relation)
	}
}

func (w *walker) walkDrop(stmt *pg_query.DropStmt, start, end int) {
	var kind parser.ChangeKind
	switch stmt.RemoveType {
	case pg_query.ObjectType_OBJECT_TABLE:
		kind = parser.DropTable
	case pg_query.ObjectType_OBJECT_VIEW:
		kind = parser.DropView
	default:
		return
	}

	// dropped names carry no location; find each one in the statement text
	pos := start
	for _, obj := range stmt.Objects {
		want := objectName(obj)
		if want == "" {
			continue
		}
		from, to, ok := w.findName(want, pos, end)
		if !ok {
			continue
		}
		w.add(kind, from, to)
		pos = to
	}
}

func (w *walker) addRangeVar(kind parser.ChangeKind, rv *pg_query.RangeVar) {
	if rv == nil || rv.Location < 0 {
		return
	}
	from := int(rv.Location)
	to := scanName(w.src, from)
	if to == from {
		return
	}
	w.add(kind, from, to)
}

func (w *walker) add(kind parser.ChangeKind, from, to int) {
	y1, x1 := position(w.src, from)
	y2, x2 := position(w.src, to)
	w.changes.Add(entityName(string(w.src[from:to])), parser.Change{
		Kind: kind,
		X1:   x1 + 1,
		Y1:   y1 + 1,
		X2:   x2 + 1,
		Y2:   y2 + 1,
	})
}

// findName returns the byte range of the first name between pos and end that
// folds to want.
func (w *walker) findName(want string, pos, end int) (int, int, bool) {
	for i := pos; i < end; i++ {
		if i > 0 && isIdentByte(w.src[i-1]) {
			continue
		}
		to := scanName(w.src, i)
		if to == i {
			continue
		}
		if foldName(string(w.src[i:to])) == want {
			return i, to, true
		}
		i = to - 1
	}
	return 0, 0, false
}

// objectName joins the name list of a dropped object.
func objectName(obj *pg_query.Node) string {
	list := obj.GetList()
	if list == nil {
		return ""
	}
	parts := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		if s := item.GetString_(); s != nil {
			parts = append(parts, s.Sval)
		}
	}
	return strings.Join(parts, ".")
}

// scanName returns the end offset of a possibly qualified, possibly quoted
// identifier starting at pos.
func scanName(src []byte, pos int) int {
	i := pos
	for i < len(src) {
		segStart := i
		if src[i] == '"' {
			i++
			for i < len(src) {
				if src[i] == '"' {
					if i+1 < len(src) && src[i+1] == '"' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
		} else {
			for i < len(src) && isIdentByte(src[i]) {
				i++
			}
		}
		if i == segStart {
			break
		}
		if i < len(src) && src[i] == '.' && i+1 < len(src) && (src[i+1] == '"' || isIdentByte(src[i+1])) {
			i++
			continue
		}
		return i
	}
	return i
}

// splitName splits a qualified identifier into segments, keeping quotes.
func splitName(text string) []string {
	var parts []string
	var cur strings.Builder
	quoted := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == '"':
			quoted = !quoted
			cur.WriteByte(ch)
		case ch == '.' && !quoted:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	return append(parts, cur.String())
}

// foldName normalizes a name the way PostgreSQL does: unquoted segments are
// lowercased, quoted segments are kept verbatim.
func foldName(text string) string {
	parts := splitName(text)
	for i, p := range parts {
		if strings.HasPrefix(p, `"`) {
			parts[i] = strings.ReplaceAll(parser.Unquote(p), `""`, `"`)
		} else {
			parts[i] = strings.ToLower(p)
		}
	}
	return strings.Join(parts, ".")
}

// entityName renders a name as written, minus quoting.
func entityName(text string) string {
	parts := splitName(text)
	for i, p := range parts {
		parts[i] = parser.Unquote(p)
	}
	return strings.Join(parts, ".")
}

func isIdentByte(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '_' || ch == '$' || ch >= 0x80
}

// position converts a byte offset into a 0-based row and byte column.
func position(src []byte, off int) (int, int) {
	row := bytes.Count(src[:off], []byte("\n"))
	col := off
	if nl := bytes.LastIndexByte(src[:off], '\n'); nl >= 0 {
		col = off - nl - 1
	}
	return row, col
}
