package tsql

import (
	"strings"

	"github.com/ectomigo/ectomigo/internal/parser"
)

// MatchChanges returns the tables and views a T-SQL script alters, renames
// or drops. It works on tokens alone, so it never fails on syntax it does
// not understand.
func MatchChanges(src []byte) *parser.Changes {
	var toks []Token
	for _, t := range NewLexer(string(src)).Tokenize() {
		if t.Type != TokenComment && t.Type != TokenNewline {
			toks = append(toks, t)
		}
	}

	changes := parser.NewChanges()
	for i := 0; i < len(toks); i++ {
		if toks[i].Type != TokenKeyword {
			continue
		}
		switch toks[i].Value {
		case "ALTER":
			i = matchAlter(toks, i+1, changes)
		case "DROP":
			i = matchDrop(toks, i+1, changes)
		case "EXEC", "EXECUTE":
			i = matchRename(toks, i+1, changes)
		}
	}
	return changes
}

func objectKind(t Token, alter, drop bool) (parser.ChangeKind, bool) {
	if t.Type != TokenKeyword {
		return "", false
	}
	switch {
	case t.Value == "TABLE" && alter:
		return parser.AlterTable, true
	case t.Value == "VIEW" && alter:
		return parser.AlterView, true
	case t.Value == "TABLE" && drop:
		return parser.DropTable, true
	case t.Value == "VIEW" && drop:
		return parser.DropView, true
	}
	return "", false
}

func matchAlter(toks []Token, i int, changes *parser.Changes) int {
	if i >= len(toks) {
		return i
	}
	kind, ok := objectKind(toks[i], true, false)
	if !ok {
		return i - 1
	}
	name, first, last, next := qualifiedName(toks, i+1)
	if name == "" {
		return i
	}
	changes.Add(name, change(kind, first, last))
	return next - 1
}

// matchDrop handles DROP TABLE|VIEW [IF EXISTS] a, b, ...
func matchDrop(toks []Token, i int, changes *parser.Changes) int {
	if i >= len(toks) {
		return i
	}
	kind, ok := objectKind(toks[i], false, true)
	if !ok {
		return i - 1
	}
	i++
	if i+1 < len(toks) && toks[i].Value == "IF" && toks[i+1].Value == "EXISTS" {
		i += 2
	}
	for {
		name, first, last, next := qualifiedName(toks, i)
		if name == "" {
			return i - 1
		}
		changes.Add(name, change(kind, first, last))
		if next >= len(toks) || toks[next].Value != "," {
			return next - 1
		}
		i = next + 1
	}
}

// matchRename handles EXEC sp_rename 'object', 'new' [, 'OBJECT' | 'COLUMN'],
// which renames a table or one of its columns.
func matchRename(toks []Token, i int, changes *parser.Changes) int {
	name, _, _, next := qualifiedName(toks, i)
	if !strings.EqualFold(name, "sp_rename") && !strings.HasSuffix(strings.ToLower(name), ".sp_rename") {
		return i - 1
	}
	if next >= len(toks) || toks[next].Type != TokenString {
		return next - 1
	}
	target := toks[next]
	objType := ""
	// 'object' , 'new' , 'type'
	if next+4 < len(toks) && toks[next+3].Value == "," && toks[next+4].Type == TokenString {
		objType = strings.ToUpper(toks[next+4].Value)
	}

	entity := unbracket(target.Value)
	switch objType {
	case "", "OBJECT":
	case "COLUMN":
		dot := strings.LastIndexByte(entity, '.')
		if dot < 0 {
			return next
		}
		entity = entity[:dot]
	default:
		// INDEX, STATISTICS, USERDATATYPE
		return next
	}
	changes.Add(entity, change(parser.AlterTable, target, target))
	return next
}

// qualifiedName reads ident(.ident)* from i and returns the joined name, its
// first and last tokens and the index after it.
func qualifiedName(toks []Token, i int) (string, Token, Token, int) {
	var parts []string
	var first, last Token
	for i < len(toks) && (toks[i].Type == TokenIdent || toks[i].Type == TokenKeyword && len(parts) > 0) {
		if len(parts) == 0 {
			first = toks[i]
		}
		last = toks[i]
		parts = append(parts, toks[i].Value)
		if i+1 < len(toks) && toks[i+1].Value == "." {
			i += 2
			continue
		}
		i++
		break
	}
	return strings.Join(parts, "."), first, last, i
}

// unbracket strips identifier delimiters from each segment of a name given
// as a string, as in 'dbo.[Order Lines]'.
func unbracket(name string) string {
	segs := strings.Split(name, ".")
	for i, s := range segs {
		segs[i] = strings.Trim(strings.TrimSpace(s), `[]"`)
	}
	return strings.Join(segs, ".")
}

func change(kind parser.ChangeKind, first, last Token) parser.Change {
	return parser.Change{Kind: kind, X1: first.Col, Y1: first.Line, X2: last.End, Y2: last.Line}
}
