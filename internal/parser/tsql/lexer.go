// Package tsql matches migration changes in SQL Server scripts. It backs up
// the tree-sitter matcher for T-SQL syntax that grammar rejects, such as
// bracketed identifiers and GO batch separators.
package tsql

import "strings"

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenKeyword
	TokenIdent
	TokenNumber
	TokenString
	TokenOperator
	TokenPunctuation
	TokenGO // batch separator
	TokenComment
	TokenNewline
)

// Token is a lexeme with its 1-based start position. End is the column just
// past the token on its last line.
type Token struct {
	Type  TokenType
	Value string
	Line  int
	Col   int
	End   int
}

type Lexer struct {
	input  string
	pos    int
	line   int
	col    int
	tokens []Token
}

func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

func (l *Lexer) Tokenize() []Token {
	for l.pos < len(l.input) {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}

		ch := l.input[l.pos]
		switch {
		case strings.HasPrefix(l.input[l.pos:], "--"):
			l.readLineComment()
		case strings.HasPrefix(l.input[l.pos:], "/*"):
			l.readBlockComment()
		case ch == '\'':
			l.readString()
		case ch == 'N' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'':
			// N'unicode'
			l.pos++
			l.col++
			l.readString()
		case ch == '[':
			l.readDelimitedIdent(']')
		case ch == '"':
			l.readDelimitedIdent('"')
		case ch >= '0' && ch <= '9':
			l.readNumber()
		case isIdentStart(ch):
			l.readIdentOrKeyword()
		case ch == '\n' || ch == '\r':
			l.emit(TokenNewline, "\n", l.line, l.col)
			l.pos++
			if ch == '\r' && l.pos < len(l.input) && l.input[l.pos] == '\n' {
				l.pos++
			}
			l.line++
			l.col = 1
		default:
			l.readOperatorOrPunct()
		}
	}

	l.emit(TokenEOF, "", l.line, l.col)
	l.detectGO()
	return l.tokens
}

func (l *Lexer) emit(t TokenType, value string, line, col int) {
	l.tokens = append(l.tokens, Token{Type: t, Value: value, Line: line, Col: col, End: l.col})
}

// advance moves past one byte, tracking line and column.
func (l *Lexer) advance() {
	if l.input[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
		l.pos++
		l.col++
	}
}

func (l *Lexer) readLineComment() {
	start, line, col := l.pos, l.line, l.col
	for l.pos < len(l.input) && l.input[l.pos] != '\n' && l.input[l.pos] != '\r' {
		l.pos++
		l.col++
	}
	l.emit(TokenComment, l.input[start:l.pos], line, col)
}

func (l *Lexer) readBlockComment() {
	start, line, col := l.pos, l.line, l.col
	l.pos += 2
	l.col += 2
	for l.pos < len(l.input) {
		if strings.HasPrefix(l.input[l.pos:], "*/") {
			l.pos += 2
			l.col += 2
			break
		}
		l.advance()
	}
	l.emit(TokenComment, l.input[start:l.pos], line, col)
}

// readString reads a quoted literal; Value holds the unescaped contents.
func (l *Lexer) readString() {
	line, col := l.line, l.col
	l.advance() // opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\'' {
			l.advance()
			if l.pos < len(l.input) && l.input[l.pos] == '\'' {
				b.WriteByte('\'')
				l.advance()
				continue
			}
			break
		}
		b.WriteByte(ch)
		l.advance()
	}
	l.emit(TokenString, b.String(), line, col)
}

func (l *Lexer) readDelimitedIdent(closer byte) {
	line, col := l.line, l.col
	l.advance()
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != closer {
		l.advance()
	}
	val := l.input[start:l.pos]
	if l.pos < len(l.input) {
		l.advance()
	}
	l.emit(TokenIdent, val, line, col)
}

func (l *Lexer) readNumber() {
	start, line, col := l.pos, l.line, l.col
	for l.pos < len(l.input) && (l.input[l.pos] >= '0' && l.input[l.pos] <= '9' || l.input[l.pos] == '.') {
		l.pos++
		l.col++
	}
	l.emit(TokenNumber, l.input[start:l.pos], line, col)
}

func (l *Lexer) readIdentOrKeyword() {
	start, line, col := l.pos, l.line, l.col
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
		l.col++
	}
	val := l.input[start:l.pos]
	if isKeyword(val) {
		l.emit(TokenKeyword, strings.ToUpper(val), line, col)
	} else {
		l.emit(TokenIdent, val, line, col)
	}
}

func (l *Lexer) readOperatorOrPunct() {
	line, col := l.line, l.col
	ch := l.input[l.pos]
	l.pos++
	l.col++

	switch ch {
	case '(', ')', ',', ';', '.', '=', '<', '>', '+', '-', '*', '/', '%', '!', '@', '#':
		l.emit(TokenPunctuation, string(ch), line, col)
	default:
		l.emit(TokenOperator, string(ch), line, col)
	}
}

// detectGO converts keyword GO at the start of a line to TokenGO.
func (l *Lexer) detectGO() {
	for i := range l.tokens {
		if l.tokens[i].Type != TokenKeyword || l.tokens[i].Value != "GO" {
			continue
		}
		atLineStart := i == 0
		for j := i - 1; j >= 0; j-- {
			if l.tokens[j].Type == TokenNewline {
				atLineStart = true
				break
			}
			if l.tokens[j].Type != TokenComment {
				break
			}
		}
		if atLineStart {
			l.tokens[i].Type = TokenGO
		}
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '#' || ch == '@' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9') || ch == '$'
}

func isKeyword(s string) bool {
	return tsqlKeywords[strings.ToUpper(s)]
}

var tsqlKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "INSERT": true, "INTO": true,
	"UPDATE": true, "DELETE": true, "CREATE": true, "ALTER": true, "DROP": true,
	"TABLE": true, "VIEW": true, "PROCEDURE": true, "PROC": true, "FUNCTION": true,
	"TRIGGER": true, "INDEX": true, "SCHEMA": true, "DATABASE": true,
	"BEGIN": true, "END": true, "IF": true, "ELSE": true, "EXISTS": true,
	"DECLARE": true, "SET": true, "EXEC": true, "EXECUTE": true, "GO": true,
	"AS": true, "ON": true, "AND": true, "OR": true, "NOT": true, "NULL": true,
	"ADD": true, "COLUMN": true, "CONSTRAINT": true, "DEFAULT": true,
	"WITH": true, "NOCOUNT": true,
}
