package sqlutil

import (
	"regexp"
	"strings"
)

// statementStart matches string literal text opening with a statement
// keyword: an optional host-language prefix (f, r, b, @, $), the quote run,
// optional whitespace, then the keyword.
var statementStart = regexp.MustCompile("^[a-zA-Z@$]{0,2}[`'\"]+\\s*(?i:select|insert|update|delete|with)\\b")

// StartsWithStatement reports whether the source text of a string expression
// begins with a DML or CTE keyword.
func StartsWithStatement(text string) bool {
	return statementStart.MatchString(text)
}

func isWordByte(ch byte) bool {
	return ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z' || ch >= '0' && ch <= '9' || ch == '_'
}

var sqlKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AND": true,
	"OR": true, "SET": true, "VALUES": true, "AS": true,
	"ON": true, "IN": true, "NOT": true, "NULL": true,
	"INTO": true, "JOIN": true, "LEFT": true, "RIGHT": true,
	"INNER": true, "OUTER": true, "CROSS": true, "FULL": true,
	"GROUP": true, "ORDER": true, "BY": true, "HAVING": true,
	"UNION": true, "ALL": true, "EXISTS": true, "BETWEEN": true,
	"LIKE": true, "IS": true, "CASE": true, "WHEN": true,
	"THEN": true, "ELSE": true, "END": true, "RETURNING": true,
	"LIMIT": true, "OFFSET": true, "WITH": true, "DISTINCT": true,
	"INSERT": true, "UPDATE": true, "DELETE": true,
}

// IsSQLKeyword returns true if the given string is a common SQL keyword.
func IsSQLKeyword(s string) bool {
	return sqlKeywords[strings.ToUpper(s)]
}
