package parser

import (
	"strings"
)

// Dialect is the SQL flavour a migration is written in.
type Dialect string

const (
	DialectPostgres  Dialect = "pgsql"
	DialectSQLServer Dialect = "tsql"
)

// DetectDialect guesses whether SQL text is T-SQL or PostgreSQL.
func DetectDialect(content []byte) Dialect {
	text := strings.ToUpper(string(content))

	tsqlScore := 0
	pgsqlScore := 0

	// GO batch separators only exist in T-SQL scripts
	if strings.Contains(text, "\nGO\n") || strings.Contains(text, "\nGO\r\n") || strings.HasSuffix(text, "\nGO") {
		tsqlScore += 10
	}
	for _, kw := range []string{"DECLARE @", "SET @", "NVARCHAR", "VARCHAR(MAX)", "IDENTITY(",
		"EXEC ", "SP_RENAME", "NOCOUNT", "@@ROWCOUNT", "GETDATE()", "ISNULL(",
		"ALTER TABLE [", "DROP TABLE [", "WITH (NOLOCK)"} {
		if strings.Contains(text, kw) {
			tsqlScore += 2
		}
	}

	for _, kw := range []string{"$$", "LANGUAGE PLPGSQL", "CREATE EXTENSION", "SERIAL",
		"TIMESTAMPTZ", "JSONB", "::TEXT", "::INTEGER", "::UUID", "IF EXISTS",
		"RENAME COLUMN", "RENAME TO", "ALTER COLUMN", "CASCADE", "CONCURRENTLY"} {
		if strings.Contains(text, kw) {
			pgsqlScore += 2
		}
	}

	if tsqlScore > pgsqlScore {
		return DialectSQLServer
	}
	return DialectPostgres
}
