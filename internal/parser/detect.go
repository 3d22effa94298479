package parser

import (
	"strings"
)

const (
	DialectPLSQL = "plsql"
	DialectPgSQL = "pgsql"
)

// DetectDialect guesses whether a trigger source is Oracle PL/SQL or already
// PostgreSQL PL/pgSQL. Ambiguous input is treated as PL/SQL.
func DetectDialect(content []byte) string {
	text := strings.ToUpper(string(content))

	plsqlScore := 0
	pgsqlScore := 0

	for _, kw := range []string{"VARCHAR2", "NVARCHAR2", "NUMBER(", " NUMBER", "PLS_INTEGER", "BINARY_INTEGER",
		"RAISE_APPLICATION_ERROR", "SYSDATE", "NVL(", "DECODE(", "DBMS_OUTPUT", "FROM DUAL",
		"%ROWTYPE", "%TYPE", ":NEW.", ":OLD.", "NO_DATA_FOUND", "TOO_MANY_ROWS", "PRAGMA "} {
		if strings.Contains(text, kw) {
			plsqlScore += 2
		}
	}
	if strings.Contains(text, "\n/\n") || strings.HasSuffix(strings.TrimSpace(text), "\n/") {
		plsqlScore += 5 // SQL*Plus block terminator
	}

	// Bind variables contain NEW./OLD. as well; drop them before scoring PL/pgSQL.
	pgText := strings.NewReplacer(":NEW.", "", ":OLD.", "").Replace(text)
	for _, kw := range []string{"$$", "LANGUAGE PLPGSQL", "RETURNS TRIGGER", "RAISE EXCEPTION",
		"RAISE NOTICE", "PERFORM ", "TIMESTAMPTZ", "JSONB", "::TEXT", "::INTEGER",
		"NEW.", "OLD.", "TG_OP", "COALESCE(", "RETURN NEW"} {
		if strings.Contains(pgText, kw) {
			pgsqlScore += 2
		}
	}

	if pgsqlScore > plsqlScore {
		return DialectPgSQL
	}
	return DialectPLSQL
}
