package render

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// WrapTriggerFunction embeds a rendered PL/pgSQL block in a trigger function
// definition. The block is nested inside an outer BEGIN so that its own
// DECLARE section and exception handlers stay valid, and the row is returned
// after it completes.
func WrapTriggerFunction(name, body string) string {
	if name == "" {
		name = "trigger_fn"
	}
	tag := "$$"
	if strings.Contains(body, tag) {
		tag = "$fn$"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE OR REPLACE FUNCTION %s()\nRETURNS trigger AS %s\nBEGIN\n", name, tag)
	for _, l := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		if l == "" {
			b.WriteByte('\n')
			continue
		}
		b.WriteString("  ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString("  RETURN COALESCE(NEW, OLD);\nEND;\n")
	fmt.Fprintf(&b, "%s LANGUAGE plpgsql;\n", tag)
	return b.String()
}

// ValidatePLpgSQL checks that sql holds a CREATE FUNCTION statement whose
// PL/pgSQL body parses.
func ValidatePLpgSQL(sql string) error {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("pg_query parse: %w", err)
	}
	found := false
	for _, stmt := range tree.Stmts {
		if stmt.Stmt != nil && stmt.Stmt.GetCreateFunctionStmt() != nil {
			found = true
			break
		}
	}
	if !found {
		return errors.New("no CREATE FUNCTION statement")
	}
	if _, err := pg_query.ParsePlPgSqlToJSON(sql); err != nil {
		return fmt.Errorf("plpgsql parse: %w", err)
	}
	return nil
}
