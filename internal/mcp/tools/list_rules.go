package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/maraichr/trigconv/internal/parser/plsql"
)

// ListRulesParams are the parameters for the list_rules tool.
type ListRulesParams struct{}

// ListRulesHandler implements the list_rules MCP tool.
type ListRulesHandler struct{}

func (ListRulesHandler) Handle(_ context.Context, _ ListRulesParams) (string, error) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("## Formatting rules (parser %s)\n\n", plsql.Version))
	for _, r := range plsql.Rules() {
		b.WriteString(fmt.Sprintf("- `%s`: %s. %s\n", r.Code, r.Rule, r.Solution))
	}
	return b.String(), nil
}
