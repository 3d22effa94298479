package tools

import (
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/internal/render"
)

// Register adds every trigger tool to s.
func Register(s *sdkmcp.Server, analyzer *plsql.Analyzer, renderer *render.Renderer, logger *slog.Logger) {
	sdkmcp.AddTool(s, &sdkmcp.Tool{
		Name:        "analyze_trigger",
		Description: "Analyze an Oracle PL/SQL trigger body. Returns declarations, statement counts, lines needing manual review, or the formatting rules the source breaks.",
	}, WrapHandler[AnalyzeTriggerParams](NewAnalyzeTriggerHandler(analyzer, logger)))

	sdkmcp.AddTool(s, &sdkmcp.Tool{
		Name:        "render_trigger",
		Description: "Convert an Oracle PL/SQL trigger body to PostgreSQL PL/pgSQL (or reformat it as Oracle). Returns the SQL in a fenced block with substitution counts.",
	}, WrapHandler[RenderTriggerParams](NewRenderTriggerHandler(analyzer, renderer, logger)))

	sdkmcp.AddTool(s, &sdkmcp.Tool{
		Name:        "list_rules",
		Description: "List the single-line formatting rules a trigger body must follow before it can be analyzed.",
	}, WrapHandler[ListRulesParams](ListRulesHandler{}))
}
