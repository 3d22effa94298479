package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maraichr/trigconv/internal/mcp"
	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/internal/render"
)

// RenderTriggerParams are the parameters for the render_trigger tool.
type RenderTriggerParams struct {
	Source            string `json:"source" jsonschema:"PL/SQL trigger body"`
	Dialect           string `json:"dialect,omitempty" jsonschema:"postgresql (default) or oracle"`
	WrapFunction      string `json:"wrap_function,omitempty" jsonschema:"when set, wrap PostgreSQL output in a trigger function with this name"`
	MaxResponseTokens int    `json:"max_response_tokens,omitempty" jsonschema:"approximate response budget in tokens"`
}

// RenderTriggerHandler implements the render_trigger MCP tool.
type RenderTriggerHandler struct {
	analyzer *plsql.Analyzer
	renderer *render.Renderer
	logger   *slog.Logger
}

func NewRenderTriggerHandler(analyzer *plsql.Analyzer, renderer *render.Renderer, logger *slog.Logger) *RenderTriggerHandler {
	return &RenderTriggerHandler{analyzer: analyzer, renderer: renderer, logger: logger}
}

func (h *RenderTriggerHandler) Handle(_ context.Context, params RenderTriggerParams) (string, error) {
	if err := requireSource(params.Source); err != nil {
		return "", err
	}
	dialect := strings.ToLower(params.Dialect)
	if dialect == "" {
		dialect = render.DialectPostgreSQL
	}
	if !render.ValidDialect(dialect) {
		return "", fmt.Errorf("dialect must be one of: %s", strings.Join(render.Dialects(), ", "))
	}

	res := h.analyzer.Analyze(params.Source)
	if res.Failed() {
		return mcp.FormatAnalysis(res, params.MaxResponseTokens), nil
	}

	out, err := h.renderer.Render(res, dialect)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	if params.WrapFunction != "" && dialect == render.DialectPostgreSQL {
		out.SQL = render.WrapTriggerFunction(params.WrapFunction, out.SQL)
	}
	return mcp.FormatRendered(out, dialect, params.MaxResponseTokens), nil
}
