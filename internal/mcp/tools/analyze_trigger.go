package tools

import (
	"context"
	"log/slog"

	"github.com/maraichr/trigconv/internal/mcp"
	"github.com/maraichr/trigconv/internal/parser/plsql"
)

// AnalyzeTriggerParams are the parameters for the analyze_trigger tool.
type AnalyzeTriggerParams struct {
	Source            string `json:"source" jsonschema:"PL/SQL trigger body, optionally preceded by its CREATE TRIGGER header"`
	MaxResponseTokens int    `json:"max_response_tokens,omitempty" jsonschema:"approximate response budget in tokens"`
}

// AnalyzeTriggerHandler implements the analyze_trigger MCP tool.
type AnalyzeTriggerHandler struct {
	analyzer *plsql.Analyzer
	logger   *slog.Logger
}

func NewAnalyzeTriggerHandler(analyzer *plsql.Analyzer, logger *slog.Logger) *AnalyzeTriggerHandler {
	return &AnalyzeTriggerHandler{analyzer: analyzer, logger: logger}
}

func (h *AnalyzeTriggerHandler) Handle(_ context.Context, params AnalyzeTriggerParams) (string, error) {
	if err := requireSource(params.Source); err != nil {
		return "", err
	}
	res := h.analyzer.Analyze(params.Source)
	h.logger.Debug("analyze_trigger",
		slog.Int("violations", len(res.Violations)),
		slog.Int("rest_strings", len(res.RestStrings)))
	return mcp.FormatAnalysis(res, params.MaxResponseTokens), nil
}
