package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maraichr/trigconv/internal/config"
	"github.com/maraichr/trigconv/internal/mapping"
	"github.com/maraichr/trigconv/internal/mcp"
	"github.com/maraichr/trigconv/internal/mcp/tools"
	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/internal/render"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tables, err := mapping.Load(cfg.Render.MappingFile)
	if err != nil {
		logger.Error("failed to load mapping", slog.String("error", err.Error()))
		os.Exit(1)
	}
	analyzer := plsql.New(
		plsql.WithLogger(logger),
		plsql.WithCaseClauseIndent(cfg.Analyzer.CaseClauseIndent),
		plsql.WithMaxDepth(cfg.Analyzer.MaxDepth),
	)
	renderer := render.New(tables, render.WithIndent(cfg.Render.Indent))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sdkServer := mcp.NewSDKServer(plsql.Version)
	tools.Register(sdkServer, analyzer, renderer, logger)
	handler := mcp.NewHTTPHandler(sdkServer)

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	// Also serve on root for clients configured without a path
	mux.Handle("/", handler)

	httpServer := &http.Server{Addr: cfg.MCP.Addr, Handler: mux}

	go func() {
		logger.Info("MCP server listening", slog.String("addr", cfg.MCP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("MCP HTTP server error", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	logger.Info("MCP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("MCP HTTP shutdown", slog.String("error", err.Error()))
	}
	logger.Info("MCP server stopped")
}
