package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maraichr/trigconv/internal/api"
	"github.com/maraichr/trigconv/internal/config"
	"github.com/maraichr/trigconv/internal/ingestion"
	"github.com/maraichr/trigconv/internal/mapping"
	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/internal/render"
	"github.com/maraichr/trigconv/internal/store"
	minioclient "github.com/maraichr/trigconv/internal/store/minio"
	"github.com/maraichr/trigconv/internal/store/postgres"
	vk "github.com/maraichr/trigconv/internal/store/valkey"
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

	ctx := context.Background()
	deps := &api.RouterDeps{}

	// PostgreSQL (optional, enables run history)
	if cfg.Database.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			logger.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to ensure schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
		s := store.New(pool)
		deps.DB = pool
		deps.Runs = s
		logger.Info("connected to database")
	}

	// MinIO (optional, enables uploads)
	if cfg.MinIO.Endpoint != "" {
		mc, err := minioclient.NewClient(cfg.MinIO)
		if err != nil {
			logger.Warn("minio connection failed, uploads disabled", slog.String("error", err.Error()))
		} else if err := mc.EnsureBucket(ctx); err != nil {
			logger.Warn("minio bucket unavailable, uploads disabled", slog.String("error", err.Error()))
		} else {
			deps.Archiver = mc
			logger.Info("connected to minio", slog.String("bucket", mc.Bucket()))
		}
	}

	// Valkey (optional, enables the result cache and batch jobs)
	if cfg.Valkey.Addr != "" {
		vkClient, err := vk.NewClient(ctx, cfg.Valkey, "api")
		if err != nil {
			logger.Warn("valkey connection failed, cache and jobs disabled", slog.String("error", err.Error()))
		} else {
			defer vkClient.Close()
			ns := "api:" + analyzer.Fingerprint()
			deps.Cache = vk.NewResultCache(vkClient, cfg.Valkey.CacheTTL, ns)
			deps.Queue = ingestion.NewProducer(vkClient)
			deps.Jobs = ingestion.NewValkeyStatusStore(vkClient, cfg.Worker.JobStatusTTL)
			logger.Info("connected to valkey")
		}
	}

	router := api.NewRouter(logger, analyzer, renderer, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting API server",
			slog.String("addr", srv.Addr),
			slog.String("parser_version", plsql.Version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
