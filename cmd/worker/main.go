package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/maraichr/trigconv/internal/batch"
	"github.com/maraichr/trigconv/internal/config"
	"github.com/maraichr/trigconv/internal/ingestion"
	"github.com/maraichr/trigconv/internal/ingestion/connectors"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tables, err := mapping.Load(cfg.Render.MappingFile)
	if err != nil {
		logger.Error("failed to load mapping", slog.String("error", err.Error()))
		os.Exit(1)
	}
	pattern, err := regexp.Compile(cfg.Batch.Pattern)
	if err != nil {
		logger.Error("invalid BATCH_PATTERN", slog.String("error", err.Error()))
		os.Exit(1)
	}
	analyzer := plsql.New(
		plsql.WithLogger(logger),
		plsql.WithCaseClauseIndent(cfg.Analyzer.CaseClauseIndent),
		plsql.WithMaxDepth(cfg.Analyzer.MaxDepth),
	)
	renderer := render.New(tables, render.WithIndent(cfg.Render.Indent))

	// Valkey
	vkClient, err := vk.NewClient(ctx, cfg.Valkey, "worker")
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	// S3
	if cfg.S3.Bucket == "" {
		logger.Error("S3_BUCKET is required for the worker")
		os.Exit(1)
	}
	s3Conn, err := connectors.NewS3Connector(ctx, cfg.S3)
	if err != nil {
		logger.Error("s3 connector init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("s3 connector enabled", slog.String("bucket", cfg.S3.Bucket))

	var ropts []batch.RunnerOption

	// Database (optional, records every analyzed file)
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
		ropts = append(ropts, batch.WithRecorder(store.New(pool)))
		logger.Info("connected to database")
	}

	analyzeStage := ingestion.NewAnalyzeStage(analyzer, renderer, batch.Options{
		Workers: cfg.Batch.Workers,
		Pattern: cfg.Batch.Pattern,
		Dialect: cfg.Render.Dialect,
	}, logger, ropts...).WithCacheFor(func(ns string) batch.Cache {
		return vk.NewResultCache(vkClient, cfg.Valkey.CacheTTL, ns)
	})

	// MinIO (optional, archives outputs)
	var archiveStage ingestion.Stage = ingestion.NewNoOpStage("archive")
	if cfg.MinIO.Endpoint != "" {
		mc, err := minioclient.NewClient(cfg.MinIO)
		if err != nil {
			logger.Error("failed to connect to minio", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := mc.EnsureBucket(ctx); err != nil {
			logger.Error("failed to ensure minio bucket", slog.String("error", err.Error()))
			os.Exit(1)
		}
		archiveStage = ingestion.NewArchiveStage(mc)
		logger.Info("connected to minio", slog.String("bucket", mc.Bucket()))
	}

	stages := []ingestion.Stage{
		ingestion.NewSyncStage(s3Conn, pattern.MatchString),
		analyzeStage,
		archiveStage,
	}
	statuses := ingestion.NewValkeyStatusStore(vkClient, cfg.Worker.JobStatusTTL)
	pipeline := ingestion.NewPipeline(stages, statuses, cfg.Worker.WorkDir, logger)

	consumer := ingestion.NewConsumer(vkClient, cfg.Worker.ConsumerID, logger)
	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Error("failed to ensure consumer group", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("starting worker, consuming from stream",
		slog.String("stream", ingestion.StreamName),
		slog.String("consumer", cfg.Worker.ConsumerID))
	if err := consumer.Consume(ctx, pipeline.Run); err != nil && ctx.Err() == nil {
		logger.Error("consumer error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
