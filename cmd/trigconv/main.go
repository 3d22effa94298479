// trigconv analyzes a directory of Oracle trigger bodies and writes one
// triggerN_analysis.json (and, for clean inputs, rendered SQL) per file.
//
//	go run ./cmd/trigconv -in triggers -out analysis
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/maraichr/trigconv/internal/batch"
	"github.com/maraichr/trigconv/internal/config"
	"github.com/maraichr/trigconv/internal/ingestion/connectors"
	"github.com/maraichr/trigconv/internal/mapping"
	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/internal/render"
	"github.com/maraichr/trigconv/internal/store"
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

	in := flag.String("in", cfg.Batch.InputDir, "directory holding triggerN.sql files")
	out := flag.String("out", cfg.Batch.OutputDir, "directory for analysis and rendered output")
	workers := flag.Int("workers", cfg.Batch.Workers, "files analyzed concurrently")
	pattern := flag.String("pattern", cfg.Batch.Pattern, "regexp selecting input files; group 1 is the trigger number")
	doRender := flag.Bool("render", cfg.Batch.Render, "write rendered SQL for files without rule violations")
	dialect := flag.String("dialect", cfg.Render.Dialect, "render dialect (postgresql or oracle)")
	mappingFile := flag.String("mapping", cfg.Render.MappingFile, "YAML file overriding the built-in mapping tables")
	s3Prefix := flag.String("s3-prefix", cfg.S3.Prefix, "object prefix synced into -in when S3_BUCKET is set")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tables, err := mapping.Load(*mappingFile)
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

	opts := batch.Options{
		InputDir:  *in,
		OutputDir: *out,
		Workers:   *workers,
		Pattern:   *pattern,
		Render:    *doRender,
		Dialect:   *dialect,
	}

	// S3 (optional, fills the input directory first)
	if cfg.S3.Bucket != "" {
		conn, err := connectors.NewS3Connector(ctx, cfg.S3)
		if err != nil {
			logger.Error("s3 connector init failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		re, err := regexp.Compile(opts.Pattern)
		if err != nil {
			logger.Error("invalid pattern", slog.String("error", err.Error()))
			os.Exit(1)
		}
		files, err := conn.Sync(ctx, *s3Prefix, opts.InputDir, re.MatchString)
		if err != nil {
			logger.Error("s3 sync failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("synced from s3",
			slog.String("bucket", cfg.S3.Bucket),
			slog.String("prefix", *s3Prefix),
			slog.Int("files", len(files)))
	}

	var ropts []batch.RunnerOption

	// Valkey (optional, skips files analyzed before with the same settings)
	if cfg.Valkey.Addr != "" {
		vkClient, err := vk.NewClient(ctx, cfg.Valkey, "cli")
		if err != nil {
			logger.Warn("valkey connection failed, cache disabled", slog.String("error", err.Error()))
		} else {
			defer vkClient.Close()
			ropts = append(ropts, batch.WithCache(vk.NewResultCache(vkClient, cfg.Valkey.CacheTTL, batch.CacheNamespace(analyzer, renderer, opts))))
		}
	}

	// Database (optional, records the batch as analysis runs)
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
	}

	runner, err := batch.NewRunner(analyzer, renderer, opts, logger, ropts...)
	if err != nil {
		logger.Error("invalid batch options", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sum, err := runner.Run(ctx)
	if err != nil {
		logger.Error("batch failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, f := range sum.Files {
		attrs := []any{
			slog.String("file", f.File),
			slog.String("status", f.Status),
			slog.Int("violations", f.Violations),
			slog.Int("rest_strings", f.RestStrings),
			slog.Int("warnings", f.Warnings),
			slog.Bool("cached", f.Cached),
		}
		if f.Error != "" {
			attrs = append(attrs, slog.String("error", f.Error))
		}
		logger.Info("file", attrs...)
	}
	logger.Info("batch complete",
		slog.Int("processed", sum.Processed),
		slog.Int("clean", sum.Clean),
		slog.Int("violations", sum.Violations),
		slog.Int("failed", sum.Failed),
		slog.Int("cached", sum.Cached))

	if sum.Failed > 0 {
		os.Exit(1)
	}
}
