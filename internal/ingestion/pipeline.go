package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Pipeline runs each batch job through its stages in order, publishing
// status as it goes. A failed stage stops the job.
type Pipeline struct {
	stages  []Stage
	status  StatusStore
	workDir string
	logger  *slog.Logger
	now     func() time.Time
}

// NewPipeline creates a pipeline. Job scratch directories are created under
// workDir (the OS temp dir when empty).
func NewPipeline(stages []Stage, status StatusStore, workDir string, logger *slog.Logger) *Pipeline {
	return &Pipeline{stages: stages, status: status, workDir: workDir, logger: logger, now: time.Now}
}

// Run processes a single job message.
func (p *Pipeline) Run(ctx context.Context, msg JobMessage) error {
	p.logger.Info("pipeline started",
		slog.String("job_id", msg.JobID.String()),
		slog.String("prefix", msg.Prefix),
		slog.String("trigger", msg.Trigger))

	workDir, err := os.MkdirTemp(p.workDir, "trigconv-job-")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	jc := &JobContext{
		JobID:   msg.JobID,
		Prefix:  msg.Prefix,
		Dialect: msg.Dialect,
		Render:  msg.Render,
		WorkDir: workDir,
	}
	st := JobStatus{JobID: msg.JobID, Prefix: msg.Prefix, Status: JobRunning}

	for _, stage := range p.stages {
		st.Stage = stage.Name()
		p.publish(ctx, &st)

		p.logger.Info("stage started",
			slog.String("stage", stage.Name()),
			slog.String("job_id", msg.JobID.String()))

		if err := stage.Execute(ctx, jc); err != nil {
			st.Status = JobFailed
			st.Error = err.Error()
			st.Summary = jc.Summary
			p.publish(ctx, &st)
			return fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}

		p.logger.Info("stage completed",
			slog.String("stage", stage.Name()),
			slog.String("job_id", msg.JobID.String()))
	}

	st.Status = JobCompleted
	st.Stage = ""
	st.Summary = jc.Summary
	st.Objects = jc.Objects
	p.publish(ctx, &st)

	attrs := []any{slog.String("job_id", msg.JobID.String()), slog.Int("files", len(jc.Synced))}
	if jc.Summary != nil {
		attrs = append(attrs,
			slog.Int("clean", jc.Summary.Clean),
			slog.Int("violations", jc.Summary.Violations),
			slog.Int("failed", jc.Summary.Failed))
	}
	p.logger.Info("pipeline completed", attrs...)
	return nil
}

func (p *Pipeline) publish(ctx context.Context, st *JobStatus) {
	if p.status == nil {
		return
	}
	st.UpdatedAt = p.now().UTC()
	if err := p.status.SetJobStatus(ctx, *st); err != nil {
		p.logger.Warn("publish job status", slog.String("error", err.Error()))
	}
}

// NoOpStage is a placeholder stage that does nothing, used when an optional
// backend is not configured.
type NoOpStage struct {
	name string
}

func NewNoOpStage(name string) *NoOpStage {
	return &NoOpStage{name: name}
}

func (s *NoOpStage) Name() string { return s.name }

func (s *NoOpStage) Execute(_ context.Context, _ *JobContext) error {
	return nil
}
