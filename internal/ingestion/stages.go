package ingestion

import (
	"context"

	"github.com/google/uuid"

	"github.com/maraichr/trigconv/internal/batch"
)

// Stage represents a step in the job pipeline.
type Stage interface {
	Name() string
	Execute(ctx context.Context, jc *JobContext) error
}

// JobContext carries state through the pipeline stages.
type JobContext struct {
	JobID   uuid.UUID
	Prefix  string
	Dialect string
	Render  bool

	// Scratch directory owned by the pipeline; removed when the job ends.
	WorkDir   string
	InputDir  string
	OutputDir string

	// Set by sync stage
	Synced []string

	// Set by analyze stage
	Summary *batch.Summary

	// Set by archive stage
	Objects []string
}
