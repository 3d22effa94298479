package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
)

// Syncer copies trigger sources from object storage into a local directory.
type Syncer interface {
	Sync(ctx context.Context, prefix, destDir string, match func(name string) bool) ([]string, error)
}

// SyncStage downloads the job's trigger files into WorkDir/in.
type SyncStage struct {
	syncer Syncer
	match  func(name string) bool
}

func NewSyncStage(syncer Syncer, match func(name string) bool) *SyncStage {
	return &SyncStage{syncer: syncer, match: match}
}

func (s *SyncStage) Name() string { return "sync" }

func (s *SyncStage) Execute(ctx context.Context, jc *JobContext) error {
	jc.InputDir = filepath.Join(jc.WorkDir, "in")
	files, err := s.syncer.Sync(ctx, jc.Prefix, jc.InputDir, s.match)
	if err != nil {
		return fmt.Errorf("sync %q: %w", jc.Prefix, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no trigger files under prefix %q", jc.Prefix)
	}
	jc.Synced = files
	return nil
}
