package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/maraichr/trigconv/internal/batch"
)

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

type JobStatus struct {
	JobID     uuid.UUID      `json:"job_id"`
	Status    string         `json:"status"`
	Prefix    string         `json:"prefix"`
	Stage     string         `json:"stage,omitempty"`
	Error     string         `json:"error,omitempty"`
	Summary   *batch.Summary `json:"summary,omitempty"`
	Objects   []string       `json:"objects,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type StatusStore interface {
	SetJobStatus(ctx context.Context, st JobStatus) error
	GetJobStatus(ctx context.Context, id uuid.UUID) (JobStatus, bool, error)
}

// ValkeyStatusStore keeps the latest status of each job as a JSON string.
type ValkeyStatusStore struct {
	client valkey.Client
	ttl    time.Duration
}

func NewValkeyStatusStore(client valkey.Client, ttl time.Duration) *ValkeyStatusStore {
	return &ValkeyStatusStore{client: client, ttl: ttl}
}

func jobStatusKey(id uuid.UUID) string {
	return "trigconv:job:" + id.String()
}

func (s *ValkeyStatusStore) SetJobStatus(ctx context.Context, st JobStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal job status: %w", err)
	}
	cmd := s.client.B().Set().Key(jobStatusKey(st.JobID)).Value(string(data))
	var resp valkey.ValkeyResult
	if s.ttl > 0 {
		resp = s.client.Do(ctx, cmd.Ex(s.ttl).Build())
	} else {
		resp = s.client.Do(ctx, cmd.Build())
	}
	if err := resp.Error(); err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	return nil
}

func (s *ValkeyStatusStore) GetJobStatus(ctx context.Context, id uuid.UUID) (JobStatus, bool, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(jobStatusKey(id)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return JobStatus{}, false, nil
	}
	if err != nil {
		return JobStatus{}, false, fmt.Errorf("get job status: %w", err)
	}
	var st JobStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return JobStatus{}, false, fmt.Errorf("decode job status: %w", err)
	}
	return st, true, nil
}
