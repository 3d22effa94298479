package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type Uploader interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
}

// ArchiveStage uploads every output file and the batch summary under jobs/<id>/.
type ArchiveStage struct {
	uploader Uploader
}

func NewArchiveStage(uploader Uploader) *ArchiveStage {
	return &ArchiveStage{uploader: uploader}
}

func (s *ArchiveStage) Name() string { return "archive" }

func (s *ArchiveStage) Execute(ctx context.Context, jc *JobContext) error {
	if jc.Summary == nil {
		return fmt.Errorf("nothing to archive")
	}
	prefix := path.Join("jobs", jc.JobID.String())

	for _, f := range jc.Summary.Files {
		for _, out := range f.Outputs {
			data, err := os.ReadFile(out)
			if err != nil {
				return fmt.Errorf("read output: %w", err)
			}
			name := path.Join(prefix, filepath.Base(out))
			if err := s.upload(ctx, name, data, contentType(out)); err != nil {
				return err
			}
			jc.Objects = append(jc.Objects, name)
		}
	}

	summary, err := json.MarshalIndent(jc.Summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	name := path.Join(prefix, "summary.json")
	if err := s.upload(ctx, name, summary, "application/json"); err != nil {
		return err
	}
	jc.Objects = append(jc.Objects, name)
	return nil
}

func (s *ArchiveStage) upload(ctx context.Context, name string, data []byte, ct string) error {
	if err := s.uploader.UploadFile(ctx, name, bytes.NewReader(data), int64(len(data)), ct); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".json") {
		return "application/json"
	}
	return "text/plain"
}
