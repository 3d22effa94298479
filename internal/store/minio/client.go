package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/maraichr/trigconv/internal/config"
)

type Client struct {
	mc     *minio.Client
	bucket string
}

func NewClient(cfg config.MinIOConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Client{mc: mc, bucket: cfg.Bucket}, nil
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

func (c *Client) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := c.mc.PutObject(ctx, c.bucket, objectName, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	return nil
}

// ArchiveAnalysis stores the uploaded source and its analysis document under
// runs/<runID>/ and returns the object names written.
func (c *Client) ArchiveAnalysis(ctx context.Context, runID uuid.UUID, fileName string, source, doc []byte) ([]string, error) {
	prefix := path.Join("runs", runID.String())
	sourceName := path.Join(prefix, path.Base(fileName))
	docName := path.Join(prefix, "analysis.json")

	if err := c.UploadFile(ctx, sourceName, bytes.NewReader(source), int64(len(source)), "text/plain"); err != nil {
		return nil, fmt.Errorf("archive source: %w", err)
	}
	if err := c.UploadFile(ctx, docName, bytes.NewReader(doc), int64(len(doc)), "application/json"); err != nil {
		return nil, fmt.Errorf("archive analysis: %w", err)
	}
	return []string{sourceName, docName}, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}
