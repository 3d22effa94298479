package connectors

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/maraichr/trigconv/internal/config"
)

// ObjectAPI is the subset of the S3 client used by the connector.
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Connector downloads trigger sources from an S3-compatible bucket.
type S3Connector struct {
	client ObjectAPI
	bucket string
}

// NewS3Connector creates a new S3 connector. Works with both AWS S3 and MinIO.
func NewS3Connector(ctx context.Context, cfg appconfig.S3Config) (*S3Connector, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
			o.UsePathStyle = true
		}
	})

	return NewS3ConnectorWithClient(client, cfg.Bucket), nil
}

func NewS3ConnectorWithClient(client ObjectAPI, bucket string) *S3Connector {
	return &S3Connector{client: client, bucket: bucket}
}

// Sync downloads the objects under prefix whose base name satisfies match
// into destDir, flattening key paths. It returns the local file names written.
func (c *S3Connector) Sync(ctx context.Context, prefix, destDir string, match func(name string) bool) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create dest dir: %w", err)
	}

	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: &c.bucket,
		Prefix: &prefix,
	})

	var written []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return written, fmt.Errorf("list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			key := *obj.Key
			name := path.Base(key)
			if name == "." || name == ".." || (match != nil && !match(name)) {
				continue
			}

			if err := c.downloadObject(ctx, key, filepath.Join(destDir, name)); err != nil {
				return written, fmt.Errorf("download %s: %w", key, err)
			}
			written = append(written, name)
		}
	}

	return written, nil
}

func (c *S3Connector) downloadObject(ctx context.Context, key, localPath string) error {
	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
