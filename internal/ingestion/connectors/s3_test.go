package connectors

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	objects map[string]string
	keys    []string
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var contents []types.Object
	for _, k := range f.keys {
		if strings.HasPrefix(k, *in.Prefix) {
			contents = append(contents, types.Object{Key: &k})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.objects[*in.Key]))}, nil
}

func TestS3Sync(t *testing.T) {
	fake := &fakeS3{
		objects: map[string]string{
			"prod/triggers/trigger1.sql":     "BEGIN NULL; END;",
			"prod/triggers/old/trigger2.sql": "BEGIN NULL; END;",
			"prod/triggers/readme.md":        "docs",
		},
		keys: []string{"prod/triggers/", "prod/triggers/trigger1.sql", "prod/triggers/old/trigger2.sql", "prod/triggers/readme.md", "other/trigger9.sql"},
	}
	dest := filepath.Join(t.TempDir(), "in")
	pattern := regexp.MustCompile(`^trigger(\d+)\.sql$`)

	c := NewS3ConnectorWithClient(fake, "bucket")
	written, err := c.Sync(context.Background(), "prod/triggers/", dest, pattern.MatchString)
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 2 || written[0] != "trigger1.sql" || written[1] != "trigger2.sql" {
		t.Fatalf("unexpected files %v", written)
	}

	data, err := os.ReadFile(filepath.Join(dest, "trigger1.sql"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "BEGIN NULL; END;" {
		t.Errorf("unexpected content %q", data)
	}
	if _, err := os.Stat(filepath.Join(dest, "readme.md")); !os.IsNotExist(err) {
		t.Error("expected readme.md to be skipped")
	}
}
