package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/maraichr/trigconv/internal/parser"
)

// ResultCache stores serialized analysis documents keyed by a hash of the
// trigger source. The namespace should change whenever the analyzer output
// for the same source could change (parser version, analyzer options).
type ResultCache struct {
	client    valkey.Client
	ttl       time.Duration
	namespace string
}

func NewResultCache(client valkey.Client, ttl time.Duration, namespace string) *ResultCache {
	return &ResultCache{client: client, ttl: ttl, namespace: namespace}
}

func (c *ResultCache) key(source []byte) string {
	return "trigconv:analysis:" + c.namespace + ":" + parser.ContentHash(source)
}

// Get returns the cached document for source, or ok=false on a miss.
func (c *ResultCache) Get(ctx context.Context, source []byte) ([]byte, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(c.key(source)).Build())
	data, err := resp.AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached analysis: %w", err)
	}
	return data, true, nil
}

func (c *ResultCache) Set(ctx context.Context, source, doc []byte) error {
	cmd := c.client.B().Set().Key(c.key(source)).Value(valkey.BinaryString(doc))
	var resp valkey.ValkeyResult
	if c.ttl > 0 {
		resp = c.client.Do(ctx, cmd.Ex(c.ttl).Build())
	} else {
		resp = c.client.Do(ctx, cmd.Build())
	}
	if err := resp.Error(); err != nil {
		return fmt.Errorf("set cached analysis: %w", err)
	}
	return nil
}
