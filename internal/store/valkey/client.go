package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/maraichr/trigconv/internal/config"
)

const pingTimeout = 5 * time.Second

// NewClient connects to the configured Valkey and pings it. role names the
// connection in CLIENT LIST (trigconv-api, trigconv-worker, ...).
func NewClient(ctx context.Context, cfg config.ValkeyConfig, role string) (valkey.Client, error) {
	client, err := valkey.NewClient(clientOptions(cfg, role))
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// clientOptions builds the connection settings. Results are read with plain
// GET and stream commands, so server-assisted client caching stays off.
func clientOptions(cfg config.ValkeyConfig, role string) valkey.ClientOption {
	opts := valkey.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	}
	if role != "" {
		opts.ClientName = "trigconv-" + role
	}
	return opts
}
