package valkey

import (
	"testing"

	"github.com/maraichr/trigconv/internal/config"
)

func TestClientOptions(t *testing.T) {
	opts := clientOptions(config.ValkeyConfig{Addr: "cache:6379", Password: "pw", DB: 2}, "worker")
	if len(opts.InitAddress) != 1 || opts.InitAddress[0] != "cache:6379" {
		t.Errorf("unexpected address %v", opts.InitAddress)
	}
	if opts.Password != "pw" || opts.SelectDB != 2 {
		t.Errorf("expected password and db to carry over, got %q %d", opts.Password, opts.SelectDB)
	}
	if opts.ClientName != "trigconv-worker" {
		t.Errorf("expected client name trigconv-worker, got %q", opts.ClientName)
	}
	if !opts.DisableCache {
		t.Error("expected client side caching disabled")
	}

	if name := clientOptions(config.ValkeyConfig{Addr: "x"}, "").ClientName; name != "" {
		t.Errorf("expected no client name without a role, got %q", name)
	}
}
