package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	options "github.com/kart-io/knowledge-engine/pkg/options/redis"
)

func TestNewWithContext_NilOptions(t *testing.T) {
	_, err := NewWithContext(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for nil options")
	}
	if !strings.Contains(err.Error(), "cannot be nil") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestNewWithContext_InvalidOptions(t *testing.T) {
	opts := options.NewOptions()
	opts.Host = ""

	_, err := NewWithContext(context.Background(), opts)
	if err == nil {
		t.Fatal("expected error for invalid options")
	}
	if !strings.Contains(err.Error(), "invalid redis options") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestNewWithContext_UnreachableServer(t *testing.T) {
	opts := options.NewOptions()
	// 保留地址，连接必然失败
	opts.Host = "192.0.2.1"
	opts.Port = 6379
	opts.DialTimeout = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewWithContext(ctx, opts)
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}
	if !strings.Contains(err.Error(), "failed to ping redis") {
		t.Errorf("unexpected error message: %v", err)
	}
}
