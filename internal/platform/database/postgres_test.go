package database

import (
	"testing"
	"time"
)

func TestPoolOptionsDefaults(t *testing.T) {
	opts := PoolOptions{}.withDefaults()

	if opts.MaxOpenConns != 8 || opts.MaxIdleConns != 4 {
		t.Fatalf("unexpected connection defaults: %+v", opts)
	}
	if opts.ConnMaxLifetime != 30*time.Minute || opts.ConnMaxIdleTime != 5*time.Minute {
		t.Fatalf("unexpected lifetime defaults: %+v", opts)
	}
}

func TestPoolOptionsKeepsExplicitValues(t *testing.T) {
	opts := PoolOptions{MaxOpenConns: 20, ConnMaxIdleTime: time.Minute}.withDefaults()

	if opts.MaxOpenConns != 20 {
		t.Fatalf("expected explicit max open conns to be kept, got %d", opts.MaxOpenConns)
	}
	if opts.ConnMaxIdleTime != time.Minute {
		t.Fatalf("expected explicit idle time to be kept, got %s", opts.ConnMaxIdleTime)
	}
	if opts.MaxIdleConns != 4 {
		t.Fatalf("expected default idle conns, got %d", opts.MaxIdleConns)
	}
}
