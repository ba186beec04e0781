package store

import (
	"context"
	"testing"
	"time"
)

func fastFailPGURL() string {
	// user/pass/db don't matter; 127.0.0.1:1 is a closed port on all systems
	return "postgres://u:p@127.0.0.1:1/db?sslmode=disable"
}

func TestOpenPG_ParentAlreadyCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config{PG: PGConfig{URL: fastFailPGURL(), MaxConns: 2}}
	s := &Store{}

	start := time.Now()
	txr, err := openPG(ctx, cfg, s)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected error due to canceled context, got nil (txr=%T)", txr)
	}
	if txr != nil {
		t.Fatalf("expected nil TxRunner on canceled context, got %T", txr)
	}
	// should return quickly (no DNS, immediate ECONNREFUSED)
	if elapsed > time.Second {
		t.Fatalf("expected quick failure, got %v", elapsed)
	}
}

func TestOpenPG_BackoffThenCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := Config{PG: PGConfig{URL: fastFailPGURL(), MaxConns: 2}}
	s := &Store{}

	// cancel a bit after the first backoff sleep (150ms) to exercise the
	// retry loop and the cancellation short circuit
	go func() {
		time.Sleep(160 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	txr, err := openPG(ctx, cfg, s)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected error due to parent cancellation, got nil (txr=%T)", txr)
	}
	if txr != nil {
		t.Fatalf("expected nil TxRunner when parent deadline hits, got %T", txr)
	}
	if elapsed < 140*time.Millisecond {
		t.Fatalf("expected at least one backoff sleep (~150ms), got %v", elapsed)
	}
	if elapsed > 5*time.Second {
		t.Fatalf("test took too long (%v); expected early cancel", elapsed)
	}
}
