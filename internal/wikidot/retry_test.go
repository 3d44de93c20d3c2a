package wikidot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wikidot-tools/reservebot/internal/logger"
)

func testRetryConfig(maxAttempts int) retryConfig {
	return retryConfig{maxAttempts: maxAttempts, baseDelay: time.Millisecond}
}

func TestRetryDelayIsLinear(t *testing.T) {
	cfg := retryConfig{maxAttempts: defaultMaxAttempts, baseDelay: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 3 * time.Second},
		{59, 60 * time.Second},
	}

	for _, tt := range tests {
		if got := retryDelay(cfg, tt.attempt); got != tt.want {
			t.Errorf("retryDelay(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestWithRetrySucceedsImmediately(t *testing.T) {
	log := logger.New("error", false)
	calls := 0

	err := withRetry(context.Background(), testRetryConfig(5), log, "op", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestWithRetryRecoversFromTransientFailures(t *testing.T) {
	log := logger.New("error", false)
	calls := 0

	err := withRetry(context.Background(), testRetryConfig(5), log, "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	log := logger.New("error", false)
	calls := 0
	fatal := errors.New("bad credentials")

	err := withRetry(context.Background(), testRetryConfig(5), log, "op", func() error {
		calls++
		return permanent(fatal)
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected wrapped fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call for permanent error, got %d", calls)
	}
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	log := logger.New("error", false)
	calls := 0

	err := withRetry(context.Background(), testRetryConfig(3), log, "op", func() error {
		calls++
		return errors.New("still down")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	log := logger.New("error", false)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	cfg := retryConfig{maxAttempts: 10, baseDelay: time.Hour}
	errCh := make(chan error, 1)
	go func() {
		errCh <- withRetry(ctx, cfg, log, "op", func() error {
			calls++
			return errors.New("down")
		})
	}()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("withRetry did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestIsPermanentSeesWrappedErrors(t *testing.T) {
	base := errors.New("boom")
	if isPermanent(base) {
		t.Error("plain error should not be permanent")
	}
	if !isPermanent(permanent(base)) {
		t.Error("marked error should be permanent")
	}
	wrapped := permanent(base)
	if !errors.Is(wrapped, base) {
		t.Error("permanent marker should unwrap to the original error")
	}
}
