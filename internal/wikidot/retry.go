package wikidot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wikidot-tools/reservebot/internal/logger"
)

// Wikidot's transient failures (connection resets, stray 5xx) usually
// clear within seconds, so the policy is a linear wait of base×(attempt+1)
// rather than exponential growth. 60 capped attempts bound the total wait
// to about half an hour as a last-resort ceiling.
const (
	defaultMaxAttempts = 60
	defaultBaseDelay   = time.Second
)

type retryConfig struct {
	maxAttempts int
	baseDelay   time.Duration
}

// permanentError marks failures that must not consume the retry budget,
// such as a credential mismatch.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// retryDelay is the wait before re-running attempt+1 (attempt counts from 0).
func retryDelay(cfg retryConfig, attempt int) time.Duration {
	return cfg.baseDelay * time.Duration(attempt+1)
}

// withRetry runs fn until it succeeds, returns a permanent error, the
// context is cancelled, or the attempt budget is exhausted.
func withRetry(ctx context.Context, cfg retryConfig, log logger.Logger, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if isPermanent(lastErr) {
			return lastErr
		}
		if attempt+1 >= cfg.maxAttempts {
			break
		}

		wait := retryDelay(cfg, attempt)
		log.Warn("transient failure, retrying",
			logger.String("op", op),
			logger.Int("attempt", attempt+1),
			logger.Duration("next_retry_in", wait),
			logger.Error(lastErr))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, cfg.maxAttempts, lastErr)
}
