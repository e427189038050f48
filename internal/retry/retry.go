// Package retry implements exponential backoff for calls to remote providers.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Do runs fn up to attempts times with exponential backoff, retrying only
// transient failures. An exhausted budget wraps domain.ErrUpstreamUnavailable
// so transports' transient errors surface as one stable sentinel.
// Non-transient errors return immediately, unwrapped.
func Do(ctx context.Context, attempts int, baseDelay time.Duration, logger *zap.Logger, op string, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			logger.Warn("Retrying after transient failure",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr))

			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w: %w", op, domain.ErrUpstreamUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !domain.IsTransient(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w: %w", op, attempts, domain.ErrUpstreamUnavailable, lastErr)
}
