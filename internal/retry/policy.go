// Package retry provides the single backoff policy shared by every
// generation call in a reconciliation pass.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"paradiso/internal/logging"
	"paradiso/internal/services"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 10 * time.Second
)

// Policy retries an operation a bounded number of times. Errors whose status
// equals RateLimitStatus back off exponentially from BaseDelay up to MaxDelay;
// other retryable errors (see services.Retryable) wait BaseDelay; anything
// else is returned immediately.
type Policy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	RateLimitStatus int

	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// Default returns the policy used when nothing is configured: 3 attempts,
// 1s base, 10s cap, exponential on HTTP 429.
func Default() Policy {
	return Policy{
		MaxAttempts:     defaultAttempts,
		BaseDelay:       defaultBaseDelay,
		MaxDelay:        defaultMaxDelay,
		RateLimitStatus: http.StatusTooManyRequests,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. Cancellation of ctx stops immediately.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	attempts := p.attempts()
	var lastErr error
	rateLimitHits := 0

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return errors.Join(lastErr, err)
			}
			return err
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		var delay time.Duration
		if p.rateLimited(err) {
			rateLimitHits++
			delay = p.rateLimitDelay(rateLimitHits, services.RetryAfter(err))
		} else {
			delay = p.BaseDelay
		}

		logging.WithContext(ctx, p.Logger).Debug("retrying generation call",
			logging.String("operation", name),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "retry_scheduled"),
		)

		if err := p.sleep(ctx, delay); err != nil {
			return errors.Join(lastErr, err)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) retryable(err error) bool {
	if p.rateLimited(err) {
		return true
	}
	return services.Retryable(err)
}

func (p Policy) rateLimited(err error) bool {
	if code, ok := services.StatusCode(err); ok && p.RateLimitStatus > 0 {
		return code == p.RateLimitStatus
	}
	return services.RateLimited(err)
}

// rateLimitDelay returns base*2^(hit-1) capped at MaxDelay. A server hint
// longer than the computed delay wins, still under the cap.
func (p Policy) rateLimitDelay(hit int, hint time.Duration) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	delay := base
	for i := 1; i < hit; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	if hint > delay {
		delay = hint
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
