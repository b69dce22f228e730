package retry_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"paradiso/internal/retry"
	"paradiso/internal/services"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newPolicy(rec *recordingSleeper) retry.Policy {
	p := retry.Default()
	p.Sleep = rec.sleep
	return p
}

func TestRateLimitBacksOffExponentiallyThenSucceeds(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	err := newPolicy(rec).Do(context.Background(), "confirm", func(context.Context) error {
		calls++
		if calls <= 2 {
			return services.NewStatusError("llm", http.StatusTooManyRequests, nil, "")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("unexpected delays %v", rec.delays)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delay %d = %s, want %s", i, rec.delays[i], want[i])
		}
	}
}

func TestRateLimitDelayIsCapped(t *testing.T) {
	rec := &recordingSleeper{}
	p := newPolicy(rec)
	p.MaxAttempts = 6
	err := p.Do(context.Background(), "extract", func(context.Context) error {
		return services.NewStatusError("llm", http.StatusTooManyRequests, nil, "")
	})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("unexpected delays %v", rec.delays)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delay %d = %s, want %s", i, rec.delays[i], want[i])
		}
	}
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected last error to be preserved, got %v", err)
	}
}

func TestRetryAfterHintIsHonouredUnderCap(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	err := newPolicy(rec).Do(context.Background(), "extract", func(context.Context) error {
		calls++
		if calls == 1 {
			return services.NewStatusError("llm", http.StatusTooManyRequests, nil, "30")
		}
		if calls == 2 {
			return services.NewStatusError("llm", http.StatusTooManyRequests, nil, "5")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.delays[0] != 10*time.Second || rec.delays[1] != 5*time.Second {
		t.Fatalf("unexpected delays %v", rec.delays)
	}
}

func TestTransientErrorsUseFixedDelay(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	err := newPolicy(rec).Do(context.Background(), "extract", func(context.Context) error {
		calls++
		return services.NewStatusError("llm", http.StatusBadGateway, nil, "")
	})
	if err == nil {
		t.Fatal("expected error after retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	for _, d := range rec.delays {
		if d != time.Second {
			t.Fatalf("expected fixed 1s delay, got %v", rec.delays)
		}
	}
	if len(rec.delays) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(rec.delays))
	}
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	err := newPolicy(rec).Do(context.Background(), "extract", func(context.Context) error {
		calls++
		return services.NewStatusError("llm", http.StatusUnauthorized, []byte("bad key"), "")
	})
	if err == nil || calls != 1 || len(rec.delays) != 0 {
		t.Fatalf("expected single attempt, calls=%d delays=%v err=%v", calls, rec.delays, err)
	}
}

func TestCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := retry.Default()
	p.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	err := p.Do(ctx, "confirm", func(context.Context) error {
		calls++
		return services.Wrap(services.ErrTransient, "confirm", "generate", "503", nil)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	p := retry.Policy{}
	_ = p.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return services.Wrap(services.ErrTransient, "", "", "x", nil)
	})
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}
