package ingestion

import (
	"context"
	"errors"
	"math/rand"
	"time"

	domain "main/internal/domain/entity/instruments"
)

// Retrier retries failed source fetches with exponential backoff. A rate-limit
// rejection carrying a server hint waits the hinted duration instead of the
// computed one. Bounded random jitter keeps retries across instruments from
// synchronizing. Retries run inside the timeout guard, so an expired deadline
// is never retried.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

// Do invokes fn up to MaxAttempts times and surfaces the final error.
func (r Retrier) Do(ctx context.Context, fn func(context.Context) (domain.Snapshot, error)) (domain.Snapshot, error) {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		snapshot, err := fn(ctx)
		if err == nil {
			return snapshot, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		if err := r.wait(ctx, r.delayFor(lastErr, attempt)); err != nil {
			return domain.Snapshot{}, err
		}
	}
	return domain.Snapshot{}, lastErr
}

func (r Retrier) delayFor(err error, attempt int) time.Duration {
	delay := r.BaseDelay << attempt

	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) && rateLimited.RetryAfter > 0 {
		delay = rateLimited.RetryAfter
	}
	if r.MaxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(r.MaxJitter)))
	}
	return delay
}

func (r Retrier) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
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
