package ingestion

import (
	"context"
	"fmt"
	"time"

	domain "main/internal/domain/entity/instruments"
)

type guardResult struct {
	snapshot domain.Snapshot
	err      error
}

// Guard races fetch against the deadline. On expiry it returns a TimeoutError
// tagged with label and abandons the in-flight call: sources are stateless
// reads, so the orphaned goroutine cannot corrupt anything. The fetch keeps
// the caller's context, not a derived one, so siblings are unaffected either
// way. Guard never panics outward; a panicking fetch settles as an error.
func Guard(ctx context.Context, deadline time.Duration, label string, fetch func(context.Context) (domain.Snapshot, error)) (domain.Snapshot, error) {
	done := make(chan guardResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- guardResult{err: &recoveredPanic{label: label, value: r}}
			}
		}()
		snapshot, err := fetch(ctx)
		done <- guardResult{snapshot: snapshot, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case result := <-done:
		return result.snapshot, result.err
	case <-ctx.Done():
		return domain.Snapshot{}, ctx.Err()
	case <-timer.C:
		return domain.Snapshot{}, &TimeoutError{Label: label, After: deadline}
	}
}

type recoveredPanic struct {
	label string
	value any
}

func (e *recoveredPanic) Error() string {
	return fmt.Sprintf("source %s panicked: %v", e.label, e.value)
}
