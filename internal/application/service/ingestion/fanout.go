package ingestion

import (
	"context"
	"sync"
	"time"

	domain "main/internal/domain/entity/instruments"
)

// FetchOutcome is one settled entry of a fan-out batch, in source order.
// Exactly one of Err, Skipped or a usable Snapshot is meaningful.
type FetchOutcome struct {
	Source     string
	Snapshot   domain.Snapshot
	Err        error
	Skipped    bool
	SkipReason string
	Duration   time.Duration
}

// FanOut invokes every source of a batch concurrently. Each call runs through
// the retrier inside the timeout guard, so a slow or failing source settles
// as a tagged failure without touching its siblings.
type FanOut struct {
	Deadline time.Duration
	Retry    Retrier
	now      func() time.Time
}

func NewFanOut(deadline time.Duration, retry Retrier) *FanOut {
	return &FanOut{
		Deadline: deadline,
		Retry:    retry,
		now:      time.Now,
	}
}

// Collect settles all sources and validates their snapshots against the
// profile's required price fields. The result has one entry per source in
// input order.
func (f *FanOut) Collect(ctx context.Context, profile Profile) []FetchOutcome {
	outcomes := make([]FetchOutcome, len(profile.Sources))

	var wg sync.WaitGroup
	for i, spec := range profile.Sources {
		wg.Add(1)
		go func(i int, spec SourceSpec) {
			defer wg.Done()
			outcomes[i] = f.collectOne(ctx, profile, spec)
		}(i, spec)
	}
	wg.Wait()

	return outcomes
}

func (f *FanOut) collectOne(ctx context.Context, profile Profile, spec SourceSpec) FetchOutcome {
	started := f.now()
	outcome := FetchOutcome{Source: spec.Source.Name()}

	snapshot, err := Guard(ctx, f.Deadline, spec.Source.Name(), func(ctx context.Context) (domain.Snapshot, error) {
		return f.Retry.Do(ctx, spec.Source.Fetch)
	})
	outcome.Duration = f.now().Sub(started)

	if err != nil {
		outcome.Err = err
		return outcome
	}
	if err := snapshot.Validate(profile.PriceFields); err != nil {
		outcome.Err = err
		return outcome
	}
	if spec.Gate != nil {
		if open, reason := spec.Gate(f.now()); !open {
			outcome.Skipped = true
			outcome.SkipReason = reason
			return outcome
		}
	}

	outcome.Snapshot = snapshot
	return outcome
}

// Partition splits settled outcomes into reconcile input and failures.
// Gate-skipped sources land in neither bucket; callers count them from the
// outcomes directly.
func Partition(outcomes []FetchOutcome) (valid []domain.Snapshot, failed []FetchOutcome) {
	for _, outcome := range outcomes {
		switch {
		case outcome.Err != nil:
			failed = append(failed, outcome)
		case outcome.Skipped:
		default:
			valid = append(valid, outcome.Snapshot)
		}
	}
	return valid, failed
}
