package ingestion

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	domain "main/internal/domain/entity/instruments"
	"main/internal/domain/interfaces"
)

const defaultReconcileConcurrency = 8

// Runner drives the full run of one domain: gate check, store connectivity
// check, source fan-out, parallel reconciliation, aggregation, cache
// invalidation and event publishing. Cache and publisher are optional and
// always best-effort.
type Runner struct {
	profile    Profile
	repo       interfaces.InstrumentsRepository
	cache      interfaces.InvalidationCache
	publisher  interfaces.EventPublisher
	fanout     *FanOut
	reconciler *Reconciler
	logger     *logrus.Entry

	concurrency int
	running     atomic.Bool
	now         func() time.Time
}

// RunnerOption tweaks runner construction.
type RunnerOption func(*Runner)

// WithCache attaches the invalidation cache.
func WithCache(cache interfaces.InvalidationCache) RunnerOption {
	return func(r *Runner) { r.cache = cache }
}

// WithPublisher attaches the update event publisher.
func WithPublisher(publisher interfaces.EventPublisher) RunnerOption {
	return func(r *Runner) { r.publisher = publisher }
}

// WithReconcileConcurrency bounds parallel reconciliations per run.
func WithReconcileConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func NewRunner(profile Profile, repo interfaces.InstrumentsRepository, fanout *FanOut, logger *logrus.Logger, opts ...RunnerOption) *Runner {
	runner := &Runner{
		profile:     profile,
		repo:        repo,
		fanout:      fanout,
		reconciler:  NewReconciler(repo),
		logger:      logger.WithField("domain", profile.Domain.String()),
		concurrency: defaultReconcileConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(runner)
	}
	// A runner built around an ungated profile must not nil-call inside a
	// cron tick.
	if runner.profile.Gate == nil {
		runner.profile.Gate = AlwaysOpen()
	}
	return runner
}

// Profile returns the domain profile the runner was built for.
func (r *Runner) Profile() Profile {
	return r.profile
}

// Run executes one scheduled tick and returns its summary. Ticks overlapping
// a still-active run are skipped; so are ticks whose gate is closed or whose
// store is unreachable. A skipped tick is a no-op reported in the summary,
// never an error.
func (r *Runner) Run(ctx context.Context) RunSummary {
	runID := uuid.New()
	startedAt := r.now()
	logger := r.logger.WithField("run_id", runID.String())

	if !r.running.CompareAndSwap(false, true) {
		logger.Warn("tick overlaps active run, skipping")
		return SkippedRun(runID, r.profile.Domain, startedAt, ErrRunInProgress.Error())
	}
	defer r.running.Store(false)

	if open, reason := r.profile.Gate(startedAt); !open {
		logger.WithField("reason", reason).Info("run gated, skipping")
		return SkippedRun(runID, r.profile.Domain, startedAt, reason)
	}

	// Store connectivity failure before the batch is run-fatal: skip the tick
	// with no partial work rather than fan out into guaranteed write failures.
	if err := r.repo.Ping(ctx); err != nil {
		logger.WithError(err).Error("store unreachable, skipping run")
		return SkippedRun(runID, r.profile.Domain, startedAt, fmt.Sprintf("store unreachable: %v", err))
	}

	logger.WithField("sources", len(r.profile.Sources)).Info("run started")

	outcomes := r.fanout.Collect(ctx, r.profile)
	valid, failed := Partition(outcomes)
	for _, outcome := range failed {
		logger.WithField("source", outcome.Source).WithError(outcome.Err).Warn("source failed")
	}

	results := r.reconcileAll(ctx, valid)
	summary := Aggregate(runID, r.profile.Domain, startedAt, r.now().Sub(startedAt), outcomes, results)

	r.invalidate(ctx, results, logger)
	r.publish(ctx, results, logger)

	r.logItems(summary, logger)
	logger.WithFields(summary.Fields()).Info("run completed")
	return summary
}

func (r *Runner) reconcileAll(ctx context.Context, snapshots []domain.Snapshot) []ReconcileResult {
	results := make([]ReconcileResult, len(snapshots))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)
	for i, snapshot := range snapshots {
		i, snapshot := i, snapshot
		group.Go(func() error {
			results[i] = r.reconciler.Reconcile(groupCtx, r.profile, snapshot)
			return nil
		})
	}
	// Reconcile never returns an error through the group; failures are
	// captured per item.
	_ = group.Wait()

	return results
}

// invalidate drops the domain's list keys once per run plus the specific item
// key per successful mutation. Cache failures are logged and swallowed.
func (r *Runner) invalidate(ctx context.Context, results []ReconcileResult, logger *logrus.Entry) {
	if r.cache == nil {
		return
	}

	mutated := false
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		mutated = true
		pattern := fmt.Sprintf("%s:%s", r.profile.Domain, result.Code)
		if err := r.cache.DeleteByPattern(ctx, pattern); err != nil {
			logger.WithError(err).WithField("pattern", pattern).Warn("cache invalidation failed")
		}
	}
	if !mutated {
		return
	}

	pattern := fmt.Sprintf("%s:*", r.profile.Domain)
	if err := r.cache.DeleteByPattern(ctx, pattern); err != nil {
		logger.WithError(err).WithField("pattern", pattern).Warn("cache invalidation failed")
	}
}

func (r *Runner) publish(ctx context.Context, results []ReconcileResult, logger *logrus.Entry) {
	if r.publisher == nil {
		return
	}
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		event := interfaces.UpdateEvent{
			Domain:    r.profile.Domain,
			Code:      result.Code,
			Action:    string(result.Action),
			OldPrices: result.Old,
			NewPrices: result.New,
			At:        r.now().UTC(),
		}
		if err := r.publisher.PublishUpdate(ctx, event); err != nil {
			logger.WithError(err).WithField("code", result.Code).Warn("publish update failed")
		}
	}
}

func (r *Runner) logItems(summary RunSummary, logger *logrus.Entry) {
	for _, item := range summary.Items {
		entry := logger.WithFields(logrus.Fields{
			"code":     item.Code,
			"action":   string(item.Action),
			"duration": item.Duration.String(),
		})
		switch {
		case item.Error != "":
			entry.WithField("error", item.Error).Warn("item failed")
		case item.Action == ActionUpdated:
			entry.WithFields(logrus.Fields{"old": item.Old, "new": item.New}).Info("item reconciled")
		default:
			entry.Info("item reconciled")
		}
	}
}
