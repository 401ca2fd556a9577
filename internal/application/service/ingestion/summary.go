package ingestion

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domain "main/internal/domain/entity/instruments"
)

// ItemResult is one per-instrument line of a run summary.
type ItemResult struct {
	Source   string
	Code     string
	Action   Action
	Old      map[string]float64
	New      map[string]float64
	Duration time.Duration
	Error    string
}

// Totals counts outcomes across both the fetch and reconcile phases.
type Totals struct {
	Success int
	Failed  int
	Skipped int
}

// RunSummary is the canonical reporting artifact of one scheduled run. It is
// ephemeral: logged, never persisted.
type RunSummary struct {
	RunID      uuid.UUID
	Domain     domain.Domain
	StartedAt  time.Time
	Elapsed    time.Duration
	Skipped    bool
	SkipReason string
	Items      []ItemResult
	Totals     Totals
}

// Aggregate folds settled fetch outcomes and reconcile results into a run
// summary. Pure: no side effects, always succeeds. Fetch failures and
// reconcile failures both count toward Totals.Failed; gate-skipped sources
// count toward Totals.Skipped.
func Aggregate(runID uuid.UUID, d domain.Domain, startedAt time.Time, elapsed time.Duration, fetched []FetchOutcome, reconciled []ReconcileResult) RunSummary {
	summary := RunSummary{
		RunID:     runID,
		Domain:    d,
		StartedAt: startedAt,
		Elapsed:   elapsed,
	}

	for _, outcome := range fetched {
		switch {
		case outcome.Err != nil:
			summary.Items = append(summary.Items, ItemResult{
				Source:   outcome.Source,
				Code:     outcome.Snapshot.Code,
				Action:   ActionFailed,
				Duration: outcome.Duration,
				Error:    outcome.Err.Error(),
			})
			summary.Totals.Failed++
		case outcome.Skipped:
			summary.Totals.Skipped++
		}
	}

	for _, result := range reconciled {
		item := ItemResult{
			Code:     result.Code,
			Action:   result.Action,
			Old:      result.Old,
			New:      result.New,
			Duration: result.Duration,
		}
		if result.Err != nil {
			item.Error = result.Err.Error()
			summary.Totals.Failed++
		} else {
			summary.Totals.Success++
		}
		summary.Items = append(summary.Items, item)
	}

	return summary
}

// SkippedRun builds the summary for a tick that never reached the fan-out.
func SkippedRun(runID uuid.UUID, d domain.Domain, startedAt time.Time, reason string) RunSummary {
	return RunSummary{
		RunID:      runID,
		Domain:     d,
		StartedAt:  startedAt,
		Skipped:    true,
		SkipReason: reason,
	}
}

// Fields renders the summary for structured logging.
func (s RunSummary) Fields() logrus.Fields {
	fields := logrus.Fields{
		"run_id":  s.RunID.String(),
		"domain":  s.Domain.String(),
		"elapsed": s.Elapsed.String(),
		"success": s.Totals.Success,
		"failed":  s.Totals.Failed,
	}
	if s.Totals.Skipped > 0 {
		fields["skipped_sources"] = s.Totals.Skipped
	}
	if s.Skipped {
		fields["skipped"] = true
		fields["skip_reason"] = s.SkipReason
	}
	return fields
}
