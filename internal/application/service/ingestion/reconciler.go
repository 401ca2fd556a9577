package ingestion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	domain "main/internal/domain/entity/instruments"
	"main/internal/domain/interfaces"
)

// Action is the outcome of reconciling one snapshot.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionFailed  Action = "failed"
)

// ReconcileResult reports one reconciliation for the run summary. Old and New
// are only set for updates.
type ReconcileResult struct {
	Code     string
	Action   Action
	Old      map[string]float64
	New      map[string]float64
	Duration time.Duration
	Err      error
}

// Reconciler merges valid snapshots into persisted state. Each call touches a
// single record keyed by (domain, code); concurrent calls for distinct codes
// need no coordination beyond the store's atomic update.
type Reconciler struct {
	repo interfaces.InstrumentsRepository
	now  func() time.Time
}

func NewReconciler(repo interfaces.InstrumentsRepository) *Reconciler {
	return &Reconciler{repo: repo, now: time.Now}
}

// Reconcile performs an idempotent create-or-update for one snapshot. Any
// failure is captured in the result and never propagates to sibling
// reconciliations.
func (r *Reconciler) Reconcile(ctx context.Context, profile Profile, snapshot domain.Snapshot) (result ReconcileResult) {
	started := r.now()
	result = ReconcileResult{Code: snapshot.Code}
	defer func() {
		if rec := recover(); rec != nil {
			result.Action = ActionFailed
			result.Err = fmt.Errorf("reconcile %s panicked: %v", snapshot.Code, rec)
		}
		result.Duration = r.now().Sub(started)
	}()

	existing, err := r.repo.FindByCode(ctx, profile.Domain, snapshot.Code)
	switch {
	case errors.Is(err, interfaces.ErrInstrumentNotFound):
		return r.create(ctx, profile, snapshot, result)
	case err != nil:
		result.Action = ActionFailed
		result.Err = fmt.Errorf("read %s: %w", snapshot.Code, err)
		return result
	}
	return r.update(ctx, profile, snapshot, existing, result)
}

func (r *Reconciler) create(ctx context.Context, profile Profile, snapshot domain.Snapshot, result ReconcileResult) ReconcileResult {
	now := r.now().UTC()
	record := &domain.Instrument{
		Domain:      profile.Domain,
		Code:        snapshot.Code,
		Name:        snapshot.Name,
		Attributes:  snapshot.Attributes,
		Prices:      snapshot.Prices,
		Changes:     zeroChanges(profile.PriceFields),
		LastUpdated: now,
	}
	if err := r.repo.Create(ctx, record, snapshot.History); err != nil {
		result.Action = ActionFailed
		result.Err = fmt.Errorf("create %s: %w", snapshot.Code, err)
		return result
	}
	result.Action = ActionCreated
	result.New = snapshot.Prices
	return result
}

func (r *Reconciler) update(ctx context.Context, profile Profile, snapshot domain.Snapshot, existing *domain.Instrument, result ReconcileResult) ReconcileResult {
	for _, field := range profile.PriceFields {
		old, ok := existing.Prices[field]
		if !ok || math.IsNaN(old) || math.IsInf(old, 0) {
			result.Action = ActionFailed
			result.Err = fmt.Errorf("%s field %q: %w", snapshot.Code, field, ErrCorruptState)
			return result
		}
	}

	changes := make(map[string]float64, len(profile.PriceFields))
	unchanged := true
	for _, field := range profile.PriceFields {
		changes[field] = PercentageChange(existing.Prices[field], snapshot.Prices[field])
		if existing.Prices[field] != snapshot.Prices[field] {
			unchanged = false
		}
	}

	now := r.now().UTC()
	update := domain.Update{
		Prices:      snapshot.Prices,
		Changes:     changes,
		LastUpdated: now,
		HistoryCap:  profile.HistoryCap,
	}
	// The history entry carries the previous prices, keeping history[0] the
	// value that was current immediately before this update.
	if !(profile.SkipUnchanged && unchanged) {
		update.History = &domain.HistoryEntry{
			RecordedAt: now,
			Prices:     existing.Prices,
		}
	}

	if err := r.repo.ApplyUpdate(ctx, profile.Domain, snapshot.Code, update); err != nil {
		result.Action = ActionFailed
		result.Err = fmt.Errorf("update %s: %w", snapshot.Code, err)
		return result
	}

	result.Action = ActionUpdated
	result.Old = existing.Prices
	result.New = snapshot.Prices
	return result
}

// PercentageChange returns (next-old)/old*100 rounded to four decimals, and 0
// when old is zero.
func PercentageChange(old, next float64) float64 {
	if old == 0 {
		return 0
	}
	change := (next - old) / old * 100
	return math.Round(change*10000) / 10000
}

func zeroChanges(fields []string) map[string]float64 {
	changes := make(map[string]float64, len(fields))
	for _, field := range fields {
		changes[field] = 0
	}
	return changes
}
