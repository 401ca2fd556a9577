package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "main/internal/domain/entity/instruments"
	"main/internal/domain/interfaces"
)

type memoryRepo struct {
	mu          sync.Mutex
	instruments map[string]*domain.Instrument
	history     map[string][]domain.HistoryEntry
	pingErr     error
	findErr     error
	createErr   error
	updateErr   error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		instruments: make(map[string]*domain.Instrument),
		history:     make(map[string][]domain.HistoryEntry),
	}
}

func repoKey(d domain.Domain, code string) string {
	return d.String() + "/" + code
}

func (r *memoryRepo) FindByCode(_ context.Context, d domain.Domain, code string) (*domain.Instrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	record, ok := r.instruments[repoKey(d, code)]
	if !ok {
		return nil, interfaces.ErrInstrumentNotFound
	}
	clone := *record
	clone.Prices = clonePrices(record.Prices)
	clone.Changes = clonePrices(record.Changes)
	return &clone, nil
}

func (r *memoryRepo) Create(_ context.Context, instrument *domain.Instrument, history []domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	key := repoKey(instrument.Domain, instrument.Code)
	if _, ok := r.instruments[key]; ok {
		return interfaces.ErrInstrumentExists
	}
	clone := *instrument
	r.instruments[key] = &clone
	r.history[key] = append([]domain.HistoryEntry(nil), history...)
	return nil
}

func (r *memoryRepo) ApplyUpdate(_ context.Context, d domain.Domain, code string, update domain.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	key := repoKey(d, code)
	record, ok := r.instruments[key]
	if !ok {
		return interfaces.ErrInstrumentNotFound
	}
	record.Prices = clonePrices(update.Prices)
	record.Changes = clonePrices(update.Changes)
	record.LastUpdated = update.LastUpdated
	if update.History != nil {
		r.history[key] = append([]domain.HistoryEntry{*update.History}, r.history[key]...)
	}
	if update.HistoryCap > 0 && len(r.history[key]) > update.HistoryCap {
		r.history[key] = r.history[key][:update.HistoryCap]
	}
	return nil
}

func (r *memoryRepo) History(_ context.Context, d domain.Domain, code string, limit int) ([]domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.history[repoKey(d, code)]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return append([]domain.HistoryEntry(nil), entries...), nil
}

func (r *memoryRepo) Ping(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pingErr
}

func (r *memoryRepo) Close() {}

func clonePrices(prices map[string]float64) map[string]float64 {
	clone := make(map[string]float64, len(prices))
	for field, value := range prices {
		clone[field] = value
	}
	return clone
}

type stubSource struct {
	name  string
	fetch func(ctx context.Context) (domain.Snapshot, error)

	mu    sync.Mutex
	calls int
}

func (s *stubSource) Name() string {
	return s.name
}

func (s *stubSource) Fetch(ctx context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fetch(ctx)
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func priceSource(name, code string, price float64) *stubSource {
	return &stubSource{
		name: name,
		fetch: func(context.Context) (domain.Snapshot, error) {
			return domain.Snapshot{
				Domain: domain.DomainForex,
				Code:   code,
				Name:   code,
				Prices: map[string]float64{domain.FieldPrice: price},
			}, nil
		},
	}
}

func failingSource(name string, err error) *stubSource {
	return &stubSource{
		name: name,
		fetch: func(context.Context) (domain.Snapshot, error) {
			return domain.Snapshot{}, err
		},
	}
}

func slowSource(name, code string, delay time.Duration) *stubSource {
	return &stubSource{
		name: name,
		fetch: func(ctx context.Context) (domain.Snapshot, error) {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return domain.Snapshot{}, ctx.Err()
			}
			return domain.Snapshot{
				Code:   code,
				Prices: map[string]float64{domain.FieldPrice: 1},
			}, nil
		},
	}
}

type recordingCache struct {
	mu       sync.Mutex
	patterns []string
	err      error
}

func (c *recordingCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = append(c.patterns, pattern)
	return c.err
}

func (c *recordingCache) Close() error {
	return nil
}

func (c *recordingCache) deleted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.patterns...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []interfaces.UpdateEvent
	err    error
}

func (p *recordingPublisher) PublishUpdate(_ context.Context, event interfaces.UpdateEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) published() []interfaces.UpdateEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]interfaces.UpdateEvent(nil), p.events...)
}

func forexProfile(sources ...SourceSpec) Profile {
	return Profile{
		Domain:      domain.DomainForex,
		CronSpec:    "0 * * * *",
		Gate:        AlwaysOpen(),
		PriceFields: []string{domain.FieldPrice},
		HistoryCap:  defaultHistoryCap,
		Sources:     sources,
	}
}

var errUpstream = fmt.Errorf("upstream unavailable")
