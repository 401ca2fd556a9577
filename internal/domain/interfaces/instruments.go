package interfaces

import (
	"context"
	"errors"

	domain "main/internal/domain/entity/instruments"
)

var (
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrInstrumentExists   = errors.New("instrument already exists")
)

// InstrumentsRepository is the persistent store consumed by the ingestion
// engine. ApplyUpdate must perform its mutation atomically: current prices,
// history prepend and history trim either all land or none do.
type InstrumentsRepository interface {
	FindByCode(ctx context.Context, d domain.Domain, code string) (*domain.Instrument, error)
	Create(ctx context.Context, instrument *domain.Instrument, history []domain.HistoryEntry) error
	ApplyUpdate(ctx context.Context, d domain.Domain, code string, update domain.Update) error
	History(ctx context.Context, d domain.Domain, code string, limit int) ([]domain.HistoryEntry, error)
	Ping(ctx context.Context) error
	Close()
}
