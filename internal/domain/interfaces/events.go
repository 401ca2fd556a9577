package interfaces

import (
	"context"
	"time"

	domain "main/internal/domain/entity/instruments"
)

// UpdateEvent notifies downstream consumers that an instrument was created or
// updated by an ingestion run.
type UpdateEvent struct {
	Domain    domain.Domain      `json:"domain"`
	Code      string             `json:"code"`
	Action    string             `json:"action"`
	OldPrices map[string]float64 `json:"old_prices,omitempty"`
	NewPrices map[string]float64 `json:"new_prices"`
	At        time.Time          `json:"at"`
}

// EventPublisher broadcasts update events. Publishing is best-effort; the
// domain tolerates lost notifications.
type EventPublisher interface {
	PublishUpdate(ctx context.Context, event UpdateEvent) error
	Close() error
}
