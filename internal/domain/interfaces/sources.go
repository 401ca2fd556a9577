package interfaces

import (
	"context"

	domain "main/internal/domain/entity/instruments"
)

// Source is one external fetch for one instrument. Fetch is a read-only
// operation with no side effects on the caller; an abandoned call (after a
// timeout) cannot corrupt shared state.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (domain.Snapshot, error)
}
