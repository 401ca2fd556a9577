package interfaces

import "context"

// InvalidationCache is the key/value layer the engine invalidates after
// successful mutations. Implementations must treat unavailability as a no-op:
// a failed invalidation degrades to stale reads, never to ingestion failure.
type InvalidationCache interface {
	DeleteByPattern(ctx context.Context, pattern string) error
	Close() error
}
