package interfaces

import (
	"context"

	"raceway/pkg/types"
)

// ResultStore is the append-only audit log of finished races. The engine
// writes to it at room teardown; the HTTP API reads recent rows from it.
// A nil store is valid and disables history recording.
type ResultStore interface {
	// RecordResults persists one room's final ranking in a single batch.
	RecordResults(ctx context.Context, roomID string, mapID int, rankings []types.RankEntry) error

	// ListRecentResults returns up to limit rows ordered by recording time,
	// newest first.
	ListRecentResults(ctx context.Context, limit int) ([]*types.RaceResult, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and releases the store.
	Close() error
}
