// Package store persists StoredResponse rows behind a single interface
// with two implementations: a Postgres-backed gateway for production and
// an in-memory one for tests and development without DATABASE_URL set.
package store

import (
	"context"

	"github.com/kestrelhq/respond/internal/respapi"
)

// Store is the persistence gateway described in the orchestrator's
// component design: upsert-on-conflict writes, a status-guarded partial
// update for streaming checkpoints, and plain reads.
type Store interface {
	// Upsert inserts or fully overwrites a row regardless of its current
	// status. Used for the initial streaming/background row and every
	// terminal write.
	Upsert(ctx context.Context, row *respapi.StoredResponse) error

	// PartialUpdate writes OutputItems (and optionally Usage) only if the
	// row's current status is still in_progress; otherwise it is a no-op.
	// Returns whether the write was applied.
	PartialUpdate(ctx context.Context, id string, outputItems []respapi.OutputItem, usage *respapi.Usage) (bool, error)

	// Cancel transitions a queued/in_progress row to cancelled. Returns
	// apperror with KindConflict if the row isn't in a cancellable state,
	// KindNotFound if it doesn't exist.
	Cancel(ctx context.Context, id string) (*respapi.StoredResponse, error)

	Load(ctx context.Context, id string) (*respapi.StoredResponse, error)

	Delete(ctx context.Context, id string) (bool, error)

	// Close releases any underlying connection resources. A no-op for the
	// in-memory implementation.
	Close() error
}
