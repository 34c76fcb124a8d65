package store

import (
	"context"
	"sync"
	"time"

	"github.com/kestrelhq/respond/internal/apperror"
	"github.com/kestrelhq/respond/internal/respapi"
)

// Memory is a mutex-guarded in-process Store, used for local development
// and tests that don't want a real database.
type Memory struct {
	mu   sync.Mutex
	rows map[string]*respapi.StoredResponse
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]*respapi.StoredResponse)}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Upsert(ctx context.Context, row *respapi.StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *row
	m.rows[row.ID] = &clone

	return nil
}

func (m *Memory) PartialUpdate(ctx context.Context, id string, outputItems []respapi.OutputItem, usage *respapi.Usage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok || row.Status != respapi.StatusInProgress {
		return false, nil
	}

	row.OutputItems = outputItems
	if usage != nil {
		row.Usage = usage
	}

	return true, nil
}

func (m *Memory) Cancel(ctx context.Context, id string) (*respapi.StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return nil, apperror.Newf(apperror.KindNotFound, "response %q not found", id)
	}

	if !row.Store {
		return nil, apperror.Newf(apperror.KindConflict, "response %q was not stored", id)
	}

	if row.Status != respapi.StatusQueued && row.Status != respapi.StatusInProgress {
		return nil, apperror.Newf(apperror.KindConflict, "response %q is not cancellable in status %q", id, row.Status)
	}

	now := time.Now()
	row.Status = respapi.StatusCancelled
	row.CancelledAt = &now

	clone := *row

	return &clone, nil
}

func (m *Memory) Load(ctx context.Context, id string) (*respapi.StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}

	clone := *row

	return &clone, nil
}

func (m *Memory) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.rows[id]
	delete(m.rows, id)

	return ok, nil
}
