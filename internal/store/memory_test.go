package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/respond/internal/respapi"
)

func TestMemory_PartialUpdateNoOpAfterTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.Upsert(ctx, &respapi.StoredResponse{
		ID: "resp_1", Status: respapi.StatusInProgress, Store: true, CreatedAt: time.Now(),
	}))

	applied, err := s.PartialUpdate(ctx, "resp_1", []respapi.OutputItem{{ID: "msg_1"}}, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	require.NoError(t, s.Upsert(ctx, &respapi.StoredResponse{
		ID: "resp_1", Status: respapi.StatusCompleted, Store: true, CreatedAt: time.Now(),
	}))

	applied, err = s.PartialUpdate(ctx, "resp_1", []respapi.OutputItem{{ID: "msg_2"}}, nil)
	require.NoError(t, err)
	assert.False(t, applied)

	row, err := s.Load(ctx, "resp_1")
	require.NoError(t, err)
	require.Len(t, row.OutputItems, 0)
}

func TestMemory_CancelRejectsTerminalRows(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.Upsert(ctx, &respapi.StoredResponse{
		ID: "resp_2", Status: respapi.StatusCompleted, Store: true, CreatedAt: time.Now(),
	}))

	_, err := s.Cancel(ctx, "resp_2")
	require.Error(t, err)
}

func TestMemory_CancelUnknownReturnsNotFound(t *testing.T) {
	s := NewMemory()

	_, err := s.Cancel(context.Background(), "resp_missing")
	require.Error(t, err)
}
