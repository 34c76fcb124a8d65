package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/respapi"
	"github.com/kestrelhq/respond/internal/store"
	"github.com/kestrelhq/respond/internal/streams"
)

func drainProjector(t *testing.T, p *projector) []respapi.Event {
	t.Helper()

	var out []respapi.Event
	for p.Next() {
		out = append(out, *p.Current())
	}

	require.NoError(t, p.Err())

	return out
}

func newRow(store bool) *respapi.StoredResponse {
	return &respapi.StoredResponse{ID: "resp_stream", Model: "test-model", Store: store, CreatedAt: time.Now()}
}

// S1: plain text streaming. Exactly one message item opens at output_index
// 0, deltas accumulate, and the stream ends with a single response.completed
// carrying the full text.
func TestProjector_TextStreaming(t *testing.T) {
	upstream := streams.SliceStream([]*llmcore.ProviderEvent{
		{Type: llmcore.EventTextDelta, Delta: "Hel"},
		{Type: llmcore.EventTextDelta, Delta: "lo"},
		{Type: llmcore.EventMessageDone, StopReason: llmcore.StopEndTurn, Usage: llmcore.Usage{InputTokens: 3, OutputTokens: 2}},
	})

	st := store.NewMemory()
	row := newRow(true)
	require.NoError(t, st.Upsert(context.Background(), row))

	p := newProjector(context.Background(), st, row, upstream, 0)
	events := drainProjector(t, p)

	require.GreaterOrEqual(t, len(events), 5)
	assert.Equal(t, respapi.EventInProgress, events[0].Type)
	assert.Equal(t, respapi.EventOutputItemAdded, events[1].Type)
	assert.Equal(t, 0, *events[1].OutputIndex)
	assert.Equal(t, respapi.EventContentPartAdd, events[2].Type)

	last := events[len(events)-1]
	assert.Equal(t, respapi.EventCompleted, last.Type)
	require.NotNil(t, last.Response)
	assert.Equal(t, respapi.StatusCompleted, last.Response.Status)
	require.Len(t, last.Response.Output, 1)
	assert.Equal(t, "Hello", last.Response.Output[0].Content[0].Text)

	assertMonotonicSequence(t, events)
	assertSingleCompletedOrFailed(t, events)

	stored, err := st.Load(context.Background(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, respapi.StatusCompleted, stored.Status)
}

// S2: a pure tool call never opens a message item; output_index 0 goes to
// the function_call.
func TestProjector_PureToolCall(t *testing.T) {
	upstream := streams.SliceStream([]*llmcore.ProviderEvent{
		{Type: llmcore.EventToolCallStart, ToolCallID: "call_1", ToolName: "get_weather"},
		{Type: llmcore.EventToolCallDelta, ToolCallID: "call_1", ArgsJSON: `{"city":`},
		{Type: llmcore.EventToolCallDelta, ToolCallID: "call_1", ArgsJSON: `"nyc"}`},
		{Type: llmcore.EventToolCallDone, ToolCallID: "call_1", ArgsJSON: `{"city":"nyc"}`},
		{Type: llmcore.EventMessageDone, StopReason: llmcore.StopToolUse},
	})

	st := store.NewMemory()
	row := newRow(true)
	require.NoError(t, st.Upsert(context.Background(), row))

	p := newProjector(context.Background(), st, row, upstream, 0)
	events := drainProjector(t, p)

	for _, ev := range events {
		if ev.Type == respapi.EventOutputItemAdded || ev.Type == respapi.EventOutputItemDone {
			assert.NotEqual(t, respapi.OutputItemMessage, ev.Item.Type, "no message item should open for a pure tool call")
		}
	}

	last := events[len(events)-1]
	require.Equal(t, respapi.EventCompleted, last.Type)
	require.Len(t, last.Response.Output, 1)
	assert.Equal(t, respapi.OutputItemFunctionCall, last.Response.Output[0].Type)
	assert.Equal(t, `{"city":"nyc"}`, last.Response.Output[0].Arguments)

	assertMonotonicSequence(t, events)
}

// S3: mixed text then tool call. Message occupies output_index 0, the tool
// call occupies output_index 1, in arrival order.
func TestProjector_MixedTextAndToolCall(t *testing.T) {
	upstream := streams.SliceStream([]*llmcore.ProviderEvent{
		{Type: llmcore.EventTextDelta, Delta: "Let me check. "},
		{Type: llmcore.EventToolCallStart, ToolCallID: "call_1", ToolName: "get_weather"},
		{Type: llmcore.EventToolCallDone, ToolCallID: "call_1", ArgsJSON: `{"city":"nyc"}`},
		{Type: llmcore.EventMessageDone, StopReason: llmcore.StopToolUse},
	})

	st := store.NewMemory()
	row := newRow(true)
	require.NoError(t, st.Upsert(context.Background(), row))

	p := newProjector(context.Background(), st, row, upstream, 0)
	events := drainProjector(t, p)

	last := events[len(events)-1]
	require.Equal(t, respapi.EventCompleted, last.Type)
	require.Len(t, last.Response.Output, 2)
	assert.Equal(t, respapi.OutputItemMessage, last.Response.Output[0].Type)
	assert.Equal(t, respapi.OutputItemFunctionCall, last.Response.Output[1].Type)

	assertMonotonicSequence(t, events)
}

// S4: the upstream ends on a cancellation, mid-message. The projector must
// mark the row incomplete/interrupted, preserve the partial text, and never
// emit response.completed or response.failed.
func TestProjector_MidStreamAbort(t *testing.T) {
	upstream := &abortingStream{
		emitted: []*llmcore.ProviderEvent{
			{Type: llmcore.EventTextDelta, Delta: "partial"},
		},
		cause: context.Canceled,
	}

	st := store.NewMemory()
	row := newRow(true)
	require.NoError(t, st.Upsert(context.Background(), row))

	p := newProjector(context.Background(), st, row, upstream, 0)
	events := drainProjector(t, p)

	for _, ev := range events {
		assert.NotEqual(t, respapi.EventCompleted, ev.Type)
		assert.NotEqual(t, respapi.EventFailed, ev.Type)
	}

	stored, err := st.Load(context.Background(), row.ID)
	require.NoError(t, err)
	require.Equal(t, respapi.StatusIncomplete, stored.Status)
	require.NotNil(t, stored.IncompleteDetails)
	assert.Equal(t, "interrupted", stored.IncompleteDetails.Reason)
	require.Len(t, stored.OutputItems, 1)
	assert.Equal(t, "partial", stored.OutputItems[0].Content[0].Text)

	assertMonotonicSequence(t, events)
}

// Structured-output trick: a __json_response__ tool call is surfaced to the
// client as a message, not a function_call item.
func TestProjector_JSONResponseToolSurfacedAsMessage(t *testing.T) {
	upstream := streams.SliceStream([]*llmcore.ProviderEvent{
		{Type: llmcore.EventToolCallStart, ToolCallID: "call_1", ToolName: jsonResponseToolName},
		{Type: llmcore.EventToolCallDelta, ToolCallID: "call_1", ArgsJSON: `{"ok":`},
		{Type: llmcore.EventToolCallDelta, ToolCallID: "call_1", ArgsJSON: `true}`},
		{Type: llmcore.EventToolCallDone, ToolCallID: "call_1", ArgsJSON: `{"ok":true}`},
		{Type: llmcore.EventMessageDone, StopReason: llmcore.StopToolUse},
	})

	st := store.NewMemory()
	row := newRow(true)
	require.NoError(t, st.Upsert(context.Background(), row))

	p := newProjector(context.Background(), st, row, upstream, 0)
	events := drainProjector(t, p)

	last := events[len(events)-1]
	require.Equal(t, respapi.EventCompleted, last.Type)
	require.Len(t, last.Response.Output, 1)
	assert.Equal(t, respapi.OutputItemMessage, last.Response.Output[0].Type)
	assert.Equal(t, `{"ok":true}`, last.Response.Output[0].Content[0].Text)
}

// Checkpoint debouncing: PartialUpdate is applied while in_progress and
// becomes a no-op once the terminal write has landed.
func TestProjector_CheckpointDebounce(t *testing.T) {
	upstream := streams.SliceStream([]*llmcore.ProviderEvent{
		{Type: llmcore.EventTextDelta, Delta: "hi"},
		{Type: llmcore.EventMessageDone, StopReason: llmcore.StopEndTurn},
	})

	st := store.NewMemory()
	row := newRow(true)
	require.NoError(t, st.Upsert(context.Background(), row))

	p := newProjector(context.Background(), st, row, upstream, time.Millisecond)
	drainProjector(t, p)

	time.Sleep(20 * time.Millisecond)

	applied, err := st.PartialUpdate(context.Background(), row.ID, []respapi.OutputItem{}, nil)
	require.NoError(t, err)
	assert.False(t, applied, "partial update must be a no-op once the row is terminal")
}

func assertMonotonicSequence(t *testing.T, events []respapi.Event) {
	t.Helper()

	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].SequenceNumber, events[i-1].SequenceNumber)
	}
}

func assertSingleCompletedOrFailed(t *testing.T, events []respapi.Event) {
	t.Helper()

	count := 0

	for _, ev := range events {
		if ev.Type == respapi.EventCompleted || ev.Type == respapi.EventFailed {
			count++
		}
	}

	assert.Equal(t, 1, count)
}
