package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/respapi"
	"github.com/kestrelhq/respond/internal/store"
)

func newTestRequest(text string) *respapi.Request {
	return &respapi.Request{
		Model: "test-model",
		Input: respapi.RequestInput{Text: text},
	}
}

func TestRunSync_TextCompletion(t *testing.T) {
	adapter := &fakeAdapter{
		completeResult: &llmcore.CompletionResult{
			Message: llmcore.ProviderMessage{
				Role:    llmcore.RoleAssistant,
				Content: []llmcore.ContentPart{{Type: llmcore.ContentPartText, Text: "hello there"}},
			},
			StopReason: llmcore.StopEndTurn,
			Usage:      llmcore.Usage{InputTokens: 10, OutputTokens: 5},
		},
	}

	orch := New(newResolverWithAdapter(adapter), store.NewMemory(), 0, NewBackgroundPool(1))

	resp, err := orch.RunSync(context.Background(), newTestRequest("hi"))
	require.NoError(t, err)

	require.Equal(t, respapi.StatusCompleted, resp.Status)
	require.Len(t, resp.Output, 1)
	assert.Equal(t, respapi.OutputItemMessage, resp.Output[0].Type)
	assert.Equal(t, "hello there", resp.Output[0].Content[0].Text)
	assert.Equal(t, int64(15), resp.Usage.TotalTokens)

	stored, err := orch.Store.Load(context.Background(), resp.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, respapi.StatusCompleted, stored.Status)
}

func TestRunSync_ToolCallAndReasoningOrdering(t *testing.T) {
	adapter := &fakeAdapter{
		completeResult: &llmcore.CompletionResult{
			Message: llmcore.ProviderMessage{
				Role: llmcore.RoleAssistant,
				Content: []llmcore.ContentPart{
					{Type: llmcore.ContentPartThinking, Text: "thinking it over"},
					{Type: llmcore.ContentPartText, Text: "the answer is"},
					{Type: llmcore.ContentPartToolUse, ToolCallID: "call_1", ToolName: "get_weather", ToolArgsJSON: `{"city":"nyc"}`},
				},
			},
			StopReason: llmcore.StopToolUse,
		},
	}

	orch := New(newResolverWithAdapter(adapter), store.NewMemory(), 0, NewBackgroundPool(1))

	resp, err := orch.RunSync(context.Background(), newTestRequest("what's the weather"))
	require.NoError(t, err)

	require.Len(t, resp.Output, 3)
	assert.Equal(t, respapi.OutputItemReasoning, resp.Output[0].Type)
	assert.Equal(t, respapi.OutputItemMessage, resp.Output[1].Type)
	assert.Equal(t, respapi.OutputItemFunctionCall, resp.Output[2].Type)
	assert.Equal(t, "call_1", resp.Output[2].CallID)
	assert.Equal(t, "get_weather", resp.Output[2].Name)
}

func TestRunSync_JSONResponseToolSurfacedAsMessage(t *testing.T) {
	adapter := &fakeAdapter{
		completeResult: &llmcore.CompletionResult{
			Message: llmcore.ProviderMessage{
				Role: llmcore.RoleAssistant,
				Content: []llmcore.ContentPart{
					{Type: llmcore.ContentPartToolUse, ToolCallID: "call_x", ToolName: jsonResponseToolName, ToolArgsJSON: `{"ok":true}`},
				},
			},
			StopReason: llmcore.StopToolUse,
		},
	}

	orch := New(newResolverWithAdapter(adapter), store.NewMemory(), 0, NewBackgroundPool(1))

	resp, err := orch.RunSync(context.Background(), newTestRequest("give me json"))
	require.NoError(t, err)

	require.Len(t, resp.Output, 1)
	assert.Equal(t, respapi.OutputItemMessage, resp.Output[0].Type)
	assert.Equal(t, `{"ok":true}`, resp.Output[0].Content[0].Text)
}

func TestRunSync_ProviderErrorBecomesServerError(t *testing.T) {
	adapter := &fakeAdapter{completeErr: errors.New("upstream exploded")}
	orch := New(newResolverWithAdapter(adapter), store.NewMemory(), 0, NewBackgroundPool(1))

	_, err := orch.RunSync(context.Background(), newTestRequest("hi"))
	require.Error(t, err)
}

func TestRunSync_UnknownModelFailsBeforeProviderCall(t *testing.T) {
	resolver := llmcore.NewResolver()
	orch := New(resolver, store.NewMemory(), 0, NewBackgroundPool(1))

	_, err := orch.RunSync(context.Background(), newTestRequest("hi"))
	require.Error(t, err)
}

func TestRunSync_StoreFalseSkipsPersistence(t *testing.T) {
	adapter := &fakeAdapter{
		completeResult: &llmcore.CompletionResult{
			Message: llmcore.ProviderMessage{
				Role:    llmcore.RoleAssistant,
				Content: []llmcore.ContentPart{{Type: llmcore.ContentPartText, Text: "ephemeral"}},
			},
		},
	}

	orch := New(newResolverWithAdapter(adapter), store.NewMemory(), 0, NewBackgroundPool(1))

	req := newTestRequest("hi")
	noStore := false
	req.Store = &noStore

	resp, err := orch.RunSync(context.Background(), req)
	require.NoError(t, err)

	stored, err := orch.Store.Load(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestOrchestrator_GetAndDelete(t *testing.T) {
	adapter := &fakeAdapter{
		completeResult: &llmcore.CompletionResult{
			Message: llmcore.ProviderMessage{
				Role:    llmcore.RoleAssistant,
				Content: []llmcore.ContentPart{{Type: llmcore.ContentPartText, Text: "stored text"}},
			},
		},
	}

	orch := New(newResolverWithAdapter(adapter), store.NewMemory(), 0, NewBackgroundPool(1))

	created, err := orch.RunSync(context.Background(), newTestRequest("hi"))
	require.NoError(t, err)

	got, err := orch.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	deleted, err := orch.Delete(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = orch.Get(context.Background(), created.ID)
	require.Error(t, err)
}

func TestOrchestrator_Cancel(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Upsert(context.Background(), &respapi.StoredResponse{
		ID: "resp_cancel", Status: respapi.StatusInProgress, Store: true, CreatedAt: time.Now(),
	}))

	orch := New(newResolverWithAdapter(&fakeAdapter{}), st, 0, NewBackgroundPool(1))

	resp, err := orch.Cancel(context.Background(), "resp_cancel")
	require.NoError(t, err)
	assert.Equal(t, respapi.StatusCancelled, resp.Status)
}

func TestRunBackground_QueuesThenCompletes(t *testing.T) {
	done := make(chan *respapi.StoredResponse, 4)

	adapter := &fakeAdapter{
		completeResult: &llmcore.CompletionResult{
			Message: llmcore.ProviderMessage{
				Role:    llmcore.RoleAssistant,
				Content: []llmcore.ContentPart{{Type: llmcore.ContentPartText, Text: "done later"}},
			},
		},
	}

	inner := store.NewMemory()
	st := &signalingStore{Store: inner, onUpsert: func(row *respapi.StoredResponse) {
		if row.Status == respapi.StatusCompleted || row.Status == respapi.StatusFailed {
			done <- row
		}
	}}

	orch := New(newResolverWithAdapter(adapter), st, 0, NewBackgroundPool(1))

	req := newTestRequest("work on this")
	req.Background = true

	resp, err := orch.RunBackground(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, respapi.StatusInProgress, resp.Status)

	select {
	case row := <-done:
		assert.Equal(t, respapi.StatusCompleted, row.Status)
		assert.Equal(t, resp.ID, row.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("background task did not complete in time")
	}
}

func TestRunBackground_ProviderErrorMarksFailed(t *testing.T) {
	done := make(chan *respapi.StoredResponse, 4)

	adapter := &fakeAdapter{completeErr: errors.New("boom")}

	inner := store.NewMemory()
	st := &signalingStore{Store: inner, onUpsert: func(row *respapi.StoredResponse) {
		if row.Status == respapi.StatusCompleted || row.Status == respapi.StatusFailed {
			done <- row
		}
	}}

	orch := New(newResolverWithAdapter(adapter), st, 0, NewBackgroundPool(1))

	req := newTestRequest("work on this")
	req.Background = true

	resp, err := orch.RunBackground(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, respapi.StatusInProgress, resp.Status)

	select {
	case row := <-done:
		assert.Equal(t, respapi.StatusFailed, row.Status)
		require.NotNil(t, row.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("background task did not complete in time")
	}
}

func TestRunStream_EndToEndPersistsCompletedRow(t *testing.T) {
	adapter := &fakeAdapter{
		streamEvents: []*llmcore.ProviderEvent{
			{Type: llmcore.EventTextDelta, Delta: "streamed "},
			{Type: llmcore.EventTextDelta, Delta: "text"},
			{Type: llmcore.EventMessageDone, StopReason: llmcore.StopEndTurn, Usage: llmcore.Usage{InputTokens: 4, OutputTokens: 2}},
		},
	}

	st := store.NewMemory()
	orch := New(newResolverWithAdapter(adapter), st, 0, NewBackgroundPool(1))

	req := newTestRequest("hi")
	req.Stream = true

	stream, err := orch.RunStream(context.Background(), req)
	require.NoError(t, err)
	defer stream.Close()

	var last respapi.Event

	for stream.Next() {
		last = *stream.Current()
	}

	require.NoError(t, stream.Err())
	assert.Equal(t, respapi.EventCompleted, last.Type)
	assert.Equal(t, "streamed text", last.Response.Output[0].Content[0].Text)

	stored, err := st.Load(context.Background(), last.Response.ID)
	require.NoError(t, err)
	assert.Equal(t, respapi.StatusCompleted, stored.Status)
}

// S6: a continuation request chains off a prior stored response, replaying
// its output as input so the new turn's provider request carries the full
// history.
func TestRunStream_ContinuationReplaysPriorHistory(t *testing.T) {
	st := store.NewMemory()

	first := &respapi.StoredResponse{
		ID:    "resp_prior",
		Model: "test-model",
		Store: true,
		InputItems: []respapi.InputItem{{
			Type: respapi.InputItemMessage, Role: "user",
			Content: []respapi.ContentPart{{Type: "input_text", Text: "what is 2+2"}},
		}},
		OutputItems: []respapi.OutputItem{respapi.NewMessageItem("msg_prior", "completed", "4")},
		Status:      respapi.StatusCompleted,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, st.Upsert(context.Background(), first))

	adapter := &fakeAdapter{
		streamEvents: []*llmcore.ProviderEvent{
			{Type: llmcore.EventTextDelta, Delta: "and 2+2+1 is 5"},
			{Type: llmcore.EventMessageDone, StopReason: llmcore.StopEndTurn},
		},
	}

	orch := New(newResolverWithAdapter(adapter), st, 0, NewBackgroundPool(1))

	req := newTestRequest("now add one more")
	req.Stream = true
	req.PreviousResponseID = first.ID

	stream, err := orch.RunStream(context.Background(), req)
	require.NoError(t, err)
	defer stream.Close()

	for stream.Next() {
	}

	require.NoError(t, stream.Err())
	require.NotNil(t, adapter.lastRequest)

	assert.GreaterOrEqual(t, len(adapter.lastRequest.Messages), 3)
	assert.Equal(t, llmcore.RoleUser, adapter.lastRequest.Messages[0].Role)
	assert.Equal(t, llmcore.RoleAssistant, adapter.lastRequest.Messages[1].Role)
}

// signalingStore wraps a Store and notifies onUpsert after every successful
// Upsert, used to synchronize tests with the background pool's goroutine.
type signalingStore struct {
	store.Store
	onUpsert func(*respapi.StoredResponse)
}

func (s *signalingStore) Upsert(ctx context.Context, row *respapi.StoredResponse) error {
	if err := s.Store.Upsert(ctx, row); err != nil {
		return err
	}

	if s.onUpsert != nil {
		s.onUpsert(row)
	}

	return nil
}
