package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/respond/internal/httpclient"
	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/streams"
)

func rawEvent(t string, data string) *httpclient.StreamEvent {
	return &httpclient.StreamEvent{Type: t, Data: []byte(data)}
}

func TestEventStream_TextDeltasAndMessageDone(t *testing.T) {
	frames := []*httpclient.StreamEvent{
		rawEvent("message_start", `{"type":"message_start","message":{"id":"msg_1","model":"claude-sonnet-4","usage":{"input_tokens":10}}}`),
		rawEvent("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		rawEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`),
		rawEvent("content_block_stop", `{"type":"content_block_stop","index":0}`),
		rawEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":3}}`),
		rawEvent("message_stop", `{"type":"message_stop"}`),
	}

	es := newEventStream(context.Background(), streams.SliceStream(frames))

	var got []*llmcore.ProviderEvent

	for es.Next() {
		got = append(got, es.Current())
	}

	require.NoError(t, es.Err())
	require.Len(t, got, 2)
	assert.Equal(t, llmcore.EventTextDelta, got[0].Type)
	assert.Equal(t, "hi", got[0].Delta)
	assert.Equal(t, llmcore.EventMessageDone, got[1].Type)
	assert.Equal(t, llmcore.StopEndTurn, got[1].StopReason)
	assert.EqualValues(t, 3, got[1].Usage.OutputTokens)
}

func TestEventStream_ToolCallArgumentsRepaired(t *testing.T) {
	frames := []*httpclient.StreamEvent{
		rawEvent("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"call_1","name":"lookup"}}`),
		rawEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"q\":"}}`),
		rawEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"weather\""}}`),
		rawEvent("content_block_stop", `{"type":"content_block_stop","index":0}`),
		rawEvent("message_stop", `{"type":"message_stop"}`),
	}

	es := newEventStream(context.Background(), streams.SliceStream(frames))

	var got []*llmcore.ProviderEvent
	for es.Next() {
		got = append(got, es.Current())
	}

	require.NoError(t, es.Err())
	require.Len(t, got, 5)
	assert.Equal(t, llmcore.EventToolCallStart, got[0].Type)
	assert.Equal(t, "lookup", got[0].ToolName)
	assert.Equal(t, llmcore.EventToolCallDelta, got[1].Type)
	assert.Equal(t, llmcore.EventToolCallDone, got[3].Type)
	assert.JSONEq(t, `{"q":"weather"}`, got[3].ArgsJSON)
	assert.Equal(t, llmcore.EventMessageDone, got[4].Type)
}
