// Package openaicompat adapts the normalized completion contract to
// OpenAI-compatible chat-completions backends (OpenAI itself, and the
// many self-hosted/third-party servers that mirror its wire format).
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/kestrelhq/respond/internal/httpclient"
	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/log"
	"github.com/kestrelhq/respond/internal/streams"
)

func sortedOpenIndices(open map[int]bool) []int {
	indices := make([]int, 0, len(open))

	for idx := range open {
		indices = append(indices, idx)
	}

	sort.Ints(indices)

	return indices
}

type Config struct {
	BaseURL string
	APIKey  string
}

type Adapter struct {
	config Config
	client *httpclient.Client
}

func New(config Config, client *httpclient.Client) *Adapter {
	return &Adapter{config: config, client: client}
}

func (a *Adapter) Name() string { return "openai_compat" }

func (a *Adapter) Complete(ctx context.Context, req *llmcore.CompletionRequest) (*llmcore.CompletionResult, error) {
	httpReq, err := a.buildRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return nil, a.translateError(err)
	}

	var wireResp wireResponse
	if err := json.Unmarshal(resp.Body, &wireResp); err != nil {
		return nil, fmt.Errorf("decode chat completion response: %w", err)
	}

	return fromWireResponse(&wireResp), nil
}

func (a *Adapter) Stream(ctx context.Context, req *llmcore.CompletionRequest) (streams.Stream[*llmcore.ProviderEvent], error) {
	req.Stream = true

	httpReq, err := a.buildRequest(req)
	if err != nil {
		return nil, err
	}

	decoder, err := a.client.DoStream(ctx, httpReq)
	if err != nil {
		return nil, a.translateError(err)
	}

	return newEventStream(ctx, decoder), nil
}

func (a *Adapter) buildRequest(req *llmcore.CompletionRequest) (*httpclient.Request, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	body, err := json.Marshal(toWireRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal chat completion request: %w", err)
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")

	return &httpclient.Request{
		Method:  http.MethodPost,
		URL:     strings.TrimSuffix(a.config.BaseURL, "/") + "/chat/completions",
		Headers: headers,
		Body:    body,
		Auth: &httpclient.AuthConfig{
			Type:   httpclient.AuthTypeBearer,
			APIKey: a.config.APIKey,
		},
	}, nil
}

func (a *Adapter) translateError(err error) error {
	httpErr, ok := err.(*httpclient.Error)
	if !ok {
		return err
	}

	var wireErr wireError
	if jsonErr := json.Unmarshal(httpErr.Body, &wireErr); jsonErr == nil && wireErr.Error.Message != "" {
		return fmt.Errorf("chat completion error (%d): %s", httpErr.StatusCode, wireErr.Error.Message)
	}

	return httpErr
}

// eventStream projects "chat.completion.chunk" SSE frames onto
// ProviderEvents. Unlike Anthropic's explicit content_block indices, tool
// calls here are keyed by delta.tool_calls[].index, and a single text
// content stream occupies output index 0.
type eventStream struct {
	ctx     context.Context
	decoder streams.Stream[*httpclient.StreamEvent]

	toolCallIDs map[int]string
	toolArgs    map[int]*strings.Builder
	toolOpen    map[int]bool
	textOpen    bool
	thinkOpen   bool

	pending []*llmcore.ProviderEvent
	current *llmcore.ProviderEvent
	err     error
	done    bool
}

func newEventStream(ctx context.Context, decoder streams.Stream[*httpclient.StreamEvent]) *eventStream {
	return &eventStream{
		ctx:         ctx,
		decoder:     decoder,
		toolCallIDs: make(map[int]string),
		toolArgs:    make(map[int]*strings.Builder),
		toolOpen:    make(map[int]bool),
	}
}

// toolOutputIndex reserves output indices after 0 (text) and 1 (thinking)
// for tool calls, since a chat-completions backend never declares block
// indices itself. The orchestrator does not read these indices; it assigns
// its own output indices and correlates tool events by call id.
func toolOutputIndex(toolCallIndex int) int {
	return toolCallIndex + 2
}

func (s *eventStream) Next() bool {
	if len(s.pending) > 0 {
		s.current, s.pending = s.pending[0], s.pending[1:]
		return true
	}

	if s.done || s.err != nil {
		return false
	}

	for s.decoder.Next() {
		raw := s.decoder.Current()
		if raw.Data == nil || string(raw.Data) == "[DONE]" {
			continue
		}

		var chunk wireStreamChunk
		if err := json.Unmarshal(raw.Data, &chunk); err != nil {
			continue
		}

		produced := s.handle(&chunk)
		if len(produced) == 0 {
			continue
		}

		s.current, s.pending = produced[0], produced[1:]

		return true
	}

	if err := s.decoder.Err(); err != nil {
		s.err = err
	}

	s.done = true

	return false
}

func (s *eventStream) handle(chunk *wireStreamChunk) []*llmcore.ProviderEvent {
	if len(chunk.Choices) == 0 {
		return nil
	}

	choice := chunk.Choices[0]

	var out []*llmcore.ProviderEvent

	if choice.Delta.ReasoningContent != nil && *choice.Delta.ReasoningContent != "" {
		s.thinkOpen = true
		out = append(out, &llmcore.ProviderEvent{Type: llmcore.EventThinkingDelta, OutputIndex: 1, Delta: *choice.Delta.ReasoningContent})
	}

	if choice.Delta.Content != nil && *choice.Delta.Content != "" {
		s.textOpen = true
		out = append(out, &llmcore.ProviderEvent{Type: llmcore.EventTextDelta, OutputIndex: 0, Delta: *choice.Delta.Content})
	}

	for _, tc := range choice.Delta.ToolCalls {
		idx := toolOutputIndex(tc.Index)

		if !s.toolOpen[idx] {
			s.toolOpen[idx] = true
			s.toolArgs[idx] = &strings.Builder{}

			var id, name string
			if tc.ID != nil {
				id = *tc.ID
			}

			if tc.Function.Name != nil {
				name = *tc.Function.Name
			}

			s.toolCallIDs[idx] = id
			out = append(out, &llmcore.ProviderEvent{Type: llmcore.EventToolCallStart, OutputIndex: idx, ToolCallID: id, ToolName: name})
		}

		if tc.Function.Arguments != nil && *tc.Function.Arguments != "" {
			s.toolArgs[idx].WriteString(*tc.Function.Arguments)
			out = append(out, &llmcore.ProviderEvent{Type: llmcore.EventToolCallDelta, OutputIndex: idx, ToolCallID: s.toolCallIDs[idx], ArgsJSON: *tc.Function.Arguments})
		}
	}

	if choice.FinishReason != nil {
		if s.thinkOpen {
			out = append(out, &llmcore.ProviderEvent{Type: llmcore.EventThinkingDone, OutputIndex: 1})
		}

		for _, idx := range sortedOpenIndices(s.toolOpen) {
			args := s.toolArgs[idx].String()
			if !json.Valid([]byte(args)) {
				if repaired, err := jsonrepair.JSONRepair(args); err == nil {
					args = repaired
				} else {
					log.Warn(s.ctx, "tool call arguments failed repair", log.String("raw", args))
				}
			}

			out = append(out, &llmcore.ProviderEvent{Type: llmcore.EventToolCallDone, OutputIndex: idx, ToolCallID: s.toolCallIDs[idx], ArgsJSON: args})
		}

		done := &llmcore.ProviderEvent{Type: llmcore.EventMessageDone, StopReason: stopReasonFromWire(choice.FinishReason), UnderlyingModel: chunk.Model}
		if chunk.Usage != nil {
			done.Usage = llmcore.Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
		}

		out = append(out, done)
	}

	return out
}

func (s *eventStream) Current() *llmcore.ProviderEvent { return s.current }
func (s *eventStream) Err() error                      { return s.err }
func (s *eventStream) Close() error                    { return s.decoder.Close() }
