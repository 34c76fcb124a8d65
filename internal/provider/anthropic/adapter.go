// Package anthropic adapts the normalized completion contract to the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/kestrelhq/respond/internal/httpclient"
	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/log"
	"github.com/kestrelhq/respond/internal/streams"
)

// Config holds the credentials and endpoint for one Anthropic deployment.
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

func (a *Adapter) Name() string { return "anthropic" }

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
		return nil, fmt.Errorf("decode anthropic response: %w", err)
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

	wireReq := toWireRequest(req)

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set("Anthropic-Version", "2023-06-01")

	return &httpclient.Request{
		Method:  http.MethodPost,
		URL:     strings.TrimSuffix(a.config.BaseURL, "/") + "/v1/messages",
		Headers: headers,
		Body:    body,
		Auth: &httpclient.AuthConfig{
			Type:      httpclient.AuthTypeAPIKey,
			APIKey:    a.config.APIKey,
			HeaderKey: "X-Api-Key",
		},
	}, nil
}

func (a *Adapter) translateError(err error) error {
	var httpErr *httpclient.Error
	if !asHTTPError(err, &httpErr) {
		return err
	}

	var wireErr wireError
	if jsonErr := json.Unmarshal(httpErr.Body, &wireErr); jsonErr == nil && wireErr.Error.Message != "" {
		return fmt.Errorf("anthropic error (%d): %s", httpErr.StatusCode, wireErr.Error.Message)
	}

	return httpErr
}

func asHTTPError(err error, target **httpclient.Error) bool {
	httpErr, ok := err.(*httpclient.Error)
	if !ok {
		return false
	}

	*target = httpErr

	return true
}

// eventStream turns a raw SSE decoder into normalized ProviderEvents,
// tracking open content blocks by index so tool-call argument fragments
// can be best-effort repaired at the closing content_block_stop.
type eventStream struct {
	ctx     context.Context
	decoder streams.Stream[*httpclient.StreamEvent]

	pending    []*llmcore.ProviderEvent
	blockTypes map[int]string
	toolIDs    map[int]string
	toolArgs   map[int]*strings.Builder

	lastStopReason llmcore.StopReason
	lastUsage      llmcore.Usage

	current *llmcore.ProviderEvent
	err     error
	done    bool
}

func newEventStream(ctx context.Context, decoder streams.Stream[*httpclient.StreamEvent]) *eventStream {
	return &eventStream{
		ctx:        ctx,
		decoder:    decoder,
		blockTypes: make(map[int]string),
		toolIDs:    make(map[int]string),
		toolArgs:   make(map[int]*strings.Builder),
	}
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

		var event wireStreamEvent
		if err := json.Unmarshal(raw.Data, &event); err != nil {
			continue
		}

		produced := s.handle(&event)
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

func (s *eventStream) handle(event *wireStreamEvent) []*llmcore.ProviderEvent {
	switch event.Type {
	case "content_block_start":
		if event.Index == nil || event.ContentBlock == nil {
			return nil
		}

		idx := *event.Index
		s.blockTypes[idx] = event.ContentBlock.Type

		if event.ContentBlock.Type == "tool_use" {
			s.toolArgs[idx] = &strings.Builder{}
			s.toolIDs[idx] = event.ContentBlock.ID
			return []*llmcore.ProviderEvent{{
				Type:        llmcore.EventToolCallStart,
				OutputIndex: idx,
				ToolCallID:  event.ContentBlock.ID,
				ToolName:    event.ContentBlock.Name,
			}}
		}

		return nil

	case "content_block_delta":
		if event.Index == nil || event.Delta == nil {
			return nil
		}

		idx := *event.Index

		switch {
		case event.Delta.Text != nil:
			return []*llmcore.ProviderEvent{{Type: llmcore.EventTextDelta, OutputIndex: idx, Delta: *event.Delta.Text}}
		case event.Delta.Thinking != nil:
			return []*llmcore.ProviderEvent{{Type: llmcore.EventThinkingDelta, OutputIndex: idx, Delta: *event.Delta.Thinking}}
		case event.Delta.PartialJSON != nil:
			if b, ok := s.toolArgs[idx]; ok {
				b.WriteString(*event.Delta.PartialJSON)
			}

			return []*llmcore.ProviderEvent{{Type: llmcore.EventToolCallDelta, OutputIndex: idx, ToolCallID: s.toolIDs[idx], ArgsJSON: *event.Delta.PartialJSON}}
		}

		return nil

	case "content_block_stop":
		if event.Index == nil {
			return nil
		}

		idx := *event.Index

		if s.blockTypes[idx] == "tool_use" {
			args := ""
			if b, ok := s.toolArgs[idx]; ok {
				args = b.String()
			}

			if !json.Valid([]byte(args)) {
				if repaired, err := jsonrepair.JSONRepair(args); err == nil {
					args = repaired
				} else {
					log.Warn(s.ctx, "tool call arguments failed repair", log.String("raw", args))
				}
			}

			return []*llmcore.ProviderEvent{{Type: llmcore.EventToolCallDone, OutputIndex: idx, ToolCallID: s.toolIDs[idx], ArgsJSON: args}}
		}

		if s.blockTypes[idx] == "thinking" {
			return []*llmcore.ProviderEvent{{Type: llmcore.EventThinkingDone, OutputIndex: idx}}
		}

		return nil

	case "message_delta":
		if event.Delta != nil && event.Delta.StopReason != nil {
			s.lastStopReason = stopReasonFromWire(*event.Delta.StopReason)
		}

		if event.Usage != nil {
			s.lastUsage = llmcore.Usage{
				InputTokens:       event.Usage.InputTokens,
				OutputTokens:      event.Usage.OutputTokens,
				CachedInputTokens: event.Usage.CacheReadInputTokens,
			}
		}

		return nil // message_stop carries the terminal event; message_delta only accumulates state

	case "message_stop":
		if s.lastStopReason == "" {
			s.lastStopReason = llmcore.StopEndTurn
		}

		return []*llmcore.ProviderEvent{{Type: llmcore.EventMessageDone, StopReason: s.lastStopReason, Usage: s.lastUsage}}

	default:
		return nil
	}
}

func (s *eventStream) Current() *llmcore.ProviderEvent { return s.current }
func (s *eventStream) Err() error                      { return s.err }
func (s *eventStream) Close() error                    { return s.decoder.Close() }
