package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/api/middleware"
	"github.com/kestrelhq/respond/internal/apperror"
	"github.com/kestrelhq/respond/internal/log"
	"github.com/kestrelhq/respond/internal/orchestrator"
	"github.com/kestrelhq/respond/internal/respapi"
)

// ChatCompletionsHandlers implements an OpenAI Chat-Completions
// compatibility shim: pure format translation in front of the same
// orchestrator core the native /v1/responses surface drives. Unlike
// Responses, chat completions are stateless — there is no
// previous_response_id chaining, so every request folds its own full
// message history into a one-shot respapi.Request.
type ChatCompletionsHandlers struct {
	Orchestrator *orchestrator.Orchestrator
}

func NewChatCompletionsHandlers(orch *orchestrator.Orchestrator) *ChatCompletionsHandlers {
	return &ChatCompletionsHandlers{Orchestrator: orch}
}

type chatRequest struct {
	Model           string           `json:"model"`
	Messages        []chatMessage    `json:"messages"`
	Temperature     *float64         `json:"temperature,omitempty"`
	TopP            *float64         `json:"top_p,omitempty"`
	MaxTokens       *int64           `json:"max_tokens,omitempty"`
	Stream          bool             `json:"stream,omitempty"`
	Tools           []chatTool       `json:"tools,omitempty"`
	ToolChoice      json.RawMessage  `json:"tool_choice,omitempty"`
	ResponseFormat  *chatRespFormat  `json:"response_format,omitempty"`
	ReasoningEffort string           `json:"reasoning_effort,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters,omitempty"`
	} `json:"function"`
}

type chatRespFormat struct {
	Type       string `json:"type"`
	JSONSchema *struct {
		Name   string          `json:"name"`
		Strict bool            `json:"strict,omitempty"`
		Schema json.RawMessage `json:"schema"`
	} `json:"json_schema,omitempty"`
}

func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}

	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}

	var out string
	for _, p := range parts {
		out += p.Text
	}

	return out
}

// toRequest folds the stateless chat history into the same InputItem
// shape the Responses assembler consumes, so the one orchestrator core
// serves both surfaces.
func (h *ChatCompletionsHandlers) toRequest(req *chatRequest) *respapi.Request {
	out := &respapi.Request{Model: req.Model, Stream: req.Stream, Temperature: req.Temperature, TopP: req.TopP, MaxOutputTokens: req.MaxTokens}

	if req.ReasoningEffort != "" {
		out.Reasoning = &respapi.ReasoningOptions{Effort: req.ReasoningEffort}
	}

	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_schema" && req.ResponseFormat.JSONSchema != nil {
		out.Text = &respapi.TextOptions{Format: &respapi.TextFormat{
			Type: "json_schema", Name: req.ResponseFormat.JSONSchema.Name,
			Strict: req.ResponseFormat.JSONSchema.Strict, Schema: req.ResponseFormat.JSONSchema.Schema,
		}}
	} else if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		out.Text = &respapi.TextOptions{Format: &respapi.TextFormat{Type: "json_object"}}
	}

	for _, t := range req.Tools {
		if t.Type != "function" {
			continue
		}

		out.Tools = append(out.Tools, respapi.ToolFunction{
			Type: "function", Name: t.Function.Name, Description: t.Function.Description, Parameters: t.Function.Parameters,
		})
	}

	var items []respapi.InputItem

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			out.Instructions = messageText(m.Content)
		case "tool":
			items = append(items, respapi.InputItem{
				Type: respapi.InputItemFunctionCallOut, CallID: m.ToolCallID, Output: messageText(m.Content),
			})
		case "assistant":
			if text := messageText(m.Content); text != "" {
				items = append(items, respapi.InputItem{
					Type: respapi.InputItemMessage, Role: "assistant",
					Content: []respapi.ContentPart{{Type: "output_text", Text: text}},
				})
			}

			for _, tc := range m.ToolCalls {
				items = append(items, respapi.InputItem{
					Type: respapi.InputItemFunctionCall, CallID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments,
				})
			}
		default:
			items = append(items, respapi.InputItem{
				Type: respapi.InputItemMessage, Role: "user",
				Content: []respapi.ContentPart{{Type: "input_text", Text: messageText(m.Content)}},
			})
		}
	}

	out.Input = respapi.RequestInput{Items: items}

	return out
}

func outputText(resp *respapi.Response) string {
	var text string
	for _, item := range resp.Output {
		if item.Type != respapi.OutputItemMessage {
			continue
		}

		for _, part := range item.Content {
			text += part.Text
		}
	}

	return text
}

func outputToolCalls(resp *respapi.Response) []chatToolCall {
	var calls []chatToolCall

	for _, item := range resp.Output {
		if item.Type != respapi.OutputItemFunctionCall {
			continue
		}

		call := chatToolCall{ID: item.CallID, Type: "function"}
		call.Function.Name = item.Name
		call.Function.Arguments = item.Arguments
		calls = append(calls, call)
	}

	return calls
}

func (h *ChatCompletionsHandlers) Create(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, apperror.Newf(apperror.KindInvalidRequest, "invalid request body: %v", err))
		return
	}

	respapiReq := h.toRequest(&req)
	ctx := c.Request.Context()

	if req.Stream {
		stream, err := h.Orchestrator.RunStream(ctx, respapiReq)
		if err != nil {
			h.abort(c, err)
			return
		}

		defer func() {
			if err := stream.Close(); err != nil {
				log.Warn(ctx, "close chat completion stream", log.Cause(err))
			}
		}()

		writeChatCompletionStream(c, req.Model, stream)

		return
	}

	resp, err := h.Orchestrator.RunSync(ctx, respapiReq)
	if err != nil {
		h.abort(c, err)
		return
	}

	finishReason := "stop"
	toolCalls := outputToolCalls(resp)

	if len(toolCalls) > 0 {
		finishReason = "tool_calls"
	}

	body := gin.H{
		"id":      resp.ID,
		"object":  "chat.completion",
		"model":   resp.Model,
		"choices": []gin.H{{
			"index": 0,
			"message": gin.H{
				"role":       "assistant",
				"content":    outputText(resp),
				"tool_calls": nonEmptyToolCalls(toolCalls),
			},
			"finish_reason": finishReason,
		}},
	}

	if resp.Usage != nil {
		body["usage"] = gin.H{
			"prompt_tokens":     resp.Usage.InputTokens,
			"completion_tokens": resp.Usage.OutputTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		}
	}

	c.JSON(http.StatusOK, body)
}

func nonEmptyToolCalls(calls []chatToolCall) []chatToolCall {
	if len(calls) == 0 {
		return nil
	}

	return calls
}

func (h *ChatCompletionsHandlers) abort(c *gin.Context, err error) {
	appErr := apperror.AsAppError(err)
	middleware.AbortWithError(c, appErr.StatusCode(), appErr)
}
