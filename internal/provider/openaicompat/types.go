package openaicompat

import "encoding/json"

type wireRequest struct {
	Model           string              `json:"model"`
	Messages        []wireMessage       `json:"messages"`
	Temperature     *float64            `json:"temperature,omitempty"`
	TopP            *float64            `json:"top_p,omitempty"`
	MaxTokens       *int64              `json:"max_tokens,omitempty"`
	Stop            []string            `json:"stop,omitempty"`
	Stream          bool                `json:"stream,omitempty"`
	Tools           []wireTool          `json:"tools,omitempty"`
	ToolChoice      any                 `json:"tool_choice,omitempty"`
	ResponseFormat  *wireResponseFormat `json:"response_format,omitempty"`
	ReasoningEffort string              `json:"reasoning_effort,omitempty"`
}

type wireResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *wireJSONSchema `json:"json_schema,omitempty"`
}

type wireJSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict,omitempty"`
	Schema json.RawMessage `json:"schema"`
}

type wireMessage struct {
	Role       string          `json:"role"`
	Content    any             `json:"content,omitempty"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type wireContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireImageURL struct {
	URL string `json:"url"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireToolCallFunc `json:"function"`
}

type wireToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type wireResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage"`
}

type wireChoice struct {
	Index        int          `json:"index"`
	Message      wireRespMsg  `json:"message"`
	FinishReason *string      `json:"finish_reason"`
}

type wireRespMsg struct {
	Role             string         `json:"role"`
	Content          *string        `json:"content"`
	ReasoningContent *string        `json:"reasoning_content"`
	ToolCalls        []wireToolCall `json:"tool_calls"`
}

type wireUsage struct {
	PromptTokens            int64                    `json:"prompt_tokens"`
	CompletionTokens        int64                    `json:"completion_tokens"`
	PromptTokensDetails     *wirePromptTokenDetails  `json:"prompt_tokens_details"`
	CompletionTokensDetails *wireCompletionTokenInfo `json:"completion_tokens_details"`
}

type wirePromptTokenDetails struct {
	CachedTokens int64 `json:"cached_tokens"`
}

type wireCompletionTokenInfo struct {
	ReasoningTokens int64 `json:"reasoning_tokens"`
}

// wireStreamChunk is one "chat.completion.chunk" SSE frame.
type wireStreamChunk struct {
	ID      string            `json:"id"`
	Model   string            `json:"model"`
	Choices []wireStreamChoice `json:"choices"`
	Usage   *wireUsage        `json:"usage"`
}

type wireStreamChoice struct {
	Index        int            `json:"index"`
	Delta        wireStreamDelta `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

type wireStreamDelta struct {
	Role             *string              `json:"role"`
	Content          *string              `json:"content"`
	ReasoningContent *string              `json:"reasoning_content"`
	ToolCalls        []wireStreamToolCall `json:"tool_calls"`
}

type wireStreamToolCall struct {
	Index    int              `json:"index"`
	ID       *string          `json:"id"`
	Type     *string          `json:"type"`
	Function wireStreamToolFn `json:"function"`
}

type wireStreamToolFn struct {
	Name      *string `json:"name"`
	Arguments *string `json:"arguments"`
}

type wireError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
