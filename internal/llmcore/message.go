// Package llmcore defines the normalized message and event contract that
// sits between the conversation assembler and the provider adapters.
// Every backend (Anthropic Messages, OpenAI-compatible chat completions)
// is translated into this shape before the orchestrator ever sees it.
package llmcore

// Role identifies the speaker of a ProviderMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ProviderMessage is one turn of a conversation in the shape every adapter
// converts to and from on the way to its own wire format.
type ProviderMessage struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPartType discriminates the ContentPart union.
type ContentPartType string

const (
	ContentPartText       ContentPartType = "text"
	ContentPartImage      ContentPartType = "image"
	ContentPartToolUse    ContentPartType = "tool_use"
	ContentPartToolResult ContentPartType = "tool_result"
	ContentPartThinking   ContentPartType = "thinking"
)

// ContentPart is a tagged union over the content kinds a message can carry.
// Exactly the fields relevant to Type are populated.
type ContentPart struct {
	Type ContentPartType `json:"type"`

	// Text holds the payload for ContentPartText and ContentPartThinking.
	Text string `json:"text,omitempty"`

	// ThinkingSignature carries an opaque provider signature attached to a
	// thinking block, round-tripped verbatim when the provider requires it
	// (Anthropic's extended-thinking signature).
	ThinkingSignature string `json:"thinking_signature,omitempty"`

	// Image fields, ContentPartImage only.
	ImageURL  string `json:"image_url,omitempty"`
	ImageData string `json:"image_data,omitempty"` // base64, mutually exclusive with ImageURL
	ImageMIME string `json:"image_mime,omitempty"`

	// Tool-use fields, ContentPartToolUse only. ToolCallID correlates with
	// a later ContentPartToolResult.
	ToolCallID   string `json:"tool_call_id,omitempty"`
	ToolName     string `json:"tool_name,omitempty"`
	ToolArgsJSON string `json:"tool_args_json,omitempty"`

	// Tool-result fields, ContentPartToolResult only.
	ToolResultForID string `json:"tool_result_for_id,omitempty"`
	ToolResultText  string `json:"tool_result_text,omitempty"`
	ToolResultError bool   `json:"tool_result_error,omitempty"`
}

// Usage reports token accounting for a single model turn.
type Usage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CachedInputTokens int64 `json:"cached_input_tokens,omitempty"`
	ReasoningTokens  int64 `json:"reasoning_tokens,omitempty"`
}

// ToolDefinition describes a callable tool offered to the model.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParametersJSON string `json:"parameters_json"` // raw JSON Schema
}

// ToolChoiceMode controls how a model is steered toward tool use.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceNamed    ToolChoiceMode = "named"
)

type ToolChoice struct {
	Mode ToolChoiceMode `json:"mode"`
	Name string         `json:"name,omitempty"` // ToolChoiceNamed only
}

// TextFormat requests a constrained output shape from the model.
type TextFormatKind string

const (
	TextFormatText       TextFormatKind = "text"
	TextFormatJSONObject TextFormatKind = "json_object"
	TextFormatJSONSchema TextFormatKind = "json_schema"
)

type TextFormat struct {
	Kind       TextFormatKind `json:"kind"`
	SchemaName string         `json:"schema_name,omitempty"`
	SchemaJSON string         `json:"schema_json,omitempty"`
	Strict     bool           `json:"strict,omitempty"`
}

// CompletionRequest is the normalized request the orchestrator hands to a
// ProviderAdapter. It carries no provider-specific fields; those are
// resolved inside the adapter from its own Config.
type CompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []ProviderMessage `json:"messages"`
	Tools       []ToolDefinition  `json:"tools,omitempty"`
	ToolChoice  *ToolChoice       `json:"tool_choice,omitempty"`
	TextFormat  *TextFormat       `json:"text_format,omitempty"`
	MaxTokens   *int64            `json:"max_tokens,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Stream      bool              `json:"stream"`

	// ReasoningEffort is a provider-agnostic hint ("low"/"medium"/"high")
	// that adapters map onto their own thinking-budget knob.
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
}

// StopReason normalizes why a model turn ended.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopStop      StopReason = "stop"
	StopCancelled StopReason = "cancelled"
	StopError     StopReason = "error"
)

// CompletionResult is the fully materialized (non-streaming) model turn.
type CompletionResult struct {
	Message    ProviderMessage
	StopReason StopReason
	Usage      Usage
	// UnderlyingModel is the model string the upstream actually reports,
	// which can differ from the requested alias.
	UnderlyingModel string
}
