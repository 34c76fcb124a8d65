package llmcore

// EventType discriminates the ProviderEvent union emitted by a streaming
// adapter. Adapters translate their own SSE framing (Anthropic's
// content_block_start/delta/stop, OpenAI's delta.content/tool_calls) into
// this smaller, provider-agnostic set, which the orchestrator projects
// onto the outbound Responses-API event sequence.
type EventType string

const (
	EventTextDelta     EventType = "text_delta"
	EventToolCallStart EventType = "tool_call_start"
	EventToolCallDelta EventType = "tool_call_delta"
	EventToolCallDone  EventType = "tool_call_done"
	EventThinkingDelta EventType = "thinking_delta"
	EventThinkingDone  EventType = "thinking_done"
	EventMessageDone   EventType = "message_done"
)

// ProviderEvent is one normalized increment of a streaming model turn.
// Exactly the fields relevant to Type are populated. OutputIndex identifies
// which content block the event belongs to within the turn, matching the
// provider's own block indexing (Anthropic's content_block index, or a
// synthesized index for OpenAI-compatible backends which don't expose one
// directly).
type ProviderEvent struct {
	Type        EventType `json:"type"`
	OutputIndex int       `json:"output_index"`

	// EventTextDelta / EventThinkingDelta
	Delta string `json:"delta,omitempty"`

	// EventThinkingDone
	ThinkingSignature string `json:"thinking_signature,omitempty"`

	// EventToolCallStart / EventToolCallDelta / EventToolCallDone: ToolCallID
	// correlates the delta and done events with their start.
	// EventToolCallStart: ToolName.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`

	// EventToolCallDelta: raw partial-JSON fragment of the arguments.
	// EventToolCallDone: ArgsJSON is the full accumulated argument string,
	// not necessarily valid JSON (see assembler's repair pass).
	ArgsJSON string `json:"args_json,omitempty"`

	// EventMessageDone
	StopReason      StopReason `json:"stop_reason,omitempty"`
	Usage           Usage      `json:"usage,omitempty"`
	UnderlyingModel string     `json:"underlying_model,omitempty"`
}
