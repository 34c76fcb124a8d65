// Package respapi defines the Responses-API wire contract: requests,
// input/output item sum types, stored response rows, and the SSE event
// envelopes the orchestrator emits.
package respapi

import "encoding/json"

type Truncation string

const (
	TruncationAuto     Truncation = "auto"
	TruncationDisabled Truncation = "disabled"
)

type TextFormat struct {
	Type   string          `json:"type"` // text | json_object | json_schema
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
	Strict bool            `json:"strict,omitempty"`
}

type TextOptions struct {
	Format *TextFormat `json:"format,omitempty"`
}

type ReasoningOptions struct {
	Effort string `json:"effort,omitempty"` // low | medium | high
}

type ToolFunction struct {
	Type        string          `json:"type"` // "function" or a built-in name
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolChoice can be a bare string ("auto"|"required"|"none") or
// {"type":"function","name":...}; UnmarshalJSON handles both shapes.
type ToolChoice struct {
	Mode string `json:"-"`
	Name string `json:"-"`
}

func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Mode = s
		return nil
	}

	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}

	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	t.Mode = "named"
	t.Name = obj.Name

	return nil
}

func (t ToolChoice) MarshalJSON() ([]byte, error) {
	if t.Mode == "named" {
		return json.Marshal(struct {
			Type string `json:"type"`
			Name string `json:"name"`
		}{Type: "function", Name: t.Name})
	}

	return json.Marshal(t.Mode)
}

// Request is the body of POST /v1/responses.
type Request struct {
	Model              string            `json:"model"`
	Input              RequestInput      `json:"input"`
	Instructions       string            `json:"instructions,omitempty"`
	PreviousResponseID string            `json:"previous_response_id,omitempty"`
	Tools              []ToolFunction    `json:"tools,omitempty"`
	ToolChoice         *ToolChoice       `json:"tool_choice,omitempty"`
	Temperature        *float64          `json:"temperature,omitempty"`
	TopP               *float64          `json:"top_p,omitempty"`
	MaxOutputTokens    *int64            `json:"max_output_tokens,omitempty"`
	Stream             bool              `json:"stream,omitempty"`
	Store              *bool             `json:"store,omitempty"`
	Background         bool              `json:"background,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	Truncation         Truncation        `json:"truncation,omitempty"`
	ParallelToolCalls  *bool             `json:"parallel_tool_calls,omitempty"`
	Text               *TextOptions      `json:"text,omitempty"`
	Reasoning          *ReasoningOptions `json:"reasoning,omitempty"`
}

// StoreEnabled returns the effective store flag, defaulting to true.
func (r *Request) StoreEnabled() bool {
	if r.Store == nil {
		return true
	}

	return *r.Store
}

// RequestInput is either a bare string or an ordered list of InputItems.
type RequestInput struct {
	Text  string
	Items []InputItem
}

func (r *RequestInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Text = s
		return nil
	}

	var items []InputItem

	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	r.Items = items

	return nil
}

func (r RequestInput) MarshalJSON() ([]byte, error) {
	if r.Items == nil {
		return json.Marshal(r.Text)
	}

	return json.Marshal(r.Items)
}
