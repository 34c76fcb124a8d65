package respapi

import (
	"encoding/json"
	"fmt"
)

// InputItemType discriminates the InputItem tagged union.
type InputItemType string

const (
	InputItemMessage         InputItemType = "message"
	InputItemFunctionCall    InputItemType = "function_call"
	InputItemFunctionCallOut InputItemType = "function_call_output"
	InputItemReference       InputItemType = "item_reference"
)

// ContentPart is one part of a message's content array.
type ContentPart struct {
	Type  string `json:"type"` // input_text | output_text | input_image | text
	Text  string `json:"text,omitempty"`
	Image string `json:"image_url,omitempty"`
}

// InputItem is a tagged union over the shapes a client can submit as part
// of the `input` array, or that were persisted from a prior response's
// input/output items during conversation-history replay.
type InputItem struct {
	Type InputItemType `json:"type"`

	// message
	ID      string        `json:"id,omitempty"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`

	// function_call
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// function_call_output
	Output string `json:"output,omitempty"`

	// item_reference
	RefID string `json:"id_ref,omitempty"`
}

// UnmarshalJSON accepts a bare string content field (collapsed to a single
// input_text part) in addition to an array of ContentParts, matching the
// Responses API's permissive message shape.
func (i *InputItem) UnmarshalJSON(data []byte) error {
	type alias InputItem

	var raw struct {
		alias
		Content json.RawMessage `json:"content,omitempty"`
		ID      string          `json:"id,omitempty"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*i = InputItem(raw.alias)

	if raw.Type == InputItemReference {
		i.RefID = raw.ID
	}

	if len(raw.Content) == 0 {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw.Content, &text); err == nil {
		i.Content = []ContentPart{{Type: "input_text", Text: text}}
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(raw.Content, &parts); err != nil {
		return fmt.Errorf("unmarshal input item content: %w", err)
	}

	i.Content = parts

	return nil
}

// OutputItemType discriminates the OutputItem tagged union.
type OutputItemType string

const (
	OutputItemMessage      OutputItemType = "message"
	OutputItemFunctionCall OutputItemType = "function_call"
	OutputItemReasoning    OutputItemType = "reasoning"
)

type OutputTextPart struct {
	Type        string `json:"type"` // output_text
	Text        string `json:"text"`
	Annotations []any  `json:"annotations"`
}

type ReasoningSummary struct {
	Type string `json:"type"` // summary_text
	Text string `json:"text"`
}

// OutputItem is a tagged union over the three kinds of elements a
// response's output array can contain.
type OutputItem struct {
	Type   OutputItemType `json:"type"`
	ID     string         `json:"id"`
	Status string         `json:"status"`

	// message
	Role    string           `json:"role,omitempty"`
	Content []OutputTextPart `json:"content,omitempty"`

	// function_call
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// reasoning
	Summary          []ReasoningSummary `json:"summary,omitempty"`
	EncryptedContent *string            `json:"encrypted_content,omitempty"`
}

func NewMessageItem(id string, status string, text string) OutputItem {
	return OutputItem{
		Type:   OutputItemMessage,
		ID:     id,
		Status: status,
		Role:   "assistant",
		Content: []OutputTextPart{{
			Type:        "output_text",
			Text:        text,
			Annotations: []any{},
		}},
	}
}

func NewFunctionCallItem(id, callID, name, arguments, status string) OutputItem {
	return OutputItem{
		Type:      OutputItemFunctionCall,
		ID:        id,
		CallID:    callID,
		Name:      name,
		Arguments: arguments,
		Status:    status,
	}
}

func NewReasoningItem(id, text string) OutputItem {
	return OutputItem{
		Type:    OutputItemReasoning,
		ID:      id,
		Status:  "completed",
		Summary: []ReasoningSummary{{Type: "summary_text", Text: text}},
	}
}
