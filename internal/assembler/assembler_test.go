package assembler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/respapi"
)

type fakeLoader struct {
	rows map[string]*respapi.StoredResponse
}

func (f *fakeLoader) Load(_ context.Context, id string) (*respapi.StoredResponse, error) {
	return f.rows[id], nil
}

func textRequest(text string) *respapi.Request {
	return &respapi.Request{Model: "test-model", Input: respapi.RequestInput{Text: text}}
}

func TestAssemble_PlainTextInput(t *testing.T) {
	loader := &fakeLoader{rows: map[string]*respapi.StoredResponse{}}

	result, err := Assemble(context.Background(), loader, textRequest("hello"))
	require.NoError(t, err)

	require.Len(t, result.Messages, 1)
	assert.Equal(t, llmcore.RoleUser, result.Messages[0].Role)
	assert.Equal(t, "hello", result.Messages[0].Content[0].Text)
	assert.Empty(t, result.System)
}

func TestAssemble_InstructionsBecomeSystem(t *testing.T) {
	loader := &fakeLoader{rows: map[string]*respapi.StoredResponse{}}

	req := textRequest("hello")
	req.Instructions = "be terse"

	result, err := Assemble(context.Background(), loader, req)
	require.NoError(t, err)

	assert.Equal(t, "be terse", result.System)
}

func TestAssemble_PreviousResponseIDReplaysHistory(t *testing.T) {
	prior := &respapi.StoredResponse{
		ID:    "resp_1",
		Store: true,
		InputItems: []respapi.InputItem{{
			Type: respapi.InputItemMessage, Role: "user",
			Content: []respapi.ContentPart{{Type: "input_text", Text: "what is 2+2"}},
		}},
		OutputItems: []respapi.OutputItem{respapi.NewMessageItem("msg_1", "completed", "4")},
	}

	loader := &fakeLoader{rows: map[string]*respapi.StoredResponse{"resp_1": prior}}

	req := textRequest("and one more")
	req.PreviousResponseID = "resp_1"

	result, err := Assemble(context.Background(), loader, req)
	require.NoError(t, err)

	require.Len(t, result.Messages, 3)
	assert.Equal(t, llmcore.RoleUser, result.Messages[0].Role)
	assert.Equal(t, llmcore.RoleAssistant, result.Messages[1].Role)
	assert.Equal(t, llmcore.RoleUser, result.Messages[2].Role)
	assert.Equal(t, "and one more", result.Messages[2].Content[0].Text)

	require.Len(t, result.InputItems, 3)
}

func TestAssemble_PreviousResponseIDNotFound(t *testing.T) {
	loader := &fakeLoader{rows: map[string]*respapi.StoredResponse{}}

	req := textRequest("hi")
	req.PreviousResponseID = "resp_missing"

	_, err := Assemble(context.Background(), loader, req)
	require.Error(t, err)
}

func TestAssemble_PreviousResponseNotStoredIsRejected(t *testing.T) {
	prior := &respapi.StoredResponse{ID: "resp_1", Store: false}
	loader := &fakeLoader{rows: map[string]*respapi.StoredResponse{"resp_1": prior}}

	req := textRequest("hi")
	req.PreviousResponseID = "resp_1"

	_, err := Assemble(context.Background(), loader, req)
	require.Error(t, err)
}

func TestAssemble_ItemReferenceIsDropped(t *testing.T) {
	prior := &respapi.StoredResponse{
		ID:    "resp_1",
		Store: true,
		InputItems: []respapi.InputItem{{
			Type: respapi.InputItemMessage, ID: "msg_seed", Role: "user",
			Content: []respapi.ContentPart{{Type: "input_text", Text: "seed message"}},
		}},
	}

	loader := &fakeLoader{rows: map[string]*respapi.StoredResponse{"resp_1": prior}}

	req := &respapi.Request{
		Model:              "test-model",
		PreviousResponseID: "resp_1",
		Input: respapi.RequestInput{Items: []respapi.InputItem{
			{Type: respapi.InputItemReference, RefID: "msg_seed"},
			{Type: respapi.InputItemMessage, Role: "user", Content: []respapi.ContentPart{{Type: "input_text", Text: "new turn"}}},
		}},
	}

	result, err := Assemble(context.Background(), loader, req)
	require.NoError(t, err)

	// The reference item itself contributes nothing new; only the seed
	// message (already replayed) and the new turn appear.
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "seed message", result.Messages[0].Content[0].Text)
	assert.Equal(t, "new turn", result.Messages[1].Content[0].Text)
}

func TestAssemble_UnresolvedItemReferenceIsDroppedWithoutError(t *testing.T) {
	loader := &fakeLoader{rows: map[string]*respapi.StoredResponse{}}

	req := &respapi.Request{
		Model: "test-model",
		Input: respapi.RequestInput{Items: []respapi.InputItem{
			{Type: respapi.InputItemReference, RefID: "does_not_exist"},
		}},
	}

	result, err := Assemble(context.Background(), loader, req)
	require.NoError(t, err)
	assert.Empty(t, result.Messages)
}

func TestTranslateTools_RejectsBuiltinToolTypes(t *testing.T) {
	_, err := TranslateTools([]respapi.ToolFunction{{Type: "web_search_preview"}})
	require.Error(t, err)
}

func TestTranslateTools_PassesFunctionToolsThrough(t *testing.T) {
	tools, err := TranslateTools([]respapi.ToolFunction{{
		Type: "function", Name: "get_weather", Description: "look up weather",
		Parameters: json.RawMessage(`{"type":"object"}`),
	}})
	require.NoError(t, err)

	require.Len(t, tools, 1)
	assert.Equal(t, "get_weather", tools[0].Name)
	assert.JSONEq(t, `{"type":"object"}`, tools[0].ParametersJSON)
}

func TestTranslateToolChoice(t *testing.T) {
	assert.Nil(t, TranslateToolChoice(nil))

	assert.Equal(t, &llmcore.ToolChoice{Mode: llmcore.ToolChoiceAuto}, TranslateToolChoice(&respapi.ToolChoice{Mode: "auto"}))
	assert.Equal(t, &llmcore.ToolChoice{Mode: llmcore.ToolChoiceNone}, TranslateToolChoice(&respapi.ToolChoice{Mode: "none"}))
	assert.Equal(t, &llmcore.ToolChoice{Mode: llmcore.ToolChoiceRequired}, TranslateToolChoice(&respapi.ToolChoice{Mode: "required"}))
	assert.Equal(t,
		&llmcore.ToolChoice{Mode: llmcore.ToolChoiceNamed, Name: "get_weather"},
		TranslateToolChoice(&respapi.ToolChoice{Mode: "named", Name: "get_weather"}),
	)
}

func TestTranslateTextFormat(t *testing.T) {
	assert.Nil(t, TranslateTextFormat(nil))
	assert.Nil(t, TranslateTextFormat(&respapi.TextOptions{}))

	format := TranslateTextFormat(&respapi.TextOptions{Format: &respapi.TextFormat{
		Type: "json_schema", Name: "answer", Strict: true, Schema: json.RawMessage(`{"type":"object"}`),
	}})

	require.NotNil(t, format)
	assert.Equal(t, llmcore.TextFormatJSONSchema, format.Kind)
	assert.Equal(t, "answer", format.SchemaName)
	assert.True(t, format.Strict)
}

func TestReasoningEffort(t *testing.T) {
	assert.Empty(t, ReasoningEffort(nil))
	assert.Equal(t, "high", ReasoningEffort(&respapi.ReasoningOptions{Effort: "high"}))
}
