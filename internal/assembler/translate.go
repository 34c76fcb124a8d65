package assembler

import (
	"github.com/kestrelhq/respond/internal/apperror"
	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/respapi"
)

// builtinToolTypes names the Responses API tool kinds this gateway has no
// execution engine for; requests naming one fail before a provider is ever
// called.
var builtinToolTypes = map[string]bool{
	"web_search_preview":   true,
	"file_search":          true,
	"code_interpreter":     true,
	"image_generation":     true,
	"computer_use_preview": true,
}

// TranslateTools forwards only function-typed tools to the provider.
// Built-in tool types this gateway doesn't execute fail the whole request
// up front rather than being silently dropped.
func TranslateTools(tools []respapi.ToolFunction) ([]llmcore.ToolDefinition, error) {
	out := make([]llmcore.ToolDefinition, 0, len(tools))

	for _, t := range tools {
		if builtinToolTypes[t.Type] {
			return nil, apperror.Newf(apperror.KindNotImplemented, "tool type %q is not implemented", t.Type)
		}

		out = append(out, llmcore.ToolDefinition{
			Name:           t.Name,
			Description:    t.Description,
			ParametersJSON: string(t.Parameters),
		})
	}

	return out, nil
}

// TranslateToolChoice maps the wire tool_choice shape verbatim onto the
// normalized one.
func TranslateToolChoice(tc *respapi.ToolChoice) *llmcore.ToolChoice {
	if tc == nil {
		return nil
	}

	if tc.Mode == "named" {
		return &llmcore.ToolChoice{Mode: llmcore.ToolChoiceNamed, Name: tc.Name}
	}

	switch tc.Mode {
	case "auto":
		return &llmcore.ToolChoice{Mode: llmcore.ToolChoiceAuto}
	case "none":
		return &llmcore.ToolChoice{Mode: llmcore.ToolChoiceNone}
	case "required":
		return &llmcore.ToolChoice{Mode: llmcore.ToolChoiceRequired}
	default:
		return nil
	}
}

// TranslateTextFormat passes text.format through unchanged; the provider
// adapters implement json_schema output with their own backend-specific
// trick (see the anthropic and openaicompat packages).
func TranslateTextFormat(opts *respapi.TextOptions) *llmcore.TextFormat {
	if opts == nil || opts.Format == nil {
		return nil
	}

	f := opts.Format

	kind := llmcore.TextFormatText

	switch f.Type {
	case "json_schema":
		kind = llmcore.TextFormatJSONSchema
	case "json_object":
		kind = llmcore.TextFormatJSONObject
	}

	return &llmcore.TextFormat{
		Kind:       kind,
		SchemaName: f.Name,
		SchemaJSON: string(f.Schema),
		Strict:     f.Strict,
	}
}

// ReasoningEffort returns the request's effort hint, passed through
// verbatim; provider adapters translate it into their own knob.
func ReasoningEffort(opts *respapi.ReasoningOptions) string {
	if opts == nil {
		return ""
	}

	return opts.Effort
}
