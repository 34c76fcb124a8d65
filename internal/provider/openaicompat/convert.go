package openaicompat

import (
	"encoding/json"

	"github.com/kestrelhq/respond/internal/llmcore"
)

const jsonResponseToolName = "__json_response__"

func toWireRequest(req *llmcore.CompletionRequest) *wireRequest {
	out := &wireRequest{
		Model:           req.Model,
		Stream:          req.Stream,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxTokens:       req.MaxTokens,
		Stop:            req.Stop,
		ReasoningEffort: req.ReasoningEffort,
	}

	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, toWireMessage(msg))
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  json.RawMessage(tool.ParametersJSON),
			},
		})
	}

	switch {
	case req.TextFormat != nil && req.TextFormat.Kind == llmcore.TextFormatJSONSchema:
		out.ResponseFormat = &wireResponseFormat{
			Type: "json_schema",
			JSONSchema: &wireJSONSchema{
				Name:   nonEmpty(req.TextFormat.SchemaName, jsonResponseToolName),
				Strict: req.TextFormat.Strict,
				Schema: json.RawMessage(req.TextFormat.SchemaJSON),
			},
		}
	case req.TextFormat != nil && req.TextFormat.Kind == llmcore.TextFormatJSONObject:
		out.ResponseFormat = &wireResponseFormat{Type: "json_object"}
	case req.ToolChoice != nil:
		out.ToolChoice = toWireToolChoice(req.ToolChoice)
	}

	return out
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}

func toWireToolChoice(tc *llmcore.ToolChoice) any {
	switch tc.Mode {
	case llmcore.ToolChoiceAuto:
		return "auto"
	case llmcore.ToolChoiceNone:
		return "none"
	case llmcore.ToolChoiceRequired:
		return "required"
	case llmcore.ToolChoiceNamed:
		return map[string]any{
			"type":     "function",
			"function": map[string]string{"name": tc.Name},
		}
	default:
		return nil
	}
}

func toWireMessage(msg llmcore.ProviderMessage) wireMessage {
	wm := wireMessage{Role: string(msg.Role)}

	var toolResultID string

	var parts []wireContentPart

	var text string

	for _, part := range msg.Content {
		switch part.Type {
		case llmcore.ContentPartText:
			text += part.Text
			parts = append(parts, wireContentPart{Type: "text", Text: part.Text})
		case llmcore.ContentPartImage:
			url := part.ImageURL
			if part.ImageData != "" {
				url = "data:" + part.ImageMIME + ";base64," + part.ImageData
			}

			parts = append(parts, wireContentPart{Type: "image_url", ImageURL: &wireImageURL{URL: url}})
		case llmcore.ContentPartToolUse:
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   part.ToolCallID,
				Type: "function",
				Function: wireToolCallFunc{
					Name:      part.ToolName,
					Arguments: nonEmptyJSON(part.ToolArgsJSON),
				},
			})
		case llmcore.ContentPartToolResult:
			toolResultID = part.ToolResultForID
			text = part.ToolResultText
		}
	}

	if toolResultID != "" {
		wm.Role = "tool"
		wm.ToolCallID = toolResultID
		wm.Content = text

		return wm
	}

	if len(parts) == 1 && parts[0].Type == "text" {
		wm.Content = parts[0].Text
	} else if len(parts) > 0 {
		wm.Content = parts
	} else if text != "" {
		wm.Content = text
	}

	return wm
}

func nonEmptyJSON(s string) string {
	if s == "" {
		return "{}"
	}

	return s
}

func fromWireResponse(resp *wireResponse) *llmcore.CompletionResult {
	if len(resp.Choices) == 0 {
		return &llmcore.CompletionResult{UnderlyingModel: resp.Model}
	}

	choice := resp.Choices[0]

	msg := llmcore.ProviderMessage{Role: llmcore.RoleAssistant}

	if choice.Message.ReasoningContent != nil && *choice.Message.ReasoningContent != "" {
		msg.Content = append(msg.Content, llmcore.ContentPart{Type: llmcore.ContentPartThinking, Text: *choice.Message.ReasoningContent})
	}

	if choice.Message.Content != nil && *choice.Message.Content != "" {
		msg.Content = append(msg.Content, llmcore.ContentPart{Type: llmcore.ContentPartText, Text: *choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		msg.Content = append(msg.Content, llmcore.ContentPart{
			Type:         llmcore.ContentPartToolUse,
			ToolCallID:   tc.ID,
			ToolName:     tc.Function.Name,
			ToolArgsJSON: tc.Function.Arguments,
		})
	}

	result := &llmcore.CompletionResult{
		Message:         msg,
		StopReason:      stopReasonFromWire(choice.FinishReason),
		UnderlyingModel: resp.Model,
	}

	if resp.Usage != nil {
		result.Usage = llmcore.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
		if resp.Usage.PromptTokensDetails != nil {
			result.Usage.CachedInputTokens = resp.Usage.PromptTokensDetails.CachedTokens
		}

		if resp.Usage.CompletionTokensDetails != nil {
			result.Usage.ReasoningTokens = resp.Usage.CompletionTokensDetails.ReasoningTokens
		}
	}

	return result
}

func stopReasonFromWire(reason *string) llmcore.StopReason {
	if reason == nil {
		return llmcore.StopEndTurn
	}

	switch *reason {
	case "tool_calls":
		return llmcore.StopToolUse
	case "length":
		return llmcore.StopMaxTokens
	case "stop":
		return llmcore.StopEndTurn
	default:
		return llmcore.StopEndTurn
	}
}
