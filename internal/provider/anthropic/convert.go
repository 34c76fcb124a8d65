package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/kestrelhq/respond/internal/llmcore"
)

// jsonResponseToolName is the synthetic tool injected to implement
// text_format: json_schema, since Anthropic has no native structured-output
// mode. The orchestrator recognizes this name and surfaces its arguments as
// the assistant's text content rather than a function_call item.
const jsonResponseToolName = "__json_response__"

func toWireRequest(req *llmcore.CompletionRequest) *wireRequest {
	out := &wireRequest{
		Model:         req.Model,
		Stream:        req.Stream,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
	}

	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	} else {
		out.MaxTokens = 4096
	}

	for _, msg := range req.Messages {
		if msg.Role == llmcore.RoleSystem {
			out.System = joinText(msg.Content)
			continue
		}

		out.Messages = append(out.Messages, toWireMessage(msg))
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, wireTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: json.RawMessage(tool.ParametersJSON),
		})
	}

	if req.TextFormat != nil && req.TextFormat.Kind == llmcore.TextFormatJSONSchema {
		out.Tools = append(out.Tools, wireTool{
			Name:        jsonResponseToolName,
			Description: "Return the final answer matching the required schema.",
			InputSchema: json.RawMessage(req.TextFormat.SchemaJSON),
		})
		out.ToolChoice = &wireToolChoice{Type: "tool", Name: jsonResponseToolName}
	} else if req.ToolChoice != nil {
		out.ToolChoice = toWireToolChoice(req.ToolChoice)
	}

	if req.ReasoningEffort != "" {
		out.Thinking = &wireThinking{Type: "enabled", BudgetTokens: budgetForEffort(req.ReasoningEffort)}
	}

	return out
}

func budgetForEffort(effort string) int64 {
	switch effort {
	case "high":
		return 32768
	case "medium":
		return 8192
	case "low":
		return 1024
	default:
		return 8192
	}
}

func toWireToolChoice(tc *llmcore.ToolChoice) *wireToolChoice {
	switch tc.Mode {
	case llmcore.ToolChoiceAuto:
		return &wireToolChoice{Type: "auto"}
	case llmcore.ToolChoiceNone:
		return &wireToolChoice{Type: "none"}
	case llmcore.ToolChoiceRequired:
		return &wireToolChoice{Type: "any"}
	case llmcore.ToolChoiceNamed:
		return &wireToolChoice{Type: "tool", Name: tc.Name}
	default:
		return nil
	}
}

func joinText(parts []llmcore.ContentPart) string {
	var sb strings.Builder
	for _, p := range parts {
		if p.Type == llmcore.ContentPartText {
			sb.WriteString(p.Text)
		}
	}

	return sb.String()
}

func toWireMessage(msg llmcore.ProviderMessage) wireMessage {
	wm := wireMessage{Role: string(msg.Role)}
	if msg.Role == llmcore.RoleTool {
		wm.Role = "user"
	}

	for _, part := range msg.Content {
		switch part.Type {
		case llmcore.ContentPartText:
			text := part.Text
			wm.Content = append(wm.Content, wireContent{Type: "text", Text: &text})
		case llmcore.ContentPartImage:
			src := &wireImageSource{}
			if part.ImageData != "" {
				src.Type = "base64"
				src.MediaType = part.ImageMIME
				src.Data = part.ImageData
			} else {
				src.Type = "url"
				src.URL = part.ImageURL
			}

			wm.Content = append(wm.Content, wireContent{Type: "image", Source: src})
		case llmcore.ContentPartToolUse:
			wm.Content = append(wm.Content, wireContent{
				Type:  "tool_use",
				ID:    part.ToolCallID,
				Name:  part.ToolName,
				Input: json.RawMessage(nonEmptyJSON(part.ToolArgsJSON)),
			})
		case llmcore.ContentPartToolResult:
			wm.Content = append(wm.Content, wireContent{
				Type:      "tool_result",
				ToolUseID: part.ToolResultForID,
				Content:   part.ToolResultText,
				IsError:   part.ToolResultError,
			})
		case llmcore.ContentPartThinking:
			text := part.Text
			sig := part.ThinkingSignature
			wm.Content = append(wm.Content, wireContent{Type: "thinking", Thinking: &text, Signature: &sig})
		}
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
	msg := llmcore.ProviderMessage{Role: llmcore.RoleAssistant}

	for _, block := range resp.Content {
		msg.Content = append(msg.Content, contentFromWireBlock(block))
	}

	return &llmcore.CompletionResult{
		Message:         msg,
		StopReason:      stopReasonFromWire(resp.StopReason),
		UnderlyingModel: resp.Model,
		Usage: llmcore.Usage{
			InputTokens:       resp.Usage.InputTokens,
			OutputTokens:      resp.Usage.OutputTokens,
			CachedInputTokens: resp.Usage.CacheReadInputTokens,
		},
	}
}

func contentFromWireBlock(block wireContent) llmcore.ContentPart {
	switch block.Type {
	case "tool_use":
		// jsonResponseToolName calls are surfaced as an ordinary tool_use
		// part; the orchestrator special-cases the name when projecting
		// output items into a message instead of a function_call.
		return llmcore.ContentPart{
			Type:         llmcore.ContentPartToolUse,
			ToolCallID:   block.ID,
			ToolName:     block.Name,
			ToolArgsJSON: string(block.Input),
		}
	case "thinking":
		var text, sig string
		if block.Thinking != nil {
			text = *block.Thinking
		}

		if block.Signature != nil {
			sig = *block.Signature
		}

		return llmcore.ContentPart{Type: llmcore.ContentPartThinking, Text: text, ThinkingSignature: sig}
	default:
		var text string
		if block.Text != nil {
			text = *block.Text
		}

		return llmcore.ContentPart{Type: llmcore.ContentPartText, Text: text}
	}
}

func stopReasonFromWire(reason string) llmcore.StopReason {
	switch reason {
	case "tool_use":
		return llmcore.StopToolUse
	case "max_tokens":
		return llmcore.StopMaxTokens
	case "end_turn", "stop_sequence":
		return llmcore.StopEndTurn
	default:
		return llmcore.StopEndTurn
	}
}
