// Package assembler turns a Responses API request, plus any prior stored
// conversation it chains from, into the normalized message list a
// provider adapter consumes.
package assembler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/kestrelhq/respond/internal/apperror"
	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/log"
	"github.com/kestrelhq/respond/internal/respapi"
)

// ResponseLoader fetches a previously stored response by id. Returning
// (nil, nil) means "not found".
type ResponseLoader interface {
	Load(ctx context.Context, id string) (*respapi.StoredResponse, error)
}

// Result is everything the orchestrator needs to drive a provider turn,
// plus the full normalized item list to persist alongside the response.
type Result struct {
	Messages   []llmcore.ProviderMessage
	System     string
	InputItems []respapi.InputItem
}

// Assemble implements §4.2 of the conversation-assembly algorithm:
// replay prior history (if chained), append the new input, then fold
// every item into a normalized message list with the system prompt
// hoisted out.
func Assemble(ctx context.Context, loader ResponseLoader, req *respapi.Request) (*Result, error) {
	var seed []respapi.InputItem

	knownIDs := make(map[string]bool)

	if req.PreviousResponseID != "" {
		prior, err := loader.Load(ctx, req.PreviousResponseID)
		if err != nil {
			return nil, err
		}

		if prior == nil {
			return nil, apperror.Newf(apperror.KindNotFound, "response %q not found", req.PreviousResponseID)
		}

		if !prior.Store {
			return nil, apperror.Newf(apperror.KindInvalidRequest, "response %q was not stored", req.PreviousResponseID)
		}

		seed = append(seed, prior.InputItems...)
		seed = append(seed, outputItemsAsInput(prior.OutputItems)...)

		for _, item := range seed {
			if item.ID != "" {
				knownIDs[item.ID] = true
			}
		}
	}

	if req.Input.Items != nil {
		for _, item := range req.Input.Items {
			if item.Type == respapi.InputItemReference {
				if !knownIDs[item.RefID] {
					log.Debug(ctx, "dropping unresolved item_reference", log.String("id", item.RefID))
				}
				// Referenced content is already part of the seed; the
				// reference itself carries nothing new to fold in.
				continue
			}

			seed = append(seed, item)
		}
	} else {
		seed = append(seed, respapi.InputItem{
			Type: respapi.InputItemMessage,
			Role: "user",
			Content: []respapi.ContentPart{{
				Type: "input_text",
				Text: req.Input.Text,
			}},
		})
	}

	messages, system := foldItems(ctx, seed)

	if req.Instructions != "" {
		if system == "" {
			system = req.Instructions
		} else {
			system = req.Instructions + "\n" + system
		}
	}

	return &Result{Messages: messages, System: system, InputItems: seed}, nil
}

// outputItemsAsInput replays a prior response's output as input items so
// its assistant text/tool calls become part of the next turn's history.
func outputItemsAsInput(items []respapi.OutputItem) []respapi.InputItem {
	out := make([]respapi.InputItem, 0, len(items))

	for _, item := range items {
		switch item.Type {
		case respapi.OutputItemMessage:
			var parts []respapi.ContentPart
			for _, c := range item.Content {
				parts = append(parts, respapi.ContentPart{Type: "output_text", Text: c.Text})
			}

			out = append(out, respapi.InputItem{Type: respapi.InputItemMessage, ID: item.ID, Role: "assistant", Content: parts})
		case respapi.OutputItemFunctionCall:
			out = append(out, respapi.InputItem{
				Type: respapi.InputItemFunctionCall, ID: item.ID,
				CallID: item.CallID, Name: item.Name, Arguments: item.Arguments,
			})
		case respapi.OutputItemReasoning:
			// Reasoning items carry no text the provider accepts back as
			// input; thinking signatures aren't round-tripped.
		}
	}

	return out
}

func foldItems(ctx context.Context, items []respapi.InputItem) ([]llmcore.ProviderMessage, string) {
	var (
		messages []llmcore.ProviderMessage
		system   []string
	)

	for _, item := range items {
		switch item.Type {
		case respapi.InputItemMessage:
			if item.Role == "system" || item.Role == "developer" {
				system = append(system, textOf(item.Content))
				continue
			}

			messages = append(messages, llmcore.ProviderMessage{
				Role:    llmcore.Role(item.Role),
				Content: translateContentParts(item.Content),
			})

		case respapi.InputItemFunctionCall:
			part := llmcore.ContentPart{
				Type:         llmcore.ContentPartToolUse,
				ToolCallID:   item.CallID,
				ToolName:     item.Name,
				ToolArgsJSON: repairArguments(ctx, item.Arguments),
			}

			if n := len(messages); n > 0 && messages[n-1].Role == llmcore.RoleAssistant {
				messages[n-1].Content = append(messages[n-1].Content, part)
			} else {
				messages = append(messages, llmcore.ProviderMessage{Role: llmcore.RoleAssistant, Content: []llmcore.ContentPart{part}})
			}

		case respapi.InputItemFunctionCallOut:
			part := llmcore.ContentPart{
				Type:            llmcore.ContentPartToolResult,
				ToolResultForID: item.CallID,
				ToolResultText:  item.Output,
			}

			if n := len(messages); n > 0 && messages[n-1].Role == llmcore.RoleUser && hasToolResult(messages[n-1]) {
				messages[n-1].Content = append(messages[n-1].Content, part)
			} else {
				messages = append(messages, llmcore.ProviderMessage{Role: llmcore.RoleUser, Content: []llmcore.ContentPart{part}})
			}

		case respapi.InputItemReference:
			// handled by the caller before reaching foldItems
		}
	}

	return messages, strings.Join(system, "\n")
}

func hasToolResult(msg llmcore.ProviderMessage) bool {
	for _, part := range msg.Content {
		if part.Type == llmcore.ContentPartToolResult {
			return true
		}
	}

	return false
}

func textOf(parts []respapi.ContentPart) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}

	return sb.String()
}

func translateContentParts(parts []respapi.ContentPart) []llmcore.ContentPart {
	out := make([]llmcore.ContentPart, 0, len(parts))

	for _, p := range parts {
		switch p.Type {
		case "input_text", "output_text", "text":
			out = append(out, llmcore.ContentPart{Type: llmcore.ContentPartText, Text: p.Text})
		case "input_image":
			if p.Image == "" {
				continue
			}

			if media, data, ok := parseDataURI(p.Image); ok {
				out = append(out, llmcore.ContentPart{Type: llmcore.ContentPartImage, ImageData: data, ImageMIME: media})
			} else {
				out = append(out, llmcore.ContentPart{Type: llmcore.ContentPartImage, ImageURL: p.Image})
			}
		}
	}

	return out
}

// parseDataURI extracts the media type and base64 payload from a
// "data:<media>;base64,<b64>" URI.
func parseDataURI(uri string) (media, data string, ok bool) {
	const prefix = "data:"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", false
	}

	rest := uri[len(prefix):]

	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return "", "", false
	}

	media = rest[:semi]
	data = rest[semi+len(";base64,"):]

	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return "", "", false
	}

	return media, data, true
}

func repairArguments(ctx context.Context, raw string) string {
	if raw == "" {
		return raw
	}

	if json.Valid([]byte(raw)) {
		return raw
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		log.Warn(ctx, "function_call arguments are not valid JSON and could not be repaired", log.String("raw", raw))
		return raw
	}

	return repaired
}
