// Package orchestrator drives a provider adapter through a Responses API
// turn: assembling the conversation, running the model synchronously,
// streaming, or in the background, and projecting the result into the
// Responses API's event sequence and persisted row shape.
package orchestrator

import (
	"context"
	"time"

	"github.com/kestrelhq/respond/internal/apperror"
	"github.com/kestrelhq/respond/internal/assembler"
	"github.com/kestrelhq/respond/internal/idgen"
	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/log"
	"github.com/kestrelhq/respond/internal/respapi"
	"github.com/kestrelhq/respond/internal/store"
	"github.com/kestrelhq/respond/internal/streams"
)

// Orchestrator is the single entry point for all three execution modes:
// synchronous, streaming, and background. It holds no per-request state;
// each call builds its own accumulators.
type Orchestrator struct {
	Resolver           *llmcore.Resolver
	Store              store.Store
	CheckpointDebounce time.Duration
	Background         *BackgroundPool
}

func New(resolver *llmcore.Resolver, st store.Store, checkpointDebounce time.Duration, background *BackgroundPool) *Orchestrator {
	return &Orchestrator{
		Resolver:           resolver,
		Store:              st,
		CheckpointDebounce: checkpointDebounce,
		Background:         background,
	}
}

// loaderFunc adapts Store.Load to assembler.ResponseLoader.
type loaderFunc func(ctx context.Context, id string) (*respapi.StoredResponse, error)

func (f loaderFunc) Load(ctx context.Context, id string) (*respapi.StoredResponse, error) {
	return f(ctx, id)
}

func (o *Orchestrator) loader() assembler.ResponseLoader {
	return loaderFunc(o.Store.Load)
}

// prepare resolves the model, assembles the conversation, and builds the
// normalized CompletionRequest shared by every execution mode.
func (o *Orchestrator) prepare(ctx context.Context, req *respapi.Request) (*llmcore.ModelRoute, *assembler.Result, *llmcore.CompletionRequest, error) {
	route, err := o.Resolver.Resolve(req.Model)
	if err != nil {
		return nil, nil, nil, apperror.Newf(apperror.KindInvalidRequest, "%v", err)
	}

	assembled, err := assembler.Assemble(ctx, o.loader(), req)
	if err != nil {
		return nil, nil, nil, err
	}

	tools, err := assembler.TranslateTools(req.Tools)
	if err != nil {
		return nil, nil, nil, err
	}

	messages := assembled.Messages
	if assembled.System != "" {
		messages = append([]llmcore.ProviderMessage{{
			Role:    llmcore.RoleSystem,
			Content: []llmcore.ContentPart{{Type: llmcore.ContentPartText, Text: assembled.System}},
		}}, messages...)
	}

	completionReq := &llmcore.CompletionRequest{
		Model:           route.UnderlyingModel,
		Messages:        messages,
		Tools:           tools,
		ToolChoice:      assembler.TranslateToolChoice(req.ToolChoice),
		TextFormat:      assembler.TranslateTextFormat(req.Text),
		MaxTokens:       req.MaxOutputTokens,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		Stream:          req.Stream,
		ReasoningEffort: assembler.ReasoningEffort(req.Reasoning),
	}

	return route, assembled, completionReq, nil
}

func newStoredResponse(id string, req *respapi.Request, assembled *assembler.Result) *respapi.StoredResponse {
	parallelToolCalls := true
	if req.ParallelToolCalls != nil {
		parallelToolCalls = *req.ParallelToolCalls
	}

	return &respapi.StoredResponse{
		ID:                 id,
		Model:              req.Model,
		Status:             respapi.StatusInProgress,
		Store:              req.StoreEnabled(),
		Background:         req.Background,
		Metadata:           req.Metadata,
		PreviousResponseID: req.PreviousResponseID,
		ParallelToolCalls:  parallelToolCalls,
		InputItems:         assembled.InputItems,
		CreatedAt:          time.Now(),
	}
}

// RunSync executes the non-streaming path: resolve, complete, project.
func (o *Orchestrator) RunSync(ctx context.Context, req *respapi.Request) (*respapi.Response, error) {
	route, assembled, completionReq, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := route.Adapter.Complete(ctx, completionReq)
	if err != nil {
		return nil, apperror.Newf(apperror.KindServerError, "provider call failed: %v", err)
	}

	row := newStoredResponse(idgen.Response(), req, assembled)
	row.OutputItems = projectOutputItems(result.Message)
	row.Status = respapi.StatusCompleted

	usage := respapi.NewUsage(result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.CachedInputTokens)
	row.Usage = &usage

	now := time.Now()
	row.CompletedAt = &now

	if row.Store {
		if err := o.Store.Upsert(ctx, row); err != nil {
			log.Error(ctx, "persist completed response", log.Cause(err))
		}
	}

	return row.ToResponse(), nil
}

// projectOutputItems turns a completion result into output items: text
// becomes a message item, tool_use becomes a function_call item (preserving
// call_id), thinking becomes a reasoning item moved to the head of the
// list so it's visible before any content it informed.
func projectOutputItems(msg llmcore.ProviderMessage) []respapi.OutputItem {
	var (
		reasoning []respapi.OutputItem
		rest      []respapi.OutputItem
		textBuf   string
	)

	for _, part := range msg.Content {
		switch part.Type {
		case llmcore.ContentPartText:
			textBuf += part.Text
		case llmcore.ContentPartThinking:
			reasoning = append(reasoning, respapi.NewReasoningItem(idgen.Reasoning(), part.Text))
		case llmcore.ContentPartToolUse:
			if part.ToolName == jsonResponseToolName {
				textBuf += part.ToolArgsJSON
				continue
			}

			rest = append(rest, respapi.NewFunctionCallItem(idgen.FunctionCall(), part.ToolCallID, part.ToolName, part.ToolArgsJSON, "completed"))
		}
	}

	var out []respapi.OutputItem

	out = append(out, reasoning...)

	if textBuf != "" {
		out = append(out, respapi.NewMessageItem(idgen.Message(), "completed", textBuf))
	}

	out = append(out, rest...)

	return out
}

// jsonResponseToolName mirrors the synthetic tool name provider adapters
// use to implement text.format:json_schema without the orchestrator
// needing format-specific logic.
const jsonResponseToolName = "__json_response__"

// Cancel transitions a stored response to cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (*respapi.Response, error) {
	row, err := o.Store.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	return row.ToResponse(), nil
}

// Get loads a stored response for GET /v1/responses/{id}.
func (o *Orchestrator) Get(ctx context.Context, id string) (*respapi.Response, error) {
	row, err := o.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	if row == nil {
		return nil, apperror.Newf(apperror.KindNotFound, "response %q not found", id)
	}

	return row.ToResponse(), nil
}

// Delete removes a stored response for DELETE /v1/responses/{id}.
func (o *Orchestrator) Delete(ctx context.Context, id string) (bool, error) {
	return o.Store.Delete(ctx, id)
}

// RunStream executes the streaming path, returning a stream of wire
// Events ready for SSE framing.
func (o *Orchestrator) RunStream(ctx context.Context, req *respapi.Request) (streams.Stream[*respapi.Event], error) {
	route, assembled, completionReq, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	completionReq.Stream = true

	providerEvents, err := route.Adapter.Stream(ctx, completionReq)
	if err != nil {
		return nil, apperror.Newf(apperror.KindServerError, "provider call failed: %v", err)
	}

	row := newStoredResponse(idgen.Response(), req, assembled)

	if row.Store {
		if err := o.Store.Upsert(ctx, row); err != nil {
			providerEvents.Close()
			return nil, apperror.Newf(apperror.KindServerError, "persist initial response: %v", err)
		}
	}

	return newProjector(ctx, o.Store, row, providerEvents, o.CheckpointDebounce), nil
}

// RunBackground persists an initial in_progress row and hands the
// deferred provider call to the background pool,
// returning the in_progress response object immediately.
func (o *Orchestrator) RunBackground(ctx context.Context, req *respapi.Request) (*respapi.Response, error) {
	route, assembled, completionReq, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	row := newStoredResponse(idgen.Response(), req, assembled)

	if err := o.Store.Upsert(ctx, row); err != nil {
		return nil, apperror.Newf(apperror.KindServerError, "persist initial response: %v", err)
	}

	o.Background.Submit(func(bgCtx context.Context) {
		o.runBackgroundTask(bgCtx, row.ID, route, completionReq)
	})

	return row.ToResponse(), nil
}

func (o *Orchestrator) runBackgroundTask(ctx context.Context, id string, route *llmcore.ModelRoute, completionReq *llmcore.CompletionRequest) {
	result, err := route.Adapter.Complete(ctx, completionReq)
	if err != nil {
		row, loadErr := o.Store.Load(ctx, id)
		if loadErr != nil || row == nil {
			log.Error(ctx, "background task failed and response row is unavailable", log.Cause(err))
			return
		}

		row.Status = respapi.StatusFailed
		row.Error = &respapi.ErrorDetail{Message: err.Error(), Type: string(apperror.KindServerError)}

		if err := o.Store.Upsert(ctx, row); err != nil {
			log.Error(ctx, "persist failed background response", log.Cause(err))
		}

		return
	}

	row, err := o.Store.Load(ctx, id)
	if err != nil || row == nil {
		log.Error(ctx, "background task completed but response row is unavailable", log.Cause(err))
		return
	}

	row.OutputItems = projectOutputItems(result.Message)
	row.Status = respapi.StatusCompleted

	usage := respapi.NewUsage(result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.CachedInputTokens)
	row.Usage = &usage

	now := time.Now()
	row.CompletedAt = &now

	if err := o.Store.Upsert(ctx, row); err != nil {
		log.Error(ctx, "persist completed background response", log.Cause(err))
	}
}
