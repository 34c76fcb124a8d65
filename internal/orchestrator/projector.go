package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kestrelhq/respond/internal/apperror"
	"github.com/kestrelhq/respond/internal/idgen"
	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/log"
	"github.com/kestrelhq/respond/internal/respapi"
	"github.com/kestrelhq/respond/internal/store"
	"github.com/kestrelhq/respond/internal/streams"
)

// toolCallState tracks one in-flight function call across tool_call_start/
// delta/done events, keyed by the provider's callId — the
// "callId → {fc_id, args-buffer, outputIndex, done}" table.
type toolCallState struct {
	fcID        string
	callID      string
	name        string
	args        string
	outputIndex int
	done        bool
}

// projector implements the event-projection state machine as a
// streams.Stream[*respapi.Event]: it pulls ProviderEvents from the adapter
// and fans each one out into zero or more wire Events, checkpointing
// partial output and performing the terminal persistence write as a side
// effect of being driven to exhaustion.
//
// Wraps an upstream stream to thread persistence through Next/Close, the
// same shape as InboundPersistentStream wrapping httpclient.StreamEvent.
type projector struct {
	ctx      context.Context
	upstream streams.Stream[*llmcore.ProviderEvent]
	st       store.Store
	row      *respapi.StoredResponse
	debounce time.Duration

	seq     int
	pending []respapi.Event
	current *respapi.Event

	mu sync.Mutex // guards the fields below, shared with the debounce timer goroutine

	messageOpened    bool
	messageID        string
	messageOutputIdx int
	textBuf          string
	reasoningBuf     string
	toolOrder        []string
	toolByID         map[string]*toolCallState
	nextOutputIndex  int
	jsonResponseCall string

	timer *time.Timer

	finished bool
}

func newProjector(ctx context.Context, st store.Store, row *respapi.StoredResponse, upstream streams.Stream[*llmcore.ProviderEvent], debounce time.Duration) *projector {
	p := &projector{
		ctx:      ctx,
		upstream: upstream,
		st:       st,
		row:      row,
		debounce: debounce,
		toolByID: make(map[string]*toolCallState),
		seq:      1,
	}

	p.pending = append(p.pending, respapi.InProgressEvent(1, p.responseSnapshot(respapi.StatusInProgress)))

	return p
}

func (p *projector) Next() bool {
	for {
		if len(p.pending) > 0 {
			ev := p.pending[0]
			p.current = &ev
			p.pending = p.pending[1:]

			return true
		}

		if p.finished {
			return false
		}

		if !p.upstream.Next() {
			p.handleUpstreamExhausted()
			continue
		}

		p.handleProviderEvent(p.upstream.Current())
	}
}

func (p *projector) Current() *respapi.Event { return p.current }

func (p *projector) Err() error { return nil }

func (p *projector) Close() error {
	p.stopTimer()
	return p.upstream.Close()
}

func (p *projector) stopTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func isAbortError(err error) bool {
	return err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// handleUpstreamExhausted runs once the adapter's event stream has no more
// values, either because it completed cleanly (message_done already
// finalized the row, see handleProviderEvent) or because it ended in
// error/cancellation.
func (p *projector) handleUpstreamExhausted() {
	if p.finished {
		return
	}

	err := p.upstream.Err()
	ctxErr := p.ctx.Err()

	if err == nil && ctxErr == nil {
		// Contract violation: the adapter promised EventMessageDone on
		// every successful stream. Treat it as a server error so the
		// client sees a failed response instead of a silently truncated
		// one.
		err = errors.New("provider stream ended without a terminal event")
	}

	if isAbortError(err) || isAbortError(ctxErr) {
		p.finishInterrupted()
		return
	}

	p.finishFailed(err)
}

func (p *projector) finishInterrupted() {
	p.stopTimer()

	p.mu.Lock()
	items := p.buildOutputItemsLocked("in_progress")
	p.mu.Unlock()

	p.row.OutputItems = items
	p.row.Status = respapi.StatusIncomplete
	p.row.IncompleteDetails = &respapi.IncompleteDetails{Reason: "interrupted"}

	if p.row.Store {
		writeCtx := context.WithoutCancel(p.ctx)
		if err := p.st.Upsert(writeCtx, p.row); err != nil {
			log.Error(writeCtx, "persist interrupted response", log.Cause(err))
		}
	}

	p.finished = true
}

func (p *projector) finishFailed(cause error) {
	p.stopTimer()

	detail := respapi.ErrorDetail{Message: cause.Error(), Type: string(apperror.KindServerError)}

	p.pending = append(p.pending,
		respapi.ErrorEvent(p.nextSeq(), detail),
		respapi.FailedEvent(p.nextSeq(), p.responseWithError(&detail)),
	)

	p.row.Status = respapi.StatusFailed
	p.row.Error = &detail

	if p.row.Store {
		writeCtx := context.WithoutCancel(p.ctx)
		if err := p.st.Upsert(writeCtx, p.row); err != nil {
			log.Error(writeCtx, "persist failed response", log.Cause(err))
		}
	}

	p.finished = true
}

func (p *projector) nextSeq() int {
	p.seq++
	return p.seq
}

func (p *projector) handleProviderEvent(pe *llmcore.ProviderEvent) {
	switch pe.Type {
	case llmcore.EventTextDelta:
		p.handleTextDelta(pe.Delta)
	case llmcore.EventToolCallStart:
		p.handleToolCallStart(pe.ToolCallID, pe.ToolName)
	case llmcore.EventToolCallDelta:
		p.handleToolCallDelta(pe.ToolCallID, pe.ArgsJSON)
	case llmcore.EventToolCallDone:
		p.handleToolCallDone(pe.ToolCallID, pe.ArgsJSON)
	case llmcore.EventThinkingDelta:
		p.mu.Lock()
		p.reasoningBuf += pe.Delta
		p.mu.Unlock()
	case llmcore.EventThinkingDone:
		// text already accumulated via EventThinkingDelta; nothing to emit.
	case llmcore.EventMessageDone:
		p.handleMessageDone(pe)
	}
}

func (p *projector) handleTextDelta(delta string) {
	p.mu.Lock()
	opening := p.openMessageLocked()
	p.textBuf += delta
	idx, id := p.messageOutputIdx, p.messageID
	p.mu.Unlock()

	p.emitMessageOpenIfNeeded(opening, idx, id)
	p.pending = append(p.pending, respapi.OutputTextDeltaEvent(p.nextSeq(), id, idx, 0, delta))
	p.scheduleCheckpoint()
}

// openMessageLocked allocates the message item's id/output index the first
// time any text arrives, whether from a real text_delta or from the
// structured-output tool trick below. Caller holds mu.
func (p *projector) openMessageLocked() bool {
	opening := !p.messageOpened
	if opening {
		p.messageOpened = true
		p.messageID = idgen.Message()
		p.messageOutputIdx = p.nextOutputIndex
		p.nextOutputIndex++
	}

	return opening
}

func (p *projector) emitMessageOpenIfNeeded(opening bool, idx int, id string) {
	if !opening {
		return
	}

	p.pending = append(p.pending,
		respapi.OutputItemAddedEvent(p.nextSeq(), idx, respapi.OutputItem{
			Type: respapi.OutputItemMessage, ID: id, Status: "in_progress", Role: "assistant",
			Content: []respapi.OutputTextPart{},
		}),
		respapi.ContentPartAddedEvent(p.nextSeq(), id, idx, 0, respapi.OutputTextPart{Type: "output_text", Text: "", Annotations: []any{}}),
	)
}

// handleToolCallStart opens a function_call output item, unless name is the
// synthetic structured-output tool, in which case the call is surfaced to
// the client as a message instead — the client asked for
// text.format:json_schema, not a tool call, so the trick must stay invisible.
func (p *projector) handleToolCallStart(callID, name string) {
	if name == jsonResponseToolName {
		p.mu.Lock()
		p.jsonResponseCall = callID
		opening := p.openMessageLocked()
		idx, id := p.messageOutputIdx, p.messageID
		p.mu.Unlock()

		p.emitMessageOpenIfNeeded(opening, idx, id)

		return
	}

	p.mu.Lock()
	idx := p.nextOutputIndex
	p.nextOutputIndex++
	fcID := idgen.FunctionCall()
	p.toolByID[callID] = &toolCallState{fcID: fcID, callID: callID, name: name, outputIndex: idx}
	p.toolOrder = append(p.toolOrder, callID)
	p.mu.Unlock()

	p.pending = append(p.pending, respapi.OutputItemAddedEvent(p.nextSeq(), idx, respapi.NewFunctionCallItem(fcID, callID, name, "", "in_progress")))
}

func (p *projector) handleToolCallDelta(callID, delta string) {
	p.mu.Lock()

	if callID == p.jsonResponseCall {
		p.textBuf += delta
		idx, id := p.messageOutputIdx, p.messageID
		p.mu.Unlock()

		p.pending = append(p.pending, respapi.OutputTextDeltaEvent(p.nextSeq(), id, idx, 0, delta))

		return
	}

	if state := p.toolByID[callID]; state != nil {
		state.args += delta
	}

	p.mu.Unlock()
}

func (p *projector) handleToolCallDone(callID, arguments string) {
	p.mu.Lock()

	if callID == p.jsonResponseCall {
		p.textBuf = arguments
		p.mu.Unlock()

		return
	}

	state := p.toolByID[callID]

	if state == nil {
		p.mu.Unlock()
		return
	}

	state.args = arguments
	state.done = true
	item := respapi.NewFunctionCallItem(state.fcID, state.callID, state.name, state.args, "completed")
	idx := state.outputIndex
	p.mu.Unlock()

	p.pending = append(p.pending, respapi.OutputItemDoneEvent(p.nextSeq(), idx, item))
	p.scheduleCheckpoint()
}

func (p *projector) handleMessageDone(pe *llmcore.ProviderEvent) {
	p.stopTimer()

	p.mu.Lock()
	messageOpened := p.messageOpened
	messageID := p.messageID
	messageIdx := p.messageOutputIdx
	textBuf := p.textBuf
	items := p.buildOutputItemsLocked("completed")
	p.mu.Unlock()

	if messageOpened {
		p.pending = append(p.pending,
			respapi.OutputTextDoneEvent(p.nextSeq(), messageID, messageIdx, 0, textBuf),
			respapi.ContentPartDoneEvent(p.nextSeq(), messageID, messageIdx, 0, respapi.OutputTextPart{Type: "output_text", Text: textBuf, Annotations: []any{}}),
			respapi.OutputItemDoneEvent(p.nextSeq(), messageIdx, respapi.NewMessageItem(messageID, "completed", textBuf)),
		)
	}

	p.row.OutputItems = items
	p.row.Status = respapi.StatusCompleted

	usage := respapi.NewUsage(pe.Usage.InputTokens, pe.Usage.OutputTokens, pe.Usage.CachedInputTokens)
	p.row.Usage = &usage

	now := time.Now()
	p.row.CompletedAt = &now

	if p.row.Store {
		writeCtx := context.WithoutCancel(p.ctx)
		if err := p.st.Upsert(writeCtx, p.row); err != nil {
			log.Error(writeCtx, "persist completed response", log.Cause(err))
		}
	}

	p.pending = append(p.pending, respapi.CompletedEvent(p.nextSeq(), p.row.ToResponse()))
	p.finished = true
}

// buildOutputItemsLocked builds the current OutputItems array in order:
// reasoning first, then the message (if any text arrived), then function
// calls in start order, each reflecting whatever
// state it has reached so far. messageStatus is the status to stamp on
// the message item; callers mid-stream pass "in_progress", the
// message_done path passes "completed".
func (p *projector) buildOutputItemsLocked(messageStatus string) []respapi.OutputItem {
	var out []respapi.OutputItem

	if p.reasoningBuf != "" {
		out = append(out, respapi.NewReasoningItem(idgen.Reasoning(), p.reasoningBuf))
	}

	if p.messageOpened {
		out = append(out, respapi.OutputItem{
			Type: respapi.OutputItemMessage, ID: p.messageID, Status: messageStatus, Role: "assistant",
			Content: []respapi.OutputTextPart{{Type: "output_text", Text: p.textBuf, Annotations: []any{}}},
		})
	}

	for _, callID := range p.toolOrder {
		state := p.toolByID[callID]

		status := "in_progress"
		if state.done {
			status = "completed"
		}

		out = append(out, respapi.NewFunctionCallItem(state.fcID, state.callID, state.name, state.args, status))
	}

	return out
}

func (p *projector) scheduleCheckpoint() {
	if !p.row.Store || p.debounce <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Reset(p.debounce)
		return
	}

	p.timer = time.AfterFunc(p.debounce, p.checkpoint)
}

// checkpoint runs on the timer's own goroutine; it takes its own lock to
// read the accumulators, matching §5's note that the debounce callback
// runs independently of the driving goroutine.
func (p *projector) checkpoint() {
	p.mu.Lock()
	items := p.buildOutputItemsLocked("in_progress")
	p.mu.Unlock()

	writeCtx := context.WithoutCancel(p.ctx)

	if _, err := p.st.PartialUpdate(writeCtx, p.row.ID, items, nil); err != nil {
		log.Error(writeCtx, "checkpoint partial update failed", log.Cause(err))
	}
}

func (p *projector) responseSnapshot(status respapi.Status) *respapi.Response {
	return &respapi.Response{
		ID: p.row.ID, Object: "response", Model: p.row.Model, Status: status,
		Output: []respapi.OutputItem{}, Metadata: p.row.Metadata,
		PreviousResponseID: p.row.PreviousResponseID, ParallelToolCalls: p.row.ParallelToolCalls,
		CreatedAt: p.row.CreatedAt.Unix(),
	}
}

func (p *projector) responseWithError(detail *respapi.ErrorDetail) *respapi.Response {
	resp := p.responseSnapshot(respapi.StatusFailed)
	resp.Error = detail

	return resp
}

var _ streams.Stream[*respapi.Event] = (*projector)(nil)
