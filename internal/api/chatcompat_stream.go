package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/idgen"
	"github.com/kestrelhq/respond/internal/log"
	"github.com/kestrelhq/respond/internal/respapi"
	"github.com/kestrelhq/respond/internal/streams"
)

// writeChatCompletionStream re-projects the Responses SSE event sequence
// into chat.completion.chunk frames, the same translation direction as
// toRequest but for output instead of input. It tracks just enough state
// to assign each function_call output item a stable tool_calls[] index.
func writeChatCompletionStream(c *gin.Context, model string, stream streams.Stream[*respapi.Event]) {
	ctx := c.Request.Context()
	id := idgen.New("chatcmpl_")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	toolIndexByCallID := map[string]int{}
	nextToolIndex := 0
	roleSent := false

	send := func(chunk gin.H) {
		payload, err := json.Marshal(chunk)
		if err != nil {
			log.Error(ctx, "marshal chat completion chunk", log.Cause(err))
			return
		}

		c.Writer.WriteString("data: ")
		c.Writer.Write(payload)
		c.Writer.WriteString("\n\n")
		c.Writer.Flush()
	}

	for {
		select {
		case <-ctx.Done():
			log.Warn(ctx, "client disconnected or context done, draining chat completion stream to persist final state")
			drainStream(stream)

			return
		default:
		}

		if !stream.Next() {
			if err := stream.Err(); err != nil {
				log.Error(ctx, "error draining chat completion stream", log.Cause(err))
			}

			c.Writer.WriteString("data: [DONE]\n\n")
			c.Writer.Flush()

			return
		}

		ev := stream.Current()

		switch ev.Type {
		case respapi.EventOutputItemAdded:
			if !roleSent {
				send(gin.H{"id": id, "object": "chat.completion.chunk", "model": model,
					"choices": []gin.H{{"index": 0, "delta": gin.H{"role": "assistant"}, "finish_reason": nil}}})

				roleSent = true
			}

			if ev.Item != nil && ev.Item.Type == respapi.OutputItemFunctionCall {
				idx, ok := toolIndexByCallID[ev.Item.CallID]
				if !ok {
					idx = nextToolIndex
					nextToolIndex++
					toolIndexByCallID[ev.Item.CallID] = idx
				}

				send(gin.H{"id": id, "object": "chat.completion.chunk", "model": model,
					"choices": []gin.H{{"index": 0, "delta": gin.H{"tool_calls": []gin.H{{
						"index": idx, "id": ev.Item.CallID, "type": "function",
						"function": gin.H{"name": ev.Item.Name, "arguments": ""},
					}}}, "finish_reason": nil}}})
			}

		case respapi.EventOutputTextDelta:
			send(gin.H{"id": id, "object": "chat.completion.chunk", "model": model,
				"choices": []gin.H{{"index": 0, "delta": gin.H{"content": ev.Delta}, "finish_reason": nil}}})

		case respapi.EventOutputItemDone:
			if ev.Item != nil && ev.Item.Type == respapi.OutputItemFunctionCall {
				idx := toolIndexByCallID[ev.Item.CallID]

				send(gin.H{"id": id, "object": "chat.completion.chunk", "model": model,
					"choices": []gin.H{{"index": 0, "delta": gin.H{"tool_calls": []gin.H{{
						"index": idx, "function": gin.H{"arguments": ev.Item.Arguments},
					}}}, "finish_reason": nil}}})
			}

		case respapi.EventCompleted, respapi.EventFailed:
			finish := "stop"
			if nextToolIndex > 0 {
				finish = "tool_calls"
			}

			send(gin.H{"id": id, "object": "chat.completion.chunk", "model": model,
				"choices": []gin.H{{"index": 0, "delta": gin.H{}, "finish_reason": finish}}})
		}
	}
}
