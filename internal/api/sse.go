package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/log"
	"github.com/kestrelhq/respond/internal/respapi"
	"github.com/kestrelhq/respond/internal/streams"
)

// writeSSEStream drains a projector's event stream onto the response as
// Server-Sent Events: a select over the client-gone channel and the
// request context so a client disconnect stops writing without blocking
// on a closed connection.
// The projector's Err() is always nil by construction (a failure is
// already translated into queued error/response.failed events, and an
// interruption only persists the incomplete row without emitting further
// events), so the only thing left to do once the stream is exhausted is
// write the SSE terminator.
func writeSSEStream(c *gin.Context, stream streams.Stream[*respapi.Event]) {
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientGone := c.Writer.CloseNotify()

	for {
		select {
		case <-clientGone:
			log.Warn(ctx, "client disconnected, draining response stream to persist final state")
			drainStream(stream)

			return

		case <-ctx.Done():
			log.Warn(ctx, "context done, draining response stream to persist final state")
			drainStream(stream)

			return

		default:
			if stream.Next() {
				cur := stream.Current()
				c.SSEvent(cur.Type, cur)
				c.Writer.Flush()

				continue
			}

			if err := stream.Err(); err != nil {
				log.Error(ctx, "error draining response stream", log.Cause(err))
				c.SSEvent("error", err.Error())
				c.Writer.Flush()
			}

			c.Writer.WriteString("data: [DONE]\n\n")
			c.Writer.Flush()

			return
		}
	}
}

// drainStream keeps pulling from an already-interrupted stream without
// writing anything, so the projector still runs to exhaustion and
// persists its final (incomplete/failed) state even though nothing more
// can reach a gone client.
func drainStream(stream streams.Stream[*respapi.Event]) {
	for stream.Next() {
	}
}
