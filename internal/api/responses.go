package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/api/middleware"
	"github.com/kestrelhq/respond/internal/apperror"
	"github.com/kestrelhq/respond/internal/log"
	"github.com/kestrelhq/respond/internal/orchestrator"
	"github.com/kestrelhq/respond/internal/respapi"
)

// ResponsesHandlers serves the /v1/responses* surface, dispatching each
// of the orchestrator's three execution modes off a single request body.
type ResponsesHandlers struct {
	Orchestrator *orchestrator.Orchestrator
}

func NewResponsesHandlers(orch *orchestrator.Orchestrator) *ResponsesHandlers {
	return &ResponsesHandlers{Orchestrator: orch}
}

func (h *ResponsesHandlers) Create(c *gin.Context) {
	var req respapi.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, apperror.Newf(apperror.KindInvalidRequest, "invalid request body: %v", err))
		return
	}

	h.run(c, &req)
}

// Compact is the same dispatch as Create, but requires the turn to
// continue a prior response rather than starting a fresh conversation.
func (h *ResponsesHandlers) Compact(c *gin.Context) {
	var req respapi.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, apperror.Newf(apperror.KindInvalidRequest, "invalid request body: %v", err))
		return
	}

	if req.PreviousResponseID == "" {
		middleware.AbortWithError(c, http.StatusBadRequest, apperror.New(apperror.KindInvalidRequest, "previous_response_id is required for compact"))
		return
	}

	h.run(c, &req)
}

func (h *ResponsesHandlers) run(c *gin.Context, req *respapi.Request) {
	ctx := c.Request.Context()

	if req.Background {
		resp, err := h.Orchestrator.RunBackground(ctx, req)
		if err != nil {
			h.abort(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)

		return
	}

	if req.Stream {
		stream, err := h.Orchestrator.RunStream(ctx, req)
		if err != nil {
			h.abort(c, err)
			return
		}

		defer func() {
			if err := stream.Close(); err != nil {
				log.Warn(ctx, "close response stream", log.Cause(err))
			}
		}()

		writeSSEStream(c, stream)

		return
	}

	resp, err := h.Orchestrator.RunSync(ctx, req)
	if err != nil {
		h.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ResponsesHandlers) Get(c *gin.Context) {
	resp, err := h.Orchestrator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ResponsesHandlers) Delete(c *gin.Context) {
	id := c.Param("id")

	deleted, err := h.Orchestrator.Delete(c.Request.Context(), id)
	if err != nil {
		h.abort(c, err)
		return
	}

	if !deleted {
		middleware.AbortWithError(c, http.StatusNotFound, apperror.Newf(apperror.KindNotFound, "response %q not found", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "object": "response", "deleted": true})
}

func (h *ResponsesHandlers) Cancel(c *gin.Context) {
	resp, err := h.Orchestrator.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ResponsesHandlers) abort(c *gin.Context, err error) {
	appErr := apperror.AsAppError(err)
	middleware.AbortWithError(c, appErr.StatusCode(), appErr)
}
