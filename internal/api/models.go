package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/api/middleware"
	"github.com/kestrelhq/respond/internal/apperror"
	"github.com/kestrelhq/respond/internal/llmcore"
)

// ModelsHandlers serves GET /v1/models and GET /v1/models/{id}, listing
// the resolver's registered public model ids.
type ModelsHandlers struct {
	Resolver *llmcore.Resolver
}

func NewModelsHandlers(resolver *llmcore.Resolver) *ModelsHandlers {
	return &ModelsHandlers{Resolver: resolver}
}

func (h *ModelsHandlers) List(c *gin.Context) {
	summaries := h.Resolver.List()

	data := make([]gin.H, 0, len(summaries))
	for _, s := range summaries {
		data = append(data, gin.H{
			"id":       s.ID,
			"object":   "model",
			"created":  s.Created.Unix(),
			"owned_by": s.OwnedBy,
		})
	}

	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}

func (h *ModelsHandlers) Get(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.Resolver.Resolve(id); err != nil {
		middleware.AbortWithError(c, http.StatusNotFound, apperror.Newf(apperror.KindNotFound, "model %q not found", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "object": "model"})
}
