package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/api/middleware"
)

// Handlers bundles every handler group SetupRoutes wires onto the server.
type Handlers struct {
	Responses       *ResponsesHandlers
	Models          *ModelsHandlers
	Files           *FilesHandlers
	ChatCompletions *ChatCompletionsHandlers
}

// SetupRoutes lays out the Responses API surface plus the file-upload,
// model-listing, and chat-completions-compatible routes: a public
// timeout-only group and a bearer-authenticated API group layered with
// WithTimeout/WithBearerAuth.
func SetupRoutes(server *Server, handlers Handlers) {
	publicGroup := server.Group("", middleware.WithTimeout(server.Config.RequestTimeout))
	{
		publicGroup.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	}

	apiGroup := server.Group("/v1",
		middleware.WithJSONContentType(),
		middleware.WithBearerAuth(server.Config.APIKeys),
	)

	responsesGroup := apiGroup.Group("", middleware.WithTimeout(server.Config.LLMRequestTimeout))
	{
		responsesGroup.POST("/responses", handlers.Responses.Create)
		responsesGroup.GET("/responses/:id", handlers.Responses.Get)
		responsesGroup.DELETE("/responses/:id", handlers.Responses.Delete)
		responsesGroup.POST("/responses/:id/cancel", handlers.Responses.Cancel)
		responsesGroup.POST("/responses/compact", handlers.Responses.Compact)

		responsesGroup.POST("/chat/completions", handlers.ChatCompletions.Create)
	}

	crudGroup := apiGroup.Group("", middleware.WithTimeout(server.Config.RequestTimeout))
	{
		crudGroup.GET("/models", handlers.Models.List)
		crudGroup.GET("/models/:id", handlers.Models.Get)

		crudGroup.POST("/files", handlers.Files.Create)
		crudGroup.GET("/files/:id", handlers.Files.Get)
		crudGroup.DELETE("/files/:id", handlers.Files.Delete)

		crudGroup.POST("/vector_stores", NotImplemented)
		crudGroup.POST("/images/generations", NotImplemented)
	}
}
