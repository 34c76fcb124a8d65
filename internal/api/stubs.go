package api

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/api/middleware"
	"github.com/kestrelhq/respond/internal/apperror"
	"github.com/kestrelhq/respond/internal/files"
)

// fileStore is the subset of *files.Store the HTTP layer needs, narrowed
// to an interface so handler tests can stand in a fake without a live S3
// endpoint.
type fileStore interface {
	Upload(ctx context.Context, filename, purpose string, body io.Reader) (*files.Object, error)
	Get(id string) (*files.Object, bool)
	Delete(ctx context.Context, id string) (bool, error)
}

// FilesHandlers serves the file-upload stub: multipart upload, plain
// metadata lookup, and delete.
type FilesHandlers struct {
	Store fileStore
}

func NewFilesHandlers(store *files.Store) *FilesHandlers {
	return &FilesHandlers{Store: store}
}

func (h *FilesHandlers) Create(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, apperror.Newf(apperror.KindInvalidRequest, "missing file field: %v", err))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, apperror.Newf(apperror.KindInvalidRequest, "open upload: %v", err))
		return
	}
	defer f.Close()

	obj, err := h.Store.Upload(c.Request.Context(), fileHeader.Filename, c.PostForm("purpose"), f)
	if err != nil {
		appErr := apperror.AsAppError(err)
		middleware.AbortWithError(c, appErr.StatusCode(), appErr)

		return
	}

	c.JSON(http.StatusOK, fileResponse(obj))
}

func (h *FilesHandlers) Get(c *gin.Context) {
	obj, ok := h.Store.Get(c.Param("id"))
	if !ok {
		middleware.AbortWithError(c, http.StatusNotFound, apperror.Newf(apperror.KindNotFound, "file %q not found", c.Param("id")))
		return
	}

	c.JSON(http.StatusOK, fileResponse(obj))
}

func (h *FilesHandlers) Delete(c *gin.Context) {
	id := c.Param("id")

	deleted, err := h.Store.Delete(c.Request.Context(), id)
	if err != nil {
		appErr := apperror.AsAppError(err)
		middleware.AbortWithError(c, appErr.StatusCode(), appErr)

		return
	}

	if !deleted {
		middleware.AbortWithError(c, http.StatusNotFound, apperror.Newf(apperror.KindNotFound, "file %q not found", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "object": "file", "deleted": true})
}

func fileResponse(obj *files.Object) gin.H {
	return gin.H{
		"id":         obj.ID,
		"object":     "file",
		"bytes":      obj.Bytes,
		"filename":   obj.Filename,
		"purpose":    obj.Purpose,
		"created_at": obj.CreatedAt.Unix(),
	}
}

// NotImplemented serves every stub surface that carries no backing
// storage: vector stores, image generation, and anything else beyond the
// file CRUD above.
func NotImplemented(c *gin.Context) {
	middleware.AbortWithError(c, http.StatusNotImplemented, apperror.New(apperror.KindNotImplemented, "this endpoint is not implemented"))
}
