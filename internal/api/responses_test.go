package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/respapi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newResponsesRouter(orch *fakeAdapter) (*gin.Engine, *ResponsesHandlers) {
	handlers := NewResponsesHandlers(newTestOrchestrator(orch))

	router := gin.New()
	router.POST("/v1/responses", handlers.Create)
	router.GET("/v1/responses/:id", handlers.Get)
	router.DELETE("/v1/responses/:id", handlers.Delete)
	router.POST("/v1/responses/:id/cancel", handlers.Cancel)
	router.POST("/v1/responses/compact", handlers.Compact)

	return router, handlers
}

func TestResponsesHandlers_CreateSync(t *testing.T) {
	adapter := &fakeAdapter{completeResult: &llmcore.CompletionResult{
		Message: llmcore.ProviderMessage{Role: llmcore.RoleAssistant, Content: []llmcore.ContentPart{{Type: llmcore.ContentPartText, Text: "hi there"}}},
	}}

	router, _ := newResponsesRouter(adapter)

	body, _ := json.Marshal(map[string]any{"model": "test-model", "input": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp respapi.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, respapi.StatusCompleted, resp.Status)
	require.Len(t, resp.Output, 1)
	assert.Equal(t, "hi there", resp.Output[0].Content[0].Text)
}

func TestResponsesHandlers_CreateInvalidBody(t *testing.T) {
	router, _ := newResponsesRouter(&fakeAdapter{})

	req := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResponsesHandlers_CreateProviderError(t *testing.T) {
	adapter := &fakeAdapter{completeErr: assert.AnError}
	router, _ := newResponsesRouter(adapter)

	body, _ := json.Marshal(map[string]any{"model": "test-model", "input": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponsesHandlers_GetNotFound(t *testing.T) {
	router, _ := newResponsesRouter(&fakeAdapter{})

	req := httptest.NewRequest(http.MethodGet, "/v1/responses/resp_missing", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResponsesHandlers_CompactRequiresPreviousResponseID(t *testing.T) {
	router, _ := newResponsesRouter(&fakeAdapter{})

	body, _ := json.Marshal(map[string]any{"model": "test-model", "input": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/responses/compact", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResponsesHandlers_GetAndDeleteRoundTrip(t *testing.T) {
	adapter := &fakeAdapter{completeResult: &llmcore.CompletionResult{
		Message: llmcore.ProviderMessage{Role: llmcore.RoleAssistant, Content: []llmcore.ContentPart{{Type: llmcore.ContentPartText, Text: "ok"}}},
	}}

	router, _ := newResponsesRouter(adapter)

	body, _ := json.Marshal(map[string]any{"model": "test-model", "input": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var created respapi.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	getReq := httptest.NewRequest(http.MethodGet, "/v1/responses/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	delReq := httptest.NewRequest(http.MethodDelete, "/v1/responses/"+created.ID, nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, delReq)
	assert.Equal(t, http.StatusOK, delRec.Code)

	getReq2 := httptest.NewRequest(http.MethodGet, "/v1/responses/"+created.ID, nil)
	getRec2 := httptest.NewRecorder()
	router.ServeHTTP(getRec2, getReq2)
	assert.Equal(t, http.StatusNotFound, getRec2.Code)
}
