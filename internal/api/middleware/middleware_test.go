package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/respond/internal/tracing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(method, path string, headers map[string]string) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, path, nil)

	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}

	return c, rec
}

func TestExtractBearerToken(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/", map[string]string{"Authorization": "Bearer sk-abc"})
	token, err := ExtractBearerToken(c.Request)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", token)

	c, _ = newTestContext(http.MethodGet, "/", nil)
	_, err = ExtractBearerToken(c.Request)
	require.Error(t, err)

	c, _ = newTestContext(http.MethodGet, "/", map[string]string{"Authorization": "Token abc"})
	_, err = ExtractBearerToken(c.Request)
	require.Error(t, err)
}

func TestWithBearerAuth_EmptyKeysAcceptsAny(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/", map[string]string{"Authorization": "Bearer anything"})

	WithBearerAuth(nil)(c)

	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWithBearerAuth_RejectsUnknownKey(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/", map[string]string{"Authorization": "Bearer wrong"})

	WithBearerAuth([]string{"sk-correct"})(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWithBearerAuth_AcceptsKnownKey(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/", map[string]string{"Authorization": "Bearer sk-correct"})

	WithBearerAuth([]string{"sk-correct"})(c)

	assert.False(t, c.IsAborted())
}

func TestWithJSONContentType_SkipsReadOnlyMethods(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/", nil)
	WithJSONContentType()(c)
	assert.False(t, c.IsAborted())

	c, _ = newTestContext(http.MethodDelete, "/", nil)
	WithJSONContentType()(c)
	assert.False(t, c.IsAborted())
}

func TestWithJSONContentType_RejectsMissingHeader(t *testing.T) {
	c, rec := newTestContext(http.MethodPost, "/", nil)

	WithJSONContentType()(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestWithJSONContentType_AcceptsJSON(t *testing.T) {
	c, _ := newTestContext(http.MethodPost, "/", map[string]string{"Content-Type": "application/json"})

	WithJSONContentType()(c)

	assert.False(t, c.IsAborted())
}

func TestWithJSONContentType_AcceptsMultipart(t *testing.T) {
	c, _ := newTestContext(http.MethodPost, "/", map[string]string{"Content-Type": "multipart/form-data; boundary=x"})

	WithJSONContentType()(c)

	assert.False(t, c.IsAborted())
}

func TestWithTrace_GeneratesIDWhenHeaderMissing(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/", nil)

	WithTrace(tracing.DefaultConfig())(c)

	traceID, ok := tracing.GetTraceID(c.Request.Context())
	require.True(t, ok)
	assert.NotEmpty(t, traceID)
	assert.Equal(t, traceID, rec.Header().Get("X-Trace-Id"))
}

func TestWithTrace_PropagatesClientHeader(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/", map[string]string{"X-Trace-Id": "rp-client-supplied"})

	WithTrace(tracing.DefaultConfig())(c)

	traceID, ok := tracing.GetTraceID(c.Request.Context())
	require.True(t, ok)
	assert.Equal(t, "rp-client-supplied", traceID)
	assert.Equal(t, "rp-client-supplied", rec.Header().Get("X-Trace-Id"))
}
