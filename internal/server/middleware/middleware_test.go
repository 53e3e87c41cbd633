package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func newErrorLogEngine(t *testing.T, filter string) (*gin.Engine, *ErrorLogMiddleware, *bufferCloser) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	out := &bufferCloser{}
	m, err := NewErrorLogMiddleware(out, filter)
	require.NoError(t, err)

	r := gin.New()
	r.Use(m.Middleware())
	r.POST("/api/auth/login", func(c *gin.Context) {
		var body map[string]any
		_ = c.ShouldBindJSON(&body)
		AbortWithDetail(c, http.StatusUnauthorized, "Usuario o contraseña incorrectos")
	})
	r.GET("/api/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/api/missing", func(c *gin.Context) {
		AbortWithDetail(c, http.StatusNotFound, "Archivo no encontrado")
	})
	return r, m, out
}

func lines(out *bufferCloser) []string {
	text := strings.TrimSpace(out.String())
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestErrorLog_RecordsFailuresOnly(t *testing.T) {
	r, _, out := newErrorLogEngine(t, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, lines(out))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"ana","password":"secreto"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Usuario o contraseña incorrectos", gjson.Get(w.Body.String(), "detail").String())

	got := lines(out)
	require.Len(t, got, 1)
	entry := got[0]
	assert.Equal(t, "POST", gjson.Get(entry, "method").String())
	assert.Equal(t, "/api/auth/login", gjson.Get(entry, "path").String())
	assert.Equal(t, int64(401), gjson.Get(entry, "status_code").Int())
	assert.Equal(t, "ana", gjson.Get(entry, "request_body.username").String())
	assert.Equal(t, "***", gjson.Get(entry, "request_body.password").String())
	assert.Equal(t, "Usuario o contraseña incorrectos", gjson.Get(entry, "response_body.detail").String())
}

func TestErrorLog_FilterExpression(t *testing.T) {
	r, m, out := newErrorLogEngine(t, `status >= 500`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, lines(out))

	require.NoError(t, m.SetFilterExpression(`status == 404 && path startsWith "/api/"`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/missing?token=abc&x=1", nil))
	got := lines(out)
	require.Len(t, got, 1)
	assert.Equal(t, "token=***&x=1", gjson.Get(got[0], "query").String())

	assert.Error(t, m.SetFilterExpression(`status +`))
	assert.Error(t, m.SetFilterExpression(`path`), "non-boolean filters are rejected")
}

func TestErrorLog_StopClosesOutput(t *testing.T) {
	r, m, out := newErrorLogEngine(t, "")
	m.Stop()
	assert.True(t, out.closed)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, lines(out))
}

func TestNewErrorLogMiddleware_InvalidFilter(t *testing.T) {
	_, err := NewErrorLogMiddleware(&bufferCloser{}, "status >")
	assert.Error(t, err)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.GET("/api/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/ok", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "bearer", header: "Bearer abc", want: "abc"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "padded", header: "  Bearer   abc ", want: "abc"},
		{name: "missing", header: "", want: ""},
		{name: "other scheme", header: "Basic abc", want: ""},
		{name: "no token", header: "Bearer", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bearerToken(tt.header))
		})
	}
}
