package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultErrorLogFilter selects every failed request.
const DefaultErrorLogFilter = "status >= 400"

// maxCapturedBody bounds how much of a request or response body is kept.
const maxCapturedBody = 64 * 1024

// FilterContext provides the context for filter expression evaluation
type FilterContext struct {
	Status int    `expr:"status"`
	Method string `expr:"method"`
	Path   string `expr:"path"`
	Query  string `expr:"query"`
}

// ErrorLogMiddleware writes failed requests as JSON lines. Which requests
// count as failed is decided by an expr filter over FilterContext.
type ErrorLogMiddleware struct {
	mu            sync.RWMutex
	out           io.WriteCloser
	filterProgram *vm.Program
}

// NewErrorLogMiddleware creates the middleware writing to out, usually a
// rotating file.
func NewErrorLogMiddleware(out io.WriteCloser, filter string) (*ErrorLogMiddleware, error) {
	m := &ErrorLogMiddleware{out: out}
	if err := m.SetFilterExpression(filter); err != nil {
		return nil, err
	}
	return m, nil
}

// SetFilterExpression recompiles and sets a new filter expression. An empty
// expression restores the default.
func (m *ErrorLogMiddleware) SetFilterExpression(expression string) error {
	if strings.TrimSpace(expression) == "" {
		expression = DefaultErrorLogFilter
	}
	program, err := expr.Compile(expression, expr.Env(FilterContext{}), expr.AsBool())
	if err != nil {
		return fmt.Errorf("failed to compile filter expression: %w", err)
	}

	m.mu.Lock()
	m.filterProgram = program
	m.mu.Unlock()
	return nil
}

// Middleware returns the Gin middleware function
func (m *ErrorLogMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var requestBody []byte
		if c.Request.Body != nil && !isMultipart(c.GetHeader("Content-Type")) {
			requestBody, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxCapturedBody))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(requestBody), c.Request.Body))
		}

		w := &responseBodyWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w

		start := time.Now()
		c.Next()

		fc := FilterContext{
			Status: c.Writer.Status(),
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
			Query:  c.Request.URL.RawQuery,
		}
		if !m.matches(fc) {
			return
		}
		m.write(fc, start, time.Since(start), c.ClientIP(), requestBody, w.body.Bytes())
	}
}

func (m *ErrorLogMiddleware) matches(fc FilterContext) bool {
	m.mu.RLock()
	program := m.filterProgram
	m.mu.RUnlock()

	out, err := expr.Run(program, fc)
	if err != nil {
		logrus.Errorf("Failed to evaluate error log filter: %v", err)
		return fc.Status >= 400
	}
	ok, _ := out.(bool)
	return ok
}

func (m *ErrorLogMiddleware) write(fc FilterContext, start time.Time, duration time.Duration, clientIP string, requestBody, responseBody []byte) {
	entry := map[string]any{
		"timestamp":   start.Format(time.RFC3339Nano),
		"method":      fc.Method,
		"path":        fc.Path,
		"query":       maskToken(fc.Query),
		"status_code": fc.Status,
		"duration_ms": duration.Milliseconds(),
		"client_ip":   clientIP,
	}
	if len(requestBody) > 0 {
		entry["request_body"] = rawOrString(maskPassword(requestBody))
	}
	if len(responseBody) > 0 {
		entry["response_body"] = rawOrString(responseBody)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		logrus.Errorf("Failed to marshal error log entry: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out == nil {
		return
	}
	if _, err := m.out.Write(append(line, '\n')); err != nil {
		logrus.Errorf("Failed to write error log entry: %v", err)
	}
}

// Stop closes the output.
func (m *ErrorLogMiddleware) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out != nil {
		if err := m.out.Close(); err != nil {
			logrus.Errorf("Failed to close error log: %v", err)
		}
		m.out = nil
	}
}

// responseBodyWriter keeps a bounded copy of the response body.
type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseBodyWriter) Write(b []byte) (int, error) {
	if room := maxCapturedBody - w.body.Len(); room > 0 {
		w.body.Write(b[:min(room, len(b))])
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseBodyWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func rawOrString(b []byte) any {
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	return string(b)
}

func isMultipart(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "multipart/")
}

// maskPassword hides the password of login bodies.
func maskPassword(body []byte) []byte {
	if !gjson.ValidBytes(body) || !gjson.GetBytes(body, "password").Exists() {
		return body
	}
	masked, err := sjson.SetBytes(body, "password", "***")
	if err != nil {
		return body
	}
	return masked
}

// maskToken hides the session token of ?token= download links.
func maskToken(query string) string {
	parts := strings.Split(query, "&")
	for i, p := range parts {
		if strings.HasPrefix(p, "token=") {
			parts[i] = "token=***"
		}
	}
	return strings.Join(parts, "&")
}
