package server

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"google.golang.org/api/option"

	"github.com/secretaria-app/secretaria/internal/gcalendar"
	"github.com/secretaria-app/secretaria/internal/gdrive"
	"github.com/secretaria-app/secretaria/internal/gmail"
)

// fakeGoogle answers the Drive, Calendar and Gmail endpoints the handlers
// call. Unknown paths are 404s.
type fakeGoogle struct {
	mu    sync.Mutex
	posts map[string]string
}

func (g *fakeGoogle) posted(suffix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	for path, body := range g.posts {
		if strings.HasSuffix(path, suffix) {
			return body
		}
	}
	return ""
}

func (g *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	if r.Method == http.MethodPost {
		g.mu.Lock()
		g.posts[r.URL.Path] = string(body)
		g.mu.Unlock()
	}

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	// Calendar
	case strings.HasSuffix(path, "/calendars/primary/events") && r.Method == http.MethodGet:
		io.WriteString(w, `{"items":[{"id":"e1","summary":"Reunión","start":{"dateTime":"2026-03-04T10:00:00+01:00"},"end":{"dateTime":"2026-03-04T11:00:00+01:00"}}]}`)
	case strings.HasSuffix(path, "/calendars/primary/events") && r.Method == http.MethodPost:
		io.WriteString(w, `{"id":"e9","summary":"`+gjson.GetBytes(body, "summary").String()+`","start":{"date":"2026-08-01"},"end":{"date":"2026-08-02"}}`)
	case strings.HasSuffix(path, "/calendars/primary/events/e1") && r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)

	// Gmail
	case strings.HasSuffix(path, "/users/me/messages/send"):
		io.WriteString(w, `{"id":"s1","threadId":"t1"}`)
	case strings.HasSuffix(path, "/users/me/messages"):
		io.WriteString(w, `{"messages":[{"id":"m1","threadId":"t1"}]}`)
	case strings.HasSuffix(path, "/users/me/messages/m1"):
		io.WriteString(w, `{"id":"m1","threadId":"t1","labelIds":["UNREAD"],"payload":{"mimeType":"text/plain",
			"headers":[{"name":"Subject","value":"Factura"}],
			"body":{"data":"`+base64.URLEncoding.EncodeToString([]byte("Adjunto la factura."))+`"}}}`)

	// Drive
	case strings.HasSuffix(path, "/about"):
		io.WriteString(w, `{"user":{"emailAddress":"bot@secretaria.iam.gserviceaccount.com"}}`)
	case strings.HasSuffix(path, "/files") && r.Method == http.MethodGet:
		io.WriteString(w, `{"files":[{"id":"f1","name":"notas.txt","mimeType":"text/plain","size":"11"}]}`)
	case strings.HasSuffix(path, "/files/f1") && r.URL.Query().Get("alt") == "media":
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "hola drive!")
	case strings.HasSuffix(path, "/files/f1"):
		io.WriteString(w, `{"id":"f1","name":"notas.txt","mimeType":"text/plain","size":"11"}`)

	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":404,"message":"not found"}}`)
	}
}

func withGoogle(t *testing.T) (func(*Deps), *fakeGoogle) {
	t.Helper()
	fake := &fakeGoogle{posts: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	opts := []option.ClientOption{option.WithEndpoint(srv.URL + "/"), option.WithHTTPClient(srv.Client())}
	ctx := context.Background()

	drive, err := gdrive.NewWithOptions(ctx, "", opts...)
	require.NoError(t, err)
	cal, err := gcalendar.NewWithOptions(ctx, "", "", opts...)
	require.NoError(t, err)
	mail, err := gmail.NewWithOptions(ctx, opts...)
	require.NoError(t, err)

	return func(d *Deps) {
		d.Drive = drive
		d.Calendar = cal
		d.Gmail = mail
	}, fake
}

func TestGoogleStatus_Configured(t *testing.T) {
	with, _ := withGoogle(t)
	env := newTestEnv(t, with)

	w := env.do(http.MethodGet, "/api/google/status", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, gjson.Get(body, "configured").Bool())
	assert.True(t, gjson.Get(body, "connected").Bool())
	assert.Equal(t, "bot@secretaria.iam.gserviceaccount.com", gjson.Get(body, "email").String())
	assert.True(t, gjson.Get(body, "drive").Bool())
	assert.True(t, gjson.Get(body, "calendar").Bool())
	assert.True(t, gjson.Get(body, "gmail").Bool())
}

func TestCalendarEndpoints(t *testing.T) {
	with, fake := withGoogle(t)
	env := newTestEnv(t, with)

	for _, path := range []string{
		"/api/google/calendar/events?time_min=2026-03-01T00:00:00Z",
		"/api/google/calendar/events/today",
		"/api/google/calendar/events/week",
	} {
		w := env.do(http.MethodGet, path, nil, env.token)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "Reunión", gjson.Get(w.Body.String(), "0.summary").String(), path)
	}

	w := env.do(http.MethodGet, "/api/google/calendar/events?max_results=abc", nil, env.token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(http.MethodPost, "/api/google/calendar/events",
		gcalendar.NewEvent{Summary: "Vacaciones", Start: "2026-08-01", End: "2026-08-02"}, env.token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "e9", gjson.Get(w.Body.String(), "id").String())
	assert.Equal(t, "2026-08-01", gjson.Get(fake.posted("/events"), "start.date").String())

	w = env.do(http.MethodPost, "/api/google/calendar/events", gcalendar.NewEvent{Summary: "sin fechas"}, env.token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(http.MethodDelete, "/api/google/calendar/events/e1", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "ok").Bool())

	w = env.do(http.MethodDelete, "/api/google/calendar/events/nope", nil, env.token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Evento no encontrado", detail(w))
}

func TestGmailEndpoints(t *testing.T) {
	with, fake := withGoogle(t)
	env := newTestEnv(t, with)

	for _, path := range []string{"/api/google/gmail/messages?q=factura", "/api/google/gmail/messages/unread"} {
		w := env.do(http.MethodGet, path, nil, env.token)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "Factura", gjson.Get(w.Body.String(), "0.subject").String(), path)
		assert.True(t, gjson.Get(w.Body.String(), "0.unread").Bool(), path)
	}

	w := env.do(http.MethodGet, "/api/google/gmail/messages/m1", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Adjunto la factura.", gjson.Get(w.Body.String(), "body").String())

	w = env.do(http.MethodGet, "/api/google/gmail/messages/zzz", nil, env.token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Correo no encontrado", detail(w))

	w = env.do(http.MethodPost, "/api/google/gmail/send",
		gmail.Outgoing{To: "luis@example.com", Subject: "Hola", Body: "Te reenvío el informe."}, env.token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "s1", gjson.Get(w.Body.String(), "id").String())
	assert.NotEmpty(t, gjson.Get(fake.posted("/messages/send"), "raw").String())

	w = env.do(http.MethodPost, "/api/google/gmail/send", gmail.Outgoing{Subject: "sin destinatario"}, env.token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDriveBrowseEndpoints(t *testing.T) {
	with, _ := withGoogle(t)
	env := newTestEnv(t, with)

	for _, path := range []string{"/api/google/drive/files?q=notas&max=5", "/api/google/drive/files/recent"} {
		w := env.do(http.MethodGet, path, nil, env.token)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "notas.txt", gjson.Get(w.Body.String(), "0.name").String(), path)
		assert.Equal(t, "txt", gjson.Get(w.Body.String(), "0.file_type").String(), path)
	}

	w := env.do(http.MethodGet, "/api/google/drive/files/f1", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(11), gjson.Get(w.Body.String(), "size").Int())

	w = env.do(http.MethodGet, "/api/google/drive/files/f1/download", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hola drive!", w.Body.String())
	assert.Equal(t, `attachment; filename="notas.txt"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))

	w = env.do(http.MethodGet, "/api/google/drive/files/missing/download", nil, env.token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Archivo de Drive no encontrado", detail(w))

	w = env.do(http.MethodGet, "/api/google/drive/files?max=0", nil, env.token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAttachmentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="acta.docx"`, attachmentDisposition("acta.docx"))
	assert.Equal(t, `attachment; filename*=UTF-8''re+uni%C3%B3n.docx`, attachmentDisposition("re unión.docx"))
}
