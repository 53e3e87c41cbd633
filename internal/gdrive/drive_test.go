package gdrive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/secretaria-app/secretaria/internal/googleauth"
)

type driveRequest struct {
	method string
	path   string
	query  map[string]string
	body   string
}

func fakeDrive(t *testing.T, requests *[]driveRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		*requests = append(*requests, driveRequest{method: r.Method, path: r.URL.Path, query: q, body: string(body)})

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/about"):
			io.WriteString(w, `{"user":{"emailAddress":"bot@project.iam.gserviceaccount.com"}}`)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/files"):
			io.WriteString(w, `{"files":[
				{"id":"f2","name":"informe.docx","mimeType":"application/vnd.openxmlformats-officedocument.wordprocessingml.document","size":"2048","modifiedTime":"2026-01-02T10:00:00Z","webViewLink":"https://drive/f2"},
				{"id":"d1","name":"Proyectos","mimeType":"application/vnd.google-apps.folder","modifiedTime":"2026-01-01T11:00:00Z"},
				{"id":"f1","name":"notas.txt","mimeType":"text/plain","size":"10","modifiedTime":"2026-01-01T10:00:00Z"}
			]}`)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/files"):
			io.WriteString(w, `{"id":"new1","name":"informe.docx","webViewLink":"https://drive/new1"}`)
		case strings.HasSuffix(r.URL.Path, "/files/g1/export"):
			w.Header().Set("Content-Type", r.URL.Query().Get("mimeType"))
			io.WriteString(w, "exported bytes")
		case strings.HasSuffix(r.URL.Path, "/files/g1"):
			io.WriteString(w, `{"id":"g1","name":"Acta","mimeType":"application/vnd.google-apps.document"}`)
		case strings.HasSuffix(r.URL.Path, "/files/f1") && r.URL.Query().Get("alt") == "media":
			w.Header().Set("Content-Type", "text/plain")
			io.WriteString(w, "hola drive")
		case strings.HasSuffix(r.URL.Path, "/files/f1"):
			io.WriteString(w, `{"id":"f1","name":"notas.txt","mimeType":"text/plain","size":"10","webViewLink":"https://drive/f1","parents":["folder1"]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"code":404,"message":"not found"}}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, folder string, requests *[]driveRequest) *Client {
	t.Helper()
	srv := fakeDrive(t, requests)
	c, err := NewWithOptions(context.Background(), folder,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), googleauth.Credentials{}, "")
	assert.ErrorIs(t, err, googleauth.ErrNotConfigured)

	_, err = New(context.Background(), googleauth.Credentials{File: filepath.Join(t.TempDir(), "missing.json")}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service account key not found")
}

func TestListQuery(t *testing.T) {
	assert.Equal(t, "trashed=false", listQuery("", "  "))
	assert.Equal(t, "trashed=false and 'abc' in parents", listQuery("abc", ""))
	assert.Equal(t, `trashed=false and 'abc' in parents and name contains 'o\'brien'`, listQuery("abc", "o'brien"))
}

func TestClient_Status(t *testing.T) {
	var requests []driveRequest
	c := testClient(t, "folder1", &requests)

	st := c.Status(context.Background())
	assert.True(t, st.Configured)
	assert.True(t, st.Connected)
	assert.Equal(t, "bot@project.iam.gserviceaccount.com", st.Email)
	assert.Equal(t, "folder1", st.FolderID)
	assert.Empty(t, st.Error)
}

func TestClient_List(t *testing.T) {
	var requests []driveRequest
	c := testClient(t, "folder1", &requests)

	got, err := c.List(context.Background(), ListFilter{Query: "inf"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "f2", got[0].ID)
	assert.Equal(t, int64(2048), got[0].Size)
	assert.Equal(t, "https://drive/f2", got[0].WebViewLink)
	assert.Equal(t, "vnd.openxmlformats-officedocument.wordprocessingml.document", got[0].FileType)
	assert.True(t, got[1].IsFolder)
	assert.Equal(t, "folder", got[1].FileType)
	assert.Equal(t, "txt", got[2].FileType)

	require.Len(t, requests, 1)
	q := requests[0].query
	assert.Equal(t, "trashed=false and 'folder1' in parents and name contains 'inf'", q["q"])
	assert.Equal(t, "30", q["pageSize"])
	assert.Equal(t, "modifiedTime desc", q["orderBy"])
	assert.Equal(t, listFields, q["fields"])
}

func TestClient_ListFolderAndSize(t *testing.T) {
	var requests []driveRequest
	c := testClient(t, "folder1", &requests)

	_, err := c.List(context.Background(), ListFilter{FolderID: "other", Max: 500})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "trashed=false and 'other' in parents", requests[0].query["q"])
	assert.Equal(t, "100", requests[0].query["pageSize"])
}

func TestClient_Recent(t *testing.T) {
	var requests []driveRequest
	c := testClient(t, "folder1", &requests)

	got, err := c.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	require.Len(t, requests, 1)
	assert.Equal(t, "trashed=false and 'me' in owners", requests[0].query["q"])
	assert.Equal(t, "20", requests[0].query["pageSize"])
}

func TestClient_Get(t *testing.T) {
	var requests []driveRequest
	c := testClient(t, "", &requests)

	f, err := c.Get(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "notas.txt", f.Name)
	assert.Equal(t, "https://drive/f1", f.WebViewLink)
	assert.False(t, f.IsFolder)

	_, err = c.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, googleauth.IsNotFound(err))
}

func TestClient_Open(t *testing.T) {
	var requests []driveRequest
	c := testClient(t, "", &requests)

	d, err := c.Open(context.Background(), "f1")
	require.NoError(t, err)
	data, err := io.ReadAll(d.Body)
	d.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "hola drive", string(data))
	assert.Equal(t, "notas.txt", d.Name)
	assert.Equal(t, "text/plain", d.MimeType)

	d, err = c.Open(context.Background(), "g1")
	require.NoError(t, err)
	data, err = io.ReadAll(d.Body)
	d.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "exported bytes", string(data))
	assert.Equal(t, "Acta.docx", d.Name)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", d.MimeType)

	_, err = c.Open(context.Background(), "missing")
	assert.True(t, googleauth.IsNotFound(err))
}

func TestClient_Upload(t *testing.T) {
	var requests []driveRequest
	c := testClient(t, "folder1", &requests)

	path := filepath.Join(t.TempDir(), "abc123_informe.docx")
	require.NoError(t, os.WriteFile(path, []byte("contenido del informe"), 0o644))

	up, err := c.Upload(context.Background(), path, "informe.docx", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, &Uploaded{ID: "new1", Name: "informe.docx", WebViewLink: "https://drive/new1"}, up)

	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodPost, requests[0].method)
	assert.Contains(t, requests[0].body, `"name":"informe.docx"`)
	assert.Contains(t, requests[0].body, `"parents":["folder1"]`)
	assert.Contains(t, requests[0].body, "contenido del informe")
}

func TestClient_UploadMissingFile(t *testing.T) {
	var requests []driveRequest
	c := testClient(t, "", &requests)

	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "nope"), "nope", "")
	assert.Error(t, err)
	assert.Empty(t, requests)
}
