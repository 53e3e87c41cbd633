// Package gdrive exports stored files to Google Drive and browses the
// account's files, using a service account.
package gdrive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/secretaria-app/secretaria/internal/googleauth"
)

const (
	// DefaultListSize is the page size of List when none is given.
	DefaultListSize = 30
	// DefaultRecentSize is the page size of Recent when none is given.
	DefaultRecentSize = 20
	maxPageSize       = 100

	fileFields = "id,name,mimeType,size,modifiedTime,webViewLink,iconLink,parents"
	listFields = "files(" + fileFields + ")"
	folderMime = "application/vnd.google-apps.folder"
)

// fileTypes maps well-known MIME types to a short type label.
var fileTypes = map[string]string{
	"application/vnd.google-apps.folder":       "folder",
	"application/vnd.google-apps.document":     "gdoc",
	"application/vnd.google-apps.spreadsheet":  "gsheet",
	"application/vnd.google-apps.presentation": "gslides",
	"application/pdf":                          "pdf",
	"image/jpeg":                               "jpg",
	"image/png":                                "png",
	"text/plain":                               "txt",
}

type exportFormat struct {
	mime string
	ext  string
}

// exports lists how Workspace documents are downloaded; they have no
// binary content of their own.
var exports = map[string]exportFormat{
	"application/vnd.google-apps.document": {
		mime: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ext: ".docx",
	},
	"application/vnd.google-apps.spreadsheet": {
		mime: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ext: ".xlsx",
	},
	"application/vnd.google-apps.presentation": {
		mime: "application/vnd.openxmlformats-officedocument.presentationml.presentation", ext: ".pptx",
	},
}

// File is the listing view of a Drive file.
type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
	WebViewLink  string `json:"web_view_link"`
	IconLink     string `json:"icon_link"`
	IsFolder     bool   `json:"is_folder"`
	FileType     string `json:"file_type"`
}

// Uploaded identifies a file created by Upload.
type Uploaded struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WebViewLink string `json:"web_view_link"`
}

// Download is the content of a Drive file. The caller closes Body.
type Download struct {
	Body          io.ReadCloser
	Name          string
	MimeType      string
	ContentLength int64
}

// ListFilter narrows List. A zero Max means DefaultListSize; an empty
// FolderID falls back to the client's folder.
type ListFilter struct {
	Query    string
	FolderID string
	Max      int
}

// Status describes the Drive connection.
type Status struct {
	Configured bool   `json:"configured"`
	Connected  bool   `json:"connected"`
	Email      string `json:"email,omitempty"`
	FolderID   string `json:"folder_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Client wraps a Drive service scoped to an optional folder.
type Client struct {
	svc      *drive.Service
	folderID string
}

// New creates a client from service-account credentials. Extra options are
// appended after the credentials.
func New(ctx context.Context, creds googleauth.Credentials, folderID string, opts ...option.ClientOption) (*Client, error) {
	auth, err := googleauth.ClientOptions(ctx, creds, drive.DriveScope)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, folderID, append(auth, opts...)...)
}

// NewWithOptions creates a client from raw client options.
func NewWithOptions(ctx context.Context, folderID string, opts ...option.ClientOption) (*Client, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Client{svc: svc, folderID: folderID}, nil
}

// FolderID returns the folder listings and uploads are scoped to.
func (c *Client) FolderID() string { return c.folderID }

// Status checks the credentials against the Drive API.
func (c *Client) Status(ctx context.Context) Status {
	st := Status{Configured: true, FolderID: c.folderID}
	about, err := c.svc.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Connected = true
	if about.User != nil {
		st.Email = about.User.EmailAddress
	}
	return st
}

// List returns non-trashed files, newest first, optionally filtered by a
// name fragment and a parent folder.
func (c *Client) List(ctx context.Context, filter ListFilter) ([]File, error) {
	folder := filter.FolderID
	if folder == "" {
		folder = c.folderID
	}
	return c.list(ctx, listQuery(folder, filter.Query), pageSize(filter.Max, DefaultListSize))
}

// Recent returns the most recently modified files owned by the account.
func (c *Client) Recent(ctx context.Context, limit int) ([]File, error) {
	return c.list(ctx, "trashed=false and 'me' in owners", pageSize(limit, DefaultRecentSize))
}

func (c *Client) list(ctx context.Context, q string, size int) ([]File, error) {
	resp, err := c.svc.Files.List().
		Q(q).
		PageSize(int64(size)).
		Fields(listFields).
		OrderBy("modifiedTime desc").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list drive files: %w", err)
	}
	out := make([]File, 0, len(resp.Files))
	for _, f := range resp.Files {
		out = append(out, toFile(f))
	}
	return out, nil
}

// Get returns the metadata of one file.
func (c *Client) Get(ctx context.Context, id string) (*File, error) {
	f, err := c.svc.Files.Get(id).Fields(googleapi.Field(fileFields)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get drive file %s: %w", id, err)
	}
	out := toFile(f)
	return &out, nil
}

// Open downloads a file. Workspace documents are exported to the matching
// Office format and their name gets its extension.
func (c *Client) Open(ctx context.Context, id string) (*Download, error) {
	meta, err := c.svc.Files.Get(id).Fields("name,mimeType").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get drive file %s: %w", id, err)
	}
	name := meta.Name
	if name == "" {
		name = "file"
	}

	if format, ok := exports[meta.MimeType]; ok {
		resp, err := c.svc.Files.Export(id, format.mime).Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("failed to export drive file %s: %w", id, err)
		}
		if !strings.HasSuffix(name, format.ext) {
			name += format.ext
		}
		return &Download{Body: resp.Body, Name: name, MimeType: format.mime, ContentLength: resp.ContentLength}, nil
	}

	resp, err := c.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download drive file %s: %w", id, err)
	}
	mime := meta.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return &Download{Body: resp.Body, Name: name, MimeType: mime, ContentLength: resp.ContentLength}, nil
}

// Upload creates a Drive file named name from the local file at path.
func (c *Client) Upload(ctx context.Context, path, name, mimeType string) (*Uploaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	meta := &drive.File{Name: name}
	if c.folderID != "" {
		meta.Parents = []string{c.folderID}
	}
	var media []googleapi.MediaOption
	if mimeType != "" {
		media = append(media, googleapi.ContentType(mimeType))
	}
	created, err := c.svc.Files.Create(meta).
		Media(f, media...).
		Fields("id,name,webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return &Uploaded{ID: created.Id, Name: created.Name, WebViewLink: created.WebViewLink}, nil
}

func toFile(f *drive.File) File {
	return File{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		Size:         f.Size,
		ModifiedTime: f.ModifiedTime,
		WebViewLink:  f.WebViewLink,
		IconLink:     f.IconLink,
		IsFolder:     f.MimeType == folderMime,
		FileType:     fileType(f.MimeType),
	}
}

func fileType(mime string) string {
	if t, ok := fileTypes[mime]; ok {
		return t
	}
	if i := strings.LastIndex(mime, "/"); i >= 0 {
		return mime[i+1:]
	}
	return "file"
}

func pageSize(n, def int) int {
	if n <= 0 {
		return def
	}
	return min(n, maxPageSize)
}

func listQuery(folderID, query string) string {
	parts := []string{"trashed=false"}
	if folderID != "" {
		parts = append(parts, fmt.Sprintf("'%s' in parents", escape(folderID)))
	}
	if q := strings.TrimSpace(query); q != "" {
		parts = append(parts, fmt.Sprintf("name contains '%s'", escape(q)))
	}
	return strings.Join(parts, " and ")
}

// escape quotes a value for a Drive query string literal.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
