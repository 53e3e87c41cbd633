package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/secretaria-app/secretaria/internal/data/db"
	"github.com/secretaria-app/secretaria/internal/files"
	"github.com/secretaria-app/secretaria/internal/server/middleware"
	"github.com/secretaria-app/secretaria/pkg/fs"
)

// FileExplorerItem is a file in the cross-conversation file explorer
type FileExplorerItem struct {
	FileOut
	IsGenerated bool `json:"is_generated"`
}

// UploadFile stores a multipart "file" in a conversation and extracts its
// text for later turns.
func (s *Server) UploadFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	conv, err := s.deps.Store.GetConversation(ctx, user.ID, id)
	if err != nil {
		storeError(c, err, detailConvNotFound)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, "Falta el archivo")
		return
	}
	name := header.Filename
	if name == "" {
		name = "archivo"
	}
	maxSize := s.config().MaxUploadSize
	if err := files.Validate(name, header.Size, maxSize); err != nil {
		middleware.AbortWithDetail(c, http.StatusBadRequest, err.Error())
		return
	}

	src, err := header.Open()
	if err != nil {
		middleware.AbortWithDetail(c, http.StatusBadRequest, "No se pudo leer el archivo")
		return
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		middleware.AbortWithDetail(c, http.StatusBadRequest, "No se pudo leer el archivo")
		return
	}
	if err := files.Validate(name, int64(len(data)), maxSize); err != nil {
		middleware.AbortWithDetail(c, http.StatusBadRequest, err.Error())
		return
	}

	ext := files.Ext(name)
	kind := files.Classify(ext)
	path, err := s.deps.Storage.Save(data, files.SanitizeName(name), kind)
	if err != nil {
		logrus.Errorf("failed to store upload %s: %v", name, err)
		middleware.AbortWithDetail(c, http.StatusInternalServerError, detailInternal)
		return
	}

	record := &db.File{
		ConversationID: &conv.ID,
		Filename:       name,
		Filepath:       path,
		FileType:       kind,
		MimeType:       files.MimeType(ext),
		SizeBytes:      int64(len(data)),
	}
	if text := files.Extract(path, ext); text != "" {
		record.ExtractedText = &text
	}
	if err := s.deps.Store.CreateFile(ctx, record); err != nil {
		_ = os.Remove(path)
		storeError(c, err, detailConvNotFound)
		return
	}
	logrus.WithFields(logrus.Fields{"conversation": conv.ID, "file": record.ID}).Infof("stored upload %s (%d bytes)", name, record.SizeBytes)
	c.JSON(http.StatusCreated, newFileOut(*record))
}

// ListConversationFiles returns the files of one conversation.
func (s *Server) ListConversationFiles(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	if _, err := s.deps.Store.GetConversation(ctx, user.ID, id); err != nil {
		storeError(c, err, detailConvNotFound)
		return
	}
	list, err := s.deps.Store.ListConversationFiles(ctx, id)
	if err != nil {
		storeError(c, err, detailConvNotFound)
		return
	}
	c.JSON(http.StatusOK, newFileOuts(list))
}

// ServeFile sends a stored file: images inline, everything else as a
// download. A text file missing from disk is rebuilt from its extracted text.
func (s *Server) ServeFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	f, err := s.deps.Store.GetOwnedFile(c.Request.Context(), user.ID, id)
	if err != nil {
		storeError(c, err, detailFileNotFound)
		return
	}

	if !fs.FileExists(f.Filepath) && f.Text() != "" {
		if err := restoreFromText(f.Filepath, f.Text()); err != nil {
			logrus.Warnf("failed to restore %s: %v", f.Filepath, err)
		}
	}
	if !fs.FileExists(f.Filepath) {
		middleware.AbortWithDetail(c, http.StatusNotFound, detailFileNotOnDisk)
		return
	}

	if f.MimeType != "" {
		c.Header("Content-Type", f.MimeType)
	}
	if f.FileType == files.KindImage {
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", f.Filename))
		c.File(f.Filepath)
		return
	}
	c.FileAttachment(f.Filepath, f.Filename)
}

// ListAllFiles returns every file of the user, newest first, flagging the
// generated ones.
func (s *Server) ListAllFiles(c *gin.Context) {
	user := middleware.CurrentUser(c)
	list, err := s.deps.Store.ListUserFiles(c.Request.Context(), user.ID)
	if err != nil {
		storeError(c, err, detailFileNotFound)
		return
	}
	out := make([]FileExplorerItem, 0, len(list))
	for _, f := range list {
		out = append(out, FileExplorerItem{FileOut: newFileOut(f), IsGenerated: f.IsGenerated()})
	}
	c.JSON(http.StatusOK, out)
}

func restoreFromText(path, text string) error {
	if err := fs.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0644)
}

// DocumentOut is the listing view of a generated document
type DocumentOut struct {
	ID        uint      `json:"id"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// ListDocuments returns the user's generated documents, newest first.
func (s *Server) ListDocuments(c *gin.Context) {
	user := middleware.CurrentUser(c)
	docs, err := s.deps.Store.ListGeneratedFiles(c.Request.Context(), user.ID)
	if err != nil {
		storeError(c, err, detailDocNotFound)
		return
	}
	out := make([]DocumentOut, 0, len(docs))
	for _, d := range docs {
		out = append(out, DocumentOut{ID: d.ID, Filename: d.Filename, SizeBytes: d.SizeBytes, CreatedAt: d.CreatedAt})
	}
	c.JSON(http.StatusOK, out)
}

// DownloadDocument sends a generated document. When the file is gone from
// disk it is generated again from the reply it was attached to.
func (s *Server) DownloadDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	f, err := s.deps.Store.GetOwnedFile(ctx, user.ID, id)
	if err != nil {
		storeError(c, err, detailDocNotFound)
		return
	}

	if !fs.FileExists(f.Filepath) && f.MessageID != nil && f.IsGenerated() {
		s.regenerateDocument(c, f)
	}
	if !fs.FileExists(f.Filepath) {
		middleware.AbortWithDetail(c, http.StatusNotFound, detailFileNotOnDisk)
		return
	}

	c.Header("Content-Type", files.DocxMimeType)
	c.FileAttachment(f.Filepath, f.Filename)
}

func (s *Server) regenerateDocument(c *gin.Context, f *db.File) {
	msg, err := s.deps.Store.GetMessage(c.Request.Context(), *f.MessageID)
	if err != nil {
		logrus.Warnf("cannot regenerate document %d: %v", f.ID, err)
		return
	}
	if strings.TrimSpace(msg.Content) == "" {
		return
	}
	if err := s.deps.Docs.WriteDocx(msg.Content, "", f.Filepath); err != nil {
		logrus.Errorf("failed to regenerate document %d: %v", f.ID, err)
		return
	}
	logrus.Infof("regenerated missing document %s", f.Filepath)
}
