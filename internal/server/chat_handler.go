package server

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/secretaria-app/secretaria/internal/chat"
	"github.com/secretaria-app/secretaria/internal/constant"
	"github.com/secretaria-app/secretaria/internal/server/middleware"
)

// ConversationRequest is the body of conversation create and rename
type ConversationRequest struct {
	Title string `json:"title"`
}

// MessageFileOut is a file reference inside a listed message
type MessageFileOut struct {
	ID        uint   `json:"id"`
	Filename  string `json:"filename"`
	FileType  string `json:"file_type"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// MessageOut is the listing view of a stored turn
type MessageOut struct {
	ID        uint             `json:"id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ModelUsed *string          `json:"model_used"`
	CreatedAt time.Time        `json:"created_at"`
	Files     []MessageFileOut `json:"files"`
}

// SendMessageRequest is the body of POST .../messages
type SendMessageRequest struct {
	Content          string `json:"content"`
	FileIDs          []uint `json:"file_ids"`
	Search           bool   `json:"search"`
	GenerateDocument bool   `json:"generate_document"`
}

// ListConversations returns the user's conversations, most recently active first.
func (s *Server) ListConversations(c *gin.Context) {
	user := middleware.CurrentUser(c)
	convs, err := s.deps.Store.ListConversations(c.Request.Context(), user.ID)
	if err != nil {
		storeError(c, err, detailConvNotFound)
		return
	}
	c.JSON(http.StatusOK, convs)
}

// CreateConversation starts a conversation; the title is optional.
func (s *Server) CreateConversation(c *gin.Context) {
	var req ConversationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, detailInvalidBody)
			return
		}
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = constant.DefaultConversationTitle
	}

	user := middleware.CurrentUser(c)
	conv, err := s.deps.Store.CreateConversation(c.Request.Context(), user.ID, title)
	if err != nil {
		storeError(c, err, detailConvNotFound)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// RenameConversation sets a conversation title.
func (s *Server) RenameConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, detailInvalidBody)
		return
	}

	user := middleware.CurrentUser(c)
	conv, err := s.deps.Store.RenameConversation(c.Request.Context(), user.ID, id, strings.TrimSpace(req.Title))
	if err != nil {
		storeError(c, err, detailConvNotFound)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// DeleteConversation removes a conversation with its turns, files and
// forwards, then removes the files from disk.
func (s *Server) DeleteConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	removed, err := s.deps.Store.DeleteConversation(c.Request.Context(), user.ID, id)
	if err != nil {
		storeError(c, err, detailConvNotFound)
		return
	}
	for _, f := range removed {
		if err := os.Remove(f.Filepath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.Warnf("failed to remove %s: %v", f.Filepath, err)
		}
	}
	c.Status(http.StatusNoContent)
}

// ListMessages returns the turns of a conversation in order with their files.
func (s *Server) ListMessages(c *gin.Context) {
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
	msgs, err := s.deps.Store.ListMessages(ctx, id)
	if err != nil {
		storeError(c, err, detailConvNotFound)
		return
	}

	out := make([]MessageOut, 0, len(msgs))
	for _, m := range msgs {
		item := MessageOut{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			Files:     make([]MessageFileOut, 0, len(m.Files)),
		}
		if m.ModelUsed != "" {
			model := m.ModelUsed
			item.ModelUsed = &model
		}
		for _, f := range m.Files {
			item.Files = append(item.Files, MessageFileOut{
				ID:        f.ID,
				Filename:  f.Filename,
				FileType:  f.FileType,
				MimeType:  f.MimeType,
				SizeBytes: f.SizeBytes,
			})
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, out)
}

// SendMessage submits a user turn and streams the reply as server-sent events.
func (s *Server) SendMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, detailInvalidBody)
		return
	}

	user := middleware.CurrentUser(c)
	events, err := s.deps.Chat.Submit(c.Request.Context(), chat.TurnRequest{
		UserID:           user.ID,
		ConversationID:   id,
		Content:          req.Content,
		FileIDs:          req.FileIDs,
		Search:           req.Search,
		GenerateDocument: req.GenerateDocument,
	})
	switch {
	case errors.Is(err, chat.ErrEmptyTurn):
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, "El mensaje está vacío")
		return
	case err != nil:
		storeError(c, err, detailConvNotFound)
		return
	}
	StreamEvents(c, events)
}
