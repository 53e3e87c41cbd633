package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/secretaria-app/secretaria/internal/server/middleware"
	"github.com/secretaria-app/secretaria/internal/telegram"
)

// sendHistoryLimit is how many forwards the history endpoint returns.
const sendHistoryLimit = 50

// BotStatusResponse reports whether forwarding is usable
type BotStatusResponse struct {
	Configured bool     `json:"configured"`
	Bot        *BotInfo `json:"bot"`
}

// BotInfo identifies the forwarding bot
type BotInfo struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// ContactRequest is the body of POST /api/telegram/contacts
type ContactRequest struct {
	Name   string `json:"name"`
	ChatID string `json:"chat_id"`
}

// ContactOut is the listing view of a contact
type ContactOut struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ForwardRequest is the body of POST /api/telegram/send
type ForwardRequest struct {
	MessageID uint `json:"message_id"`
	ContactID uint `json:"contact_id"`
}

// SendHistoryOut is one recorded forward
type SendHistoryOut struct {
	ID            uint       `json:"id"`
	MessageID     uint       `json:"message_id"`
	ContactName   string     `json:"contact_name"`
	ContactChatID string     `json:"contact_chat_id"`
	Status        string     `json:"status"`
	SentAt        *time.Time `json:"sent_at"`
}

// TelegramBotStatus checks the bot token against the Bot API.
func (s *Server) TelegramBotStatus(c *gin.Context) {
	client, _ := s.telegramClient()
	if !client.Configured() {
		c.JSON(http.StatusOK, BotStatusResponse{})
		return
	}
	info, err := client.Status()
	if err != nil {
		logrus.Warnf("telegram bot status check failed: %v", err)
		c.JSON(http.StatusOK, BotStatusResponse{})
		return
	}
	c.JSON(http.StatusOK, BotStatusResponse{
		Configured: true,
		Bot:        &BotInfo{Username: info.Username, FirstName: info.FirstName},
	})
}

// ListContacts returns the user's contacts, newest first.
func (s *Server) ListContacts(c *gin.Context) {
	user := middleware.CurrentUser(c)
	contacts, err := s.deps.Store.ListContacts(c.Request.Context(), user.ID)
	if err != nil {
		storeError(c, err, detailContactNotFound)
		return
	}
	out := make([]ContactOut, 0, len(contacts))
	for _, ct := range contacts {
		out = append(out, ContactOut{ID: ct.ID, Name: ct.Name, ChatID: ct.ChatID, CreatedAt: ct.CreatedAt})
	}
	c.JSON(http.StatusOK, out)
}

// CreateContact adds a contact; both name and chat id are required.
func (s *Server) CreateContact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, detailInvalidBody)
		return
	}
	name, chatID := strings.TrimSpace(req.Name), strings.TrimSpace(req.ChatID)
	if name == "" || chatID == "" {
		middleware.AbortWithDetail(c, http.StatusBadRequest, "Nombre y chat_id requeridos")
		return
	}

	user := middleware.CurrentUser(c)
	ct, err := s.deps.Store.CreateContact(c.Request.Context(), user.ID, name, chatID)
	if err != nil {
		storeError(c, err, detailContactNotFound)
		return
	}
	c.JSON(http.StatusCreated, ContactOut{ID: ct.ID, Name: ct.Name, ChatID: ct.ChatID, CreatedAt: ct.CreatedAt})
}

// DeleteContact removes a contact and its forward history.
func (s *Server) DeleteContact(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	if err := s.deps.Store.DeleteContact(c.Request.Context(), user.ID, id); err != nil {
		storeError(c, err, detailContactNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// ForwardMessage sends a stored message and its files to a contact.
func (s *Server) ForwardMessage(c *gin.Context) {
	var req ForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, detailInvalidBody)
		return
	}

	_, forwarder := s.telegramClient()
	user := middleware.CurrentUser(c)
	res, err := forwarder.Forward(c.Request.Context(), user.ID, req.MessageID, req.ContactID)
	switch {
	case errors.Is(err, telegram.ErrNotConfigured):
		middleware.AbortWithDetail(c, http.StatusBadRequest, detailTelegramDisabled)
	case errors.Is(err, telegram.ErrContactNotFound):
		middleware.AbortWithDetail(c, http.StatusNotFound, detailContactNotFound)
	case errors.Is(err, telegram.ErrMessageNotFound):
		middleware.AbortWithDetail(c, http.StatusNotFound, detailMessageNotFound)
	case err != nil:
		storeError(c, err, detailMessageNotFound)
	default:
		c.JSON(http.StatusOK, res)
	}
}

// SendHistory returns the user's latest forwards.
func (s *Server) SendHistory(c *gin.Context) {
	user := middleware.CurrentUser(c)
	sends, err := s.deps.Store.SendHistory(c.Request.Context(), user.ID, sendHistoryLimit)
	if err != nil {
		storeError(c, err, detailMessageNotFound)
		return
	}
	out := make([]SendHistoryOut, 0, len(sends))
	for _, sd := range sends {
		out = append(out, SendHistoryOut{
			ID:            sd.ID,
			MessageID:     sd.MessageID,
			ContactName:   sd.Contact.Name,
			ContactChatID: sd.Contact.ChatID,
			Status:        sd.Status,
			SentAt:        sd.SentAt,
		})
	}
	c.JSON(http.StatusOK, out)
}
