package telegram

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/secretaria-app/secretaria/internal/data/db"
	"github.com/secretaria-app/secretaria/pkg/fs"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrContactNotFound = errors.New("contact not found")
)

// Sender is the part of the Bot API a Forwarder needs; *Client implements it.
type Sender interface {
	Configured() bool
	SendText(chatID, text string) error
	SendDocument(chatID, path, name, caption string) error
}

// Result is the outcome of one forward.
type Result struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
	SendID uint   `json:"send_id"`
}

// Forwarder sends stored messages to a user's contacts and records every
// attempt.
type Forwarder struct {
	store  *db.Store
	sender Sender
}

// NewForwarder creates a forwarder.
func NewForwarder(store *db.Store, sender Sender) *Forwarder {
	return &Forwarder{store: store, sender: sender}
}

// Forward sends message msgID and its files to contactID. Lookups are scoped
// to userID. A delivery failure is not an error: it is reported in the Result
// and in the recorded send status.
func (f *Forwarder) Forward(ctx context.Context, userID, msgID, contactID uint) (*Result, error) {
	if !f.sender.Configured() {
		return nil, ErrNotConfigured
	}
	contact, err := f.store.GetContact(ctx, userID, contactID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrContactNotFound
	} else if err != nil {
		return nil, err
	}
	msg, err := f.store.GetOwnedMessage(ctx, userID, msgID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrMessageNotFound
	} else if err != nil {
		return nil, err
	}

	send, err := f.store.CreateSend(ctx, msg.ID, contact.ID, db.SendSending)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"message": msg.ID, "contact": contact.ID, "send": send.ID})

	if text := strings.TrimSpace(msg.Content); text != "" {
		if err := f.sender.SendText(contact.ChatID, text); err != nil {
			log.Warnf("telegram text delivery failed: %v", err)
			f.setStatus(ctx, log, send.ID, db.SendError)
			return &Result{OK: false, Detail: err.Error(), SendID: send.ID}, nil
		}
	}

	for _, file := range msg.Files {
		if !fs.FileExists(file.Filepath) {
			log.Warnf("skipping missing file %s", file.Filepath)
			continue
		}
		if err := f.sender.SendDocument(contact.ChatID, file.Filepath, file.Filename, ""); err != nil {
			log.Warnf("telegram file delivery failed for %s: %v", file.Filename, err)
			f.setStatus(ctx, log, send.ID, db.SendPartial)
			return &Result{OK: false, Detail: "Texto enviado, error en archivo: " + file.Filename, SendID: send.ID}, nil
		}
	}

	f.setStatus(ctx, log, send.ID, db.SendSent)
	log.Info("message forwarded to telegram")
	return &Result{OK: true, Detail: "Enviado", SendID: send.ID}, nil
}

func (f *Forwarder) setStatus(ctx context.Context, log *logrus.Entry, sendID uint, status string) {
	if err := f.store.UpdateSendStatus(ctx, sendID, status); err != nil {
		log.Errorf("failed to record send status %s: %v", status, err)
	}
}
