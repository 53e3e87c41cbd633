package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/secretaria-app/secretaria/internal/constant"
)

// ListConversations returns the user's conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context, userID uint) ([]Conversation, error) {
	var convs []Conversation
	if err := s.conn(ctx).Where("user_id = ?", userID).Order("updated_at DESC, id DESC").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// CreateConversation creates a conversation; an empty title gets the default.
func (s *Store) CreateConversation(ctx context.Context, userID uint, title string) (*Conversation, error) {
	if title == "" {
		title = constant.DefaultConversationTitle
	}
	conv := &Conversation{UserID: userID, Title: title}
	if err := s.conn(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns a conversation owned by userID.
func (s *Store) GetConversation(ctx context.Context, userID, convID uint) (*Conversation, error) {
	var conv Conversation
	if err := s.conn(ctx).Where("id = ? AND user_id = ?", convID, userID).First(&conv).Error; err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

// RenameConversation sets a new title on an owned conversation.
func (s *Store) RenameConversation(ctx context.Context, userID, convID uint, title string) (*Conversation, error) {
	conv, err := s.GetConversation(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	if err := s.conn(ctx).Save(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to rename conversation: %w", err)
	}
	return conv, nil
}

// SetTitle updates the title without touching updated_at.
func (s *Store) SetTitle(ctx context.Context, convID uint, title string) error {
	if err := s.conn(ctx).Model(&Conversation{}).Where("id = ?", convID).UpdateColumn("title", title).Error; err != nil {
		return fmt.Errorf("failed to set title: %w", err)
	}
	return nil
}

// TouchConversation bumps updated_at so the conversation sorts first.
func (s *Store) TouchConversation(ctx context.Context, convID uint) error {
	if err := s.conn(ctx).Model(&Conversation{}).Where("id = ?", convID).UpdateColumn("updated_at", time.Now()).Error; err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes an owned conversation together with its
// messages, files and Telegram sends. The deleted file records are returned
// so the caller can remove them from disk.
func (s *Store) DeleteConversation(ctx context.Context, userID, convID uint) ([]File, error) {
	if _, err := s.GetConversation(ctx, userID, convID); err != nil {
		return nil, err
	}

	var files []File
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", convID).Find(&files).Error; err != nil {
			return err
		}
		msgIDs := tx.Model(&Message{}).Select("id").Where("conversation_id = ?", convID)
		if err := tx.Where("message_id IN (?)", msgIDs).Delete(&TelegramSend{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ? OR message_id IN (?)", convID, msgIDs).Delete(&File{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", convID).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Conversation{}, convID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete conversation: %w", err)
	}
	return files, nil
}
