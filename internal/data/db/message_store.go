package db

import (
	"context"
	"fmt"
	"slices"
)

// ListMessages returns all turns of a conversation oldest-first with their files.
func (s *Store) ListMessages(ctx context.Context, convID uint) ([]Message, error) {
	var msgs []Message
	err := s.conn(ctx).Preload("Files").
		Where("conversation_id = ?", convID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// CreateMessage inserts a turn.
func (s *Store) CreateMessage(ctx context.Context, msg *Message) error {
	if err := s.conn(ctx).Omit("Files").Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// RecentMessages returns the newest limit turns in chronological order,
// with their files loaded.
func (s *Store) RecentMessages(ctx context.Context, convID uint, limit int) ([]Message, error) {
	var msgs []Message
	err := s.conn(ctx).Preload("Files").
		Where("conversation_id = ?", convID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// CountMessages returns the number of turns with the given role.
func (s *Store) CountMessages(ctx context.Context, convID uint, role string) (int64, error) {
	var n int64
	if err := s.conn(ctx).Model(&Message{}).Where("conversation_id = ? AND role = ?", convID, role).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

// GetMessage returns a turn by id regardless of owner.
func (s *Store) GetMessage(ctx context.Context, msgID uint) (*Message, error) {
	var msg Message
	if err := s.conn(ctx).First(&msg, msgID).Error; err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

// GetOwnedMessage returns a turn, with its files, whose conversation belongs to userID.
func (s *Store) GetOwnedMessage(ctx context.Context, userID, msgID uint) (*Message, error) {
	var msg Message
	err := s.conn(ctx).Preload("Files").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("messages.id = ? AND conversations.user_id = ?", msgID, userID).
		First(&msg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}
