package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ListContacts returns the user's Telegram contacts, newest first.
func (s *Store) ListContacts(ctx context.Context, userID uint) ([]TelegramContact, error) {
	var contacts []TelegramContact
	if err := s.conn(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

// CreateContact inserts a contact.
func (s *Store) CreateContact(ctx context.Context, userID uint, name, chatID string) (*TelegramContact, error) {
	contact := &TelegramContact{UserID: userID, Name: name, ChatID: chatID}
	if err := s.conn(ctx).Create(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return contact, nil
}

// GetContact returns a contact owned by userID.
func (s *Store) GetContact(ctx context.Context, userID, contactID uint) (*TelegramContact, error) {
	var contact TelegramContact
	if err := s.conn(ctx).Where("id = ? AND user_id = ?", contactID, userID).First(&contact).Error; err != nil {
		return nil, notFound(err)
	}
	return &contact, nil
}

// DeleteContact removes an owned contact and its send history.
func (s *Store) DeleteContact(ctx context.Context, userID, contactID uint) error {
	if _, err := s.GetContact(ctx, userID, contactID); err != nil {
		return err
	}
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contact_id = ?", contactID).Delete(&TelegramSend{}).Error; err != nil {
			return err
		}
		return tx.Delete(&TelegramContact{}, contactID).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return nil
}

// CreateSend records the start of a forward.
func (s *Store) CreateSend(ctx context.Context, msgID, contactID uint, status string) (*TelegramSend, error) {
	send := &TelegramSend{MessageID: msgID, ContactID: contactID, Status: status}
	if err := s.conn(ctx).Omit("Contact").Create(send).Error; err != nil {
		return nil, fmt.Errorf("failed to create send: %w", err)
	}
	return send, nil
}

// UpdateSendStatus sets the outcome of a forward; sent also stamps sent_at.
func (s *Store) UpdateSendStatus(ctx context.Context, sendID uint, status string) error {
	updates := map[string]any{"status": status}
	if status == SendSent {
		updates["sent_at"] = time.Now()
	}
	if err := s.conn(ctx).Model(&TelegramSend{}).Where("id = ?", sendID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update send: %w", err)
	}
	return nil
}

// SendHistory returns the user's most recent forwards with their contacts.
func (s *Store) SendHistory(ctx context.Context, userID uint, limit int) ([]TelegramSend, error) {
	var sends []TelegramSend
	err := s.conn(ctx).Preload("Contact").
		Joins("JOIN telegram_contacts ON telegram_contacts.id = telegram_sends.contact_id").
		Where("telegram_contacts.user_id = ?", userID).
		Order("telegram_sends.id DESC").
		Limit(limit).
		Find(&sends).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load send history: %w", err)
	}
	return sends, nil
}
