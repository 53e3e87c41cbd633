package db

import (
	"context"
	"fmt"
)

// CreateFile inserts a file record.
func (s *Store) CreateFile(ctx context.Context, f *File) error {
	if err := s.conn(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

// GetOwnedFile returns a file whose conversation belongs to userID.
func (s *Store) GetOwnedFile(ctx context.Context, userID, fileID uint) (*File, error) {
	var f File
	err := s.conn(ctx).
		Joins("JOIN conversations ON conversations.id = files.conversation_id").
		Where("files.id = ? AND conversations.user_id = ?", fileID, userID).
		First(&f).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// ListConversationFiles returns the files of one conversation, oldest first.
func (s *Store) ListConversationFiles(ctx context.Context, convID uint) ([]File, error) {
	var files []File
	if err := s.conn(ctx).Where("conversation_id = ?", convID).Order("created_at ASC, id ASC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// ListUserFiles returns every file across the user's conversations, newest first.
func (s *Store) ListUserFiles(ctx context.Context, userID uint) ([]File, error) {
	var files []File
	err := s.conn(ctx).
		Joins("JOIN conversations ON conversations.id = files.conversation_id").
		Where("conversations.user_id = ?", userID).
		Order("files.created_at DESC, files.id DESC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user files: %w", err)
	}
	return files, nil
}

// ListGeneratedFiles returns the user's generated documents, newest first.
func (s *Store) ListGeneratedFiles(ctx context.Context, userID uint) ([]File, error) {
	var files []File
	err := s.conn(ctx).
		Joins("JOIN conversations ON conversations.id = files.conversation_id").
		Where("conversations.user_id = ? AND files.filepath LIKE ?", userID, "%"+generatedMarker+"%").
		Order("files.created_at DESC, files.id DESC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list generated files: %w", err)
	}
	return files, nil
}

// FilesInConversation returns the files among ids that belong to convID, in
// id order. Unknown or foreign ids are silently dropped.
func (s *Store) FilesInConversation(ctx context.Context, convID uint, ids []uint) ([]File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var files []File
	err := s.conn(ctx).
		Where("id IN ? AND conversation_id = ?", ids, convID).
		Order("id ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve files: %w", err)
	}
	return files, nil
}

// LinkFilesToMessage attaches files to the turn that carried them.
func (s *Store) LinkFilesToMessage(ctx context.Context, msgID uint, fileIDs []uint) error {
	if len(fileIDs) == 0 {
		return nil
	}
	if err := s.conn(ctx).Model(&File{}).Where("id IN ?", fileIDs).UpdateColumn("message_id", msgID).Error; err != nil {
		return fmt.Errorf("failed to link files: %w", err)
	}
	return nil
}
