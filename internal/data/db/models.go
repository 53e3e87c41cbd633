package db

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/secretaria-app/secretaria/internal/constant"
)

// User is an account allowed to log in
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"column:username;uniqueIndex;not null" json:"username"`
	PasswordHash string     `gorm:"column:password_hash;not null" json:"-"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	LastLogin    *time.Time `gorm:"column:last_login" json:"last_login,omitempty"`
}

func (User) TableName() string { return "users" }

// Conversation groups the turns of one chat thread
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"column:user_id;index;not null" json:"-"`
	Title     string    `gorm:"column:title" json:"title"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Role values stored in Message.Role
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one stored turn
type Message struct {
	ID             uint      `gorm:"primaryKey"`
	ConversationID uint      `gorm:"column:conversation_id;index;not null"`
	Role           string    `gorm:"column:role;not null"`
	Content        string    `gorm:"column:content;type:text;not null"`
	ModelUsed      string    `gorm:"column:model_used"`
	CreatedAt      time.Time `gorm:"column:created_at"`

	Files []File `gorm:"foreignKey:MessageID"`
}

func (Message) TableName() string { return "messages" }

// File is an uploaded or generated file. ConversationID scopes ownership,
// MessageID links it to the turn that carried or produced it.
type File struct {
	ID             uint      `gorm:"primaryKey"`
	ConversationID *uint     `gorm:"column:conversation_id;index"`
	MessageID      *uint     `gorm:"column:message_id;index"`
	Filename       string    `gorm:"column:filename;not null"`
	Filepath       string    `gorm:"column:filepath;not null"`
	FileType       string    `gorm:"column:file_type"`
	MimeType       string    `gorm:"column:mime_type"`
	SizeBytes      int64     `gorm:"column:size_bytes"`
	ExtractedText  *string   `gorm:"column:extracted_text;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (File) TableName() string { return "files" }

// generatedMarker identifies files written by the document generator
var generatedMarker = "/" + constant.GeneratedDirName + "/"

// IsGenerated reports whether the file lives in the generated documents directory
func (f File) IsGenerated() bool {
	return strings.Contains(filepath.ToSlash(f.Filepath), generatedMarker)
}

// Text returns the extracted text, or "" when none was stored
func (f File) Text() string {
	if f.ExtractedText == nil {
		return ""
	}
	return *f.ExtractedText
}

// TelegramContact is a named Telegram chat a user forwards messages to
type TelegramContact struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"column:user_id;index;not null"`
	Name      string    `gorm:"column:name;not null"`
	ChatID    string    `gorm:"column:chat_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (TelegramContact) TableName() string { return "telegram_contacts" }

// Send status values
const (
	SendPending = "pending"
	SendSending = "sending"
	SendSent    = "sent"
	SendError   = "error"
	SendPartial = "partial"
)

// TelegramSend records one forward of a message to a contact
type TelegramSend struct {
	ID        uint       `gorm:"primaryKey"`
	MessageID uint       `gorm:"column:message_id;index;not null"`
	ContactID uint       `gorm:"column:contact_id;index;not null"`
	Status    string     `gorm:"column:status;default:pending"`
	SentAt    *time.Time `gorm:"column:sent_at"`

	Contact TelegramContact `gorm:"foreignKey:ContactID"`
}

func (TelegramSend) TableName() string { return "telegram_sends" }
