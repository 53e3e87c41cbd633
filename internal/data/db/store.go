package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a record does not exist or is not owned by
// the requesting user.
var ErrNotFound = errors.New("record not found")

// Store persists users, conversations, messages, files and Telegram
// forwarding state in SQLite using GORM.
type Store struct {
	db     *gorm.DB
	dbPath string
}

// Open creates or loads the database at dbPath and migrates the schema.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Configure SQLite with busy timeout and other settings
	dsn := dbPath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=1"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&User{},
		&Conversation{},
		&Message{},
		&File{},
		&TelegramContact{},
		&TelegramSend{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UnitOfWork runs fn inside one short-lived transaction. The store passed to
// fn is bound to the transaction; fn returning an error rolls it back.
func (s *Store) UnitOfWork(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, dbPath: s.dbPath})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// notFound translates gorm's not-found error into ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
