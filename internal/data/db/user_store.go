package db

import (
	"context"
	"fmt"
	"time"
)

// GetUserByUsername returns the user with the given (normalised) username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := s.conn(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := s.conn(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	user := &User{Username: username, PasswordHash: passwordHash}
	if err := s.conn(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// UpdatePasswordHash replaces a user's password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id uint, passwordHash string) error {
	res := s.conn(ctx).Model(&User{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if res.Error != nil {
		return fmt.Errorf("failed to update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id uint) error {
	if err := s.conn(ctx).Model(&User{}).Where("id = ?", id).Update("last_login", time.Now()).Error; err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
