package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 4
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NormalizeUsername trims and lower-cases a login name.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// CredentialError describes invalid login input; the message is user-facing.
type CredentialError struct {
	Reason string
}

func (e *CredentialError) Error() string { return e.Reason }

// ValidateCredentials normalises the username and checks minimum lengths.
func ValidateCredentials(username, password string) (string, error) {
	username = NormalizeUsername(username)
	if len(username) < MinUsernameLength {
		return "", &CredentialError{Reason: "El usuario debe tener al menos 3 caracteres"}
	}
	if len(password) < MinPasswordLength {
		return "", &CredentialError{Reason: "La contraseña debe tener al menos 4 caracteres"}
	}
	return username, nil
}
