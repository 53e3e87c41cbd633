package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secretaria-app/secretaria/internal/data/db"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	token, err := m.GenerateToken(42, "admin")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	token, err := m.GenerateToken(1, "admin")
	require.NoError(t, err)

	_, err = NewJWTManager("other", time.Minute).ValidateToken(token)
	assert.Error(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = m.ValidateToken("not-a-token")
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Username: "x"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.ValidateToken(unsigned)
	assert.Error(t, err)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("clave")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("clave", hash))
	assert.False(t, VerifyPassword("otra", hash))
}

func TestValidateCredentials(t *testing.T) {
	name, err := ValidateCredentials("  Admin ", "1234")
	require.NoError(t, err)
	assert.Equal(t, "admin", name)

	_, err = ValidateCredentials("ab", "1234")
	var cerr *CredentialError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "El usuario debe tener al menos 3 caracteres", cerr.Reason)

	_, err = ValidateCredentials("admin", "123")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "La contraseña debe tener al menos 4 caracteres", cerr.Reason)
}

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()
	store, err := db.Open(filepath.Join(t.TempDir(), "secretaria.db"))
	require.NoError(t, err)
	defer store.Close()

	created, err := EnsureUser(ctx, store, "Admin", "primera")
	require.NoError(t, err)
	assert.Equal(t, "admin", created.Username)

	same, err := EnsureUser(ctx, store, "admin", "primera")
	require.NoError(t, err)
	assert.Equal(t, created.ID, same.ID)
	assert.Equal(t, created.PasswordHash, same.PasswordHash)

	updated, err := EnsureUser(ctx, store, "admin", "segunda")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	stored, err := store.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, VerifyPassword("segunda", stored.PasswordHash))
}
