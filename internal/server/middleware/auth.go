package middleware

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/secretaria-app/secretaria/internal/auth"
	"github.com/secretaria-app/secretaria/internal/data/db"
)

const userKey = "secretaria.user"

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// AbortWithDetail stops the chain with a {"detail": ...} body.
func AbortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Detail: detail})
}

// AuthMiddleware authenticates API requests with session tokens.
type AuthMiddleware struct {
	store *db.Store

	mu         sync.RWMutex
	jwtManager *auth.JWTManager
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(store *db.Store, jwtManager *auth.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{store: store, jwtManager: jwtManager}
}

// SetJWTManager swaps the token manager after a configuration reload.
// Tokens signed with the previous secret stop validating.
func (am *AuthMiddleware) SetJWTManager(m *auth.JWTManager) {
	am.mu.Lock()
	am.jwtManager = m
	am.mu.Unlock()
}

// JWTManager returns the current token manager.
func (am *AuthMiddleware) JWTManager() *auth.JWTManager {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.jwtManager
}

// UserAuthMiddleware accepts "Authorization: Bearer <token>" or a ?token=
// query parameter, the latter for plain download links.
func (am *AuthMiddleware) UserAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			AbortWithDetail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}

		claims, err := am.JWTManager().ValidateToken(token)
		if err != nil {
			AbortWithDetail(c, http.StatusUnauthorized, "Token inválido o expirado")
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			AbortWithDetail(c, http.StatusUnauthorized, "Token inválido o expirado")
			return
		}

		user, err := am.store.GetUser(c.Request.Context(), userID)
		if errors.Is(err, db.ErrNotFound) {
			AbortWithDetail(c, http.StatusUnauthorized, "Usuario no encontrado")
			return
		} else if err != nil {
			logrus.Errorf("failed to load user %d: %v", userID, err)
			AbortWithDetail(c, http.StatusInternalServerError, "Error interno")
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// CurrentUser returns the user set by UserAuthMiddleware.
func CurrentUser(c *gin.Context) *db.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*db.User); ok {
			return u
		}
	}
	return nil
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
