package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/secretaria-app/secretaria/internal/auth"
	"github.com/secretaria-app/secretaria/internal/data/db"
	"github.com/secretaria-app/secretaria/internal/server/middleware"
)

const (
	detailInternal         = "Error interno"
	detailInvalidBody      = "Datos inválidos"
	detailInvalidID        = "ID inválido"
	detailConvNotFound     = "Conversación no encontrada"
	detailFileNotFound     = "Archivo no encontrado"
	detailFileNotOnDisk    = "Archivo no encontrado en disco"
	detailDocNotFound      = "Documento no encontrado"
	detailContactNotFound  = "Contacto no encontrado"
	detailMessageNotFound  = "Mensaje no encontrado"
	detailBadCredentials   = "Usuario o contraseña incorrectos"
	detailTelegramDisabled = "Telegram bot no configurado"
	detailDriveDisabled    = "Google Drive no configurado"
	detailCalendarDisabled = "Google Calendar no configurado"
	detailGmailDisabled    = "Gmail no configurado"
	detailEventNotFound    = "Evento no encontrado"
	detailMailNotFound     = "Correo no encontrado"
	detailDriveNotFound    = "Archivo de Drive no encontrado"
)

// pathID parses the :id path parameter. It writes a 422 and returns false
// when the parameter is not a positive integer.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, detailInvalidID)
		return 0, false
	}
	return uint(id), true
}

// storeError maps a storage error to a response: db.ErrNotFound becomes a
// 404 with notFoundDetail, anything else a logged 500.
func storeError(c *gin.Context, err error, notFoundDetail string) {
	if errors.Is(err, db.ErrNotFound) {
		middleware.AbortWithDetail(c, http.StatusNotFound, notFoundDetail)
		return
	}
	logrus.WithField("path", c.FullPath()).Errorf("storage error: %v", err)
	middleware.AbortWithDetail(c, http.StatusInternalServerError, detailInternal)
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the session token
type LoginResponse struct {
	Token    string `json:"token"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// Login exchanges a username and password for a session token.
func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, detailInvalidBody)
		return
	}
	username, err := auth.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx := c.Request.Context()
	user, err := s.deps.Store.GetUserByUsername(ctx, username)
	if errors.Is(err, db.ErrNotFound) || (err == nil && !auth.VerifyPassword(req.Password, user.PasswordHash)) {
		logrus.WithField("username", username).Info("rejected login")
		middleware.AbortWithDetail(c, http.StatusUnauthorized, detailBadCredentials)
		return
	}
	if err != nil {
		storeError(c, err, detailBadCredentials)
		return
	}

	if err := s.deps.Store.TouchLastLogin(ctx, user.ID); err != nil {
		logrus.Warnf("failed to record login of user %d: %v", user.ID, err)
	}
	token, err := s.authMW.JWTManager().GenerateToken(user.ID, user.Username)
	if err != nil {
		logrus.Errorf("failed to issue token: %v", err)
		middleware.AbortWithDetail(c, http.StatusInternalServerError, detailInternal)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, UserID: user.ID, Username: user.Username})
}

// FileOut is the listing view of a stored file
type FileOut struct {
	ID        uint      `json:"id"`
	Filename  string    `json:"filename"`
	FileType  string    `json:"file_type"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

func newFileOut(f db.File) FileOut {
	return FileOut{
		ID:        f.ID,
		Filename:  f.Filename,
		FileType:  f.FileType,
		MimeType:  f.MimeType,
		SizeBytes: f.SizeBytes,
		CreatedAt: f.CreatedAt,
	}
}

func newFileOuts(files []db.File) []FileOut {
	out := make([]FileOut, 0, len(files))
	for _, f := range files {
		out = append(out, newFileOut(f))
	}
	return out
}
