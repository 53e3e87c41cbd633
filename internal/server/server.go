package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/secretaria-app/secretaria/internal/auth"
	"github.com/secretaria-app/secretaria/internal/chat"
	"github.com/secretaria-app/secretaria/internal/config"
	"github.com/secretaria-app/secretaria/internal/data/db"
	"github.com/secretaria-app/secretaria/internal/docgen"
	"github.com/secretaria-app/secretaria/internal/files"
	"github.com/secretaria-app/secretaria/internal/gcalendar"
	"github.com/secretaria-app/secretaria/internal/gdrive"
	"github.com/secretaria-app/secretaria/internal/gmail"
	"github.com/secretaria-app/secretaria/internal/server/middleware"
	"github.com/secretaria-app/secretaria/internal/telegram"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Config   *config.Config
	Store    *db.Store
	Chat     *chat.Service
	Storage  *files.Storage
	Docs     *docgen.Generator
	Telegram *telegram.Client
	// Drive, Calendar and Gmail are nil when not configured.
	Drive    *gdrive.Client
	Calendar *gcalendar.Client
	Gmail    *gmail.Client
	// ErrorLog is optional.
	ErrorLog *middleware.ErrorLogMiddleware
}

// Server represents the HTTP server
type Server struct {
	deps       Deps
	engine     *gin.Engine
	httpServer *http.Server
	watcher    *config.ConfigWatcher

	authMW  *middleware.AuthMiddleware
	errorMW *middleware.ErrorLogMiddleware

	mu        sync.RWMutex
	cfg       *config.Config
	telegram  *telegram.Client
	forwarder *telegram.Forwarder

	// options
	host        string
	version     string
	watchConfig bool
}

// ServerOption defines a functional option for Server configuration
type ServerOption func(*Server)

// WithVersion sets the version reported by /health.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// WithHost sets the listen host; empty listens on all interfaces.
func WithHost(host string) ServerOption {
	return func(s *Server) {
		s.host = host
	}
}

// WithConfigWatcher enables or disables hot reload of the config file
func WithConfigWatcher(enabled bool) ServerOption {
	return func(s *Server) {
		s.watchConfig = enabled
	}
}

// NewServer creates a new HTTP server instance with functional options
func NewServer(deps Deps, opts ...ServerOption) *Server {
	s := &Server{
		deps:        deps,
		cfg:         deps.Config,
		telegram:    deps.Telegram,
		errorMW:     deps.ErrorLog,
		watchConfig: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.telegram == nil {
		s.telegram = telegram.NewClient(deps.Config.Telegram.BotToken, deps.Config.Telegram.APIEndpoint)
	}
	s.forwarder = telegram.NewForwarder(deps.Store, s.telegram)

	jwtManager := auth.NewJWTManager(deps.Config.Auth.JWTSecret, deps.Config.TokenTTL())
	s.authMW = middleware.NewAuthMiddleware(deps.Store, jwtManager)

	if !deps.Config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s.engine = gin.New()

	s.setupMiddleware()
	s.setupRoutes()
	if s.watchConfig {
		s.setupConfigWatcher()
	}
	return s
}

// setupConfigWatcher initializes the configuration hot-reload watcher
func (s *Server) setupConfigWatcher() {
	if s.deps.Config.ConfigFile == "" {
		return
	}
	watcher, err := config.NewConfigWatcher(s.deps.Config)
	if err != nil {
		logrus.Warnf("Failed to create config watcher: %v", err)
		return
	}
	s.watcher = watcher
	watcher.AddCallback(s.ApplyConfig)
}

// ApplyConfig switches the reloadable parts of the server to newConfig:
// provider credentials, session signing secret, Telegram bot and the error
// log filter. Listen address and storage locations need a restart.
func (s *Server) ApplyConfig(newConfig *config.Config) {
	logrus.Debugln("Configuration updated, reloading...")

	s.deps.Chat.SetProviders(chat.NewProviders(newConfig.PrimaryProvider(), newConfig.SearchProvider()))
	s.authMW.SetJWTManager(auth.NewJWTManager(newConfig.Auth.JWTSecret, newConfig.TokenTTL()))

	tg := telegram.NewClient(newConfig.Telegram.BotToken, newConfig.Telegram.APIEndpoint)
	s.mu.Lock()
	s.cfg = newConfig
	s.telegram = tg
	s.forwarder = telegram.NewForwarder(s.deps.Store, tg)
	s.mu.Unlock()

	if s.errorMW != nil {
		if err := s.errorMW.SetFilterExpression(newConfig.Log.ErrorLogFilter); err != nil {
			logrus.Errorf("Failed to update error log filter expression: %v", err)
		}
	}
	logrus.Info("Configuration reloaded")
}

func (s *Server) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Server) telegramClient() (*telegram.Client, *telegram.Forwarder) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.telegram, s.forwarder
}

// setupMiddleware configures server middleware
func (s *Server) setupMiddleware() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(middleware.CORS())
}

// setupRoutes configures server routes
func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.Health)
	s.engine.GET("/metrics", s.Metrics())

	api := s.engine.Group("/api")
	if s.errorMW != nil {
		api.Use(s.errorMW.Middleware())
	}

	api.POST("/auth/login", s.Login)

	authed := api.Group("")
	authed.Use(s.authMW.UserAuthMiddleware())

	chatGroup := authed.Group("/chat")
	{
		chatGroup.GET("/conversations", s.ListConversations)
		chatGroup.POST("/conversations", s.CreateConversation)
		chatGroup.PATCH("/conversations/:id", s.RenameConversation)
		chatGroup.DELETE("/conversations/:id", s.DeleteConversation)
		chatGroup.GET("/conversations/:id/messages", s.ListMessages)
		chatGroup.POST("/conversations/:id/messages", s.SendMessage)
	}

	upload := authed.Group("/upload")
	{
		upload.POST("/conversations/:id/files", s.UploadFile)
		upload.GET("/conversations/:id/files", s.ListConversationFiles)
		upload.GET("/files/:id", s.ServeFile)
	}

	authed.GET("/files", s.ListAllFiles)
	authed.GET("/documents", s.ListDocuments)
	authed.GET("/documents/:id", s.DownloadDocument)

	tg := authed.Group("/telegram")
	{
		tg.GET("/bot-status", s.TelegramBotStatus)
		tg.GET("/contacts", s.ListContacts)
		tg.POST("/contacts", s.CreateContact)
		tg.DELETE("/contacts/:id", s.DeleteContact)
		tg.POST("/send", s.ForwardMessage)
		tg.GET("/history", s.SendHistory)
	}

	google := authed.Group("/google")
	{
		google.GET("/status", s.GoogleStatus)

		google.GET("/calendar/events", s.CalendarEvents)
		google.GET("/calendar/events/today", s.CalendarToday)
		google.GET("/calendar/events/week", s.CalendarWeek)
		google.POST("/calendar/events", s.CalendarCreateEvent)
		google.DELETE("/calendar/events/:id", s.CalendarDeleteEvent)

		google.GET("/gmail/messages", s.GmailListMessages)
		google.GET("/gmail/messages/unread", s.GmailUnread)
		google.GET("/gmail/messages/:id", s.GmailGetMessage)
		google.POST("/gmail/send", s.GmailSend)

		google.GET("/drive/files", s.DriveListFiles)
		google.GET("/drive/files/recent", s.DriveRecentFiles)
		google.GET("/drive/files/:id", s.DriveGetFile)
		google.GET("/drive/files/:id/download", s.DriveDownload)
		google.POST("/drive/upload", s.DriveUpload)
	}
}

// Start starts the HTTP server and blocks until it stops. A clean Stop
// returns nil.
func (s *Server) Start(port int) error {
	if s.watcher != nil {
		if err := s.watcher.Start(); err != nil {
			logrus.Warnf("Failed to start config watcher: %v", err)
		} else {
			logrus.Infof("Configuration hot-reload enabled for %s", s.deps.Config.ConfigFile)
		}
	}

	addr := net.JoinHostPort(s.host, fmt.Sprint(port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	logrus.Infof("Secretaria listening on http://%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// GetRouter returns the Gin engine for testing purposes
func (s *Server) GetRouter() *gin.Engine {
	return s.engine
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.watcher != nil {
		s.watcher.Stop()
		logrus.Debug("Configuration watcher stopped")
	}
	if s.errorMW != nil {
		s.errorMW.Stop()
	}
	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	logrus.Info("Shutting down server...")
	return srv.Shutdown(ctx)
}
