package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/secretaria-app/secretaria/internal/auth"
	"github.com/secretaria-app/secretaria/internal/chat"
	"github.com/secretaria-app/secretaria/internal/command/options"
	"github.com/secretaria-app/secretaria/internal/config"
	"github.com/secretaria-app/secretaria/internal/constant"
	"github.com/secretaria-app/secretaria/internal/data/db"
	"github.com/secretaria-app/secretaria/internal/docgen"
	"github.com/secretaria-app/secretaria/internal/files"
	"github.com/secretaria-app/secretaria/internal/gcalendar"
	"github.com/secretaria-app/secretaria/internal/gdrive"
	"github.com/secretaria-app/secretaria/internal/gmail"
	"github.com/secretaria-app/secretaria/internal/obs"
	"github.com/secretaria-app/secretaria/internal/server"
	"github.com/secretaria-app/secretaria/internal/server/middleware"
	"github.com/secretaria-app/secretaria/internal/telegram"
)

// shutdownTimeout bounds how long in-flight streams get to finish.
const shutdownTimeout = 15 * time.Second

// printBanner prints the server access banner
func printBanner(host string, port int, cfg *config.Config) {
	if host == "" {
		host = "localhost"
	}
	fmt.Println("\nSecretaria is available at:")
	fmt.Printf("  API:      http://%s:%d/api\n", host, port)
	fmt.Printf("  Health:   http://%s:%d/health\n", host, port)
	fmt.Printf("  Data dir: %s\n", cfg.DataDir)
	if cfg.ConfigFile != "" {
		fmt.Printf("  Config:   %s\n", cfg.ConfigFile)
	}
}

// googleClients creates the Google clients the credentials allow. A client
// that fails to start is disabled with a warning.
func googleClients(ctx context.Context, cfg *config.Config) (*gdrive.Client, *gcalendar.Client, *gmail.Client) {
	creds := cfg.GoogleCredentials()
	if !creds.Configured() {
		return nil, nil, nil
	}

	drive, err := gdrive.New(ctx, creds, cfg.Google.DriveFolderID)
	if err != nil {
		logrus.Warnf("Google Drive disabled: %v", err)
		drive = nil
	}
	calendar, err := gcalendar.New(ctx, creds, cfg.Google.CalendarID, cfg.Google.TimeZone)
	if err != nil {
		logrus.Warnf("Google Calendar disabled: %v", err)
		calendar = nil
	}
	var mail *gmail.Client
	if creds.Subject == "" {
		logrus.Info("Gmail disabled: set google.impersonate_user to read and send mail")
	} else if mail, err = gmail.New(ctx, creds); err != nil {
		logrus.Warnf("Gmail disabled: %v", err)
		mail = nil
	}
	return drive, calendar, mail
}

// startServer wires storage, providers and integrations and blocks until
// the server stops or a shutdown signal arrives.
func startServer(cfg *config.Config, opts options.ServeOptions, version string) error {
	logCloser, err := obs.SetupLogging(opts.LogLevel, opts.LogFile)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()
	if opts.LogFile != "" {
		logrus.Infof("Logging to file: %s (with rotation)", opts.LogFile)
	}

	store, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	storage := files.NewStorage(cfg.DataDir)
	if err := storage.EnsureDirs(); err != nil {
		return err
	}

	ctx := context.Background()
	if cfg.Auth.AdminUsername != "" {
		if _, err := auth.EnsureUser(ctx, store, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			return fmt.Errorf("failed to set up admin user: %w", err)
		}
	}
	if cfg.UsesDefaultSecret() {
		logrus.Warn("JWT_SECRET is the default placeholder; set a random secret before exposing the server")
	}

	docs := docgen.New()
	chatService := chat.NewService(store, docs,
		chat.NewProviders(cfg.PrimaryProvider(), cfg.SearchProvider()),
		storage.GeneratedDir(),
		chat.WithHistoryLimit(cfg.HistoryLimit),
	)

	drive, calendar, mail := googleClients(ctx, cfg)

	confDir := constant.GetConfDir()
	if cfg.ConfigFile != "" {
		confDir = filepath.Dir(cfg.ConfigFile)
	}
	errorLogFile := filepath.Join(constant.GetLogDir(confDir), constant.ErrorLogFileName)
	errorLog, err := middleware.NewErrorLogMiddleware(
		obs.NewRotatingWriter(obs.DefaultLogRotationConfig(errorLogFile)),
		cfg.Log.ErrorLogFilter,
	)
	if err != nil {
		logrus.Warnf("Error log disabled: %v", err)
		errorLog = nil
	}

	srv := server.NewServer(server.Deps{
		Config:   cfg,
		Store:    store,
		Chat:     chatService,
		Storage:  storage,
		Docs:     docs,
		Telegram: telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint),
		Drive:    drive,
		Calendar: calendar,
		Gmail:    mail,
		ErrorLog: errorLog,
	},
		server.WithVersion(version),
		server.WithHost(opts.Host),
		server.WithConfigWatcher(opts.WatchConfig),
	)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(opts.Port)
	}()

	fmt.Printf("Server starting on port %d...\n", opts.Port)
	printBanner(opts.Host, opts.Port, cfg)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	case <-sigChan:
		fmt.Println("\nReceived shutdown signal, stopping server...")
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(stopCtx)
	}
}

// ServeCommand represents the serve command
func ServeCommand(configFile *string, version string) *cobra.Command {
	var flags options.ServeFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Secretaria API server",
		Long: `Start the Secretaria HTTP server: authentication, conversations with
streamed replies, uploads, generated documents, Telegram forwarding and
Google Drive export. Settings come from the config file and the environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			opts := options.ResolveServeOptions(cmd, flags, cfg)
			return startServer(cfg, opts, version)
		},
	}

	options.AddServeFlags(cmd, &flags)
	return cmd
}
