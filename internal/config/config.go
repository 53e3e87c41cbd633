package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/secretaria-app/secretaria/internal/constant"
	"github.com/secretaria-app/secretaria/internal/googleauth"
	"github.com/secretaria-app/secretaria/internal/llmclient"
	"github.com/secretaria-app/secretaria/pkg/fs"
)

// DefaultJWTSecret is the placeholder secret; running with it logs a warning.
const DefaultJWTSecret = "change-me-to-a-random-secret"

// ProviderSettings configures one OpenAI-compatible completion provider.
type ProviderSettings struct {
	APIKey   string `yaml:"api_key"`
	APIURL   string `yaml:"api_url"`
	Model    string `yaml:"model"`
	ProxyURL string `yaml:"proxy_url"`
}

// TelegramSettings configures the forwarding bot.
type TelegramSettings struct {
	BotToken string `yaml:"bot_token"`
	// APIEndpoint overrides the Bot API URL template, mostly for tests.
	APIEndpoint string `yaml:"api_endpoint"`
}

// AuthSettings configures login and session tokens.
type AuthSettings struct {
	JWTSecret        string `yaml:"jwt_secret"`
	JWTExpireMinutes int    `yaml:"jwt_expire_minutes"`
	AdminUsername    string `yaml:"admin_username"`
	AdminPassword    string `yaml:"admin_password"`
}

// GoogleSettings configures the Drive, Calendar and Gmail clients with a
// service account. ImpersonateUser enables domain-wide delegation; Gmail
// requires it.
type GoogleSettings struct {
	CredentialsFile string `yaml:"credentials_file"`
	ImpersonateUser string `yaml:"impersonate_user"`
	DriveFolderID   string `yaml:"drive_folder_id"`
	CalendarID      string `yaml:"calendar_id"`
	TimeZone        string `yaml:"time_zone"`
}

// LogSettings configures process logging and the failed-request log.
type LogSettings struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	// ErrorLogFilter is an expression over the request (method, path,
	// status) selecting which failed API requests are recorded.
	ErrorLogFilter string `yaml:"error_log_filter"`
}

// Config is the application configuration. It is read from an optional
// YAML file and then overridden by environment variables.
type Config struct {
	ConfigFile string `yaml:"-"`

	Port            int           `yaml:"port"`
	Debug           bool          `yaml:"debug"`
	DataDir         string        `yaml:"data_dir"`
	DatabasePath    string        `yaml:"database_path"`
	MaxUploadSize   int64         `yaml:"max_upload_size"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	HistoryLimit    int           `yaml:"history_limit"`

	MiniMax    ProviderSettings `yaml:"minimax"`
	Perplexity ProviderSettings `yaml:"perplexity"`
	Telegram   TelegramSettings `yaml:"telegram"`
	Auth       AuthSettings     `yaml:"auth"`
	Google     GoogleSettings   `yaml:"google"`
	Log        LogSettings      `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:            8000,
		DataDir:         "/data",
		MaxUploadSize:   20 * 1024 * 1024,
		ProviderTimeout: llmclient.DefaultTimeout,
		HistoryLimit:    constant.DefaultHistoryLimit,
		MiniMax: ProviderSettings{
			APIURL: "https://api.minimax.io/v1",
			Model:  "MiniMax-M2",
		},
		Perplexity: ProviderSettings{
			APIURL: "https://api.perplexity.ai",
			Model:  "sonar",
		},
		Auth: AuthSettings{
			JWTSecret:        DefaultJWTSecret,
			JWTExpireMinutes: 1440,
		},
		Google: GoogleSettings{
			CalendarID: "primary",
			TimeZone:   "Europe/Madrid",
		},
		Log: LogSettings{
			Level:          "info",
			ErrorLogFilter: `status >= 400`,
		},
	}
}

// Load reads configFile (a missing file is not an error), applies the
// environment and validates the result.
func Load(configFile string) (*Config, error) {
	cfg := Default()
	cfg.ConfigFile = configFile

	if err := cfg.load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) load() error {
	next := Default()
	next.ConfigFile = c.ConfigFile

	if c.ConfigFile != "" {
		data, err := os.ReadFile(c.ConfigFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, next); err != nil {
				return fmt.Errorf("failed to parse config file %s: %w", c.ConfigFile, err)
			}
		}
	}

	if err := next.applyEnv(os.LookupEnv); err != nil {
		return err
	}
	if err := next.finalize(); err != nil {
		return err
	}

	*c = *next
	return nil
}

// applyEnv overrides settings from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		*dst = n
		return nil
	}

	str("MINIMAX_API_KEY", &c.MiniMax.APIKey)
	str("MINIMAX_API_URL", &c.MiniMax.APIURL)
	str("MINIMAX_MODEL", &c.MiniMax.Model)
	str("PERPLEXITY_API_KEY", &c.Perplexity.APIKey)
	str("PERPLEXITY_API_URL", &c.Perplexity.APIURL)
	str("PERPLEXITY_MODEL", &c.Perplexity.Model)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("APP_USERNAME", &c.Auth.AdminUsername)
	str("APP_PASSWORD", &c.Auth.AdminPassword)
	str("DATA_DIR", &c.DataDir)
	str("DATABASE_PATH", &c.DatabasePath)
	str("GOOGLE_CREDENTIALS_FILE", &c.Google.CredentialsFile)
	str("GOOGLE_IMPERSONATE_USER", &c.Google.ImpersonateUser)
	str("GOOGLE_DRIVE_FOLDER_ID", &c.Google.DriveFolderID)
	str("GOOGLE_CALENDAR_ID", &c.Google.CalendarID)
	str("GOOGLE_TIME_ZONE", &c.Google.TimeZone)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	if err := integer("JWT_EXPIRE_MINUTES", &c.Auth.JWTExpireMinutes); err != nil {
		return err
	}
	return integer("APP_PORT", &c.Port)
}

// finalize expands paths, fills derived values and validates.
func (c *Config) finalize() error {
	dataDir, err := fs.ExpandPath(c.DataDir)
	if err != nil {
		return fmt.Errorf("invalid data_dir: %w", err)
	}
	c.DataDir = dataDir

	if c.DatabasePath == "" {
		c.DatabasePath = constant.GetDBFile(c.DataDir)
	} else if c.DatabasePath, err = fs.ExpandPath(c.DatabasePath); err != nil {
		return fmt.Errorf("invalid database_path: %w", err)
	}

	if c.Google.CredentialsFile != "" {
		if c.Google.CredentialsFile, err = fs.ExpandPath(c.Google.CredentialsFile); err != nil {
			return fmt.Errorf("invalid google credentials_file: %w", err)
		}
	}

	c.MiniMax.APIURL = strings.TrimRight(c.MiniMax.APIURL, "/")
	c.Perplexity.APIURL = strings.TrimRight(c.Perplexity.APIURL, "/")

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Auth.JWTExpireMinutes <= 0 {
		return fmt.Errorf("invalid jwt_expire_minutes %d", c.Auth.JWTExpireMinutes)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt_secret must not be empty")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("invalid max_upload_size %d", c.MaxUploadSize)
	}
	return nil
}

// GoogleCredentials returns the service-account settings shared by the
// Google clients.
func (c *Config) GoogleCredentials() googleauth.Credentials {
	return googleauth.Credentials{File: c.Google.CredentialsFile, Subject: c.Google.ImpersonateUser}
}

// TokenTTL is the session token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.JWTExpireMinutes) * time.Minute
}

// UsesDefaultSecret reports whether JWT_SECRET was left at the placeholder.
func (c *Config) UsesDefaultSecret() bool {
	return c.Auth.JWTSecret == DefaultJWTSecret
}

// PrimaryProvider returns the adapter settings of the primary provider.
func (c *Config) PrimaryProvider() llmclient.ProviderConfig {
	return llmclient.ProviderConfig{
		Name:        "minimax",
		DisplayName: "MINIMAX AI",
		KeyName:     "MINIMAX_API_KEY",
		KeyOwner:    "MINIMAX",
		APIBase:     c.MiniMax.APIURL,
		APIKey:      c.MiniMax.APIKey,
		Model:       c.MiniMax.Model,
		Timeout:     c.ProviderTimeout,
		ProxyURL:    c.MiniMax.ProxyURL,
	}
}

// SearchProvider returns the adapter settings of the search provider.
func (c *Config) SearchProvider() llmclient.ProviderConfig {
	return llmclient.ProviderConfig{
		Name:        "perplexity",
		DisplayName: "Perplexity",
		KeyName:     "PERPLEXITY_API_KEY",
		APIBase:     c.Perplexity.APIURL,
		APIKey:      c.Perplexity.APIKey,
		Model:       c.Perplexity.Model,
		Timeout:     c.ProviderTimeout,
		ProxyURL:    c.Perplexity.ProxyURL,
	}
}

// DefaultConfigFile returns <config-dir>/secretaria.yaml.
func DefaultConfigFile() string {
	return constant.GetConfigFile(constant.GetConfDir())
}
