package options

import (
	"github.com/spf13/cobra"

	"github.com/secretaria-app/secretaria/internal/config"
)

// ServeFlags holds flags for starting the server
type ServeFlags struct {
	Port     int
	Host     string
	Debug    bool
	LogFile  string
	LogLevel string
	NoWatch  bool
}

// ServeOptions contains resolved options for starting the server
type ServeOptions struct {
	Host        string
	Port        int
	Debug       bool
	LogFile     string
	LogLevel    string
	WatchConfig bool
}

// AddServeFlags adds all serve-related flags to a command
func AddServeFlags(cmd *cobra.Command, flags *ServeFlags) {
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 0, "Server port (default: from config or 8000)")
	cmd.Flags().StringVar(&flags.Host, "host", "", "Server host (default: all interfaces)")
	cmd.Flags().BoolVar(&flags.Debug, "debug", false, "Enable debug mode including gin and debug logging")
	cmd.Flags().StringVar(&flags.LogFile, "log-file", "", "Log file path with rotation (default: from config, stderr only)")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "Log level: trace, debug, info, warn, error (default: from config)")
	cmd.Flags().BoolVar(&flags.NoWatch, "no-watch", false, "Disable hot reload of the config file")
}

// ResolveServeOptions applies the priority CLI flag > config > default and
// writes the result back into cfg so the server sees one source of truth.
func ResolveServeOptions(cmd *cobra.Command, flags ServeFlags, cfg *config.Config) ServeOptions {
	opts := ServeOptions{
		Host:        flags.Host,
		Port:        cfg.Port,
		Debug:       cfg.Debug,
		LogFile:     cfg.Log.File,
		LogLevel:    cfg.Log.Level,
		WatchConfig: !flags.NoWatch,
	}
	if cmd.Flags().Changed("port") && flags.Port > 0 {
		opts.Port = flags.Port
		cfg.Port = flags.Port
	}
	if cmd.Flags().Changed("debug") {
		opts.Debug = flags.Debug
		cfg.Debug = flags.Debug
	}
	if cmd.Flags().Changed("log-file") {
		opts.LogFile = flags.LogFile
	}
	if cmd.Flags().Changed("log-level") && flags.LogLevel != "" {
		opts.LogLevel = flags.LogLevel
	}
	if opts.Debug && !cmd.Flags().Changed("log-level") {
		opts.LogLevel = "debug"
	}
	return opts
}
