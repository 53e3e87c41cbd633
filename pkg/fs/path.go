package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ExpandPath expands environment variables and a leading ~ in path and
// returns it absolute. It is applied to every path read from the config
// file or the environment (data_dir, database_path, credentials_file).
func ExpandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}

	// $VAR and ${VAR}, so container configs can point at mounted volumes
	path = os.ExpandEnv(path)

	// Expand ~ to user home directory
	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := GetUserPath()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		if path == "~" {
			path = homeDir
		} else {
			path = filepath.Join(homeDir, path[2:])
		}
	}

	// Relative paths resolve against the working directory
	return filepath.Abs(path)
}

// GetUserPath returns the user's home directory, cleaned
func GetUserPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Clean(homeDir), nil
}

// GetUserConfigPath returns the platform-specific config directory of appName:
// - Linux/Unix: $XDG_CONFIG_HOME, else ~/.config
// - macOS: ~/Library/Application Support
// - Windows: %APPDATA%
func GetUserConfigPath(appName string) (string, error) {
	homeDir, err := GetUserPath()
	if err != nil {
		return "", err
	}

	var configDir string
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			configDir = filepath.Join(appData, appName)
		} else {
			// Fallback to home directory
			configDir = filepath.Join(homeDir, "AppData", "Roaming", appName)
		}
	case "darwin":
		configDir = filepath.Join(homeDir, "Library", "Application Support", appName)
	default:
		// XDG_CONFIG_HOME must be absolute to be honoured
		if xdg := os.Getenv("XDG_CONFIG_HOME"); filepath.IsAbs(xdg) {
			configDir = filepath.Join(xdg, appName)
		} else {
			configDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return configDir, nil
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists reports whether path names an existing regular file. Stored
// uploads and generated documents are checked with it before serving,
// since their rows outlive files removed from disk.
func FileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
