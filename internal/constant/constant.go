package constant

import (
	"path/filepath"

	"github.com/secretaria-app/secretaria/pkg/fs"
)

// AppName is used for the config directory and the CLI root command.
const AppName = "secretaria"

const ConfigFileName = "secretaria.yaml"

const DBFileName = "secretaria.db"

const (
	LogDirName = "log"

	// ErrorLogFileName collects failed API requests selected by the error-log filter
	ErrorLogFileName = "bad_requests.log"
)

// Storage subdirectories under the data directory
const (
	DocumentsDirName = "documentos"
	ImagesDirName    = "imagenes"
	GeneratedDirName = "generados"
)

const (
	// DefaultConversationTitle is used for new conversations without an explicit title
	DefaultConversationTitle = "Nueva conversación"

	// AttachmentPlaceholder is the visible text of a user turn that only carries files
	AttachmentPlaceholder = "[Archivo adjunto]"
)

// DefaultHistoryLimit bounds how many stored turns are sent to a provider
const DefaultHistoryLimit = 50

// GetConfDir returns the config directory path (default: ~/.config/secretaria)
func GetConfDir() string {
	dir, err := fs.GetUserConfigPath(AppName)
	if err != nil {
		// Fallback to current directory if home directory is not accessible
		return "." + AppName
	}
	return dir
}

// GetConfigFile returns the default YAML config file inside baseDir
func GetConfigFile(baseDir string) string {
	return filepath.Join(baseDir, ConfigFileName)
}

// GetLogDir returns the log directory path
func GetLogDir(baseDir string) string {
	return filepath.Join(baseDir, LogDirName)
}

// GetDBFile returns the default database path inside the data directory
func GetDBFile(dataDir string) string {
	return filepath.Join(dataDir, DBFileName)
}

func GetDocumentsDir(dataDir string) string {
	return filepath.Join(dataDir, DocumentsDirName)
}

func GetImagesDir(dataDir string) string {
	return filepath.Join(dataDir, ImagesDirName)
}

func GetGeneratedDir(dataDir string) string {
	return filepath.Join(dataDir, GeneratedDirName)
}
