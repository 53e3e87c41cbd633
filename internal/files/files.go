// Package files validates, stores and extracts text from user uploads.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/secretaria-app/secretaria/internal/constant"
)

// File kinds stored in db.File.FileType
const (
	KindDocument = "document"
	KindImage    = "image"
)

// DefaultMaxUploadSize is the upload limit when none is configured.
const DefaultMaxUploadSize = 20 * 1024 * 1024

// DocumentExtensions are uploads whose text is extracted for the assistant.
var DocumentExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".xlsx": true,
	".txt":  true,
	".md":   true,
	".csv":  true,
}

// ImageExtensions are uploads stored as images.
var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// DocxMimeType is the content type of generated documents.
const DocxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Ext returns the lower-cased extension of name including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// MimeType returns the content type for an extension.
func MimeType(ext string) string {
	if mt, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return mt
	}
	return "application/octet-stream"
}

// Classify returns KindDocument or KindImage for an extension.
func Classify(ext string) string {
	if DocumentExtensions[strings.ToLower(ext)] {
		return KindDocument
	}
	return KindImage
}

// ValidationError carries a user-facing reason an upload was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validate checks an upload's extension and size.
func Validate(name string, size, maxSize int64) error {
	ext := Ext(name)
	if !DocumentExtensions[ext] && !ImageExtensions[ext] {
		return &ValidationError{Reason: "Tipo de archivo no permitido: " + ext}
	}
	if maxSize > 0 && size > maxSize {
		return &ValidationError{Reason: fmt.Sprintf("Archivo demasiado grande (max %d MB)", maxSize/(1024*1024))}
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^\w.\-]`)

// SanitizeName strips directories and unsafe characters and adds a random
// 12-hex-digit prefix so stored names never collide.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return prefix + "_" + name
}

// Storage writes uploads under the data directory.
type Storage struct {
	dataDir string
}

// NewStorage returns a storage rooted at dataDir.
func NewStorage(dataDir string) *Storage {
	return &Storage{dataDir: dataDir}
}

// DataDir returns the root directory.
func (s *Storage) DataDir() string {
	return s.dataDir
}

// GeneratedDir is where generated documents are written.
func (s *Storage) GeneratedDir() string {
	return constant.GetGeneratedDir(s.dataDir)
}

// EnsureDirs creates the storage subdirectories.
func (s *Storage) EnsureDirs() error {
	for _, dir := range []string{
		constant.GetDocumentsDir(s.dataDir),
		constant.GetImagesDir(s.dataDir),
		constant.GetGeneratedDir(s.dataDir),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Save writes data under the subdirectory for kind and returns the full path.
func (s *Storage) Save(data []byte, safeName, kind string) (string, error) {
	dir := constant.GetImagesDir(s.dataDir)
	if kind == KindDocument {
		dir = constant.GetDocumentsDir(s.dataDir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(dir, safeName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return path, nil
}
