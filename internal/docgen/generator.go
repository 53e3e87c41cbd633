// Package docgen renders assistant replies into downloadable documents.
package docgen

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Generator writes generated documents into a directory.
type Generator struct {
	now func() time.Time
}

// New returns a generator stamping files with the local time.
func New() *Generator {
	return &Generator{now: time.Now}
}

// Generate converts content to a .docx named doc_YYYYmmdd_HHMMSS.docx inside
// dir and returns its path and file name.
func (g *Generator) Generate(content, title, dir string) (string, string, error) {
	created := g.now()
	path, name, err := g.reserve(dir, created, ".docx")
	if err != nil {
		return "", "", err
	}
	if err := g.WriteDocx(content, title, path); err != nil {
		_ = os.Remove(path)
		return "", "", err
	}
	return path, name, nil
}

// WriteDocx renders content into a .docx at exactly path, replacing any
// existing file.
func (g *Generator) WriteDocx(content, title, path string) error {
	var buf bytes.Buffer
	if err := writeDocx(&buf, ParseBlocks(content), title, g.now()); err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return os.Rename(tmp, path)
}

// reserve creates an empty file under a name nobody holds yet and returns
// it. Two documents in the same second get a numeric suffix.
func (g *Generator) reserve(dir string, at time.Time, ext string) (string, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create document directory: %w", err)
	}
	base := "doc_" + at.Format("20060102_150405")
	name := base + ext
	for i := 2; ; i++ {
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
		switch {
		case err == nil:
			f.Close()
			return path, name, nil
		case !errors.Is(err, fs.ErrExist):
			return "", "", fmt.Errorf("failed to reserve document name: %w", err)
		}
		name = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}
