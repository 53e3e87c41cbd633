package files

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// MaxTextChars caps the extracted text kept per file.
const MaxTextChars = 50_000

const truncatedSuffix = "\n...[texto truncado]"

// Extract returns the text of a document for the assistant. Images and
// empty documents give "". Extraction failures are returned as bracketed
// error text so the assistant can still mention the file.
func Extract(path, ext string) string {
	ext = strings.ToLower(ext)
	if !DocumentExtensions[ext] {
		return ""
	}

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = extractPDF(path)
	case ".docx":
		text, err = extractDocx(path)
	case ".xlsx":
		text, err = extractXLSX(path)
	default:
		text, err = extractPlain(path)
	}
	if err != nil {
		return fmt.Sprintf("[Error extrayendo texto: %v]", err)
	}
	return capText(text)
}

func capText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) > MaxTextChars {
		return string(runes[:MaxTextChars]) + truncatedSuffix
	}
	return text
}

func extractPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var parts []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func extractXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		parts = append(parts, "[Hoja: "+sheet+"]")
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", err
		}
		for _, row := range rows {
			if strings.Join(row, "") == "" {
				continue
			}
			parts = append(parts, strings.Join(row, "\t"))
		}
	}
	return strings.Join(parts, "\n"), nil
}

const wordMainNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// extractDocx walks word/document.xml and returns the non-blank paragraphs.
func extractDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return docxParagraphs(rc)
	}
	return "", fmt.Errorf("word/document.xml not found")
}

func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordMainNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordMainNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if strings.TrimSpace(current.String()) != "" {
					paragraphs = append(paragraphs, current.String())
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}
