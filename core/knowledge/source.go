package knowledge

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

//go:embed requirements_practices.md
var requirementsPractices string

// DefaultDocumentName names the bundled requirements-practice note.
const DefaultDocumentName = "requirements_best_practices.md"

// Document is the plain text of one reference source.
type Document struct {
	Name string
	Text string
}

// DefaultDocument returns the bundled requirements-practice note.
func DefaultDocument() Document {
	return Document{Name: DefaultDocumentName, Text: requirementsPractices}
}

// LoadFile reads a PDF, markdown or plain-text file.
func LoadFile(path string) (Document, error) {
	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := readPDF(path)
		if err != nil {
			return Document{}, fmt.Errorf("load %s: %w", name, err)
		}
		return Document{Name: name, Text: text}, nil
	case ".md", ".txt", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, fmt.Errorf("load %s: %w", name, err)
		}
		return Document{Name: name, Text: string(data)}, nil
	default:
		return Document{}, fmt.Errorf("load %s: unsupported document type", name)
	}
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoadSources loads every path. Missing files are skipped; when nothing
// loads the bundled note is used so the set is never empty.
func LoadSources(paths []string) ([]Document, []error) {
	var (
		docs []Document
		errs []error
	)
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("reference document %s not found", p))
			continue
		}
		doc, err := LoadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		docs = append(docs, DefaultDocument())
	}
	return docs, errs
}
