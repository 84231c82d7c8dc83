package worker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"invoicer/internal/pdf"
)

var ErrEmptyDocument = errors.New("empty document")

// Archive keeps one rendered PDF per invoice and generation date in a directory.
type Archive struct {
	dir string
}

func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{dir: dir}, nil
}

func (a *Archive) Dir() string {
	return a.dir
}

// Save writes doc under its file name. The file appears atomically: readers
// never see a partial PDF.
func (a *Archive) Save(doc *pdf.Document) (string, error) {
	if doc == nil || len(doc.Data) == 0 {
		return "", ErrEmptyDocument
	}
	dst := filepath.Join(a.dir, filepath.Base(doc.FileName))

	tmp, err := os.CreateTemp(a.dir, ".invoice-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", doc.FileName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", doc.FileName, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("move %s into archive: %w", doc.FileName, err)
	}
	return dst, nil
}
