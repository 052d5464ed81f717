// Package pdf extracts plain text from PDF files.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	lpdf "github.com/ledongthuc/pdf"
)

var pageMarkerPattern = regexp.MustCompile(`\n\n--- page \d+ ---\n\n`)

// PageMarker is inserted between consecutive pages.
func PageMarker(page int) string {
	return fmt.Sprintf("\n\n--- page %d ---\n\n", page)
}

// StripPageMarkers removes the page boundaries added by Extract.
func StripPageMarkers(text string) string {
	return pageMarkerPattern.ReplaceAllString(text, "")
}

// JoinPages concatenates page texts in order, separated by page markers.
func JoinPages(pages []string) string {
	var b strings.Builder
	for i, page := range pages {
		if i > 0 {
			b.WriteString(PageMarker(i + 1))
		}
		b.WriteString(page)
	}
	return b.String()
}

// Extractor reads PDFs from the local filesystem.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text of every page in page order.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.Wrap(domain.ErrFileNotFound, err)
		}
		return "", domain.Wrap(domain.ErrExtractionFailed, err)
	}
	if info.IsDir() {
		return "", domain.Wrap(domain.ErrFileNotFound, fmt.Errorf("%s is a directory", path))
	}

	f, reader, err := lpdf.Open(path)
	if f != nil {
		defer f.Close()
	}
	if err != nil {
		return "", domain.Wrap(domain.ErrExtractionFailed, err)
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", domain.Wrap(domain.ErrExtractionFailed, fmt.Errorf("page %d: %w", i, err))
		}
		pages = append(pages, text)
	}

	return JoinPages(pages), nil
}
