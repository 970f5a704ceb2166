// Package extract turns uploaded textbook files into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxPages bounds how many PDF pages are read.
const DefaultMaxPages = 1000

var (
	// ErrUnsupported is returned for content types other than PDF and plain text.
	ErrUnsupported = errors.New("unsupported document type")
	// ErrEmpty is returned when a document yields no extractable text.
	ErrEmpty = errors.New("document contains no extractable text")
)

// Kind is the decoded document family.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindText Kind = "text"
)

// Extractor decodes uploads.
type Extractor struct {
	MaxPages int
}

func New(maxPages int) *Extractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Extractor{MaxPages: maxPages}
}

// Detect resolves the document kind from the declared content type, falling
// back to the file extension when the type is missing or generic.
func Detect(contentType, filename string) (Kind, error) {
	mediaType := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = strings.ToLower(mt)
		}
	}
	switch mediaType {
	case "application/pdf":
		return KindPDF, nil
	case "text/plain", "text/markdown", "text/x-markdown":
		return KindText, nil
	case "", "application/octet-stream":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mediaType)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF, nil
	case ".txt", ".md", ".markdown":
		return KindText, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, filename)
}

// Text returns the text content of data.
func (e *Extractor) Text(data []byte, contentType, filename string) (string, error) {
	kind, err := Detect(contentType, filename)
	if err != nil {
		return "", err
	}
	var text string
	switch kind {
	case KindPDF:
		text, err = e.pdfText(data)
		if err != nil {
			return "", err
		}
	case KindText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text is not valid UTF-8", ErrUnsupported)
		}
		text = string(data)
	}
	text = strings.ReplaceAll(text, "\x00", "")
	if strings.TrimSpace(text) == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// pdfText joins the plain text of every page with a single space.
// Pages that fail to decode are skipped.
func (e *Extractor) pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	total := reader.NumPage()
	if total == 0 {
		return "", ErrEmpty
	}
	if total > e.MaxPages {
		return "", fmt.Errorf("pdf has %d pages, max allowed is %d", total, e.MaxPages)
	}
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, " "), nil
}
