package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedType is returned for uploads that are neither PDF nor text
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNoText is returned when a document yields no text at all
	ErrNoText = errors.New("no text could be extracted")
)

var pdfMagic = []byte("%PDF")

// PDFExtractor pulls plain text out of digital PDFs
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF text extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractText returns the document text, one visual row per line and words
// separated by a space. Row extraction is tried first, then the reader's
// plain text stream.
func (e *PDFExtractor) ExtractText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	if r.NumPage() == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	text = extractByRow(r)
	if strings.TrimSpace(text) == "" {
		text = extractPlainText(r)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

func extractByRow(r *pdf.Reader) string {
	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func extractPlainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ExtractFromUpload turns an uploaded invoice into raw text. PDFs are detected
// by content type, extension or magic bytes; text files are returned as is.
func (e *PDFExtractor) ExtractFromUpload(contentType, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType = strings.ToLower(contentType)

	switch {
	case strings.HasPrefix(contentType, "application/pdf") || ext == ".pdf" || bytes.HasPrefix(data, pdfMagic):
		return e.ExtractText(data)

	case strings.HasPrefix(contentType, "text/") || ext == ".txt" || ext == ".csv":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text file is not valid UTF-8", ErrUnsupportedType)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", ErrNoText
		}
		return string(data), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
}
