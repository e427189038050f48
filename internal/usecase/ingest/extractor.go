package ingest

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Extractor turns raw uploaded bytes into indexable text.
type Extractor interface {
	Extract(data []byte, format string) (string, error)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextExtractor handles plain-text formats (txt, md). Binary formats are
// rejected; a converter sits in front of the service for anything richer.
type TextExtractor struct{}

// NewTextExtractor creates a plain-text extractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract validates encoding and returns the text. The UTF-8 BOM is stripped.
func (*TextExtractor) Extract(data []byte, format string) (string, error) {
	switch strings.ToLower(format) {
	case "txt", "md", "text", "markdown", "":
	default:
		return "", fmt.Errorf("unsupported format %q: %w", format, domain.ErrValidation)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("content is not valid UTF-8: %w", domain.ErrValidation)
	}
	return string(data), nil
}
