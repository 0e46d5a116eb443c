package document

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var (
	// ErrUnsupportedFormat indicates no extractor is registered for a format.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtraction indicates the extractor failed on the document bytes.
	ErrExtraction = errors.New("text extraction failed")
)

// Extractor converts raw document bytes to normalized text.
//
// Implementations for binary formats (PDF, PPTX, XLSX, images) live outside
// this module and are registered on a Registry at startup.
type Extractor interface {
	// Extract returns normalized text. It fails with ErrUnsupportedFormat
	// if the bytes are not in the expected format, or ErrExtraction if the
	// content cannot be decoded.
	Extract(data []byte, format string) (string, error)
}

// rejectedFormats are never parsed, matching the upstream pipeline behavior.
var rejectedFormats = map[string]bool{"zip": true, "bin": true}

// binaryFormats require a dedicated parser supplied via Register. Until one
// is, extraction fails instead of feeding raw bytes through the web fallback
// and into the persistent index.
var binaryFormats = []string{"pdf", "docx", "pptx", "xlsx", "jpg", "jpeg", "png", "bmp", "tiff"}

// unregisteredExtractor rejects binary formats whose parser has not been
// plugged in.
type unregisteredExtractor struct{}

// Extract implements Extractor.
func (unregisteredExtractor) Extract(_ []byte, format string) (string, error) {
	return "", fmt.Errorf("%w: no parser registered for %q", ErrUnsupportedFormat, format)
}

// Registry dispatches extraction by document format.
type Registry struct {
	extractors map[string]Extractor
	fallback   Extractor
}

// NewRegistry creates a Registry with the built-in web-page extractor as the
// fallback for unknown formats and plain-text handling for txt/html. Binary
// formats reject with ErrUnsupportedFormat until a parser is registered for
// them.
func NewRegistry() *Registry {
	web := &WebPageExtractor{}
	r := &Registry{
		extractors: map[string]Extractor{
			"html": web,
			"htm":  web,
			"txt":  PlainTextExtractor{},
			"":     web,
		},
		fallback: web,
	}
	for _, format := range binaryFormats {
		r.extractors[format] = unregisteredExtractor{}
	}
	return r
}

// Register adds an extractor for a format (lowercase extension without dot).
func (r *Registry) Register(format string, e Extractor) {
	r.extractors[strings.ToLower(format)] = e
}

// Extract dispatches to the extractor registered for format.
func (r *Registry) Extract(data []byte, format string) (string, error) {
	format = strings.ToLower(format)
	if rejectedFormats[format] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	e, ok := r.extractors[format]
	if !ok {
		e = r.fallback
	}
	if e == nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return e.Extract(data, format)
}

// FormatFromURL derives the document format from the URL path extension,
// ignoring the query string. Returns "" when the path has no extension,
// which resolves to the generic web-page extractor.
func FormatFromURL(docURL string) string {
	u, err := url.Parse(docURL)
	if err != nil {
		return ""
	}
	ext := path.Ext(u.Path)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// PlainTextExtractor passes document bytes through as text, keeping line
// structure for the chunker.
type PlainTextExtractor struct{}

// Extract implements Extractor.
func (PlainTextExtractor) Extract(data []byte, _ string) (string, error) {
	return normalizeLines(string(data)), nil
}
