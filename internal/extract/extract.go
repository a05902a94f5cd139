package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/meridianvc/dealflow-backend/internal/logger"
)

// Extractor turns raw file bytes of one MIME type into text. Parser
// implementations for office formats live outside this module and register
// themselves here.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

// OCRClient is the image-text capability used for image MIME types.
type OCRClient interface {
	ExtractImageText(ctx context.Context, data []byte) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, data []byte, mimeType string) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	return f(ctx, data, mimeType)
}

// Registry routes extraction by MIME type. Unknown types fall back to a
// best-effort plain-text decode.
type Registry struct {
	log    *logger.Logger
	byMIME map[string]Extractor
	ocr    OCRClient
}

func NewRegistry(log *logger.Logger, ocr OCRClient) *Registry {
	r := &Registry{
		log:    log.With("service", "ExtractorRegistry"),
		byMIME: map[string]Extractor{},
		ocr:    ocr,
	}
	plain := ExtractorFunc(extractPlainText)
	for _, mt := range []string{"text/plain", "text/csv", "text/markdown", "text/html"} {
		r.byMIME[mt] = plain
	}
	return r
}

// Register installs an extractor for a MIME type, replacing any existing one.
func (r *Registry) Register(mimeType string, e Extractor) {
	r.byMIME[normalizeMIME(mimeType)] = e
}

func (r *Registry) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	mt := normalizeMIME(mimeType)

	if strings.HasPrefix(mt, "image/") {
		if r.ocr == nil {
			return "", fmt.Errorf("no OCR capability registered for %s", mt)
		}
		return r.ocr.ExtractImageText(ctx, data)
	}

	if e, ok := r.byMIME[mt]; ok {
		return e.Extract(ctx, data, mt)
	}

	// Unsupported type: best-effort decode as text.
	r.log.Debug("No extractor for MIME type, attempting text decode", "mime_type", mt)
	return extractPlainText(ctx, data, mt)
}

func normalizeMIME(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

func extractPlainText(_ context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("content is not valid text (mime=%s)", mimeType)
	}
	s := string(data)
	// A high share of NUL or replacement runes means binary content that
	// happened to validate.
	var bad int
	for _, r := range s {
		if r == 0 || r == utf8.RuneError {
			bad++
		}
	}
	if bad*10 > len(s) {
		return "", fmt.Errorf("content looks binary (mime=%s)", mimeType)
	}
	return s, nil
}
