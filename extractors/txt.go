// Package extractors implements the plain-text and DOCX extractors and the
// registry that dispatches an upload to the extractor for its format.
package extractors

import (
	"bytes"
	"context"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"docqa/core"
	"docqa/document"
	"docqa/sanitizer"
)

// ErrBinaryContent is the cause attached to a DecodeError for payloads that
// are clearly not text.
var ErrBinaryContent = errors.New("payload contains binary data")

// TextExtractor decodes plain text uploads.
type TextExtractor struct {
	sanitizer *sanitizer.Sanitizer
}

// NewTextExtractor returns a TextExtractor. A nil sanitizer selects the default.
func NewTextExtractor(s *sanitizer.Sanitizer) *TextExtractor {
	if s == nil {
		s = sanitizer.Default()
	}
	return &TextExtractor{sanitizer: s}
}

// Extract decodes the payload (UTF-8, UTF-16 with BOM, or Windows-1252 when
// the bytes are not valid UTF-8) and sanitizes it.
func (e *TextExtractor) Extract(ctx context.Context, file document.SourceFile) (*document.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := DecodeText(file.Data)
	if err != nil {
		return nil, core.ErrDecode(file.Name, err)
	}

	clean := e.sanitizer.Sanitize(text)
	if clean == "" {
		return nil, core.ErrEmptyContent(file.Name)
	}
	return document.NewExtractionResult(clean, document.SourceStructured, "text", 0), nil
}

// DecodeText converts raw bytes to a UTF-8 string.
func DecodeText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	if hasUTF16BOM(data) {
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}

	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if looksBinary(data) {
		return "", ErrBinaryContent
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func hasUTF16BOM(data []byte) bool {
	return len(data) >= 2 && ((data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF))
}

// looksBinary flags payloads whose first 8 KiB hold NUL bytes, which never
// appear in UTF-8 or single-byte text files.
func looksBinary(data []byte) bool {
	sample := data
	if len(sample) > 8192 {
		sample = sample[:8192]
	}
	return bytes.IndexByte(sample, 0) >= 0
}
