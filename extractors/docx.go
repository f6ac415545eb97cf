package extractors

import (
	"bytes"
	"context"
	"fmt"

	"code.sajari.com/docconv/v2"

	"docqa/core"
	"docqa/document"
	"docqa/sanitizer"
)

// DocxExtractor pulls paragraph text out of word-processor packages.
type DocxExtractor struct {
	sanitizer *sanitizer.Sanitizer
}

// NewDocxExtractor returns a DocxExtractor. A nil sanitizer selects the default.
func NewDocxExtractor(s *sanitizer.Sanitizer) *DocxExtractor {
	if s == nil {
		s = sanitizer.Default()
	}
	return &DocxExtractor{sanitizer: s}
}

// Extract converts the package with docconv. Corrupt archives, unexpected
// schemas and library panics surface as StructuredExtractionError.
func (e *DocxExtractor) Extract(ctx context.Context, file document.SourceFile) (*document.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := convertDocx(file.Data)
	if err != nil {
		return nil, core.ErrStructuredExtraction(file.Name, err)
	}

	clean := e.sanitizer.Sanitize(text)
	if clean == "" {
		return nil, core.ErrEmptyContent(file.Name)
	}
	return document.NewExtractionResult(clean, document.SourceStructured, "docx", 0), nil
}

func convertDocx(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docx parser panic: %v", r)
		}
	}()
	text, _, err = docconv.ConvertDocx(bytes.NewReader(data))
	return text, err
}
