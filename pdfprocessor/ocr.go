package pdfprocessor

import (
	"context"
	"strings"

	"docqa/core"
	"docqa/document"
)

// Recognizer turns document bytes into text using an external service.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte) (string, error)
}

// OCRStrategy delegates to a Recognizer. Without one it reports
// ErrNotConfigured so the chain moves on.
type OCRStrategy struct {
	recognizer Recognizer
	source     document.Source
}

// NewOCRStrategy wraps r. source tags accepted results: SourceOCR for image
// recognition services, SourceServiceAPI for conversion services.
func NewOCRStrategy(r Recognizer, source document.Source) *OCRStrategy {
	if source == "" {
		source = document.SourceOCR
	}
	return &OCRStrategy{recognizer: r, source: source}
}

func (s *OCRStrategy) Name() string            { return core.StrategyOCR }
func (s *OCRStrategy) Source() document.Source { return s.source }

// Attempt forwards data to the service. Service failures are returned as
// errors for the chain to record.
func (s *OCRStrategy) Attempt(ctx context.Context, data []byte) (Candidate, error) {
	if s.recognizer == nil {
		return Candidate{}, ErrNotConfigured
	}
	text, err := s.recognizer.Recognize(ctx, data)
	if err != nil {
		return Candidate{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Candidate{}, ErrNoText
	}
	return Candidate{Text: text}, nil
}
