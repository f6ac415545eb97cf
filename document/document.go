// Package document defines the values that flow through the ingestion
// pipeline: uploaded files, extraction results, processed documents and
// scraped websites.
package document

import (
	"context"
	"unicode/utf8"
)

// Source identifies how an extraction result was obtained.
type Source string

const (
	SourceStructured Source = "structured"
	SourceOCR        Source = "ocr"
	SourceHeuristic  Source = "heuristic"
	SourceServiceAPI Source = "serviceApi"
)

// SourceFile is one uploaded file. It is read once and never persisted.
type SourceFile struct {
	Name      string
	MediaType string
	Data      []byte
	Size      int64
}

// NewSourceFile builds a SourceFile, taking Size from the payload.
func NewSourceFile(name, mediaType string, data []byte) SourceFile {
	return SourceFile{Name: name, MediaType: mediaType, Data: data, Size: int64(len(data))}
}

// ExtractionResult is the output of exactly one extractor invocation.
type ExtractionResult struct {
	Text     string
	Source   Source
	Strategy string // e.g. "structured", "content-stream", "docx"
	Length   int    // rune count of Text
	Pages    int    // page count when known, otherwise 0
}

// NewExtractionResult fills Length from text.
func NewExtractionResult(text string, source Source, strategy string, pages int) *ExtractionResult {
	return &ExtractionResult{
		Text:     text,
		Source:   source,
		Strategy: strategy,
		Length:   utf8.RuneCountInString(text),
		Pages:    pages,
	}
}

// Extractor turns a SourceFile into sanitized text.
type Extractor interface {
	Extract(ctx context.Context, file SourceFile) (*ExtractionResult, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, file SourceFile) (*ExtractionResult, error)

func (f ExtractorFunc) Extract(ctx context.Context, file SourceFile) (*ExtractionResult, error) {
	return f(ctx, file)
}

// ProcessedDocument is an accepted document within a session.
type ProcessedDocument struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Summary  string `json:"summary"`
	Source   Source `json:"source"`
	Strategy string `json:"strategy"`
}

// ScrapedWebsite is the sanitized content of one URL.
type ScrapedWebsite struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}
