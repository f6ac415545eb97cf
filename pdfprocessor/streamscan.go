package pdfprocessor

import (
	"context"
	"strings"
	"unicode"

	"docqa/core"
	"docqa/document"
)

// Tokens of the file structure that show up as literal-looking runs.
var structuralKeywords = map[string]bool{
	"obj":       true,
	"endobj":    true,
	"stream":    true,
	"endstream": true,
	"xref":      true,
	"trailer":   true,
	"startxref": true,
}

// StreamScanStrategy collects every literal string found in the decoded
// stream bodies, whether or not it sits inside a text object. Files with
// no locatable streams are scanned whole.
type StreamScanStrategy struct {
	source ContentSource
}

// NewStreamScanStrategy returns a strategy over src, or over every
// inflatable stream when src is nil.
func NewStreamScanStrategy(src ContentSource) *StreamScanStrategy {
	if src == nil {
		src = InflateSource{}
	}
	return &StreamScanStrategy{source: src}
}

func (s *StreamScanStrategy) Name() string            { return core.StrategyStreamScan }
func (s *StreamScanStrategy) Source() document.Source { return document.SourceHeuristic }

func (s *StreamScanStrategy) Attempt(ctx context.Context, data []byte) (Candidate, error) {
	streams, found := s.source.Streams(ctx, data)
	if !found || len(streams) == 0 {
		streams = [][]byte{data}
	}

	var parts []string
	for _, st := range streams {
		if err := ctx.Err(); err != nil {
			return Candidate{}, err
		}
		collectLiterals(ctx, st, func(text string) {
			if t := strings.TrimSpace(text); keepLiteral(t) {
				parts = append(parts, t)
			}
		})
	}
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}

	if len(parts) == 0 {
		return Candidate{}, ErrNoText
	}
	return Candidate{Text: strings.Join(parts, " ")}, nil
}

// keepLiteral drops names, structure keywords and strings without a letter.
func keepLiteral(t string) bool {
	if t == "" || strings.HasPrefix(t, "/") || structuralKeywords[t] {
		return false
	}
	return strings.IndexFunc(t, unicode.IsLetter) >= 0
}
