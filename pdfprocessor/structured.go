package pdfprocessor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"docqa/core"
	"docqa/document"
)

// DefaultPageSeparator joins page texts with a paragraph break.
const DefaultPageSeparator = "\n\n"

// StructuredStrategy walks the page tree with a PDF object-model parser and
// collects the operands of the text-showing operators page by page.
type StructuredStrategy struct {
	// PageSeparator is placed between non-empty pages.
	PageSeparator string
	// MaxPages stops the walk early. 0 means all pages.
	MaxPages int
}

// NewStructuredStrategy returns a strategy with the default separator.
func NewStructuredStrategy() *StructuredStrategy {
	return &StructuredStrategy{PageSeparator: DefaultPageSeparator}
}

func (s *StructuredStrategy) Name() string            { return core.StrategyStructured }
func (s *StructuredStrategy) Source() document.Source { return document.SourceStructured }

// Attempt parses data and returns the joined page texts. Parser panics on
// malformed input are converted to errors.
func (s *StructuredStrategy) Attempt(ctx context.Context, data []byte) (cand Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			cand, err = Candidate{}, fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Candidate{}, fmt.Errorf("open pdf: %w", err)
	}

	total := r.NumPage()
	if total == 0 {
		return Candidate{}, ErrNoPages
	}
	limit := total
	if s.MaxPages > 0 && s.MaxPages < limit {
		limit = s.MaxPages
	}

	sep := s.PageSeparator
	if sep == "" {
		sep = DefaultPageSeparator
	}

	pages := make([]string, 0, limit)
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return Candidate{}, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		if text := pageText(p); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return Candidate{Pages: total}, ErrNoText
	}
	return Candidate{Text: strings.Join(pages, sep), Pages: total}, nil
}

// pageText prefers GetPlainText and falls back to the page's positioned
// text fragments when the content stream confuses the plain-text walker.
func pageText(p pdf.Page) string {
	text, err := p.GetPlainText(nil)
	if err == nil {
		if t := strings.TrimSpace(text); t != "" {
			return t
		}
	}
	return strings.TrimSpace(fragmentText(p))
}

func fragmentText(p pdf.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	var b strings.Builder
	var lastY float64
	for i, t := range p.Content().Text {
		if i > 0 && t.Y != lastY {
			b.WriteByte('\n')
		}
		b.WriteString(t.S)
		lastY = t.Y
	}
	return b.String()
}
