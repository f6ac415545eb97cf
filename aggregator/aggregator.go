// Package aggregator assembles processed documents and scraped pages into
// the bounded context handed to the answer service.
//
// All functions are pure.
package aggregator

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"docqa/document"
)

const (
	// DefaultMaxContextChars caps the context bundle.
	DefaultMaxContextChars = 20000

	// DefaultSummaryMaxChars caps a per-document summary.
	DefaultSummaryMaxChars = 500

	// TruncationMarker separates the kept head and tail of a long context.
	TruncationMarker = "\n\n[... content truncated for length ...]\n\n"

	blockSeparator = "\n\n"
)

// Content types passed to the answer prompt.
const (
	ContentTypeDocument = "document"
	ContentTypeWebsite  = "website"
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Aggregator applies the configured limits.
type Aggregator struct {
	maxContext int
	maxSummary int
}

// New returns an Aggregator. Non-positive limits take the defaults.
func New(maxContextChars, summaryMaxChars int) *Aggregator {
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	if summaryMaxChars <= 0 {
		summaryMaxChars = DefaultSummaryMaxChars
	}
	return &Aggregator{maxContext: maxContextChars, maxSummary: summaryMaxChars}
}

// MaxContextChars returns the context cap.
func (a *Aggregator) MaxContextChars() int { return a.maxContext }

// Bundle builds and truncates the context for docs and website.
func (a *Aggregator) Bundle(docs []document.ProcessedDocument, website *document.ScrapedWebsite) string {
	return Truncate(BuildContext(docs, website), a.maxContext)
}

// Summarize shortens text to the configured summary length.
func (a *Aggregator) Summarize(text string) string {
	return SummarizeText(text, a.maxSummary)
}

// BuildContext labels each document and the website and joins the blocks
// with a blank line, documents first in upload order.
//
// Example:
//
//	--- report.pdf ---
//	Quarterly revenue rose.
//
//	--- https://example.com ---
//	Title: Example
//	Page text.
func BuildContext(docs []document.ProcessedDocument, website *document.ScrapedWebsite) string {
	blocks := make([]string, 0, len(docs)+1)
	for _, d := range docs {
		blocks = append(blocks, "--- "+d.Name+" ---\n"+d.Content)
	}
	if website != nil && strings.TrimSpace(website.Content) != "" {
		var b strings.Builder
		b.WriteString("--- " + website.URL + " ---\n")
		if website.Title != "" {
			b.WriteString("Title: " + website.Title + "\n")
		}
		b.WriteString(website.Content)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, blockSeparator)
}

// Truncate keeps equal head and tail slices around TruncationMarker when
// text exceeds maxChars runes. The result never exceeds maxChars runes.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	markerLen := utf8.RuneCountInString(TruncationMarker)
	keep := (maxChars - markerLen) / 2
	if keep <= 0 {
		return string([]rune(text)[:maxChars])
	}

	runes := []rune(text)
	return string(runes[:keep]) + TruncationMarker + string(runes[len(runes)-keep:])
}

// SummarizeText returns the leading sentences of text that fit in
// maxChars runes. When even the first sentence is too long the first
// maxChars runes are returned followed by "...".
func SummarizeText(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if maxChars <= 0 {
		maxChars = DefaultSummaryMaxChars
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	var summary strings.Builder
	length := 0
	for _, s := range sentencePattern.FindAllString(text, -1) {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		add := utf8.RuneCountInString(s)
		if length > 0 {
			add++
		}
		if length+add > maxChars {
			break
		}
		if length > 0 {
			summary.WriteByte(' ')
		}
		summary.WriteString(s)
		length += add
	}

	if length == 0 {
		return string([]rune(text)[:maxChars]) + "..."
	}
	return summary.String()
}

// ContentType reports "website" when a website is the only content and
// "document" otherwise.
func ContentType(docs []document.ProcessedDocument, website *document.ScrapedWebsite) string {
	if len(docs) == 0 && website != nil {
		return ContentTypeWebsite
	}
	return ContentTypeDocument
}
