package aggregator

import (
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/document"
)

func TestBuildContext(t *testing.T) {
	docs := []document.ProcessedDocument{
		{Name: "a.txt", Content: "Alpha content."},
		{Name: "b.pdf", Content: "Beta content."},
	}
	site := &document.ScrapedWebsite{URL: "https://example.com", Title: "Example", Content: "Site text."}

	got := BuildContext(docs, site)
	want := "--- a.txt ---\nAlpha content.\n\n--- b.pdf ---\nBeta content.\n\n--- https://example.com ---\nTitle: Example\nSite text."
	assert.Equal(t, want, got)

	assert.Equal(t, "--- https://x.io ---\nOnly.", BuildContext(nil, &document.ScrapedWebsite{URL: "https://x.io", Content: "Only."}))
	assert.Equal(t, "", BuildContext(nil, nil))
	assert.Equal(t, "", BuildContext(nil, &document.ScrapedWebsite{URL: "https://x.io", Content: "  "}))
}

func TestTruncate(t *testing.T) {
	// A running counter makes every offset distinct.
	var b strings.Builder
	for i := 0; b.Len() < 2_000_000; i++ {
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(' ')
	}
	text := b.String()

	got := Truncate(text, DefaultMaxContextChars)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), DefaultMaxContextChars)
	assert.Equal(t, 1, strings.Count(got, TruncationMarker))

	keep := (DefaultMaxContextChars - utf8.RuneCountInString(TruncationMarker)) / 2
	assert.Equal(t, 9979, keep)
	require.Len(t, got, 2*keep+len(TruncationMarker))
	assert.Equal(t, text[:keep], got[:keep], "head is the start of the text")
	assert.Equal(t, TruncationMarker, got[keep:len(got)-keep])
	assert.Equal(t, text[len(text)-keep:], got[len(got)-keep:], "tail is the end of the text")
}

func TestTruncateShortAndMultibyte(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))

	text := strings.Repeat("≥", 500)
	got := Truncate(text, 200)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 200)
	assert.Contains(t, got, TruncationMarker)
}

func TestSummarizeText(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{name: "short text unchanged", text: "  Brief note.  ", max: 500, want: "Brief note."},
		{name: "sentences that fit", text: "One two. Three four! Five six? Seven eight.", max: 30, want: "One two. Three four! Five six?"},
		{name: "first sentence too long", text: strings.Repeat("word ", 30), max: 20, want: strings.Repeat("word ", 4) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SummarizeText(tt.text, tt.max))
		})
	}
}

func TestSummarizeBound(t *testing.T) {
	inputs := []string{
		strings.Repeat("x", 10_000),
		strings.Repeat("A sentence of moderate length. ", 200),
		strings.Repeat("No terminator here at all ", 100),
	}
	for _, in := range inputs {
		s := SummarizeText(in, 500)
		assert.LessOrEqual(t, utf8.RuneCountInString(s), 503)
	}
}

func TestContentType(t *testing.T) {
	site := &document.ScrapedWebsite{URL: "https://x.io", Content: "x"}
	docs := []document.ProcessedDocument{{Name: "a", Content: "b"}}

	assert.Equal(t, ContentTypeWebsite, ContentType(nil, site))
	assert.Equal(t, ContentTypeDocument, ContentType(docs, site))
	assert.Equal(t, ContentTypeDocument, ContentType(docs, nil))
	assert.Equal(t, ContentTypeDocument, ContentType(nil, nil))
}

func TestAggregatorDefaults(t *testing.T) {
	a := New(0, 0)
	assert.Equal(t, DefaultMaxContextChars, a.MaxContextChars())

	a = New(300, 20)
	bundle := a.Bundle([]document.ProcessedDocument{{Name: "big.txt", Content: strings.Repeat("b", 1000)}}, nil)
	assert.LessOrEqual(t, utf8.RuneCountInString(bundle), 300)
	assert.Equal(t, "Hello there.", a.Summarize("Hello there. General Kenobi, you are a bold one."))
}
