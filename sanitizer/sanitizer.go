// Package sanitizer normalizes decoded text into clean printable lines and
// scores how readable a candidate extraction is.
//
// Sanitize is idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
package sanitizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultExtraSymbols are kept in addition to ASCII and Latin-1. Technical
// documents rely on comparison signs and typographic punctuation.
const DefaultExtraSymbols = "≥≤±°µ§≠≈•–—‘’“”€…™"

// DefaultReadabilityThreshold is the minimum readable ratio (exclusive).
const DefaultReadabilityThreshold = 0.7

// Config configures a Sanitizer. Zero values select the defaults.
type Config struct {
	// ExtraSymbols are appended to DefaultExtraSymbols.
	ExtraSymbols string
	// ReadabilityThreshold is the ratio a text must exceed to be readable.
	ReadabilityThreshold float64
}

// Sanitizer is safe for concurrent use; it holds no mutable state.
type Sanitizer struct {
	extra     map[rune]struct{}
	threshold float64
}

// New builds a Sanitizer from cfg.
func New(cfg Config) *Sanitizer {
	s := &Sanitizer{
		extra:     make(map[rune]struct{}),
		threshold: cfg.ReadabilityThreshold,
	}
	if s.threshold <= 0 || s.threshold >= 1 {
		s.threshold = DefaultReadabilityThreshold
	}
	for _, r := range DefaultExtraSymbols + cfg.ExtraSymbols {
		if r == utf8.RuneError || unicode.IsControl(r) {
			continue
		}
		s.extra[r] = struct{}{}
	}
	return s
}

var defaultSanitizer = New(Config{})

// Default returns the sanitizer built from the default configuration.
func Default() *Sanitizer { return defaultSanitizer }

// Sanitize cleans text with the default configuration.
func Sanitize(text string) string { return defaultSanitizer.Sanitize(text) }

// Threshold returns the readability threshold in use.
func (s *Sanitizer) Threshold() float64 { return s.threshold }

// Sanitize returns text with controls stripped, non-allowlisted characters
// replaced by spaces, whitespace collapsed, every line trimmed and blank
// line runs reduced to a single paragraph break.
func (s *Sanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		r, width := utf8.DecodeRuneInString(text[i:])
		i += width
		switch {
		case r == utf8.RuneError && width <= 1:
			b.WriteByte(' ')
		case isStripped(r):
			// removed outright so a control inside a word does not split it
		case s.allowed(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	pendingBreak := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			pendingBreak = len(out) > 0
			continue
		}
		if pendingBreak {
			out = append(out, "")
			pendingBreak = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// isStripped reports C0 controls other than tab and newline, DEL and the
// soft hyphen.
func isStripped(r rune) bool {
	return (r < 0x20 && r != '\t' && r != '\n') || r == 0x7F || r == 0xAD
}

func (s *Sanitizer) allowed(r rune) bool {
	switch {
	case r == '\n' || r == '\t':
		return true
	case r >= 0x20 && r <= 0x7E:
		return true
	case r >= 0xA0 && r <= 0xFF:
		return true
	}
	_, ok := s.extra[r]
	return ok
}

// ReadabilityRatio is the fraction of runes that are ASCII letters, digits,
// whitespace or common punctuation. Empty text scores 0. Accented letters
// and the extra symbols survive Sanitize but do not count here: binary
// bytes decoded as WinAnsi turn into exactly those characters.
func (s *Sanitizer) ReadabilityRatio(text string) float64 {
	total, readable := 0, 0
	for _, r := range text {
		total++
		if s.readable(r) {
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// IsReadable reports whether text scores above the threshold.
func (s *Sanitizer) IsReadable(text string) bool {
	return s.ReadabilityRatio(text) > s.threshold
}

const readablePunctuation = `.,!?;:'"()-`

func (s *Sanitizer) readable(r rune) bool {
	if r >= utf8.RuneSelf {
		return false
	}
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') ||
		unicode.IsSpace(r) || strings.ContainsRune(readablePunctuation, r)
}
