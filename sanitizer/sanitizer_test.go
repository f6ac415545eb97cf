package sanitizer

import (
	"math/rand"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Hello world.", "Hello world."},
		{"collapse spaces and tabs", "a  \t  b\t\tc", "a b c"},
		{"trim lines", "   first  \n  second   ", "first\nsecond"},
		{"paragraph break kept", "one\n\ntwo", "one\n\ntwo"},
		{"many newlines collapse", "one\n\n\n\n\ntwo", "one\n\ntwo"},
		{"whitespace-only lines count as blank", "one\n   \n\t\n two", "one\n\ntwo"},
		{"leading and trailing blank lines dropped", "\n\n  one \n\n", "one"},
		{"crlf normalized", "one\r\ntwo\rthree", "one\ntwo\nthree"},
		{"controls stripped inside words", "he\x00ll\x07o\x7f", "hello"},
		{"soft hyphen stripped", "hy\u00adphen", "hyphen"},
		{"binary noise becomes space", "abc\x80\x81def", "abc def"},
		{"cjk outside allowlist", "price 価格 100", "price 100"},
		{"math symbols kept", "x ≥ 5 and y ≤ 3 ± 0.1 °C µm §2", "x ≥ 5 and y ≤ 3 ± 0.1 °C µm §2"},
		{"latin-1 kept", "café naïve façade", "café naïve façade"},
		{"nbsp collapses", "a\u00a0\u00a0b", "a b"},
		{"invalid utf8", "ok\xff\xfeok", "ok ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_ExtraSymbols(t *testing.T) {
	s := New(Config{ExtraSymbols: "∑∞"})
	assert.Equal(t, "∑ x ∞", s.Sanitize("∑ x ∞"))
	assert.Equal(t, "x", Sanitize("∑ x ∞"), "default sanitizer drops unknown symbols")
}

func TestSanitize_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	alphabet := []rune("ab Z9.,\t\n\r\x00\x01\x1b\x7f\u00a0\u00ad\u0085 ≥≤€価😀\ufffd")

	for i := 0; i < 2000; i++ {
		n := r.Intn(80)
		var b strings.Builder
		for j := 0; j < n; j++ {
			if r.Intn(10) == 0 {
				b.WriteByte(byte(r.Intn(256)))
				continue
			}
			b.WriteRune(alphabet[r.Intn(len(alphabet))])
		}
		in := b.String()
		once := Sanitize(in)
		require.Equal(t, once, Sanitize(once), "input %q", in)
		assertClean(t, once)
	}
}

func FuzzSanitize(f *testing.F) {
	for _, seed := range []string{"", "a\n\n\nb", "\x00\x01\t \r\n", "≥≤±", "\xff\xfe", "%PDF-1.4 BT (x) Tj ET"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
		assertClean(t, once)
	})
}

// assertClean checks the output guarantees: printable runes only (plus
// newline), no double blank lines, no padded lines.
func assertClean(t testing.TB, out string) {
	t.Helper()
	for _, r := range out {
		if r == '\n' {
			continue
		}
		if unicode.IsControl(r) || !unicode.IsPrint(r) && r != ' ' {
			t.Fatalf("non-printable rune %U in %q", r, out)
		}
	}
	if strings.Contains(out, "\n\n\n") {
		t.Fatalf("more than one blank line in %q", out)
	}
	for _, line := range strings.Split(out, "\n") {
		if line != strings.TrimSpace(line) {
			t.Fatalf("untrimmed line %q", line)
		}
		if strings.Contains(line, "  ") {
			t.Fatalf("uncollapsed spaces in %q", line)
		}
	}
}

func TestReadabilityRatio(t *testing.T) {
	s := Default()

	assert.Equal(t, 0.0, s.ReadabilityRatio(""))
	assert.Equal(t, 1.0, s.ReadabilityRatio("Plain sentence, with punctuation!"))
	assert.InDelta(t, 0.5, s.ReadabilityRatio("ab#$"), 1e-9)

	assert.True(t, s.IsReadable("The quick brown fox jumps over the lazy dog."))
	assert.False(t, s.IsReadable("%$#@^&*{}|~<>%$#@^&*{}abc"))
	assert.True(t, s.IsReadable("Température ≥ 20 °C"), "mostly ASCII prose with a few symbols passes")
	assert.Less(t, s.ReadabilityRatio("ÞåÆøÐ ÿÉß"), 0.2, "Latin-1 letters alone are not readable")
	assert.Equal(t, 0.0, s.ReadabilityRatio("≥≤±°"), "extra symbols are kept but not counted")
}

func TestNew_Threshold(t *testing.T) {
	assert.Equal(t, DefaultReadabilityThreshold, New(Config{}).Threshold())
	assert.Equal(t, 0.9, New(Config{ReadabilityThreshold: 0.9}).Threshold())
	assert.Equal(t, DefaultReadabilityThreshold, New(Config{ReadabilityThreshold: 3}).Threshold())

	strict := New(Config{ReadabilityThreshold: 0.95})
	assert.False(t, strict.IsReadable("mostly text here ####"))
}
