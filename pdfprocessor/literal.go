package pdfprocessor

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// maxLiteralLen bounds a single string operand. Longer runs are treated as
// a malformed region.
const maxLiteralLen = 64 << 10

// parseLiteral decodes the literal string starting at data[start] == '('.
// It returns the unescaped bytes, the index just past the closing
// parenthesis and whether the string was properly terminated. Nested
// balanced parentheses are part of the string.
func parseLiteral(data []byte, start int) ([]byte, int, bool) {
	depth := 0
	out := make([]byte, 0, 32)

	for i := start; i < len(data); i++ {
		c := data[i]
		switch c {
		case '\\':
			i++
			if i >= len(data) {
				return out, i, false
			}
			switch e := data[i]; e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				// line continuation, optionally \r\n
				if i+1 < len(data) && data[i+1] == '\n' {
					i++
				}
			case '\n':
				// line continuation
			default:
				if isOctal(e) {
					val := int(e - '0')
					for n := 1; n < 3 && i+1 < len(data) && isOctal(data[i+1]); n++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					out = append(out, byte(val))
				} else {
					// unknown escapes keep the character
					out = append(out, e)
				}
			}
		case '(':
			depth++
			if depth > 1 {
				out = append(out, c)
			}
		case ')':
			depth--
			if depth == 0 {
				return out, i + 1, true
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
		if len(out) > maxLiteralLen {
			return out, i + 1, false
		}
	}
	return out, len(data), false
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }

// parseHexString decodes <...> at data[start]. The caller has checked that
// it is not a dictionary opener.
func parseHexString(data []byte, start int) ([]byte, int, bool) {
	out := make([]byte, 0, 16)
	var hi byte
	half := false
	for i := start + 1; i < len(data); i++ {
		c := data[i]
		if c == '>' {
			if half {
				out = append(out, hi<<4)
			}
			return out, i + 1, true
		}
		v, ok := hexValue(c)
		if !ok {
			if isWhite(c) {
				continue
			}
			return out, i, false
		}
		if half {
			out = append(out, hi<<4|v)
			half = false
		} else {
			hi, half = v, true
		}
		if len(out) > maxLiteralLen {
			return out, i + 1, false
		}
	}
	return out, len(data), false
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// decodeString maps PDF string bytes to text. UTF-16BE with BOM is decoded
// as such; two-byte codes whose high bytes are all zero are collapsed;
// everything else is read as WinAnsi, the encoding of most simple fonts.
func decodeString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		if out, err := utf16BE.NewDecoder().Bytes(b); err == nil {
			return string(out)
		}
	}
	if collapsed, ok := collapseDoubleByte(b); ok {
		b = collapsed
	}
	if isASCII(b) {
		return string(b)
	}
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) && utf8.Valid(b[3:]) {
		return string(b[3:])
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		runes := make([]rune, len(b))
		for i, c := range b {
			runes[i] = rune(c)
		}
		return string(runes)
	}
	return string(out)
}

// collapseDoubleByte handles Identity-style strings where every character
// is 0x00 followed by an ASCII code.
func collapseDoubleByte(b []byte) ([]byte, bool) {
	if len(b) < 4 || len(b)%2 != 0 {
		return nil, false
	}
	out := make([]byte, 0, len(b)/2)
	for i := 0; i < len(b); i += 2 {
		if b[i] != 0 || b[i+1] < 0x20 || b[i+1] > 0x7E {
			return nil, false
		}
		out = append(out, b[i+1])
	}
	return out, true
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

func isWhite(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
