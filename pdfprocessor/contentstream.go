package pdfprocessor

import (
	"context"
	"strconv"
	"strings"

	"docqa/core"
	"docqa/document"
)

// ContentStreamStrategy reads text objects (BT ... ET) straight out of the
// content streams without building an object model. It is the fallback for
// files the structured parser rejects, typically damaged cross-reference
// tables.
type ContentStreamStrategy struct {
	source ContentSource
}

// NewContentStreamStrategy returns a strategy reading streams from src. A
// nil src uses pdfcpu page contents with the raw stream scanner as fallback.
func NewContentStreamStrategy(src ContentSource) *ContentStreamStrategy {
	if src == nil {
		src = PageContentSource{Fallback: InflateSource{}}
	}
	return &ContentStreamStrategy{source: src}
}

func (s *ContentStreamStrategy) Name() string            { return core.StrategyContentStream }
func (s *ContentStreamStrategy) Source() document.Source { return document.SourceHeuristic }

func (s *ContentStreamStrategy) Attempt(ctx context.Context, data []byte) (Candidate, error) {
	streams, _ := s.source.Streams(ctx, data)

	var w textWriter
	regions := 0
	for _, st := range streams {
		regions += extractTextObjects(ctx, st, &w)
		w.newline()
	}
	if regions == 0 {
		// BT/ET outside any recognizable stream object.
		regions = extractTextObjects(ctx, data, &w)
	}
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}

	if regions == 0 {
		return Candidate{}, ErrNoTextObjects
	}
	text := w.String()
	if strings.TrimSpace(text) == "" {
		return Candidate{}, ErrNoText
	}
	return Candidate{Text: text}, nil
}

// textWriter accumulates shown text, avoiding doubled separators.
type textWriter struct {
	b    strings.Builder
	last byte
}

func (w *textWriter) text(s string) {
	if s == "" {
		return
	}
	w.b.WriteString(s)
	w.last = s[len(s)-1]
}

func (w *textWriter) space() {
	if w.b.Len() > 0 && w.last != ' ' && w.last != '\n' {
		w.b.WriteByte(' ')
		w.last = ' '
	}
}

func (w *textWriter) newline() {
	if w.b.Len() > 0 && w.last != '\n' {
		w.b.WriteByte('\n')
		w.last = '\n'
	}
}

func (w *textWriter) String() string { return w.b.String() }

type operandKind uint8

const (
	opNumber operandKind = iota
	opString
	opName
	opArray
)

type operand struct {
	kind operandKind
	num  float64
	str  []byte
	arr  []operand
}

// maxOperands bounds the operand stack of a single operator.
const maxOperands = 64

// ctxCheckInterval is how many tokens the tokenizers read between
// cancellation checks.
const ctxCheckInterval = 4096

// kerningSpace is the TJ adjustment (thousandths of a unit) treated as a
// word gap.
const kerningSpace = -200

// extractTextObjects interprets the text operators of one content stream
// and writes shown strings to w. It returns the number of text objects
// seen. Malformed tokens are skipped. An unterminated string swallows the
// bytes its parse consumed, so every byte is read a bounded number of
// times. It stops early when ctx is done.
func extractTextObjects(ctx context.Context, data []byte, w *textWriter) int {
	var (
		regions  int
		inText   bool
		operands []operand
		arrays   [][]operand
		lastY    float64
		haveY    bool
		steps    int
	)

	push := func(op operand) {
		if n := len(arrays); n > 0 {
			arrays[n-1] = append(arrays[n-1], op)
			return
		}
		if len(operands) >= maxOperands {
			operands = operands[1:]
		}
		operands = append(operands, op)
	}

	lastString := func() ([]byte, bool) {
		for i := len(operands) - 1; i >= 0; i-- {
			if operands[i].kind == opString {
				return operands[i].str, true
			}
		}
		return nil, false
	}

	i := 0
	for i < len(data) {
		if steps++; steps%ctxCheckInterval == 0 && ctx.Err() != nil {
			break
		}
		c := data[i]
		switch {
		case isWhite(c):
			i++

		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}

		case c == '(':
			s, next, ok := parseLiteral(data, i)
			i = max(next, i+1)
			if ok {
				push(operand{kind: opString, str: s})
			}

		case c == '<':
			if i+1 < len(data) && data[i+1] == '<' {
				i += 2
				continue
			}
			s, next, ok := parseHexString(data, i)
			i = max(next, i+1)
			if ok {
				push(operand{kind: opString, str: s})
			}

		case c == '[':
			arrays = append(arrays, nil)
			i++

		case c == ']':
			if n := len(arrays); n > 0 {
				arr := arrays[n-1]
				arrays = arrays[:n-1]
				push(operand{kind: opArray, arr: arr})
			}
			i++

		case c == '/':
			j := i + 1
			for j < len(data) && !isWhite(data[j]) && !isDelimiter(data[j]) {
				j++
			}
			push(operand{kind: opName, str: data[i+1 : j]})
			i = j

		case isDelimiter(c):
			// stray ')', '>', '{', '}'
			i++

		default:
			j := i
			for j < len(data) && !isWhite(data[j]) && !isDelimiter(data[j]) {
				j++
			}
			tok := data[i:j]
			i = j

			if isNumberStart(tok[0]) {
				if f, err := strconv.ParseFloat(string(tok), 64); err == nil {
					push(operand{kind: opNumber, num: f})
					continue
				}
			}

			// Operators consume the stack; arrays cannot span them.
			arrays = arrays[:0]
			switch string(tok) {
			case "BT":
				inText = true
				regions++
			case "ET":
				inText = false
				w.newline()
			case "Tj":
				if s, ok := lastString(); ok && inText {
					w.text(decodeString(s))
				}
			case "'", "\"":
				if s, ok := lastString(); ok && inText {
					w.newline()
					w.text(decodeString(s))
				}
			case "TJ":
				if n := len(operands); n > 0 && operands[n-1].kind == opArray && inText {
					for _, el := range operands[n-1].arr {
						switch el.kind {
						case opString:
							w.text(decodeString(el.str))
						case opNumber:
							if el.num <= kerningSpace {
								w.space()
							}
						}
					}
				}
			case "T*":
				if inText {
					w.newline()
				}
			case "Td", "TD":
				if inText {
					if n := len(operands); n >= 2 && operands[n-1].kind == opNumber && operands[n-1].num != 0 {
						w.newline()
					} else {
						w.space()
					}
				}
			case "Tm":
				if n := len(operands); inText && n >= 6 && operands[n-1].kind == opNumber {
					y := operands[n-1].num
					if haveY && y != lastY {
						w.newline()
					} else {
						w.space()
					}
					lastY, haveY = y, true
				}
			case "ID":
				// Inline image data runs to the EI operator.
				if end := indexKeyword(data, i, "EI"); end >= 0 {
					i = end + 2
				} else {
					i = len(data)
				}
			}
			operands = operands[:0]
		}
	}
	return regions
}

func isNumberStart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}

// collectLiterals calls fn for every literal string in data. Strings inside
// one array are joined, so kerned words come out whole. Like
// extractTextObjects it never re-reads an unterminated string and stops
// when ctx is done.
func collectLiterals(ctx context.Context, data []byte, fn func(string)) {
	var (
		arrayDepth int
		pending    strings.Builder
		steps      int
	)
	flush := func() {
		if pending.Len() > 0 {
			fn(pending.String())
			pending.Reset()
		}
	}

	for i := 0; i < len(data); {
		if steps++; steps%ctxCheckInterval == 0 && ctx.Err() != nil {
			return
		}
		switch data[i] {
		case '(':
			s, next, ok := parseLiteral(data, i)
			if !ok {
				i = max(next, i+1)
				continue
			}
			text := decodeString(s)
			if arrayDepth > 0 {
				pending.WriteString(text)
			} else {
				fn(text)
			}
			i = next
		case '[':
			arrayDepth++
			i++
		case ']':
			if arrayDepth > 0 {
				arrayDepth--
				if arrayDepth == 0 {
					flush()
				}
			}
			i++
		case '-':
			// large negative kerning inside an array separates words
			if arrayDepth > 0 {
				j := i + 1
				for j < len(data) && (data[j] >= '0' && data[j] <= '9' || data[j] == '.') {
					j++
				}
				if f, err := strconv.ParseFloat(string(data[i:j]), 64); err == nil && f <= kerningSpace {
					pending.WriteByte(' ')
				}
				i = max(j, i+1)
				continue
			}
			i++
		default:
			i++
		}
	}
	flush()
}
