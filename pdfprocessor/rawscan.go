package pdfprocessor

import (
	"context"
	"regexp"
	"strings"

	"docqa/core"
	"docqa/document"
)

var (
	readableRun = regexp.MustCompile(`[A-Za-z0-9 \t.,;:!?'"()\-]{10,}`)
	letterRun   = regexp.MustCompile(`[A-Za-z]{3,}`)
	numericWord = regexp.MustCompile(`^[-+]?[0-9.]+$`)
)

// Operators and structure words that surround text in uncompressed files.
var rawNoiseWords = map[string]bool{
	"R": true, "n": true, "f": true, "obj": true, "endobj": true,
	"stream": true, "endstream": true, "xref": true, "trailer": true,
	"startxref": true, "BT": true, "ET": true, "Tj": true, "TJ": true,
	"Tf": true, "Td": true, "TD": true, "Tm": true, "T*": true,
	"cm": true, "re": true, "Do": true, "q": true, "Q": true,
	"EOF": true, "PDF": true,
}

// RawScanStrategy is the last resort: it keeps runs of readable ASCII found
// anywhere in the bytes.
type RawScanStrategy struct{}

func NewRawScanStrategy() *RawScanStrategy { return &RawScanStrategy{} }

func (s *RawScanStrategy) Name() string            { return core.StrategyRawScan }
func (s *RawScanStrategy) Source() document.Source { return document.SourceHeuristic }

func (s *RawScanStrategy) Attempt(ctx context.Context, data []byte) (Candidate, error) {
	var parts []string
	for n, loc := range readableRun.FindAllIndex(data, -1) {
		if n%1024 == 0 && ctx.Err() != nil {
			return Candidate{}, ctx.Err()
		}
		run := data[loc[0]:loc[1]]
		if !letterRun.Match(run) {
			continue
		}

		words := strings.Fields(string(run))
		if loc[0] > 0 && data[loc[0]-1] == '/' && len(words) > 0 && run[0] != ' ' {
			// the run starts inside a /Name
			words = words[1:]
		}

		kept := words[:0]
		for _, w := range words {
			t := strings.Trim(w, "()")
			if t == "" || rawNoiseWords[t] || numericWord.MatchString(t) {
				continue
			}
			kept = append(kept, t)
		}
		text := strings.Join(kept, " ")
		if len(text) >= 10 && letterRun.MatchString(text) {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return Candidate{}, ErrNoText
	}
	return Candidate{Text: strings.Join(parts, " ")}, nil
}
