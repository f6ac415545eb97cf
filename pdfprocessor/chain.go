// Package pdfprocessor extracts readable text from arbitrary PDF files.
//
// chain.go implements the Chain: an ordered list of strategies, each tried
// in turn until one produces a candidate that passes the acceptance gate.
// Strategies are, by default:
//   - structured.go: page walk with a PDF object-model parser
//   - ocr.go: delegation to an external OCR/conversion service
//   - contentstream.go: text-object operators found in content streams
//   - streamscan.go: any literal strings inside stream bodies
//   - rawscan.go: readable character runs in the raw bytes
package pdfprocessor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"docqa/core"
	"docqa/document"
	"docqa/logging"
	"docqa/sanitizer"
)

// Sentinel errors reported by strategies. They end up in StrategyAttempt
// and in the user-facing summary, never as the chain's return value.
var (
	ErrNotConfigured = errors.New("not configured")
	ErrNoPages       = errors.New("document has no pages")
	ErrNoText        = errors.New("no text found")
	ErrNoTextObjects = errors.New("no text objects found")
	ErrRejected      = errors.New("candidate rejected")
)

// Candidate is the raw output of one strategy.
type Candidate struct {
	Text  string
	Pages int
}

// Strategy is one way of getting text out of PDF bytes. Attempt must not
// panic; malformed regions are skipped.
type Strategy interface {
	Name() string
	Source() document.Source
	Attempt(ctx context.Context, data []byte) (Candidate, error)
}

// StrategyAttempt records how one strategy fared.
type StrategyAttempt struct {
	Name     string
	Accepted bool
	Length   int
	Ratio    float64
	Duration time.Duration
	Err      error
}

// Outcome is the full result of running the chain.
type Outcome struct {
	Result   *document.ExtractionResult
	Attempts []StrategyAttempt
}

// ChainConfig holds the acceptance gate.
type ChainConfig struct {
	// MinLength is the minimum rune count of a sanitized candidate.
	MinLength int

	// Sanitizer cleans candidates and scores readability.
	Sanitizer *sanitizer.Sanitizer

	// Logger receives one entry per attempt.
	Logger *logging.Logger
}

// DefaultMinLength is the default acceptance threshold in characters.
const DefaultMinLength = 50

// DefaultChainConfig returns the default gate: 50 characters at a
// readability ratio above 0.7.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		MinLength: DefaultMinLength,
		Sanitizer: sanitizer.Default(),
		Logger:    logging.NewNop(),
	}
}

// Chain runs strategies in order. It is safe for concurrent use when its
// strategies are.
type Chain struct {
	strategies []Strategy
	minLength  int
	sanitizer  *sanitizer.Sanitizer
	logger     *logging.Logger
}

// NewChain builds a chain. Missing config fields take their defaults.
func NewChain(config ChainConfig, strategies ...Strategy) *Chain {
	def := DefaultChainConfig()
	if config.MinLength <= 0 {
		config.MinLength = def.MinLength
	}
	if config.Sanitizer == nil {
		config.Sanitizer = def.Sanitizer
	}
	if config.Logger == nil {
		config.Logger = def.Logger
	}
	return &Chain{
		strategies: strategies,
		minLength:  config.MinLength,
		sanitizer:  config.Sanitizer,
		logger:     config.Logger.Named("pdf-chain"),
	}
}

// Strategies returns the strategy names in order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Extract implements document.Extractor.
func (c *Chain) Extract(ctx context.Context, file document.SourceFile) (*document.ExtractionResult, error) {
	out, err := c.Run(ctx, file.Name, file.Data)
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Run tries each strategy until one passes the gate. When all fail it
// returns the attempts together with an UnextractableDocument error.
// Cancellation is returned as the context error.
func (c *Chain) Run(ctx context.Context, name string, data []byte) (*Outcome, error) {
	out := &Outcome{Attempts: make([]StrategyAttempt, 0, len(c.strategies))}

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		start := time.Now()
		cand, err := s.Attempt(ctx, data)
		attempt := StrategyAttempt{Name: s.Name(), Duration: time.Since(start)}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			attempt.Err = err
			out.Attempts = append(out.Attempts, attempt)
			c.logger.Debug("strategy failed",
				zap.String("file", name),
				zap.String("strategy", s.Name()),
				zap.Duration("duration", attempt.Duration),
				zap.Error(err))
			continue
		}

		text := c.sanitizer.Sanitize(cand.Text)
		attempt.Length = utf8.RuneCountInString(text)
		attempt.Ratio = c.sanitizer.ReadabilityRatio(text)

		if reason := c.gate(attempt.Length, attempt.Ratio); reason != "" {
			attempt.Err = fmt.Errorf("%w: %s", ErrRejected, reason)
			out.Attempts = append(out.Attempts, attempt)
			c.logger.Debug("candidate rejected",
				zap.String("file", name),
				zap.String("strategy", s.Name()),
				zap.Int("length", attempt.Length),
				zap.Float64("ratio", attempt.Ratio))
			continue
		}

		attempt.Accepted = true
		out.Attempts = append(out.Attempts, attempt)
		out.Result = document.NewExtractionResult(text, s.Source(), s.Name(), cand.Pages)
		c.logger.Info("pdf text extracted",
			zap.String("file", name),
			zap.String("strategy", s.Name()),
			zap.Int("length", attempt.Length),
			zap.Int("pages", cand.Pages),
			zap.Duration("duration", attempt.Duration))
		return out, nil
	}

	c.logger.Warn("pdf unextractable", zap.String("file", name), zap.String("attempts", summarize(out.Attempts)))
	return out, core.ErrUnextractableDocument(name, summarize(out.Attempts))
}

func (c *Chain) gate(length int, ratio float64) string {
	if length < c.minLength {
		return fmt.Sprintf("%d characters, need %d", length, c.minLength)
	}
	if ratio <= c.sanitizer.Threshold() {
		return fmt.Sprintf("readability %.2f, need above %.2f", ratio, c.sanitizer.Threshold())
	}
	return ""
}

// summarize renders attempts for the user, e.g.
// "structured: no text found; ocr: not configured".
func summarize(attempts []StrategyAttempt) string {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		reason := "accepted"
		if a.Err != nil {
			reason = a.Err.Error()
		}
		parts = append(parts, a.Name+": "+reason)
	}
	return strings.Join(parts, "; ")
}
