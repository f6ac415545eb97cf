package pdfprocessor

import (
	"fmt"

	"docqa/core"
	"docqa/document"
)

// StrategyOptions supplies the dependencies some strategies need.
type StrategyOptions struct {
	// Recognizer backs the ocr strategy. Nil leaves it unconfigured.
	Recognizer Recognizer
	// OCRSource tags results accepted from the ocr strategy.
	OCRSource document.Source
	// Content overrides the stream source of the content-stream strategy.
	Content ContentSource
}

// BuildStrategies instantiates the named strategies in order.
func BuildStrategies(order []string, opts StrategyOptions) ([]Strategy, error) {
	out := make([]Strategy, 0, len(order))
	for _, name := range order {
		switch name {
		case core.StrategyStructured:
			out = append(out, NewStructuredStrategy())
		case core.StrategyOCR:
			out = append(out, NewOCRStrategy(opts.Recognizer, opts.OCRSource))
		case core.StrategyContentStream:
			out = append(out, NewContentStreamStrategy(opts.Content))
		case core.StrategyStreamScan:
			out = append(out, NewStreamScanStrategy(nil))
		case core.StrategyRawScan:
			out = append(out, NewRawScanStrategy())
		default:
			return nil, fmt.Errorf("unknown pdf strategy %q", name)
		}
	}
	return out, nil
}
