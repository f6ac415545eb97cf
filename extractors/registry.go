package extractors

import (
	"context"
	"sync"

	"docqa/core"
	"docqa/docformat"
	"docqa/document"
	"docqa/sanitizer"
)

// Registry maps formats to extractors. The PDF chain is registered by the
// caller because it needs service clients this package does not know about.
type Registry struct {
	mu         sync.RWMutex
	extractors map[docformat.Format]document.Extractor
}

// NewRegistry returns a registry with the TXT and DOCX extractors installed.
func NewRegistry(s *sanitizer.Sanitizer) *Registry {
	r := &Registry{extractors: make(map[docformat.Format]document.Extractor)}
	r.Register(docformat.TXT, NewTextExtractor(s))
	r.Register(docformat.DOCX, NewDocxExtractor(s))
	return r
}

// Register installs or replaces the extractor for f.
func (r *Registry) Register(f docformat.Format, e document.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[f] = e
}

// ExtractorFor returns the extractor registered for f.
func (r *Registry) ExtractorFor(f docformat.Format) (document.Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[f]
	return e, ok
}

// Detect resolves the format of file, failing for formats without an
// extractor.
func (r *Registry) Detect(file document.SourceFile) (docformat.Format, document.Extractor, error) {
	f, err := docformat.Detect(file.MediaType, file.Name)
	if err != nil {
		return f, nil, err
	}
	e, ok := r.ExtractorFor(f)
	if !ok {
		return docformat.Unsupported, nil, core.ErrUnsupportedFormat(file.Name, string(f))
	}
	return f, e, nil
}

// Extract detects the format and runs the matching extractor.
func (r *Registry) Extract(ctx context.Context, file document.SourceFile) (*document.ExtractionResult, error) {
	_, e, err := r.Detect(file)
	if err != nil {
		return nil, err
	}
	return e.Extract(ctx, file)
}
