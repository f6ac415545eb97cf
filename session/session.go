// Package session orchestrates document ingestion and questions for one
// user conversation.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docqa/aggregator"
	"docqa/answer"
	"docqa/core"
	"docqa/document"
)

// State is the lifecycle position of a Session.
type State string

const (
	StateIdle           State = "idle"
	StateProcessing     State = "processing"
	StateReady          State = "ready"
	StatePartialFailure State = "partial_failure"
)

var (
	// ErrSuperseded is returned by an Ingest whose results were discarded
	// because a newer Ingest or a Cancel replaced it.
	ErrSuperseded = errors.New("session: ingest superseded")
	// ErrBusy is returned by Ask while an ingest is running.
	ErrBusy = errors.New("session: content is still being processed")
)

// FileFailure is a per-input error surfaced to the user.
type FileFailure struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

func newFileFailure(name string, err error) FileFailure {
	f := FileFailure{Name: name, Code: core.GetErrorCode(err), Message: err.Error()}
	if de, ok := core.IsDocumentError(err); ok {
		f.Message = de.Message
		f.Action = de.Action
	}
	return f
}

// Snapshot is an immutable view of a Session.
type Snapshot struct {
	ID            string                       `json:"id"`
	State         State                        `json:"state"`
	Documents     []document.ProcessedDocument `json:"documents"`
	Website       *document.ScrapedWebsite     `json:"website,omitempty"`
	Failures      []FileFailure                `json:"failures"`
	ContentType   string                       `json:"content_type"`
	ContextLength int                          `json:"context_length"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

// IngestReport is the outcome of one Ingest.
type IngestReport struct {
	Snapshot
	Duration time.Duration `json:"duration"`
}

// Session owns its documents, website and context bundle exclusively.
type Session struct {
	id       string
	pipeline *Pipeline

	mu          sync.RWMutex
	state       State
	docs        []document.ProcessedDocument
	website     *document.ScrapedWebsite
	failures    []FileFailure
	bundle      string
	contentType string
	generation  uint64
	cancel      context.CancelFunc
	updatedAt   time.Time
}

// New returns an idle session using p.
func New(id string, p *Pipeline) *Session {
	return &Session{id: id, pipeline: p, state: StateIdle, updatedAt: time.Now()}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

type fileOutcome struct {
	doc *document.ProcessedDocument
	err error
}

// Ingest replaces the session content with files and the optional url.
// Files are extracted in parallel up to the pipeline limit while the
// website is scraped; documents keep submission order. Per-input failures
// are reported in the snapshot, not as an error. A newer Ingest or Cancel
// makes this call return ErrSuperseded.
func (s *Session) Ingest(ctx context.Context, files []document.SourceFile, url string) (*IngestReport, error) {
	start := time.Now()
	runCtx, gen := s.begin(ctx)
	log := s.pipeline.logger.With(zap.String("session_id", s.id))
	log.Info("ingest started", zap.Int("files", len(files)), zap.Bool("website", url != ""))

	outcomes := make([]fileOutcome, len(files))

	var (
		website    *document.ScrapedWebsite
		websiteErr error
		scrapeDone = make(chan struct{})
	)
	go func() {
		defer close(scrapeDone)
		if strings.TrimSpace(url) == "" {
			return
		}
		website, websiteErr = s.pipeline.Scrape(runCtx, url)
	}()

	var g errgroup.Group
	g.SetLimit(s.pipeline.MaxConcurrent())
	for i, f := range files {
		g.Go(func() error {
			if runCtx.Err() != nil {
				outcomes[i].err = runCtx.Err()
				return nil
			}
			doc, err := s.pipeline.ProcessFile(runCtx, s.id, f)
			outcomes[i] = fileOutcome{doc: doc, err: err}
			return nil
		})
	}
	_ = g.Wait()
	<-scrapeDone

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		log.Info("ingest superseded")
		return nil, ErrSuperseded
	}
	if err := runCtx.Err(); err != nil {
		s.finishLocked()
		s.resetLocked()
		log.Info("ingest cancelled", zap.Error(err))
		return nil, err
	}

	docs := make([]document.ProcessedDocument, 0, len(files))
	var failures []FileFailure
	for i, o := range outcomes {
		if o.err != nil {
			failures = append(failures, newFileFailure(files[i].Name, o.err))
			continue
		}
		docs = append(docs, *o.doc)
	}
	if websiteErr != nil {
		failures = append(failures, newFileFailure(url, websiteErr))
		website = nil
	}

	agg := s.pipeline.Aggregator()
	s.docs = docs
	s.website = website
	s.failures = failures
	s.bundle = agg.Bundle(docs, website)
	s.contentType = aggregator.ContentType(docs, website)
	if len(failures) > 0 {
		s.state = StatePartialFailure
	} else {
		s.state = StateReady
	}
	s.finishLocked()

	log.Info("ingest finished",
		zap.String("state", string(s.state)),
		zap.Int("documents", len(docs)),
		zap.Int("failures", len(failures)),
		zap.Int("context_length", len([]rune(s.bundle))),
		zap.Duration("duration", time.Since(start)))

	return &IngestReport{Snapshot: s.snapshotLocked(), Duration: time.Since(start)}, nil
}

// begin supersedes any running ingest and moves to Processing.
func (s *Session) begin(ctx context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.generation++
	s.cancel = cancel
	s.resetLocked()
	s.state = StateProcessing
	s.updatedAt = time.Now()
	return runCtx, s.generation
}

func (s *Session) finishLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.updatedAt = time.Now()
}

func (s *Session) resetLocked() {
	s.state = StateIdle
	s.docs = nil
	s.website = nil
	s.failures = nil
	s.bundle = ""
	s.contentType = ""
}

// Cancel abandons in-flight work and returns the session to Idle with no
// content.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.finishLocked()
	s.resetLocked()
}

// Ask answers question from the current bundle.
func (s *Session) Ask(ctx context.Context, question string) (*answer.Answer, error) {
	s.mu.RLock()
	state, bundle, contentType := s.state, s.bundle, s.contentType
	s.mu.RUnlock()

	if state == StateProcessing {
		return nil, ErrBusy
	}
	if strings.TrimSpace(bundle) == "" {
		return nil, core.ErrContextEmpty()
	}
	return s.pipeline.answerer.Answer(ctx, answer.Request{
		Question:    question,
		Context:     bundle,
		ContentType: contentType,
	})
}

// Context returns the current context bundle.
func (s *Session) Context() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:            s.id,
		State:         s.state,
		Documents:     append([]document.ProcessedDocument(nil), s.docs...),
		Failures:      append([]FileFailure(nil), s.failures...),
		ContentType:   s.contentType,
		ContextLength: len([]rune(s.bundle)),
		UpdatedAt:     s.updatedAt,
	}
	if s.website != nil {
		w := *s.website
		snap.Website = &w
	}
	return snap
}
