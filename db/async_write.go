package db

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"docqa/logging"
)

// DefaultChannelCapacity is the default buffer size for queued history rows.
const DefaultChannelCapacity = 100

// DefaultDrainTimeout bounds how long Stop waits for queued rows.
const DefaultDrainTimeout = 10 * time.Second

// ErrWriterStopped is returned by Record after Stop.
var ErrWriterStopped = errors.New("db: history writer stopped")

// HistorySink is what the writer flushes into. *Database satisfies it.
type HistorySink interface {
	InsertExtraction(ctx context.Context, rec ExtractionRecord) (int64, error)
}

// HistoryWriter records extraction history off the request path. Rows are
// dropped with a warning when the buffer is full.
type HistoryWriter struct {
	sink    HistorySink
	logger  *logging.Logger
	queue   chan ExtractionRecord
	drain   time.Duration
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

// NewHistoryWriter returns a writer with the default capacity. Call Start
// before Record.
func NewHistoryWriter(sink HistorySink, logger *logging.Logger) *HistoryWriter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HistoryWriter{
		sink:   sink,
		logger: logger.Named("history"),
		queue:  make(chan ExtractionRecord, DefaultChannelCapacity),
		drain:  DefaultDrainTimeout,
	}
}

// Start launches the background flusher. Extra calls are no-ops.
func (w *HistoryWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.run()
}

func (w *HistoryWriter) run() {
	defer w.wg.Done()
	for rec := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := w.sink.InsertExtraction(ctx, rec); err != nil {
			w.logger.Warn("failed to record extraction",
				zap.String("correlation_id", rec.CorrelationID),
				zap.String("file", rec.FileName),
				zap.Error(err))
		}
		cancel()
	}
}

// Record queues rec without blocking.
func (w *HistoryWriter) Record(rec ExtractionRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrWriterStopped
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	select {
	case w.queue <- rec:
	default:
		w.logger.Warn("history buffer full, dropping record",
			zap.String("correlation_id", rec.CorrelationID))
	}
	return nil
}

// Pending returns the number of queued rows.
func (w *HistoryWriter) Pending() int { return len(w.queue) }

// Stop closes the queue and waits up to the drain timeout for queued rows
// to be written. It reports whether the drain finished in time.
func (w *HistoryWriter) Stop() bool {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return true
	}
	w.stopped = true
	close(w.queue)
	started := w.started
	w.mu.Unlock()

	if !started {
		return true
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(w.drain):
		w.logger.Warn("history drain timed out", zap.Int("pending", len(w.queue)))
		return false
	}
}
