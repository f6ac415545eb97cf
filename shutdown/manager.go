package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"docqa/logging"
)

// DefaultTimeout bounds the whole cleanup sequence.
const DefaultTimeout = 30 * time.Second

// Manager cancels its context on the first SIGINT or SIGTERM and calls
// onForce on the second.
type Manager struct {
	logger   *logging.Logger
	timeout  time.Duration
	registry *Registry
	onForce  func()

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	done    bool
	signals int
	sigChan chan os.Signal
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets the cleanup timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithForceExit replaces the second-signal action, os.Exit(1) by default.
func WithForceExit(fn func()) Option {
	return func(m *Manager) { m.onForce = fn }
}

// NewManager returns a Manager whose context derives from parent.
func NewManager(parent context.Context, logger *logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	m := &Manager{
		logger:   logger.Named("shutdown"),
		timeout:  DefaultTimeout,
		registry: NewRegistry(),
		onForce:  func() { os.Exit(1) },
		ctx:      ctx,
		cancel:   cancel,
		sigChan:  make(chan os.Signal, 2),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Context is cancelled when shutdown begins.
func (m *Manager) Context() context.Context { return m.ctx }

// Register adds a cleanup hook.
func (m *Manager) Register(name string, priority int, fn Func) {
	m.registry.Register(name, priority, fn)
}

// Start listens for signals. Extra calls are no-ops.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.handleSignal(sig)
		}
	}()
}

func (m *Manager) handleSignal(sig os.Signal) {
	m.mu.Lock()
	m.signals++
	n := m.signals
	m.mu.Unlock()

	if n == 1 {
		m.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		m.cancel()
		return
	}
	m.logger.Warn("received second signal, forcing exit")
	m.onForce()
}

// Trigger begins shutdown without a signal.
func (m *Manager) Trigger() { m.cancel() }

// Shutdown cancels the context and runs the hooks within the timeout.
// Only the first call does any work.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	started := m.started
	m.mu.Unlock()

	m.cancel()
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.logger.Info("running cleanup", zap.Strings("hooks", m.registry.Names()))
	errs := m.registry.Run(ctx)
	for _, err := range errs {
		m.logger.Error("cleanup failed", zap.Error(err))
	}

	if started {
		signal.Stop(m.sigChan)
		close(m.sigChan)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown had %d errors: %w", len(errs), errors.Join(errs...))
	}
	m.logger.Info("shutdown complete", zap.Duration("duration", time.Since(start)))
	return nil
}
