// Package shutdown coordinates signal handling and ordered cleanup.
package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func releases one resource. It should honor ctx's deadline.
type Func func(ctx context.Context) error

// Hook priorities. Lower runs first: stop taking requests, then stop the
// work they started, then flush and close storage.
const (
	PriorityServer  = 10
	PriorityWorkers = 20
	PriorityStorage = 30
	PriorityLogger  = 90
)

type hook struct {
	name     string
	priority int
	fn       Func
	seq      int
}

// Registry runs registered hooks once, in priority order. Hooks with equal
// priority run in registration order.
type Registry struct {
	mu     sync.Mutex
	hooks  []hook
	closed bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn. Registration after Run is ignored.
func (r *Registry) Register(name string, priority int, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.hooks = append(r.hooks, hook{name: name, priority: priority, fn: fn, seq: len(r.hooks)})
}

// Run calls every hook even when some fail and returns the failures.
// Subsequent calls return nil.
func (r *Registry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	hooks := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, h := range hooks {
		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errs
}

// Names lists hooks in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	hooks := r.sorted()
	names := make([]string, len(hooks))
	for i, h := range hooks {
		names[i] = h.name
	}
	return names
}

func (r *Registry) sorted() []hook {
	out := append([]hook(nil), r.hooks...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}
