// Package dispatch executes observer callbacks with fault isolation.
//
// The conditioning pipeline notifies observers synchronously from the
// input hot path, so a misbehaving observer must never take the
// pipeline down or starve later observers. Every handler runs through
// an executor that recovers panics and records the outcome.
package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handler processes a dispatched event.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event any) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// Result describes the outcome of one handler execution.
type Result struct {
	// Success is true if the handler returned without error or panic.
	Success bool

	// Error is the error returned by the handler, if any.
	Error error

	// Panicked is true if the handler panicked.
	Panicked bool

	// PanicValue is the recovered panic value when Panicked is true.
	PanicValue any

	// PanicStack is the stack trace captured at the panic site.
	PanicStack []byte

	// Duration is how long the handler ran.
	Duration time.Duration

	// Skipped is true if the handler never ran (context cancelled).
	Skipped bool
}

// IsSuccess reports whether the handler completed cleanly.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// PanicHandler is invoked when a handler panics.
type PanicHandler func(event any, panicValue any, stack []byte)

// Executor runs handlers with panic recovery.
type Executor struct {
	onPanic PanicHandler
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPanicHandler installs a panic callback.
func WithPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.onPanic = h
	}
}

// NewExecutor creates an executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a single handler, recovering any panic.
func (e *Executor) Execute(ctx context.Context, event any, handler Handler) (result Result) {
	select {
	case <-ctx.Done():
		return Result{Skipped: true, Error: ctx.Err()}
	default:
	}

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		if r := recover(); r != nil {
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = debug.Stack()
			result.Success = false
			if e.onPanic != nil {
				e.onPanic(event, r, result.PanicStack)
			}
		}
	}()

	if err := handler.Handle(ctx, event); err != nil {
		return Result{Error: err}
	}
	return Result{Success: true}
}

// Registry holds a set of subscribed handlers keyed by opaque tokens.
// Dispatching runs every handler through the executor; one handler's
// failure never affects another.
type Registry struct {
	mu       sync.RWMutex
	handlers map[uuid.UUID]Handler
	order    []uuid.UUID
	executor *Executor

	// Stats
	dispatched uint64
	failed     uint64
	panicked   uint64
}

// NewRegistry creates a registry using the given executor options.
func NewRegistry(opts ...ExecutorOption) *Registry {
	return &Registry{
		handlers: make(map[uuid.UUID]Handler),
		executor: NewExecutor(opts...),
	}
}

// Subscribe registers a handler and returns its subscription token.
func (r *Registry) Subscribe(h Handler) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	r.handlers[id] = h
	r.order = append(r.order, id)
	return id
}

// Unsubscribe removes a handler. Unknown tokens are ignored.
func (r *Registry) Unsubscribe(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[id]; !ok {
		return
	}
	delete(r.handlers, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of subscribed handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch runs every subscribed handler with the event, in
// subscription order, and returns the per-handler results.
func (r *Registry) Dispatch(ctx context.Context, event any) []Result {
	r.mu.RLock()
	handlers := make([]Handler, 0, len(r.order))
	for _, id := range r.order {
		handlers = append(handlers, r.handlers[id])
	}
	r.mu.RUnlock()

	results := make([]Result, len(handlers))
	for i, h := range handlers {
		results[i] = r.executor.Execute(ctx, event, h)
	}

	r.mu.Lock()
	for _, res := range results {
		r.dispatched++
		switch {
		case res.Panicked:
			r.panicked++
		case res.Error != nil && !res.Skipped:
			r.failed++
		}
	}
	r.mu.Unlock()

	return results
}

// Stats summarizes registry activity.
type Stats struct {
	Dispatched uint64
	Failed     uint64
	Panicked   uint64
}

// Stats returns cumulative dispatch counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Dispatched: r.dispatched,
		Failed:     r.failed,
		Panicked:   r.panicked,
	}
}
