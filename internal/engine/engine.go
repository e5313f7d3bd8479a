package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/policygraph/internal/editor"
	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/nodes"
	"github.com/roach88/policygraph/internal/store"
)

// TracerName is the instrumentation scope of pass spans.
const TracerName = "github.com/roach88/policygraph/internal/engine"

// DefaultMaxSettlePasses bounds Settle. Threshold reconciliation reaches its
// fixed point in one pass, so two passes always suffice for a quiet graph.
const DefaultMaxSettlePasses = 4

// Host is the live graph the engine evaluates. *editor.Editor implements it.
type Host interface {
	// Snapshot returns an isolated copy of the live graph.
	Snapshot() *ir.Graph
	// Apply performs worker mutations on the live graph without
	// publishing change events.
	Apply(muts []nodes.Mutation) int
}

// Engine is the single-writer evaluation loop.
//
// Thread-safety model:
//   - Enqueue(), Abort(), LastPass(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Process(), Recompute(), Settle(): must not run concurrently with Run
//     or with each other
type Engine struct {
	host     Host
	registry *nodes.Registry
	store    *store.Store
	clock    LogicalClock
	tokens   PassTokenGenerator
	queue    *eventQueue
	logger   *slog.Logger
	tracer   trace.Tracer

	maxSettle int
	aborting  atomic.Bool

	mu        sync.Mutex
	last      *ir.Pass
	observers []func(*ir.Pass)
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore records every pass in s.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithClock replaces the engine's logical clock, e.g. to resume numbering
// after a recorded history.
func WithClock(c LogicalClock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithTokens sets the pass token generator.
func WithTokens(g PassTokenGenerator) Option {
	return func(e *Engine) {
		e.tokens = g
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTracerProvider takes pass spans from tp instead of the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(TracerName)
	}
}

// WithObserver registers fn to receive every finished pass, aborted ones
// included. fn runs on the evaluating goroutine.
func WithObserver(fn func(*ir.Pass)) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, fn)
	}
}

// WithMaxSettlePasses bounds how many passes Settle may run.
func WithMaxSettlePasses(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.maxSettle = n
		}
	}
}

// New creates an engine evaluating host with the node kinds in registry.
// host may be nil, in which case worker mutations are dropped and only
// Process can be used.
func New(host Host, registry *nodes.Registry, opts ...Option) *Engine {
	e := &Engine{
		host:      host,
		registry:  registry,
		clock:     NewClock(),
		tokens:    UUIDv7Generator{},
		queue:     newEventQueue(),
		logger:    slog.Default(),
		tracer:    otel.Tracer(TracerName),
		maxSettle: DefaultMaxSettlePasses,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attach subscribes the engine to an editor's change events. The returned
// func detaches it.
func (e *Engine) Attach(ed *editor.Editor) func() {
	return ed.Subscribe(func(ev editor.Event) {
		e.Enqueue(ev)
	})
}

// Enqueue submits a change event. Any pass in flight will notice it and
// abort at the next node boundary.
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev editor.Event) bool {
	return e.queue.Enqueue(ev)
}

// Abort asks the pass in flight, if any, to stop at the next node boundary.
func (e *Engine) Abort() {
	e.aborting.Store(true)
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() LogicalClock {
	return e.clock
}

// QueueLen returns the number of events waiting.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// LastPass returns the most recent pass that completed, or nil.
func (e *Engine) LastPass() *ir.Pass {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Run starts the single-writer event loop.
// Blocks until the context is cancelled or Stop is called.
//
// Each dequeued event starts a full pass over a fresh snapshot; events that
// queued up in the meantime are folded into it, since they would abort the
// pass at its first node anyway. Pass errors are logged and the loop
// continues.
func (e *Engine) Run(ctx context.Context) error {
	if e.host == nil {
		return errors.New("engine: Run requires a host")
	}
	e.logger.Info("engine starting")

	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			folded := e.queue.Drain()
			e.logger.Debug("recompute", "event", ev.Type, "node", ev.Node, "folded", folded)

			_, err := e.Recompute(ctx)
			switch {
			case err == nil:
			case IsAborted(err):
				e.logger.Debug("pass superseded", "error", err)
			default:
				e.logger.Error("pass failed", "error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case _, open := <-e.queue.Wait():
			// Stop closes the signal channel; anything still queued was
			// handled above.
			if !open {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the event queue, which makes Run return.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Recompute runs one pass over a fresh snapshot of the host.
func (e *Engine) Recompute(ctx context.Context) (*ir.Pass, error) {
	if e.host == nil {
		return nil, errors.New("engine: Recompute requires a host")
	}
	p, _, err := e.process(ctx, e.host.Snapshot())
	return p, err
}

// Settle runs passes until one requests no port changes, so the returned
// pass reflects a graph whose dynamic ports are reconciled.
func (e *Engine) Settle(ctx context.Context) (*ir.Pass, error) {
	if e.host == nil {
		return nil, errors.New("engine: Settle requires a host")
	}
	var last *ir.Pass
	for i := 0; i < e.maxSettle; i++ {
		p, changes, err := e.process(ctx, e.host.Snapshot())
		if err != nil {
			return p, err
		}
		last = p
		if changes == 0 {
			return p, nil
		}
	}
	e.logger.Warn("graph did not settle", "passes", e.maxSettle)
	return last, nil
}

// Process evaluates snap once. Worker mutations are applied to the host as
// they are produced.
func (e *Engine) Process(ctx context.Context, snap *ir.Graph) (*ir.Pass, error) {
	p, _, err := e.process(ctx, snap)
	return p, err
}

func (e *Engine) notify(p *ir.Pass) {
	if p.Status == ir.PassCompleted {
		e.mu.Lock()
		e.last = p
		e.mu.Unlock()
	}
	for _, fn := range e.observers {
		fn(p)
	}
}
