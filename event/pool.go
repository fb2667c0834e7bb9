package event

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tonewheel/eventkit/event/types"
)

// Sentinel errors.
var (
	ErrPoolClosed      = errors.New("event: pool closed")
	ErrUnbalancedPairs = errors.New("event: odd number of field key/value pairs")
	ErrQueueFull       = errors.New("event: queue is full")
	ErrQueueNotFound   = errors.New("event: queue not found")
	ErrQueueExists     = errors.New("event: queue already exists")
	ErrQueueReleased   = errors.New("event: queue already released")
)

// Pool is a registry of named handlers keyed per event, with
// synchronous (caller goroutine) and asynchronous (worker pool)
// delivery. All methods are safe for concurrent use, including from
// inside a handler's own invocation.
type Pool struct {
	id          string
	description string
	cfg         types.PoolConfig

	reg     *registry
	workers *workerPool
	queues  *queueManager
	lmgr    *listenerManager
	smgr    *subManager

	closed atomic.Bool
}

// New creates a Pool. The description is immutable metadata; it has no
// behavioral effect. By default the pool runs NumCPU+2 background
// workers for async delivery.
func New(description string, opts ...types.PoolOption) *Pool {
	cfg := types.PoolConfig{
		QueueSize: types.DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU() + 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = types.DefaultQueueSize
	}

	return &Pool{
		id:          uuid.NewString(),
		description: description,
		cfg:         cfg,
		reg:         newRegistry(),
		workers:     newWorkerPool(cfg.Workers, cfg.QueueSize),
		queues:      newQueueManager(),
		lmgr:        newListenerManager(),
		smgr:        newSubManager(),
	}
}

// ID returns the pool's unique identifier, used in log lines.
func (p *Pool) ID() string { return p.id }

// Description returns the metadata string the pool was created with.
func (p *Pool) Description() string { return p.description }

// On registers an async handler for name under key, replacing any
// existing async handler for the same (name, key).
func (p *Pool) On(name, key string, fn types.Handler) {
	p.reg.add(kindAsync, name, key, fn)
}

// OnSync registers a sync handler for name under key, replacing any
// existing sync handler for the same (name, key). Sync handlers run on
// the goroutine that fires the event.
func (p *Pool) OnSync(name, key string, fn types.Handler) {
	p.reg.add(kindSync, name, key, fn)
}

// Once registers an async handler that is removed after its first
// successful invocation, regardless of fn's own return value.
func (p *Pool) Once(name, key string, fn types.Handler) {
	p.reg.add(kindAsync, name, key, oneShot(fn))
}

// OnceSync registers a sync handler that is removed after its first
// successful invocation, regardless of fn's own return value.
func (p *Pool) OnceSync(name, key string, fn types.Handler) {
	p.reg.add(kindSync, name, key, oneShot(fn))
}

// oneShot wraps fn so it always yields the removal sentinel. A panic in
// fn propagates before the sentinel is returned, so a failed first
// invocation does not consume the handler.
func oneShot(fn types.Handler) types.Handler {
	return func(ctx context.Context, ev *types.Event) any {
		fn(ctx, ev)
		return types.Done
	}
}

// RemoveHandler removes key from both the sync and async buckets under
// every event name it is registered for. Reports whether any entry was
// removed.
func (p *Pool) RemoveHandler(key string) bool {
	return p.reg.removeKey(key)
}

// RemoveSpecificHandler removes key only where the stored handler is
// reference-identical to fn, so a different handler that happens to
// share the key is left alone. Reports whether a removal occurred.
func (p *Pool) RemoveSpecificHandler(key string, fn types.Handler) bool {
	return p.reg.removeSpecific(key, fn)
}

// RemoveEventHandlers drops every handler (both kinds) registered for
// name and returns how many were removed.
func (p *Pool) RemoveEventHandlers(name string) int {
	return p.reg.removeEvent(name)
}

// RemoveAllHandlers empties the pool's registry and returns how many
// handlers were removed.
func (p *Pool) RemoveAllHandlers() int {
	return p.reg.removeAll()
}

// Close shuts the pool down: new firings are rejected, serial queues
// are aborted, in-flight async work is drained, and listeners are shut
// down. Registered handlers are left in place so queries still work
// after close. Safe to call more than once.
func (p *Pool) Close(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.queues.abortAll()
	p.workers.stop()
	err := p.lmgr.stop(ctx)
	p.smgr.clear()
	return err
}
