package event

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/spf13/cast"
	"github.com/yaoapp/kun/maps"

	"github.com/tonewheel/eventkit/event/types"
)

var eventIDCounter atomic.Uint64

func nextEventID() string {
	id := eventIDCounter.Add(1)
	return fmt.Sprintf("ev-%d", id)
}

// Context key for forced-synchronous dispatch. The mark is dynamically
// scoped: FireSync sets it, handlers receive the marked context, and
// any firing they perform with it inherits forced delivery. Unrelated
// concurrent firings carry their own contexts and are unaffected.
type ctxKey int

const ctxKeyForceSync ctxKey = iota

func withForceSync(ctx context.Context) context.Context {
	if forceSyncFrom(ctx) {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyForceSync, true)
}

func forceSyncFrom(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyForceSync).(bool)
	return v
}

// buildEvent constructs the immutable Event for one firing from the
// trailing key/value pairs. An odd pair count is rejected before any
// handler runs.
func buildEvent(name string, pairs []any) (*types.Event, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("event fire %q: %w", name, ErrUnbalancedPairs)
	}

	fields := maps.MapStr{}
	for i := 0; i < len(pairs); i += 2 {
		fields[cast.ToString(pairs[i])] = pairs[i+1]
	}
	return &types.Event{
		Name:   name,
		ID:     nextEventID(),
		Fields: fields,
	}, nil
}

// Fire delivers an event. Sync handlers for name run on the calling
// goroutine before Fire returns; async handlers are submitted to the
// worker pool and Fire does not wait for them. When ctx is already
// marked forced-synchronous (a firing nested under FireSync), async
// handlers run inline instead.
//
// Fire only fails for a malformed call or a closed pool; handler
// failures are isolated and never surface here.
func (p *Pool) Fire(ctx context.Context, name string, pairs ...any) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	ev, err := buildEvent(name, pairs)
	if err != nil {
		return err
	}

	p.lmgr.notify(ev)
	p.smgr.notify(ev)
	return p.deliver(ctx, ev)
}

// FireSync delivers an event with forced-synchronous semantics: both
// sync and async handlers run on the calling goroutine, and the call
// blocks until all of them have completed. Firings performed by
// handlers running under FireSync inherit the forced mode through ctx.
func (p *Pool) FireSync(ctx context.Context, name string, pairs ...any) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	ev, err := buildEvent(name, pairs)
	if err != nil {
		return err
	}

	p.lmgr.notify(ev)
	p.smgr.notify(ev)
	return p.deliver(withForceSync(ctx), ev)
}

// deliver runs the dispatch algorithm for one built event: a consistent
// snapshot of both buckets, sync handlers inline with one-shot pruning,
// then async handlers inline (forced mode) or one work unit each on the
// worker pool.
func (p *Pool) deliver(ctx context.Context, ev *types.Event) error {
	syncEntries, asyncEntries := p.reg.snapshot(ev.Name)

	p.runInline(ctx, ev, kindSync, syncEntries)

	if forceSyncFrom(ctx) {
		p.runInline(ctx, ev, kindAsync, asyncEntries)
		return nil
	}

	// Fire-and-forget: detach each unit from the caller's cancellation
	// so pending async work is not dropped when the producer's ctx
	// expires.
	taskCtx := context.WithoutCancel(ctx)
	for _, e := range asyncEntries {
		e := e
		err := p.workers.submit(func() {
			if p.invoke(taskCtx, ev, e) {
				p.reg.removeInvoked(kindAsync, ev.Name, []handlerEntry{e})
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// runInline invokes entries on the calling goroutine, then prunes the
// ones that signaled self-removal as a single transaction.
func (p *Pool) runInline(ctx context.Context, ev *types.Event, k handlerKind, entries []handlerEntry) {
	var done []handlerEntry
	for _, e := range entries {
		if p.invoke(ctx, ev, e) {
			done = append(done, e)
		}
	}
	p.reg.removeInvoked(k, ev.Name, done)
}

// invoke runs one handler, isolating any panic, and reports whether the
// handler returned the removal sentinel. A panicking handler is treated
// as if it returned a non-sentinel value: it stays registered and the
// failure is reported through the error hook.
func (p *Pool) invoke(ctx context.Context, ev *types.Event, e handlerEntry) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			p.reportError(ev, e.key, r)
			done = false
		}
	}()
	return e.fn(ctx, ev) == types.Done
}
