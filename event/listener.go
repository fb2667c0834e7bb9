package event

import (
	"context"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/yaoapp/kun/log"

	"github.com/tonewheel/eventkit/event/types"
)

// listenerEntry holds a registered listener with its filter
// configuration.
type listenerEntry struct {
	pattern  string
	listener types.Listener
	filter   func(*types.Event) bool
	ch       chan *types.Event
	done     chan struct{}
}

// listenerManager manages a pool's persistent listeners. Each listener
// consumes from its own buffered channel in a dedicated goroutine, so a
// slow listener never blocks dispatch or its siblings.
type listenerManager struct {
	mu      sync.RWMutex
	entries []*listenerEntry
	stopped bool
}

func newListenerManager() *listenerManager {
	return &listenerManager{}
}

// register adds a listener and starts its consumer goroutine.
func (lm *listenerManager) register(pattern string, listener types.Listener, opts ...types.FilterOption) {
	fe := &types.FilterEntry{
		Pattern:    pattern,
		BufferSize: types.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(fe)
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.stopped {
		return
	}
	entry := &listenerEntry{
		pattern:  pattern,
		listener: listener,
		filter:   fe.Filter,
		ch:       make(chan *types.Event, fe.BufferSize),
		done:     make(chan struct{}),
	}
	lm.entries = append(lm.entries, entry)
	go lm.consume(entry)
}

// consume is the goroutine that reads from a listener's channel.
func (lm *listenerManager) consume(entry *listenerEntry) {
	defer close(entry.done)
	for ev := range entry.ch {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("event listener panic: pattern=%s event=%s err=%v", entry.pattern, ev.Name, r)
				}
			}()
			entry.listener.OnEvent(ev)
		}()
	}
}

// notify sends an event to all matching listeners (non-blocking).
func (lm *listenerManager) notify(ev *types.Event) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	if lm.stopped {
		return
	}

	for _, entry := range lm.entries {
		if !matchPattern(entry.pattern, ev.Name) {
			continue
		}
		if entry.filter != nil && !entry.filter(ev) {
			continue
		}
		select {
		case entry.ch <- ev:
		default:
			log.Warn("event listener buffer full: pattern=%s event=%s id=%s (skipped)", entry.pattern, ev.Name, ev.ID)
		}
	}
}

// stop shuts down all listeners and aggregates their shutdown errors.
func (lm *listenerManager) stop(ctx context.Context) error {
	lm.mu.Lock()
	lm.stopped = true
	entries := lm.entries
	lm.mu.Unlock()

	for _, entry := range entries {
		close(entry.ch)
	}

	var errs *multierror.Error
	for _, entry := range entries {
		<-entry.done
		if err := entry.listener.Shutdown(ctx); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// matchPattern matches an event name against a listener/subscriber
// pattern.
//   - "*" matches everything
//   - "midi.*" matches any name starting with "midi."
//   - "midi.note-on" matches exactly "midi.note-on"
func matchPattern(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(name, prefix)
	}
	return pattern == name
}

// Listen registers a persistent listener observing every firing whose
// name matches pattern. OnEvent runs on the listener's own goroutine;
// delivery is best-effort and an event is skipped when the listener's
// buffer is full. Listeners are shut down by Close.
func (p *Pool) Listen(pattern string, listener types.Listener, opts ...types.FilterOption) {
	p.lmgr.register(pattern, listener, opts...)
}
