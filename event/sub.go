package event

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tonewheel/eventkit/event/types"
)

var subIDCounter atomic.Uint64

func nextSubID() string {
	id := subIDCounter.Add(1)
	return fmt.Sprintf("sub-%d", id)
}

// subEntry holds a dynamic subscriber registration.
type subEntry struct {
	id      string
	pattern string
	filter  func(*types.Event) bool
	ch      chan<- *types.Event
}

// subManager manages dynamic channel subscribers.
type subManager struct {
	mu      sync.RWMutex
	entries map[string]*subEntry // id -> entry
}

func newSubManager() *subManager {
	return &subManager{
		entries: make(map[string]*subEntry),
	}
}

func (sm *subManager) subscribe(pattern string, ch chan<- *types.Event, opts ...types.FilterOption) string {
	fe := &types.FilterEntry{Pattern: pattern}
	for _, opt := range opts {
		opt(fe)
	}

	id := nextSubID()
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.entries[id] = &subEntry{
		id:      id,
		pattern: pattern,
		filter:  fe.Filter,
		ch:      ch,
	}
	return id
}

func (sm *subManager) unsubscribe(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.entries, id)
}

// notify sends an event to all matching subscribers (non-blocking).
func (sm *subManager) notify(ev *types.Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, entry := range sm.entries {
		if !matchPattern(entry.pattern, ev.Name) {
			continue
		}
		if entry.filter != nil && !entry.filter(ev) {
			continue
		}
		select {
		case entry.ch <- ev:
		default:
			// Subscriber chan full, skip (non-blocking)
		}
	}
}

// clear removes all subscribers. Used during Close.
func (sm *subManager) clear() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.entries = make(map[string]*subEntry)
}

// Subscribe registers a channel to observe firings whose name matches
// pattern. Delivery is non-blocking: if ch is full, the event is
// skipped. Returns the subscription ID for Unsubscribe.
func (p *Pool) Subscribe(pattern string, ch chan<- *types.Event, opts ...types.FilterOption) string {
	return p.smgr.subscribe(pattern, ch, opts...)
}

// Unsubscribe removes a dynamic subscription by ID.
func (p *Pool) Unsubscribe(id string) {
	p.smgr.unsubscribe(id)
}
