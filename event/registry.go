package event

import (
	"reflect"
	"sort"
	"sync"

	"github.com/yaoapp/kun/exception"

	"github.com/tonewheel/eventkit/event/types"
)

// handlerKind selects one of the registry's two buckets.
type handlerKind int

const (
	kindSync handlerKind = iota
	kindAsync
)

// handlerEntry is one (key, fn) pair captured in a dispatch snapshot.
type handlerEntry struct {
	key string
	fn  types.Handler
}

// registry holds the sync and async handler buckets for one Pool.
//
// A single mutex guards both buckets together so that every mutation is
// an all-or-nothing transaction: a concurrent dispatch snapshot never
// observes the sync bucket reflecting a newer state than the async
// bucket from the same logical update.
type registry struct {
	mu            sync.Mutex
	syncHandlers  map[string]map[string]types.Handler // event name -> key -> handler
	asyncHandlers map[string]map[string]types.Handler
}

func newRegistry() *registry {
	return &registry{
		syncHandlers:  make(map[string]map[string]types.Handler),
		asyncHandlers: make(map[string]map[string]types.Handler),
	}
}

func (r *registry) bucket(k handlerKind) map[string]map[string]types.Handler {
	if k == kindSync {
		return r.syncHandlers
	}
	return r.asyncHandlers
}

// funcPtr returns the code pointer used for handler identity checks.
func funcPtr(fn types.Handler) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// add registers fn under (kind, name, key), replacing any existing entry
// for the same triple.
func (r *registry) add(k handlerKind, name, key string, fn types.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.bucket(k)
	bucket, ok := m[name]
	if !ok {
		bucket = make(map[string]types.Handler)
		m[name] = bucket
	}
	bucket[key] = fn
}

// removeKey removes key from both kinds under every event name.
// Reports whether any entry was removed.
func (r *registry) removeKey(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := false
	for _, m := range []map[string]map[string]types.Handler{r.syncHandlers, r.asyncHandlers} {
		for name, bucket := range m {
			if _, ok := bucket[key]; ok {
				delete(bucket, key)
				removed = true
			}
			if len(bucket) == 0 {
				delete(m, name)
			}
		}
	}
	return removed
}

// removeSpecific removes key only where the stored handler is
// reference-identical to fn. Reports whether a removal occurred.
func (r *registry) removeSpecific(key string, fn types.Handler) bool {
	if fn == nil {
		return false
	}
	want := funcPtr(fn)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := false
	for _, m := range []map[string]map[string]types.Handler{r.syncHandlers, r.asyncHandlers} {
		for name, bucket := range m {
			if stored, ok := bucket[key]; ok && funcPtr(stored) == want {
				delete(bucket, key)
				removed = true
			}
			if len(bucket) == 0 {
				delete(m, name)
			}
		}
	}
	return removed
}

// removeEvent drops both kinds' entries for one event name and returns
// how many handlers were removed.
func (r *registry) removeEvent(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := len(r.syncHandlers[name]) + len(r.asyncHandlers[name])
	delete(r.syncHandlers, name)
	delete(r.asyncHandlers, name)
	return removed
}

// removeAll resets both buckets and returns how many handlers were
// removed.
func (r *registry) removeAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, bucket := range r.syncHandlers {
		removed += len(bucket)
	}
	for _, bucket := range r.asyncHandlers {
		removed += len(bucket)
	}
	r.syncHandlers = make(map[string]map[string]types.Handler)
	r.asyncHandlers = make(map[string]map[string]types.Handler)
	return removed
}

// removeInvoked prunes one-shot handlers after dispatch. Each entry is
// removed only if the stored handler is still the one that was invoked,
// so a handler re-registered under the same key during dispatch
// survives. The whole batch is one transaction.
func (r *registry) removeInvoked(k handlerKind, name string, entries []handlerEntry) {
	if len(entries) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.bucket(k)
	bucket, ok := m[name]
	if !ok {
		return
	}
	for _, e := range entries {
		if stored, ok := bucket[e.key]; ok && funcPtr(stored) == funcPtr(e.fn) {
			delete(bucket, e.key)
		}
	}
	if len(bucket) == 0 {
		delete(m, name)
	}
}

// snapshot captures both buckets for one event name in a single
// critical section. The returned slices are private copies; dispatch
// iterates them without holding the lock.
func (r *registry) snapshot(name string) (syncEntries, asyncEntries []handlerEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, fn := range r.syncHandlers[name] {
		syncEntries = append(syncEntries, handlerEntry{key: key, fn: fn})
	}
	for key, fn := range r.asyncHandlers[name] {
		asyncEntries = append(asyncEntries, handlerEntry{key: key, fn: fn})
	}
	return syncEntries, asyncEntries
}

// count returns the total number of registered handlers.
func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.selfCheck()
	n := 0
	for _, bucket := range r.syncHandlers {
		n += len(bucket)
	}
	for _, bucket := range r.asyncHandlers {
		n += len(bucket)
	}
	return n
}

// countFor returns how many handlers are registered under (name, key).
// At most one per kind; the same key may label a sync and an async
// handler independently.
func (r *registry) countFor(name, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.selfCheck()
	n := 0
	if _, ok := r.syncHandlers[name][key]; ok {
		n++
	}
	if _, ok := r.asyncHandlers[name][key]; ok {
		n++
	}
	return n
}

// keys returns the handler keys for one event name. Either kind mask
// may be requested; the merged listing is deduplicated.
func (r *registry) keys(name string, includeSync, includeAsync bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	if includeSync {
		for key := range r.syncHandlers[name] {
			seen[key] = struct{}{}
		}
	}
	if includeAsync {
		for key := range r.asyncHandlers[name] {
			seen[key] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// allKeys returns every handler key across all events and both kinds,
// deduplicated.
func (r *registry) allKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	for _, bucket := range r.syncHandlers {
		for key := range bucket {
			seen[key] = struct{}{}
		}
	}
	for _, bucket := range r.asyncHandlers {
		for key := range bucket {
			seen[key] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// selfCheck verifies the structural invariants the mutation protocol
// maintains: no empty bucket survives a removal and no nil handler is
// ever stored. A violation means the protocol itself is broken, which
// is fatal rather than recoverable. Caller must hold r.mu.
func (r *registry) selfCheck() {
	for _, m := range []map[string]map[string]types.Handler{r.syncHandlers, r.asyncHandlers} {
		for name, bucket := range m {
			if len(bucket) == 0 {
				exception.New("event: registry corrupted: empty bucket for %s", 500, name).Throw()
			}
			for key, fn := range bucket {
				if fn == nil {
					exception.New("event: registry corrupted: nil handler for %s/%s", 500, name, key).Throw()
				}
			}
		}
	}
}
