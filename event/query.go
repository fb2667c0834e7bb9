package event

// Read-only introspection. Every call takes a snapshot of the registry
// at call time and never mutates it; listings are deduplicated and
// sorted for stable diagnostics output, though dispatch itself makes no
// ordering promise.

// CountHandlers returns the total number of registered handlers across
// both kinds and all event names.
func (p *Pool) CountHandlers() int {
	return p.reg.count()
}

// CountHandlersFor returns how many handlers are registered under
// (name, key): 0, 1, or 2 when the same key independently labels a sync
// and an async handler.
func (p *Pool) CountHandlersFor(name, key string) int {
	return p.reg.countFor(name, key)
}

// EventKeys returns the merged handler keys (both kinds) registered for
// name.
func (p *Pool) EventKeys(name string) []string {
	return p.reg.keys(name, true, true)
}

// SyncEventKeys returns the sync handler keys registered for name.
func (p *Pool) SyncEventKeys(name string) []string {
	return p.reg.keys(name, true, false)
}

// AsyncEventKeys returns the async handler keys registered for name.
func (p *Pool) AsyncEventKeys(name string) []string {
	return p.reg.keys(name, false, true)
}

// AllKeys returns every handler key across all events and both kinds.
func (p *Pool) AllKeys() []string {
	return p.reg.allKeys()
}
