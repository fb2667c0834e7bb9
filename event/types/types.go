package types

import (
	"context"
	"time"

	"github.com/spf13/cast"
	"github.com/yaoapp/kun/maps"
)

// Event is a single firing delivered to handlers. It is built once per
// fire call and never mutated afterwards; handlers must treat it as
// read-only.
type Event struct {
	Name   string      // Event name, e.g. "midi.note-on", "engine.boot"
	ID     string      // Auto-generated event ID
	Fields maps.MapStr // Producer-supplied fields; may be empty, never nil
}

// doneToken is the type behind the Done sentinel. Unexported so no value
// constructed elsewhere can compare equal to Done.
type doneToken struct{ _ byte }

// Done is the reserved return value a handler yields to be removed after
// the current invocation. Checked by identity, never by structure.
var Done any = &doneToken{}

// Handler processes one Event. The context carries dispatch-mode state:
// firings nested under a FireSync call inherit forced-synchronous
// delivery through it, so handlers that fire further events should pass
// ctx along.
//
// The return value is ignored unless it is the Done sentinel.
type Handler func(ctx context.Context, ev *Event) any

// Get returns the raw value of a field, or nil when absent.
func (ev *Event) Get(field string) any {
	return ev.Fields[field]
}

// Has reports whether a field is present.
func (ev *Event) Has(field string) bool {
	_, ok := ev.Fields[field]
	return ok
}

// GetString returns a field coerced to string ("" when absent).
func (ev *Event) GetString(field string) string {
	return cast.ToString(ev.Fields[field])
}

// GetInt returns a field coerced to int (0 when absent).
func (ev *Event) GetInt(field string) int {
	return cast.ToInt(ev.Fields[field])
}

// GetFloat returns a field coerced to float64 (0 when absent).
func (ev *Event) GetFloat(field string) float64 {
	return cast.ToFloat64(ev.Fields[field])
}

// GetBool returns a field coerced to bool (false when absent).
func (ev *Event) GetBool(field string) bool {
	return cast.ToBool(ev.Fields[field])
}

// GetDuration returns a field coerced to time.Duration (0 when absent).
func (ev *Event) GetDuration(field string) time.Duration {
	return cast.ToDuration(ev.Fields[field])
}

// PoolOption configures a Pool at construction time.
type PoolOption func(*PoolConfig)

// ErrorHook receives a handler failure: the event being dispatched, the
// key of the failing handler, and the recovered panic value.
type ErrorHook func(ev *Event, key string, cause any)

// PoolConfig is the internal construction record for a Pool.
type PoolConfig struct {
	Workers   int       // Background workers, default NumCPU+2
	QueueSize int       // Worker task buffer and per-queue capacity, default 8192
	OnError   ErrorHook // Handler failure hook; nil means log via kun/log
}

// FilterOption configures a Listen or Subscribe registration.
type FilterOption func(*FilterEntry)

// FilterEntry is the internal registration record for a listener or
// subscriber.
type FilterEntry struct {
	Pattern    string
	Filter     func(*Event) bool // Custom filter function
	BufferSize int               // Listener chan buffer size, default 8192; only for Listen
}

// Default configuration values.
const (
	DefaultQueueSize  = 8192
	DefaultBufferSize = 8192
)
