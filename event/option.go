package event

import "github.com/tonewheel/eventkit/event/types"

// Workers sets the number of background worker goroutines for async
// delivery. Default is NumCPU+2.
func Workers(n int) types.PoolOption {
	return func(c *types.PoolConfig) {
		c.Workers = n
	}
}

// QueueSize sets the worker task buffer and the per-queue capacity for
// serial queues. Default is 8192. When a serial queue is full, FireOn
// returns ErrQueueFull immediately.
func QueueSize(n int) types.PoolOption {
	return func(c *types.PoolConfig) {
		c.QueueSize = n
	}
}

// OnError sets the pool's handler-failure hook, overriding the
// process-wide one set by SetErrorLog. The hook receives the event, the
// failing handler's key and the recovered panic value.
func OnError(hook types.ErrorHook) types.PoolOption {
	return func(c *types.PoolConfig) {
		c.OnError = hook
	}
}

// Filter sets a custom filter function for Listen or Subscribe. Events
// that do not pass the filter are skipped.
func Filter(fn func(*types.Event) bool) types.FilterOption {
	return func(e *types.FilterEntry) {
		e.Filter = fn
	}
}

// BufferSize sets the listener channel buffer size. Default is 8192.
// Only effective for Listen; ignored by Subscribe.
func BufferSize(n int) types.FilterOption {
	return func(e *types.FilterEntry) {
		e.BufferSize = n
	}
}
