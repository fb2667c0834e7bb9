package event

import (
	"sync/atomic"

	"github.com/yaoapp/kun/log"

	"github.com/tonewheel/eventkit/event/types"
)

// processHook is the process-wide fallback used when a pool has no
// OnError hook of its own. Defaults to logging via kun/log.
var processHook atomic.Pointer[types.ErrorHook]

func init() {
	hook := types.ErrorHook(logFailure)
	processHook.Store(&hook)
}

func logFailure(ev *types.Event, key string, cause any) {
	log.Error("event handler failed: event=%s id=%s key=%s err=%v", ev.Name, ev.ID, key, cause)
}

// SetErrorLog replaces the process-wide handler-failure hook. Passing
// nil silences failures entirely; dispatch never surfaces them to the
// producer either way. Pools constructed with OnError are unaffected.
func SetErrorLog(hook types.ErrorHook) {
	processHook.Store(&hook)
}

func (p *Pool) reportError(ev *types.Event, key string, cause any) {
	if p.cfg.OnError != nil {
		p.cfg.OnError(ev, key, cause)
		return
	}
	if hook := *processHook.Load(); hook != nil {
		hook(ev, key, cause)
	}
}
