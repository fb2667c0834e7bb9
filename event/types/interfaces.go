package types

import "context"

// Listener receives matched events in a dedicated goroutine.
//
// OnEvent is called in the Listener's own goroutine; it does not block
// other Listeners or Subscribers. Shutdown is called once when the
// owning Pool is closed.
type Listener interface {
	OnEvent(ev *Event)
	Shutdown(ctx context.Context) error
}
