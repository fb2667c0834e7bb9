package event_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/tonewheel/eventkit/event"
	"github.com/tonewheel/eventkit/event/types"
)

// ---------------------------------------------------------------------------
// Helper: snapshot goroutine count after GC stabilization.
// ---------------------------------------------------------------------------

func stableGoroutineCount() int {
	// Let runtime settle: GC + finalizers + scheduler
	for i := 0; i < 5; i++ {
		runtime.GC()
		runtime.Gosched()
		time.Sleep(10 * time.Millisecond)
	}
	return runtime.NumGoroutine()
}

// ---------------------------------------------------------------------------
// Test: repeated pool create/close cycles leak no goroutines.
// ---------------------------------------------------------------------------

func TestLeak_PoolCreateClose(t *testing.T) {
	before := stableGoroutineCount()

	const cycles = 200
	for i := 0; i < cycles; i++ {
		p := event.New("leak", event.Workers(4))
		p.On("leak.work", "k", func(ctx context.Context, ev *types.Event) any { return nil })
		for j := 0; j < 3; j++ {
			_ = p.Fire(context.Background(), "leak.work", "n", j)
		}
		if err := p.Close(context.Background()); err != nil {
			t.Fatalf("cycle %d: Close: %v", i, err)
		}
	}

	after := stableGoroutineCount()
	leaked := after - before
	t.Logf("goroutines: before=%d after=%d delta=%d (over %d cycles)", before, after, leaked, cycles)

	// Allow a small margin for runtime jitter (GC, timers, etc.)
	if leaked > 5 {
		t.Errorf("goroutine leak: %d goroutines accumulated over %d pool cycles", leaked, cycles)
	}
}

// ---------------------------------------------------------------------------
// Test: queue create/release and create/abort cycles leak no goroutines.
// ---------------------------------------------------------------------------

func TestLeak_QueueCreateRelease(t *testing.T) {
	p := event.New("leak", event.Workers(4), event.QueueSize(64))
	defer func() { _ = p.Close(context.Background()) }()

	p.OnSync("leak.work", "k", func(ctx context.Context, ev *types.Event) any { return nil })

	before := stableGoroutineCount()

	const cycles = 500
	for i := 0; i < cycles; i++ {
		qid, err := p.QueueCreate()
		if err != nil {
			t.Fatalf("cycle %d: QueueCreate: %v", i, err)
		}
		for j := 0; j < 3; j++ {
			_ = p.FireOn(context.Background(), qid, "leak.work", "n", j)
		}
		if i%2 == 0 {
			p.QueueRelease(qid)
		} else {
			p.QueueAbort(qid)
		}
	}

	// Let all consumer goroutines drain and exit
	time.Sleep(500 * time.Millisecond)
	after := stableGoroutineCount()

	leaked := after - before
	t.Logf("goroutines: before=%d after=%d delta=%d (over %d cycles)", before, after, leaked, cycles)

	if leaked > 5 {
		t.Errorf("goroutine leak: %d goroutines accumulated over %d queue cycles", leaked, cycles)
	}
}
