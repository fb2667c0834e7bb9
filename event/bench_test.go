package event_test

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/tonewheel/eventkit/event"
	"github.com/tonewheel/eventkit/event/types"
)

func benchHandler(n *atomic.Int64) types.Handler {
	return func(ctx context.Context, ev *types.Event) any {
		n.Add(1)
		return nil
	}
}

func BenchmarkFireSync_OneHandler(b *testing.B) {
	p := event.New("bench")
	defer func() { _ = p.Close(context.Background()) }()

	var n atomic.Int64
	p.OnSync("bench.tick", "k", benchHandler(&n))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.FireSync(context.Background(), "bench.tick")
	}
}

func BenchmarkFireSync_TenHandlers(b *testing.B) {
	p := event.New("bench")
	defer func() { _ = p.Close(context.Background()) }()

	var n atomic.Int64
	for i := 0; i < 5; i++ {
		p.OnSync("bench.tick", "s-"+strconv.Itoa(i), benchHandler(&n))
		p.On("bench.tick", "a-"+strconv.Itoa(i), benchHandler(&n))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.FireSync(context.Background(), "bench.tick")
	}
}

func BenchmarkFire_Async(b *testing.B) {
	p := event.New("bench", event.QueueSize(1<<16))

	var n atomic.Int64
	p.On("bench.tick", "k", benchHandler(&n))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Fire(context.Background(), "bench.tick")
	}
	b.StopTimer()
	_ = p.Close(context.Background())
}

func BenchmarkFire_WithFields(b *testing.B) {
	p := event.New("bench")
	defer func() { _ = p.Close(context.Background()) }()

	var n atomic.Int64
	p.OnSync("midi.note-on", "k", benchHandler(&n))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.FireSync(context.Background(), "midi.note-on", "note", 60, "velocity", 127, "channel", 1)
	}
}

func BenchmarkAddRemove(b *testing.B) {
	p := event.New("bench")
	defer func() { _ = p.Close(context.Background()) }()

	fn := func(ctx context.Context, ev *types.Event) any { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.On("bench.reg", "k", fn)
		p.RemoveHandler("k")
	}
}

func BenchmarkFireSync_Parallel(b *testing.B) {
	p := event.New("bench")
	defer func() { _ = p.Close(context.Background()) }()

	var n atomic.Int64
	p.OnSync("bench.tick", "k", benchHandler(&n))

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = p.FireSync(context.Background(), "bench.tick")
		}
	})
}
