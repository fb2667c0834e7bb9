package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tonewheel/eventkit/event/types"
)

// queueItem is one pending firing on a serial queue.
type queueItem struct {
	ctx context.Context
	ev  *types.Event
}

// eventQueue is a single FIFO queue. Firings are consumed serially by a
// dedicated goroutine; each firing is delivered force-synchronously so
// that async handlers cannot reorder across queue items.
type eventQueue struct {
	id       string
	ch       chan queueItem
	released bool
	aborted  bool
	mu       sync.Mutex
	done     chan struct{} // closed when consumer goroutine exits
}

// enqueue adds a firing to the queue. Returns an error if full,
// released, or aborted. The send to q.ch happens while holding q.mu to
// prevent a race with release()/abort() closing the channel between the
// flag check and the send.
func (q *eventQueue) enqueue(ctx context.Context, ev *types.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.released || q.aborted {
		return ErrQueueReleased
	}

	select {
	case q.ch <- queueItem{ctx: ctx, ev: ev}:
		return nil
	default:
		return ErrQueueFull
	}
}

// release gracefully stops the queue: rejects new firings, drains
// existing ones.
func (q *eventQueue) release() {
	q.mu.Lock()
	if q.released || q.aborted {
		q.mu.Unlock()
		return
	}
	q.released = true
	close(q.ch)
	q.mu.Unlock()
}

// abort forcefully stops the queue: rejects new firings, discards
// pending ones. The consumer detects the aborted flag and skips
// remaining items.
func (q *eventQueue) abort() {
	q.mu.Lock()
	if q.aborted {
		q.mu.Unlock()
		return
	}
	wasReleased := q.released
	q.aborted = true
	q.released = true
	if !wasReleased {
		close(q.ch)
	}
	q.mu.Unlock()
}

// consumer processes queued firings serially. Delivery is forced
// synchronous and detached from the producer's cancellation, so a
// queued firing is never dropped because its producer moved on.
func (q *eventQueue) consumer(p *Pool) {
	defer close(q.done)
	for item := range q.ch {
		q.mu.Lock()
		aborted := q.aborted
		q.mu.Unlock()
		if aborted {
			continue
		}

		_ = p.deliver(withForceSync(context.WithoutCancel(item.ctx)), item.ev)
	}
}

// queueManager tracks a pool's active serial queues.
type queueManager struct {
	mu       sync.RWMutex
	queues   map[string]*eventQueue
	released map[string]struct{} // IDs that have been released/aborted
}

func newQueueManager() *queueManager {
	return &queueManager{
		queues:   make(map[string]*eventQueue),
		released: make(map[string]struct{}),
	}
}

func (qm *queueManager) create(p *Pool, queueID string, size int) error {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	if _, exists := qm.queues[queueID]; exists {
		return ErrQueueExists
	}

	q := &eventQueue{
		id:   queueID,
		ch:   make(chan queueItem, size),
		done: make(chan struct{}),
	}
	qm.queues[queueID] = q
	go q.consumer(p)
	return nil
}

// get returns a queue by ID, distinguishing "never existed" from
// "already released".
func (qm *queueManager) get(queueID string) (*eventQueue, error) {
	qm.mu.RLock()
	defer qm.mu.RUnlock()

	q, ok := qm.queues[queueID]
	if !ok {
		if _, wasReleased := qm.released[queueID]; wasReleased {
			return nil, ErrQueueReleased
		}
		return nil, ErrQueueNotFound
	}
	return q, nil
}

func (qm *queueManager) release(queueID string) {
	qm.mu.Lock()
	q, ok := qm.queues[queueID]
	if !ok {
		qm.mu.Unlock()
		return
	}
	delete(qm.queues, queueID)
	qm.released[queueID] = struct{}{}
	qm.mu.Unlock()

	q.release()
	go func() { <-q.done }()
}

func (qm *queueManager) abortOne(queueID string) {
	qm.mu.Lock()
	q, ok := qm.queues[queueID]
	if !ok {
		qm.mu.Unlock()
		return
	}
	delete(qm.queues, queueID)
	qm.released[queueID] = struct{}{}
	qm.mu.Unlock()

	q.abort()
	go func() { <-q.done }()
}

// abortAll forcefully releases all queues. Used during Close.
func (qm *queueManager) abortAll() {
	qm.mu.Lock()
	queues := make([]*eventQueue, 0, len(qm.queues))
	for id, q := range qm.queues {
		queues = append(queues, q)
		qm.released[id] = struct{}{}
	}
	qm.queues = make(map[string]*eventQueue)
	qm.mu.Unlock()

	for _, q := range queues {
		q.abort()
	}
	for _, q := range queues {
		<-q.done
	}
}

// QueueCreate creates a named serial queue. Firings sent to the same
// queue with FireOn are delivered one at a time in FIFO order. If no id
// is provided, one is auto-generated. Returns the queue ID.
func (p *Pool) QueueCreate(id ...string) (string, error) {
	if p.closed.Load() {
		return "", ErrPoolClosed
	}

	queueID := ""
	if len(id) > 0 && id[0] != "" {
		queueID = id[0]
	} else {
		queueID = fmt.Sprintf("q-%s", uuid.NewString())
	}

	if err := p.queues.create(p, queueID, p.cfg.QueueSize); err != nil {
		return "", err
	}
	return queueID, nil
}

// FireOn delivers an event through a serial queue. The call returns
// once the firing is enqueued; handlers (both kinds) run later on the
// queue's consumer goroutine, whole firings strictly one after another.
func (p *Pool) FireOn(ctx context.Context, queueID, name string, pairs ...any) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	ev, err := buildEvent(name, pairs)
	if err != nil {
		return err
	}

	q, err := p.queues.get(queueID)
	if err != nil {
		return err
	}

	p.lmgr.notify(ev)
	p.smgr.notify(ev)
	return q.enqueue(ctx, ev)
}

// QueueRelease gracefully releases a queue (async). Rejects new firings
// immediately; pending firings are drained internally.
func (p *Pool) QueueRelease(queueID string) {
	p.queues.release(queueID)
}

// QueueAbort forcefully releases a queue (async). Rejects new firings,
// discards pending ones, waits for the in-flight firing to finish.
func (p *Pool) QueueAbort(queueID string) {
	p.queues.abortOne(queueID)
}
