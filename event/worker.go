package event

import "sync"

// workerPool runs async handler invocations on a fixed set of
// background goroutines. Units of work are discrete (one handler
// invocation each) and execute with no ordering guarantee relative to
// each other or to the submitting call.
type workerPool struct {
	mu     sync.RWMutex
	closed bool
	tasks  chan func()
	wg     sync.WaitGroup
}

func newWorkerPool(workers, buffer int) *workerPool {
	wp := &workerPool{
		tasks: make(chan func(), buffer),
	}
	wp.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go wp.run()
	}
	return wp
}

func (wp *workerPool) run() {
	defer wp.wg.Done()
	for task := range wp.tasks {
		task()
	}
}

// submit hands one unit of work to the pool. Blocks while the task
// buffer is full. Returns ErrPoolClosed after stop.
func (wp *workerPool) submit(task func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return ErrPoolClosed
	}
	wp.tasks <- task
	return nil
}

// stop rejects new work, drains the task buffer and waits for all
// workers to exit. Safe to call more than once.
func (wp *workerPool) stop() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.tasks)
	wp.mu.Unlock()

	wp.wg.Wait()
}
