package binding

import "sync"

// reclaimQueue is a thread-safe FIFO of bindings whose objects the runtime
// reported unreachable.
//
// Runtime cleanups run on a runtime goroutine and Enqueue; the store's
// owner drains the queue from the event-processing goroutine. The signal
// channel lets callers wait for new entries without polling.
type reclaimQueue[A any] struct {
	mu      sync.Mutex
	entries []*Binding[A]
	signal  chan struct{} // Signals entry availability (buffered, size 1)
}

func newReclaimQueue[A any]() *reclaimQueue[A] {
	return &reclaimQueue[A]{
		entries: make([]*Binding[A], 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds b. Safe to call from any goroutine.
func (q *reclaimQueue[A]) Enqueue(b *Binding[A]) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, b)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Drain removes and returns every queued binding.
func (q *reclaimQueue[A]) Drain() []*Binding[A] {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	out := q.entries
	q.entries = make([]*Binding[A], 0, 16)
	return out
}

// Wait returns a channel that signals when entries may be available.
func (q *reclaimQueue[A]) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *reclaimQueue[A]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
