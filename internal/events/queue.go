package events

import "sync"

// Sink accepts values without blocking.
type Sink[T any] interface {
	Push(v T) bool
}

// Queue is an unbounded FIFO with a single consumer. Push never blocks, so a
// producer is never held up by a slow consumer. The consumer waits on Ready
// and takes values with Drain.
//
// A push is visible to Len and Drain as soon as Push returns. A consumer that
// sees a value pushed to one queue therefore also sees everything the same
// producer pushed to another queue before it.
type Queue[T any] struct {
	mu     sync.Mutex
	buf    []T
	closed bool
	ready  chan struct{}
}

var _ Sink[int] = (*Queue[int])(nil)

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends v. Returns false if the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.buf = append(q.buf, v)
	q.mu.Unlock()
	q.signal()
	return true
}

// Drain removes and returns up to max values in FIFO order (all when max <= 0).
func (q *Queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.buf)
	if n == 0 {
		return nil
	}
	if max > 0 && max < n {
		n = max
	}
	out := make([]T, n)
	copy(out, q.buf[:n])
	var zero T
	for i := 0; i < n; i++ {
		q.buf[i] = zero
	}
	q.buf = q.buf[n:]
	if len(q.buf) > 0 {
		q.signal()
	}
	return out
}

// Ready is signalled after a push or close. It may fire spuriously; the
// consumer re-checks with Drain.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Close stops accepting values. Queued values can still be drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Done reports whether the queue is closed and empty.
func (q *Queue[T]) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.buf) == 0
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
