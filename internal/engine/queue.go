package engine

import (
	"sync"

	"github.com/roach88/policygraph/internal/editor"
)

// eventQueue is a thread-safe FIFO queue of change events.
//
// Editors publish from arbitrary goroutines while the Run loop dequeues.
// Waiting is done on a buffered signal channel so the Run loop can also
// watch its context.
type eventQueue struct {
	mu     sync.Mutex
	events []editor.Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]editor.Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e editor.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (editor.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return editor.Event{}, false
	}

	e := q.events[0]
	q.events[0] = editor.Event{} // release the Connection pointer
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Drain removes every queued event and returns how many there were.
func (q *eventQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.events)
	clear(q.events)
	q.events = q.events[:0]
	return n
}

// Wait returns a channel that signals when events may be available.
// The channel is closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued and wakes waiters.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
