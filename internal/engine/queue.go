package engine

import (
	"sync"
)

// message is one delivery to a node instance: a row from an upstream node,
// or an end-of-stream marker from one upstream instance.
type message struct {
	from string
	row  Row
	eos  bool
}

// inbox is a thread-safe FIFO queue of messages for one node instance.
//
// The queue is unbounded so a join that fans out can always deliver
// without blocking its own input; a bounded queue between two instances
// that feed each other through different edges could deadlock.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the instance loop (prevents goroutine hangs on context cancellation).
type inbox struct {
	mu       sync.Mutex
	messages []message
	closed   bool
	signal   chan struct{} // Signals message availability (buffered, size 1)
}

// newInbox creates an empty inbox.
func newInbox() *inbox {
	return &inbox{
		messages: make([]message, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a message to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *inbox) Enqueue(m message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.messages = append(q.messages, m)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (message{}, false) if the queue is empty.
func (q *inbox) TryDequeue() (message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.messages) == 0 {
		return message{}, false
	}

	m := q.messages[0]

	// Clear the slot so the backing array does not retain the row.
	q.messages[0] = message{}

	if len(q.messages) == 1 {
		q.messages = q.messages[:0]
	} else {
		q.messages = q.messages[1:]
	}

	return m, true
}

// Wait returns a channel that signals when messages may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *inbox) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Close signals that no more messages will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *inbox) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
