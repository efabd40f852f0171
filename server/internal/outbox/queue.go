package outbox

import (
	"context"
	"errors"
	"sync"

	"github.com/emirpasic/gods/lists/singlylinkedlist"
)

// ErrClosed is returned by Enqueue after Close, and by Next once a closed
// queue has been drained.
var ErrClosed = errors.New("outbox: queue closed")

// Queue is an unbounded, ordered, non-blocking message queue with a single
// consumer. It is safe for concurrent producers.
type Queue struct {
	mu     sync.Mutex
	items  *singlylinkedlist.List
	closed bool

	// ready holds at most one token; it is signalled whenever the queue goes
	// from empty to non-empty or is closed.
	ready chan struct{}
}

// New returns an empty open Queue.
func New() *Queue {
	return &Queue{
		items: singlylinkedlist.New(),
		ready: make(chan struct{}, 1),
	}
}

// Enqueue appends msg to the tail of the queue.
func (q *Queue) Enqueue(msg []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items.Add(msg)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Next removes and returns the head of the queue, waiting for one if the
// queue is empty. It returns ErrClosed when the queue is closed and empty, or
// ctx.Err() once ctx is done, even if items remain.
func (q *Queue) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		q.mu.Lock()
		if v, ok := q.items.Get(0); ok {
			q.items.Remove(0)
			q.mu.Unlock()
			return v.([]byte), nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.ready:
		}
	}
}

// Close marks the queue closed. It is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	already := q.closed
	q.closed = true
	q.mu.Unlock()

	if !already {
		q.signal()
	}
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Size()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
