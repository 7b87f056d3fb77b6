package docstore

import (
	"sync"

	"github.com/fitpro/fitsync/internal/domain"
)

// delivery is one pending subscription callback: a document or a terminal error.
type delivery struct {
	doc *domain.Document
	err error
}

// deliveryQueue is an unbounded FIFO feeding one subscription goroutine.
// Commits enqueue without blocking on slow subscribers.
type deliveryQueue struct {
	mu     sync.Mutex
	items  []delivery
	closed bool
	signal chan struct{} // buffered, size 1
}

func newDeliveryQueue() *deliveryQueue {
	return &deliveryQueue{
		items:  make([]delivery, 0, 8),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue returns false if the queue is closed.
func (q *deliveryQueue) Enqueue(d delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, d)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue reports closed=true once the queue is closed; pending items are dropped.
func (q *deliveryQueue) TryDequeue() (d delivery, ok, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return delivery{}, false, true
	}
	if len(q.items) == 0 {
		return delivery{}, false, false
	}

	d = q.items[0]
	q.items[0] = delivery{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return d, true, false
}

// Wait returns a channel that signals when items may be available.
func (q *deliveryQueue) Wait() <-chan struct{} {
	return q.signal
}

// Close wakes the consumer and rejects further items.
func (q *deliveryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.signal)
}
