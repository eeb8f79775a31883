package bus

import (
	"errors"
	"sync"
	"sync/atomic"

	"crossarb/internal/model"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is a bounded, non-blocking queue of order events. Producers are
// feed goroutines; the coordinator is the single consumer.
type Queue struct {
	ch      chan model.OrderEvent
	closed  uint32
	closeMu sync.RWMutex
	drops   uint64
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan model.OrderEvent, capacity)}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e model.OrderEvent) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		atomic.AddUint64(&q.drops, 1)
		return ErrQueueFull
	}
}

// C exposes the receive side for select-with-timeout consumers.
func (q *Queue) C() <-chan model.OrderEvent {
	return q.ch
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Drops returns how many events were rejected because the queue was full.
func (q *Queue) Drops() uint64 {
	return atomic.LoadUint64(&q.drops)
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}
