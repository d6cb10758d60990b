package bridge

import "context"

// DefaultQueueCapacity matches the depth of the channels the panel was first built around
const DefaultQueueCapacity = 10

// Queue is a bounded FIFO with a non-blocking side for the render loop
// and a blocking side for the driver.
type Queue[T any] struct {
	ch chan T
}

func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	return &Queue[T]{ch: make(chan T, capacity)}
}

// TrySend enqueues v unless the queue is full, never blocking
func (q *Queue[T]) TrySend(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// Send blocks until v is enqueued or ctx is done
func (q *Queue[T]) Send(ctx context.Context, v T) error {
	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll returns the oldest element if there is one, never blocking
func (q *Queue[T]) Poll() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Receive blocks until an element arrives or ctx is done
func (q *Queue[T]) Receive(ctx context.Context) (T, error) {
	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// C exposes the receive end so the driver can select on it alongside other events
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

func (q *Queue[T]) Len() int { return len(q.ch) }
func (q *Queue[T]) Cap() int { return cap(q.ch) }
