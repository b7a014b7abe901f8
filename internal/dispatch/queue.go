package dispatch

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO of stable, valid photo paths. Push never
// blocks; Pop waits a bounded time so the consumer can notice shutdown.
type Queue struct {
	mu     sync.Mutex
	items  []string
	signal chan struct{}
}

func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

func (q *Queue) Push(path string) {
	q.mu.Lock()
	q.items = append(q.items, path)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop returns the oldest path. It reports false if nothing arrived within
// wait or ctx was cancelled.
func (q *Queue) Pop(ctx context.Context, wait time.Duration) (string, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		if p, ok := q.tryPop(); ok {
			return p, true
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-timer.C:
			return q.tryPop()
		case <-q.signal:
		}
	}
}

func (q *Queue) tryPop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	p := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	if len(q.items) > 0 {
		// wake another waiting consumer, if any
		select {
		case q.signal <- struct{}{}:
		default:
		}
	}
	return p, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
