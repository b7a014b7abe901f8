package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 5; i++ {
		q.Push(fmt.Sprintf("/w/%d.jpg", i))
	}
	assert.Equal(t, 5, q.Len())
	for i := 0; i < 5; i++ {
		p, ok := q.Pop(context.Background(), 10*time.Millisecond)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("/w/%d.jpg", i), p)
	}
}

func TestQueuePopTimesOut(t *testing.T) {
	q := NewQueue()
	start := time.Now()
	_, ok := q.Pop(context.Background(), 30*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestQueuePopWakesOnPush(t *testing.T) {
	q := NewQueue()
	time.AfterFunc(10*time.Millisecond, func() { q.Push("/w/late.png") })
	p, ok := q.Pop(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, "/w/late.png", p)
}

func TestQueuePopCancelled(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := q.Pop(ctx, time.Second)
	assert.False(t, ok)
}

func TestQueueManyProducers(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				q.Push(fmt.Sprintf("/w/%d-%d.jpg", i, j))
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for {
		p, ok := q.Pop(context.Background(), 5*time.Millisecond)
		if !ok {
			break
		}
		seen[p] = true
	}
	assert.Len(t, seen, 200)
}
