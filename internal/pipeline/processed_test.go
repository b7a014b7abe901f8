package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveIsExclusiveUnderContention(t *testing.T) {
	set := NewProcessedSet()
	const workers = 64

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if set.Reserve("/photos/a.jpg") {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, set.Contains("/photos/a.jpg"))
}

func TestReserveDistinctPaths(t *testing.T) {
	set := NewProcessedSet()
	for i := 0; i < 10; i++ {
		require.True(t, set.Reserve(fmt.Sprintf("/photos/%d.jpg", i)))
	}
	assert.Equal(t, 10, set.Len())
}

func TestReleaseAllowsNewReservation(t *testing.T) {
	set := NewProcessedSet()
	require.True(t, set.Reserve("/p/x.png"))
	require.False(t, set.Reserve("/p/x.png"))

	set.Release("/p/x.png")
	assert.True(t, set.Reserve("/p/x.png"))
}

func TestForgetOnlyDropsDispatched(t *testing.T) {
	set := NewProcessedSet()
	require.True(t, set.Reserve("/p/a.jpg"))

	assert.False(t, set.Forget("/p/a.jpg"), "in-flight entries stay reserved")
	assert.True(t, set.Contains("/p/a.jpg"))

	set.MarkDispatched("/p/a.jpg")
	assert.False(t, set.Reserve("/p/a.jpg"))
	assert.True(t, set.Forget("/p/a.jpg"))
	assert.True(t, set.Reserve("/p/a.jpg"))
}

func TestMarkDispatchedIgnoresUnknown(t *testing.T) {
	set := NewProcessedSet()
	set.MarkDispatched("/p/none.jpg")
	assert.False(t, set.Contains("/p/none.jpg"))
}

func TestSessionIDsAreMonotonic(t *testing.T) {
	c := NewCoordinator()
	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := c.NextSessionID()
			_, dup := seen.LoadOrStore(id, true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Sessions())
	assert.Equal(t, int64(51), c.NextSessionID())
}

func TestRejectReason(t *testing.T) {
	assert.Equal(t, "gone", RejectReason(fmt.Errorf("probe: %w", ErrFileVanished)))
	assert.Equal(t, "timeout", RejectReason(ErrStabilityTimeout))
	assert.Equal(t, "invalid", RejectReason(fmt.Errorf("decode: %w", ErrInvalidImage)))
	assert.Equal(t, "error", RejectReason(errors.New("boom")))
	assert.Equal(t, "", RejectReason(nil))
}
