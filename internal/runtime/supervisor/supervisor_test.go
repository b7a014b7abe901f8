package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoAndStop(t *testing.T) {
	s := New(context.Background())
	started := make(chan struct{})
	s.Go0("loop", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started
	assert.Equal(t, int64(1), s.Active("loop"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, Counters{Active: 0, Started: 1}, s.Counters())
	assert.Equal(t, int64(0), s.Active("loop"))
}

func TestPanicIsRecoveredAndCancels(t *testing.T) {
	s := New(context.Background(), WithCancelOnError(true))
	s.Go("boom", func(context.Context) error { panic("kaboom") })

	select {
	case <-s.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("panic did not cancel the supervisor")
	}
	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "boom: panic: kaboom")

	stats := s.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(1), stats[0].Panics)
}

func TestErrorWithoutCancelKeepsRunning(t *testing.T) {
	s := New(context.Background())
	s.Go("probe", func(context.Context) error { return errors.New("bad file") })
	require.Eventually(t, func() bool { return s.Err() != nil }, time.Second, 5*time.Millisecond)
	assert.NoError(t, s.Context().Err())
	assert.Equal(t, "probe: bad file", s.Err().Error())
}

func TestCanceledIsNotAnError(t *testing.T) {
	s := New(context.Background(), WithCancelOnError(true))
	s.Go("session", func(context.Context) error { return context.Canceled })
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	assert.NoError(t, s.Err())
}

func TestGoRestartRestartsUntilSuccess(t *testing.T) {
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("watcher", func(context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("watcher closed")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 2*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	assert.Equal(t, int32(3), runs.Load())

	var restarts uint64
	for _, st := range s.Stats() {
		if st.Name == "watcher" {
			restarts = st.Restarts
		}
	}
	assert.Equal(t, uint64(2), restarts)
}

func TestGoRestartGivesUp(t *testing.T) {
	s := New(context.Background())
	s.GoRestart("flaky", func(context.Context) error { return errors.New("nope") },
		WithRestartBackoff(time.Millisecond, time.Millisecond), WithMaxRestarts(2))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flaky: nope")
}

func TestWaitHonoursDeadline(t *testing.T) {
	s := New(context.Background())
	block := make(chan struct{})
	defer close(block)
	s.Go0("stuck", func(context.Context) { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}
