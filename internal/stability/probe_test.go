package stability

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boothqr/internal/pipeline"
	logx "boothqr/pkg/logx"
)

// scriptFS replays a fixed sequence of size readings. The final reading
// repeats once the script is exhausted.
type scriptFS struct {
	mu       sync.Mutex
	sizes    []int64
	sizeErrs map[int]error
	readErrs []error
	sizeFn   func(call int) int64

	calls int
	reads int
}

func (s *scriptFS) Size(string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err, ok := s.sizeErrs[s.calls]; ok {
		return 0, err
	}
	if s.sizeFn != nil {
		return s.sizeFn(s.calls), nil
	}
	i := s.calls - 1
	if i >= len(s.sizes) {
		i = len(s.sizes) - 1
	}
	return s.sizes[i], nil
}

func (s *scriptFS) ReadCheck(string, int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.reads <= len(s.readErrs) {
		return s.readErrs[s.reads-1]
	}
	return nil
}

func fastProber(f FS) *Prober {
	return New(Options{Interval: time.Millisecond, Checks: 3, MaxWait: 5 * time.Second}, logx.Nop(), WithFS(f))
}

func TestProbeStableAfterConsecutiveEqualReadings(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int64
		calls int
	}{
		{name: "growing then flat", sizes: []int64{100, 200, 300, 300, 300, 300}, calls: 6},
		{name: "growth resets counter", sizes: []int64{100, 100, 100, 200, 200, 200, 200}, calls: 7},
		{name: "zero size does not count", sizes: []int64{0, 0, 0, 0, 50, 50, 50, 50}, calls: 8},
		{name: "zero reading keeps last size", sizes: []int64{50, 50, 0, 50, 50}, calls: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptFS{sizes: tt.sizes}
			out, err := fastProber(f).Probe(context.Background(), "/w/a.jpg")
			require.NoError(t, err)
			assert.Equal(t, Stable, out)
			assert.Equal(t, tt.calls, f.calls, "stable reported after the wrong number of polls")
			assert.Equal(t, 1, f.reads)
		})
	}
}

func TestProbeReadCheckFailureResetsCounter(t *testing.T) {
	f := &scriptFS{sizes: []int64{10}, readErrs: []error{errors.New("resource temporarily unavailable")}}
	out, err := fastProber(f).Probe(context.Background(), "/w/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, Stable, out)
	assert.Equal(t, 7, f.calls)
	assert.Equal(t, 2, f.reads)
}

func TestProbeTransientErrorKeepsPolling(t *testing.T) {
	f := &scriptFS{
		sizes:    []int64{10, 10, 10, 10, 10, 10, 10, 10},
		sizeErrs: map[int]error{3: fs.ErrPermission},
	}
	out, err := fastProber(f).Probe(context.Background(), "/w/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, Stable, out)
	assert.Equal(t, 6, f.calls)
}

func TestProbeGone(t *testing.T) {
	f := &scriptFS{sizes: []int64{10, 20}, sizeErrs: map[int]error{3: fs.ErrNotExist}}
	out, err := fastProber(f).Probe(context.Background(), "/w/a.jpg")
	assert.Equal(t, Gone, out)
	assert.ErrorIs(t, err, pipeline.ErrFileVanished)
	assert.Equal(t, 3, f.calls)
}

func TestProbeGoneDuringReadCheck(t *testing.T) {
	f := &scriptFS{sizes: []int64{10}, readErrs: []error{fs.ErrNotExist}}
	out, err := fastProber(f).Probe(context.Background(), "/w/a.jpg")
	assert.Equal(t, Gone, out)
	assert.ErrorIs(t, err, pipeline.ErrFileVanished)
}

func TestProbeTimeoutNeverEarly(t *testing.T) {
	f := &scriptFS{sizeFn: func(call int) int64 { return int64(call) * 10 }}
	p := New(Options{Interval: 2 * time.Millisecond, Checks: 3, MaxWait: 80 * time.Millisecond}, logx.Nop(), WithFS(f))

	start := time.Now()
	out, err := p.Probe(context.Background(), "/w/growing.jpg")
	elapsed := time.Since(start)

	assert.Equal(t, Timeout, out)
	assert.ErrorIs(t, err, pipeline.ErrStabilityTimeout)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Equal(t, 0, f.reads)
}

func TestProbeAbandonedOnCancel(t *testing.T) {
	f := &scriptFS{sizeFn: func(call int) int64 { return int64(call) }}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	out, err := fastProber(f).Probe(ctx, "/w/a.jpg")
	assert.Equal(t, Abandoned, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProbeDefaults(t *testing.T) {
	p := New(Options{}, logx.Logger{})
	assert.Equal(t, Options{Interval: 300 * time.Millisecond, Checks: 3, MaxWait: 10 * time.Second, ReadBytes: 1024}, p.Options())
}

func TestProbeRealFileWrittenInChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shot.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)

	const (
		interval = 40 * time.Millisecond
		checks   = 3
		slack    = 200 * time.Millisecond
	)
	p := New(Options{Interval: interval, Checks: checks, MaxWait: 5 * time.Second}, logx.Nop())

	type result struct {
		out Outcome
		err error
		at  time.Time
	}
	done := make(chan result, 1)
	go func() {
		out, err := p.Probe(context.Background(), path)
		done <- result{out: out, err: err, at: time.Now()}
	}()

	chunk := make([]byte, 64*1024)
	var lastWrite time.Time
	for i := 0; i < 3; i++ {
		_, err := f.Write(chunk)
		require.NoError(t, err)
		lastWrite = time.Now()
		if i < 2 {
			time.Sleep(30 * time.Millisecond)
		}
	}
	require.NoError(t, f.Close())

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, Stable, r.out)
		assert.False(t, r.at.Before(lastWrite), "stable reported before the final chunk")
		// one poll to see the final size, then checks equal readings
		assert.Less(t, r.at.Sub(lastWrite), (checks+1)*interval+slack)
	case <-time.After(5 * time.Second):
		t.Fatal("probe did not finish")
	}
}

func TestProbeRealFileMissing(t *testing.T) {
	p := New(Options{Interval: 5 * time.Millisecond}, logx.Nop())
	out, err := p.Probe(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	assert.Equal(t, Gone, out)
	assert.ErrorIs(t, err, pipeline.ErrFileVanished)
}

func TestReadCheckSmallFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.png")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))
	assert.NoError(t, OS{}.ReadCheck(path, 1024))
}
