package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boothqr/internal/config"
	"boothqr/internal/eventbus"
	"boothqr/internal/sample"
	"boothqr/internal/session"
	"boothqr/internal/storage"
)

type closeLog struct {
	mu     sync.Mutex
	opened []string
	closed []session.CloseReason
}

func (c *closeLog) Open(_ context.Context, v session.View) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = append(c.opened, filepath.Base(v.Path))
	return nil
}

func (c *closeLog) Tick(context.Context, int64, int) error { return nil }

func (c *closeLog) Close(_ context.Context, _ int64, reason session.CloseReason) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, reason)
	return nil
}

func (c *closeLog) snapshot() ([]string, []session.CloseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.opened...), append([]session.CloseReason(nil), c.closed...)
}

// writeConfig writes a quiet, fast config rooted in dir.
func writeConfig(t *testing.T, dir string, mutate func(*config.Config)) string {
	t.Helper()
	cfg := config.Defaults()
	cfg.Watch.Dir = filepath.Join(dir, "photos")
	cfg.Stability.Interval = "20ms"
	cfg.Stability.Checks = 2
	cfg.Stability.MaxWait = "3s"
	cfg.Payload.DriveFolderID = "folder123"
	cfg.Display.Seconds = 2
	cfg.Kiosk.Enabled = false
	cfg.Storage.Path = filepath.Join(dir, "history.jsonl")
	cfg.Logging.Console = false
	cfg.Logging.File = config.LoggingFile{Enabled: true, Path: filepath.Join(dir, "boothqr.log")}
	cfg.Runtime.StateDir = filepath.Join(dir, "state")
	cfg.Runtime.SystemdNotify = false
	if mutate != nil {
		mutate(cfg)
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(dir, "boothqr.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func stopApp(t *testing.T, a *App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx, StopAppStop))
}

func TestPhotoIsShownThenRecorded(t *testing.T) {
	dir := t.TempDir()
	surface := &closeLog{}
	a, err := NewApp(writeConfig(t, dir, nil), WithTick(20*time.Millisecond), WithSurface(surface))
	require.NoError(t, err)

	events, unsub := a.Bus().Subscribe(32)
	defer unsub()

	require.NoError(t, a.Start(context.Background()))
	stopped := false
	defer func() {
		if !stopped {
			stopApp(t, a)
		}
	}()

	data, err := sample.JPEG(sample.Options{Width: 320, Height: 240})
	require.NoError(t, err)
	photo := filepath.Join(a.WatchDir(), "IMG_0001.jpg")
	require.NoError(t, sample.WriteChunked(context.Background(), photo, data, 3, 30*time.Millisecond))

	var closedEvt eventbus.Event
	deadline := time.After(5 * time.Second)
wait:
	for {
		select {
		case e := <-events:
			if e.Type == eventbus.SessionClosed {
				closedEvt = e
				break wait
			}
		case <-deadline:
			t.Fatal("session never closed")
		}
	}

	sd, ok := closedEvt.Data.(eventbus.SessionData)
	require.True(t, ok)
	assert.Equal(t, int64(1), sd.ID)
	assert.Equal(t, string(session.ReasonTimeout), sd.Reason)
	assert.Equal(t, "https://drive.google.com/drive/folders/folder123", sd.URL)

	opened, closed := surface.snapshot()
	assert.Equal(t, []string{"IMG_0001.jpg"}, opened)
	assert.Equal(t, []session.CloseReason{session.ReasonTimeout}, closed)

	stopApp(t, a)
	stopped = true

	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(dir, "history.jsonl")}, a.Logger())
	require.NoError(t, err)
	defer st.Close()
	recs, err := st.Recent(context.Background(), 10)
	require.NoError(t, err)

	kinds := map[string]bool{}
	for _, r := range recs {
		kinds[r.Kind] = true
	}
	assert.True(t, kinds[storage.KindPhotoAccepted])
	assert.True(t, kinds[storage.KindSessionOpened])
	assert.True(t, kinds[storage.KindSessionClosed])
}

func TestShutdownClosesOpenSessions(t *testing.T) {
	dir := t.TempDir()
	surface := &closeLog{}
	path := writeConfig(t, dir, func(c *config.Config) { c.Display.Seconds = 60 })
	a, err := NewApp(path, WithSurface(surface))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	data, err := sample.JPEG(sample.Options{Width: 64, Height: 64})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(a.WatchDir(), "a.jpg"), data, 0o644))

	require.Eventually(t, func() bool { return len(a.Dispatcher().Active()) == 1 }, 5*time.Second, 10*time.Millisecond)

	stopApp(t, a)
	_, closed := surface.snapshot()
	assert.Equal(t, []session.CloseReason{session.ReasonShutdown}, closed)
}

// flakySurface panics on its first Open.
type flakySurface struct{ opens atomic.Int32 }

func (f *flakySurface) Open(context.Context, session.View) error {
	if f.opens.Add(1) == 1 {
		panic("surface blew up")
	}
	return nil
}

func (f *flakySurface) Tick(context.Context, int64, int) error { return nil }

func (f *flakySurface) Close(context.Context, int64, session.CloseReason) error { return nil }

func TestSessionPanicLeavesAppRunning(t *testing.T) {
	dir := t.TempDir()
	surface := &closeLog{}
	path := writeConfig(t, dir, func(c *config.Config) { c.Storage.Driver = "none" })
	a, err := NewApp(path, WithTick(20*time.Millisecond), WithSurface(&flakySurface{}), WithSurface(surface))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	defer stopApp(t, a)

	data, err := sample.JPEG(sample.Options{Width: 64, Height: 64})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(a.WatchDir(), "first.jpg"), data, 0o644))
	require.Eventually(t, func() bool {
		for _, st := range a.work.Stats() {
			if st.Name == "session" && st.Panics == 1 {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	select {
	case <-a.Done():
		t.Fatalf("app stopped after one session panicked: %v", a.Err())
	default:
	}
	assert.NoError(t, a.Err())

	require.NoError(t, os.WriteFile(filepath.Join(a.WatchDir(), "second.jpg"), data, 0o644))
	require.Eventually(t, func() bool {
		opened, _ := surface.snapshot()
		return len(opened) == 1 && opened[0] == "second.jpg"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSecondInstanceIsRefused(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, func(c *config.Config) { c.Storage.Driver = "none" })

	first, err := NewApp(path)
	require.NoError(t, err)
	require.NoError(t, first.Start(context.Background()))
	defer stopApp(t, first)

	second, err := NewApp(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.logs.Close() })
	err = second.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))
}

func TestNewAppWritesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	a, err := NewApp(filepath.Join(dir, "fresh.yaml"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "fresh.yaml"))
	assert.Equal(t, config.DefaultWatchDir, a.WatchDir())
	a.closeStore()
	require.NoError(t, a.logs.Close())
}

func TestToRecord(t *testing.T) {
	now := time.Now()

	r, ok := toRecord(eventbus.Event{Type: eventbus.PhotoRejected, Time: now, Data: eventbus.PhotoData{Path: "/p/x.jpg", Reason: "invalid"}})
	require.True(t, ok)
	assert.Equal(t, storage.KindPhotoRejected, r.Kind)
	assert.Equal(t, "invalid", r.Reason)
	assert.Equal(t, now, r.At)

	_, ok = toRecord(eventbus.Event{Type: eventbus.PhotoDetected, Data: eventbus.PhotoData{Path: "/p/x.jpg"}})
	assert.False(t, ok)

	r, ok = toRecord(eventbus.Event{Type: eventbus.SessionClosed, Data: eventbus.SessionData{ID: 4, Reason: "click", ShownFor: 3 * time.Second}})
	require.True(t, ok)
	assert.Equal(t, int64(4), r.SessionID)
	assert.Equal(t, 3*time.Second, r.ShownFor)

	_, ok = toRecord(eventbus.Event{Type: "other", Data: 42})
	assert.False(t, ok)
}

func TestStartupWarnings(t *testing.T) {
	cfg := config.Defaults()
	assert.Len(t, startupWarnings(cfg), 2)

	cfg.Payload.DriveFolderID = "abc"
	cfg.Watch.Dir = "/srv/booth"
	assert.Empty(t, startupWarnings(cfg))
}
