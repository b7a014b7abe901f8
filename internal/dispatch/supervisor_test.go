package dispatch

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boothqr/internal/eventbus"
	"boothqr/internal/payload"
	"boothqr/internal/pipeline"
	"boothqr/internal/session"
	logx "boothqr/pkg/logx"
)

type nullSurface struct {
	mu     sync.Mutex
	opened []session.View
}

func (n *nullSurface) Open(_ context.Context, v session.View) error {
	n.mu.Lock()
	n.opened = append(n.opened, v)
	n.mu.Unlock()
	return nil
}
func (n *nullSurface) Tick(context.Context, int64, int) error { return nil }
func (n *nullSurface) Close(context.Context, int64, session.CloseReason) error {
	return nil
}

func (n *nullSurface) views() []session.View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]session.View(nil), n.opened...)
}

func tinyPhoto(string, int) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func newTestSupervisor(t *testing.T, cfg session.Config, folder string) (*Supervisor, *nullSurface, eventbus.Bus) {
	t.Helper()
	surf := &nullSurface{}
	bus := eventbus.New()
	var wg sync.WaitGroup
	t.Cleanup(wg.Wait)
	sup := NewSupervisor(payload.NewBuilder(payload.Config{FolderID: folder}), cfg, Deps{
		Coordinator: pipeline.NewCoordinator(),
		Queue:       NewQueue(),
		Surface:     surf,
		Bus:         bus,
		Log:         logx.Nop(),
		Spawn: func(_ string, fn func(ctx context.Context) error) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = fn(context.Background())
			}()
		},
	}, session.WithThumbnailer(tinyPhoto))
	sup.SetPopWait(10 * time.Millisecond)
	return sup, surf, bus
}

func TestRunSpawnsConcurrentStaggeredSessions(t *testing.T) {
	sup, surf, _ := newTestSupervisor(t, session.Config{Seconds: 30, Tick: time.Hour}, "folder")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	sup.queue.Push("/w/one.jpg")
	time.Sleep(50 * time.Millisecond)
	sup.queue.Push("/w/two.jpg")

	require.Eventually(t, func() bool { return len(sup.Active()) == 2 }, 2*time.Second, 5*time.Millisecond)
	active := sup.Active()
	assert.Equal(t, int64(1), active[0].ID)
	assert.Equal(t, int64(2), active[1].ID)
	assert.NotEqual(t, active[0].Geometry.Offset, active[1].Geometry.Offset)
	assert.Equal(t, "https://drive.google.com/drive/folders/folder", active[0].URL)

	require.Eventually(t, func() bool { return len(surf.views()) == 2 }, time.Second, 5*time.Millisecond)
	for _, v := range surf.views() {
		assert.Equal(t, 320, v.QR.Bounds().Dx())
	}

	cancel()
	assert.NoError(t, <-done)
	for _, info := range active {
		assert.True(t, sup.Dismiss(info.ID, session.ReasonClick))
	}
	require.Eventually(t, func() bool { return len(sup.Active()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestDismissUnknownSession(t *testing.T) {
	sup, _, _ := newTestSupervisor(t, session.Config{Seconds: 1, Tick: time.Millisecond}, "f")
	assert.False(t, sup.Dismiss(42, session.ReasonKey))
}

func TestDispatchPublishesLifecycleEvents(t *testing.T) {
	sup, _, bus := newTestSupervisor(t, session.Config{Seconds: 2, Tick: time.Millisecond}, "")
	events, unsub := bus.Subscribe(8)
	defer unsub()

	sess := sup.Dispatch("/w/party.png")
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close")
	}

	var types []string
	var closed eventbus.SessionData
	require.Eventually(t, func() bool {
		for len(events) > 0 {
			e := <-events
			types = append(types, e.Type)
			if e.Type == eventbus.SessionClosed {
				closed = e.Data.(eventbus.SessionData)
			}
		}
		return len(types) == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{eventbus.SessionOpened, eventbus.SessionClosed}, types)
	assert.Equal(t, "timeout", closed.Reason)
	assert.Contains(t, closed.URL, payload.PlaceholderFolder)
}

func TestSessionConfigHotSwap(t *testing.T) {
	sup, _, _ := newTestSupervisor(t, session.Config{Seconds: 30, Tick: time.Hour}, "f")
	sup.SetSessionConfig(session.Config{Seconds: 5, Tick: time.Hour})
	sess := sup.Dispatch("/w/a.jpg")
	assert.Equal(t, 5, sess.Remaining())
	sup.SetBuilder(payload.NewBuilder(payload.Config{FolderID: "other"}))
	assert.Contains(t, sup.Dispatch("/w/b.jpg").URL(), "other")
	for _, info := range sup.Active() {
		sup.Dismiss(info.ID, session.ReasonKey)
	}
}
