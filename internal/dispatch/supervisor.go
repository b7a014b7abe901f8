// Package dispatch hands stable photos from the ingest stage to the display
// stage: an unbounded queue and the single consumer that turns each queued
// path into a running notification session.
package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"boothqr/internal/eventbus"
	"boothqr/internal/payload"
	"boothqr/internal/pipeline"
	"boothqr/internal/session"
	logx "boothqr/pkg/logx"
)

// DefaultPopWait bounds each queue wait so the loop notices shutdown.
const DefaultPopWait = time.Second

// Spawner runs fn in its own goroutine.
type Spawner func(name string, fn func(ctx context.Context) error)

type Deps struct {
	Coordinator *pipeline.Coordinator
	Queue       *Queue
	Surface     session.Surface
	Spawn       Spawner
	Bus         eventbus.Bus
	Log         logx.Logger
	QR          *payload.Renderer
}

// Supervisor is the single queue consumer. It owns the registry of live
// sessions so user actions can be routed to them.
type Supervisor struct {
	coord   *pipeline.Coordinator
	queue   *Queue
	surface session.Surface
	spawn   Spawner
	bus     eventbus.Bus
	log     logx.Logger
	qr      *payload.Renderer
	popWait time.Duration
	opts    []session.Option

	builder atomic.Pointer[payload.Builder]
	cfg     atomic.Pointer[session.Config]

	mu       sync.Mutex
	sessions map[int64]*session.Session
}

func NewSupervisor(b *payload.Builder, cfg session.Config, d Deps, opts ...session.Option) *Supervisor {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Spawn == nil {
		d.Spawn = func(_ string, fn func(ctx context.Context) error) {
			go func() { _ = fn(context.Background()) }()
		}
	}
	if d.QR == nil {
		d.QR = payload.NewRenderer(0)
	}
	s := &Supervisor{
		coord:    d.Coordinator,
		queue:    d.Queue,
		surface:  d.Surface,
		spawn:    d.Spawn,
		bus:      eventbus.Publisher(d.Bus),
		log:      d.Log,
		qr:       d.QR,
		popWait:  DefaultPopWait,
		opts:     opts,
		sessions: map[int64]*session.Session{},
	}
	s.builder.Store(b)
	s.cfg.Store(&cfg)
	return s
}

// SetBuilder swaps the payload configuration for sessions created later.
func (s *Supervisor) SetBuilder(b *payload.Builder) { s.builder.Store(b) }

// SetSessionConfig swaps display settings for sessions created later.
func (s *Supervisor) SetSessionConfig(cfg session.Config) { s.cfg.Store(&cfg) }

func (s *Supervisor) SessionConfig() session.Config { return *s.cfg.Load() }

// SetPopWait overrides DefaultPopWait.
func (s *Supervisor) SetPopWait(d time.Duration) {
	if d > 0 {
		s.popWait = d
	}
}

// Run consumes the queue until ctx is done. It never waits for a session.
func (s *Supervisor) Run(ctx context.Context) error {
	s.log.Debug("dispatch loop started")
	for {
		if ctx.Err() != nil {
			s.log.Debug("dispatch loop stopped", logx.Int("pending", s.queue.Len()))
			return nil
		}
		path, ok := s.queue.Pop(ctx, s.popWait)
		if !ok {
			continue
		}
		s.Dispatch(path)
	}
}

// Dispatch builds the payload for path synchronously and starts its session
// asynchronously. It returns the new session.
func (s *Supervisor) Dispatch(path string) *session.Session {
	filename := filepath.Base(path)
	url, err := s.builder.Load().Build(filename)
	if errors.Is(err, pipeline.ErrPayloadNotConfigured) {
		s.log.Warn("drive folder id not configured; QR points to a placeholder", logx.String("file", filename))
	}

	id := s.coord.NextSessionID()
	opts := append([]session.Option{session.WithQR(s.qr.Image)}, s.opts...)
	sess := session.New(id, path, url, *s.cfg.Load(), s.surface, s.log, opts...)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.Info("displaying notification", logx.String("file", filename), logx.Int64("session", id))
	s.log.Debug("qr url", logx.String("url", url))
	s.bus.Publish(eventbus.Event{Type: eventbus.SessionOpened, Data: eventbus.SessionData{ID: id, Path: path, URL: url}})

	s.spawn("session", func(ctx context.Context) error {
		defer s.forget(sess)
		return sess.Run(ctx)
	})
	return sess
}

func (s *Supervisor) forget(sess *session.Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()

	s.log.Debug("notification closed", logx.Int64("session", sess.ID()), logx.String("reason", string(sess.Reason())))
	s.bus.Publish(eventbus.Event{Type: eventbus.SessionClosed, Data: eventbus.SessionData{
		ID:       sess.ID(),
		Path:     sess.Path(),
		URL:      sess.URL(),
		Reason:   string(sess.Reason()),
		ShownFor: sess.ShownFor(),
	}})
}

// Dismiss routes a user action to session id. It reports false if the
// session is unknown or already closing.
func (s *Supervisor) Dismiss(id int64, reason session.CloseReason) bool {
	s.mu.Lock()
	sess := s.sessions[id]
	s.mu.Unlock()
	if sess == nil {
		return false
	}
	return sess.Cancel(reason)
}

// Active lists live sessions ordered by id.
func (s *Supervisor) Active() []session.Info {
	s.mu.Lock()
	out := make([]session.Info, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Info())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
