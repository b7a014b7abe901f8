// Package session implements one transient on-screen notification: a photo
// thumbnail and a QR code shown for a fixed number of seconds, closed early
// by a click or the cancel key.
package session

import (
	"context"
	"image"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	logx "boothqr/pkg/logx"
)

const (
	DefaultSeconds = 30
	DefaultTick    = time.Second
)

type Config struct {
	Seconds   int
	Tick      time.Duration
	PhotoSize int
	QRSize    int
	Width     int
	Height    int
	Slots     int
	Step      int
}

func (c Config) withDefaults() Config {
	if c.Seconds <= 0 {
		c.Seconds = DefaultSeconds
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.PhotoSize <= 0 {
		c.PhotoSize = DefaultPhotoSize
	}
	if c.QRSize <= 0 {
		c.QRSize = 320
	}
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.Slots <= 0 {
		c.Slots = DefaultSlots
	}
	if c.Step <= 0 {
		c.Step = DefaultStep
	}
	return c
}

// QRFunc renders url as a size x size image.
type QRFunc func(url string, size int) (image.Image, error)

type Option func(*Session)

// WithQR sets the QR renderer. Without one the session shows a placeholder.
func WithQR(fn QRFunc) Option { return func(s *Session) { s.renderQR = fn } }

// WithThumbnailer replaces photo loading (tests).
func WithThumbnailer(fn func(path string, max int) (image.Image, error)) Option {
	return func(s *Session) { s.loadPhoto = fn }
}

// Session is a single notification. Run drives it from Created to Closed;
// Cancel may be called from any goroutine at any time.
type Session struct {
	id   int64
	path string
	url  string
	cfg  Config
	geo  Geometry

	surface   Surface
	log       logx.Logger
	renderQR  QRFunc
	loadPhoto func(path string, max int) (image.Image, error)

	state     atomic.Int32
	remaining atomic.Int32

	// closeMu orders user actions against the countdown reaching zero:
	// whichever claims closing first decides the reason.
	closeMu  sync.Mutex
	closing  bool
	cancelCh chan CloseReason
	done     chan struct{}

	mu       sync.Mutex
	photo    image.Image
	qr       image.Image
	reason   CloseReason
	openedAt time.Time
	closedAt time.Time
}

func New(id int64, path, url string, cfg Config, surface Surface, log logx.Logger, opts ...Option) *Session {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Session{
		id:        id,
		path:      path,
		url:       url,
		cfg:       cfg,
		geo:       Geometry{Width: cfg.Width, Height: cfg.Height, Offset: OffsetFor(id, cfg.Slots, cfg.Step)},
		surface:   surface,
		log:       log.With(logx.Int64("session", id)),
		loadPhoto: LoadThumbnail,
		cancelCh:  make(chan CloseReason, 1),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.surface == nil {
		s.surface = Multi(nil)
	}
	s.remaining.Store(int32(cfg.Seconds))
	return s
}

func (s *Session) ID() int64          { return s.id }
func (s *Session) Path() string       { return s.path }
func (s *Session) URL() string        { return s.url }
func (s *Session) Geometry() Geometry { return s.geo }
func (s *Session) State() State       { return State(s.state.Load()) }
func (s *Session) Remaining() int     { return int(s.remaining.Load()) }

// Done is closed once the session reaches Closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Reason is the close reason; empty until the session is closing.
func (s *Session) Reason() CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// ShownFor is how long the session was on screen (zero if never opened).
func (s *Session) ShownFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openedAt.IsZero() || s.closedAt.IsZero() {
		return 0
	}
	return s.closedAt.Sub(s.openedAt)
}

// Cancel requests an early close. It reports false if the session is
// already closing or a cancel was already requested; a true result always
// becomes the close reason.
func (s *Session) Cancel(reason CloseReason) bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closing {
		return false
	}
	s.closing = true
	s.cancelCh <- reason
	return true
}

// settle claims closing for reason unless a cancel got there first, in
// which case the cancel's reason wins.
func (s *Session) settle(reason CloseReason) CloseReason {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if !s.closing {
		s.closing = true
		return reason
	}
	select {
	case r := <-s.cancelCh:
		return r
	default:
		return reason
	}
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.log.Trace("session state", logx.String("state", st.String()))
}

// Run drives the session to Closed and always returns nil; display failures
// degrade to placeholders instead of aborting.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	s.setState(Rendering)
	v := s.render()

	if reason, ok := s.cancelled(); ok {
		s.finish(ctx, reason, false)
		return nil
	}

	if err := s.surface.Open(ctx, v); err != nil {
		s.log.Warn("surface open failed; counting down anyway", logx.Err(err))
	}
	s.mu.Lock()
	s.openedAt = v.OpenedAt
	s.mu.Unlock()

	s.setState(Counting)
	reason := s.count(ctx)
	s.finish(ctx, reason, true)
	return nil
}

func (s *Session) render() View {
	photo, err := s.loadPhoto(s.path, s.cfg.PhotoSize)
	placeholder := false
	if err != nil {
		s.log.Warn("photo unavailable; using placeholder", logx.String("path", s.path), logx.Err(err))
		photo = PlaceholderPhoto(s.cfg.PhotoSize)
		placeholder = true
	}

	var qr image.Image
	if s.renderQR != nil {
		qr, err = s.renderQR(s.url, s.cfg.QRSize)
		if err != nil {
			s.log.Warn("qr render failed; using placeholder", logx.Err(err))
			qr = nil
		}
	}
	if qr == nil {
		qr = PlaceholderQR(s.cfg.QRSize)
	}

	s.mu.Lock()
	s.photo, s.qr = photo, qr
	s.mu.Unlock()

	return View{
		ID:          s.id,
		Path:        s.path,
		Filename:    filepath.Base(s.path),
		URL:         s.url,
		Remaining:   s.Remaining(),
		Geometry:    s.geo,
		Photo:       photo,
		QR:          qr,
		Placeholder: placeholder,
		OpenedAt:    time.Now(),
	}
}

func (s *Session) cancelled() (CloseReason, bool) {
	select {
	case r := <-s.cancelCh:
		return r, true
	default:
		return "", false
	}
}

// count ticks the countdown down to zero unless cancelled first.
func (s *Session) count(ctx context.Context) CloseReason {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for s.remaining.Load() > 0 {
		select {
		case r := <-s.cancelCh:
			return r
		case <-ctx.Done():
			return s.settle(ReasonShutdown)
		case <-ticker.C:
			if r, ok := s.cancelled(); ok {
				return r
			}
			rem := s.remaining.Add(-1)
			if err := s.surface.Tick(ctx, s.id, int(rem)); err != nil {
				s.log.Debug("surface tick failed", logx.Err(err))
			}
		}
	}
	return s.settle(ReasonTimeout)
}

func (s *Session) finish(ctx context.Context, reason CloseReason, opened bool) {
	s.setState(Closing)
	s.mu.Lock()
	s.reason = reason
	s.closedAt = time.Now()
	s.mu.Unlock()

	if opened {
		// Shutdown cancels ctx; cleanup still deserves a short window.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		if err := s.surface.Close(cctx, s.id, reason); err != nil {
			s.log.Debug("surface close failed", logx.Err(err))
		}
		cancel()
	}

	s.mu.Lock()
	s.photo, s.qr = nil, nil
	s.mu.Unlock()
	s.setState(Closed)
}

// Info is a point-in-time description of a session.
type Info struct {
	ID        int64    `json:"id"`
	Path      string   `json:"path"`
	URL       string   `json:"url"`
	State     string   `json:"state"`
	Remaining int      `json:"remaining"`
	Geometry  Geometry `json:"geometry"`
}

func (s *Session) Info() Info {
	return Info{
		ID:        s.id,
		Path:      s.path,
		URL:       s.url,
		State:     s.State().String(),
		Remaining: s.Remaining(),
		Geometry:  s.geo,
	}
}

// assets returns the images held while the session is open (tests).
func (s *Session) assets() (image.Image, image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photo, s.qr
}
