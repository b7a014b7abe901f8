// Package telegram mirrors notifications to a Telegram chat: the QR code is
// posted as a photo when a session opens and deleted when it closes. It is
// best-effort and never holds up a session.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	rtsup "boothqr/internal/runtime/supervisor"
	"boothqr/internal/session"
	logx "boothqr/pkg/logx"
)

const (
	DefaultRatePerSec = 1.0
	DefaultQueueSize  = 64
	captionLimit      = 1024
)

type Config struct {
	Token      string
	ChatID     int64
	ThreadID   int
	RatePerSec float64
	QueueSize  int
}

// API is the part of *tele.Bot the mirror uses.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

type jobKind int

const (
	jobOpen jobKind = iota
	jobClose
)

type job struct {
	kind    jobKind
	id      int64
	caption string
	png     []byte
}

type Mirror struct {
	cfg     Config
	log     logx.Logger
	api     API
	limiter *rate.Limiter
	jobs    chan job

	dropped      atomic.Uint64
	droppedTotal atomic.Uint64

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	// sent is owned by the worker goroutine.
	sent map[int64]*tele.Message
}

// New builds a mirror backed by a telebot client. The bot runs offline: it
// only sends, so no getMe round-trip or poller is needed.
func New(cfg Config, log logx.Logger) (*Mirror, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: true})
	if err != nil {
		return nil, err
	}
	return NewWithAPI(cfg, b, log), nil
}

func NewWithAPI(cfg Config, api API, log logx.Logger) *Mirror {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = DefaultRatePerSec
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Mirror{
		cfg:     cfg,
		log:     log.With(logx.String("comp", "surface.telegram")),
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		jobs:    make(chan job, cfg.QueueSize),
		sent:    map[int64]*tele.Message{},
	}
}

// Caption is the text under the mirrored QR code.
func Caption(filename, url string) string {
	c := "Your photo is ready: " + filename + "\n" + url
	if r := []rune(c); len(r) > captionLimit {
		c = string(r[:captionLimit])
	}
	return c
}

func (m *Mirror) Open(_ context.Context, v session.View) error {
	if v.QR == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, v.QR); err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}
	m.enqueue(job{kind: jobOpen, id: v.ID, caption: Caption(v.Filename, v.URL), png: buf.Bytes()})
	return nil
}

func (m *Mirror) Tick(context.Context, int64, int) error { return nil }

func (m *Mirror) Close(_ context.Context, id int64, _ session.CloseReason) error {
	m.enqueue(job{kind: jobClose, id: id})
	return nil
}

func (m *Mirror) enqueue(j job) {
	select {
	case m.jobs <- j:
	default:
		m.dropped.Add(1)
		m.droppedTotal.Add(1)
	}
}

// Dropped reports how many jobs were discarded because the queue was full.
func (m *Mirror) Dropped() uint64 { return m.droppedTotal.Load() }

func (m *Mirror) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return nil
	}
	m.running = true
	m.sup = rtsup.New(ctx,
		rtsup.WithLogger(m.log),
		// mirror errors must not take down the booth
		rtsup.WithCancelOnError(false),
	)
	m.sup.Go0("telegram.drop_report", m.dropReport)
	m.sup.GoRestart("telegram.worker", m.worker, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	return nil
}

func (m *Mirror) Stop(ctx context.Context) error {
	m.runMu.Lock()
	sup := m.sup
	m.sup = nil
	wasRunning := m.running
	m.running = false
	m.runMu.Unlock()
	if !wasRunning || sup == nil {
		return nil
	}

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := sup.Stop(wctx); err != nil {
		m.log.Warn("telegram stop timed out", logx.Err(err))
	}
	return nil
}

func (m *Mirror) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-m.jobs:
			if err := m.limiter.Wait(ctx); err != nil {
				return nil
			}
			m.handle(j)
		}
	}
}

func (m *Mirror) handle(j job) {
	switch j.kind {
	case jobOpen:
		photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(j.png)), Caption: j.caption}
		msg, err := m.api.Send(&tele.Chat{ID: m.cfg.ChatID}, photo, &tele.SendOptions{ThreadID: m.cfg.ThreadID})
		if err != nil {
			m.log.Warn("telegram send failed", logx.Int64("session", j.id), logx.Err(err))
			return
		}
		m.sent[j.id] = msg
	case jobClose:
		msg := m.sent[j.id]
		if msg == nil {
			return
		}
		delete(m.sent, j.id)
		if err := m.api.Delete(msg); err != nil {
			m.log.Debug("telegram delete failed", logx.Int64("session", j.id), logx.Err(err))
		}
	}
}

func (m *Mirror) dropReport(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	report := func() {
		if n := m.dropped.Swap(0); n > 0 {
			m.log.Warn("telegram mirror dropped messages (queue full)", logx.Uint64("count", n), logx.Int("queue_cap", cap(m.jobs)))
		}
	}
	for {
		select {
		case <-ctx.Done():
			report()
			return
		case <-ticker.C:
			report()
		}
	}
}
