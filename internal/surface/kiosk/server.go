// Package kiosk renders notifications in a browser running in kiosk mode.
// Sessions are pushed over a websocket as open, tick and close messages;
// the page sends dismiss messages back when a card is clicked or Escape is
// pressed.
package kiosk

import (
	"context"
	_ "embed"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"boothqr/internal/session"
	logx "boothqr/pkg/logx"
)

const DefaultAddr = "127.0.0.1:8787"

//go:embed page.html
var page []byte

// Dismisser routes a user action to a live session.
type Dismisser interface {
	Dismiss(id int64, reason session.CloseReason) bool
}

type Config struct {
	Addr string
	// DebugToken, when set, mounts pprof under /debug/pprof/.
	DebugToken string
}

type Server struct {
	cfg Config
	log logx.Logger
	hub *hub

	router   *mux.Router
	upgrader websocket.Upgrader
	dismiss  atomic.Pointer[Dismisser]

	mu       sync.Mutex
	sessions map[int64]*entry

	srvMu sync.Mutex
	srv   *http.Server
	addr  string
}

// entry is what the server keeps for an open session: the encoded assets
// and the last state pushed, for clients that connect late.
type entry struct {
	open  message
	photo []byte
	qr    []byte
}

func New(cfg Config, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		cfg:      cfg,
		log:      log.With(logx.String("comp", "surface.kiosk")),
		sessions: map[int64]*entry{},
	}
	s.hub = newHub(s.log)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     sameOrigin,
	}
	s.router = s.routes()
	return s
}

// SetDismisser wires dismiss messages to d. Until it is called they are
// ignored.
func (s *Server) SetDismisser(d Dismisser) {
	if d == nil {
		s.dismiss.Store(nil)
		return
	}
	s.dismiss.Store(&d)
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id:[0-9]+}/photo.jpg", s.handleAsset(func(e *entry) []byte { return e.photo }, "image/jpeg")).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id:[0-9]+}/qr.png", s.handleAsset(func(e *entry) []byte { return e.qr }, "image/png")).Methods(http.MethodGet)
	s.mountDebug(r, s.cfg.DebugToken)
	return r
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(page)
}

func (s *Server) handleAsset(pick func(*entry) []byte, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		s.mu.Lock()
		var body []byte
		if e := s.sessions[id]; e != nil {
			body = pick(e)
		}
		s.mu.Unlock()
		if len(body) == 0 {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", logx.Err(err))
		return
	}
	c := s.hub.add(conn)
	for _, m := range s.snapshot() {
		c.enqueue(m)
	}
	go c.writeLoop()
	c.readLoop(s.handleClientMessage)
	s.hub.remove(c)
}

func (s *Server) handleClientMessage(m message) {
	if m.Type != typeDismiss {
		return
	}
	reason, ok := session.ParseReason(m.Via)
	if !ok {
		s.log.Debug("dismiss with unknown action ignored", logx.String("via", m.Via))
		return
	}
	dp := s.dismiss.Load()
	if dp == nil {
		return
	}
	if !(*dp).Dismiss(m.ID, reason) {
		s.log.Debug("dismiss for unknown session", logx.Int64("session", m.ID))
	}
}

// snapshot returns open messages for every live session, oldest first.
func (s *Server) snapshot() []message {
	s.mu.Lock()
	out := make([]message, 0, len(s.sessions))
	for _, e := range s.sessions {
		out = append(out, e.open)
	}
	s.mu.Unlock()
	sortByID(out)
	return out
}

// Start binds the listen address and serves in the background. Bind errors
// are returned so a taken port fails startup.
func (s *Server) Start() error {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	if s.srv != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.srv = srv
	s.addr = ln.Addr().String()
	s.log.Info("kiosk listening", logx.String("url", "http://"+s.addr+"/"))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("kiosk server stopped", logx.Err(err))
		}
	}()
	return nil
}

// Addr is the bound address once Start succeeded.
func (s *Server) Addr() string {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	return s.addr
}

func (s *Server) Stop(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srv = nil
	s.srvMu.Unlock()
	s.hub.closeAll()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// sameOrigin accepts browsers on the page's own host and non-browser
// clients that send no Origin.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
