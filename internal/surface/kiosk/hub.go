package kiosk

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	logx "boothqr/pkg/logx"
)

const (
	typeOpen    = "open"
	typeTick    = "tick"
	typeClose   = "close"
	typeDismiss = "dismiss"

	clientBuffer = 64
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingEvery    = pongWait * 9 / 10
	maxReadSize  = 4096
)

// message is the single JSON shape used in both directions.
type message struct {
	Type        string `json:"type"`
	ID          int64  `json:"id"`
	File        string `json:"file,omitempty"`
	URL         string `json:"url,omitempty"`
	Remaining   int    `json:"remaining,omitempty"`
	X           int    `json:"x,omitempty"`
	Y           int    `json:"y,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Via         string `json:"via,omitempty"`
}

func sortByID(ms []message) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
}

type hub struct {
	log logx.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub(log logx.Logger) *hub {
	return &hub{log: log, clients: map[*client]struct{}{}}
}

func (h *hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, clientBuffer), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("kiosk client connected", logx.String("remote", conn.RemoteAddr().String()), logx.Int("clients", n))
	return c
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.shutdown()
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast never blocks: a client whose buffer is full is disconnected
// and picks the current state up again from the snapshot on reconnect.
func (h *hub) broadcast(m message) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
	}
	h.mu.Unlock()
	for _, c := range slow {
		h.log.Warn("kiosk client too slow; disconnected", logx.String("remote", c.conn.RemoteAddr().String()))
		c.shutdown()
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	cs := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		cs = append(cs, c)
	}
	h.clients = map[*client]struct{}{}
	h.mu.Unlock()
	for _, c := range cs {
		c.shutdown()
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) enqueue(m message) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

func (c *client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.shutdown()
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.shutdown()
				return
			}
		}
	}
}

func (c *client) readLoop(handle func(message)) {
	c.conn.SetReadLimit(maxReadSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var m message
		if err := c.conn.ReadJSON(&m); err != nil {
			return
		}
		handle(m)
	}
}
