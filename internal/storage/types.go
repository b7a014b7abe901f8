package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Record kinds mirror the pipeline's event types.
const (
	KindPhotoAccepted = "photo.accepted"
	KindPhotoRejected = "photo.rejected"
	KindSessionOpened = "session.opened"
	KindSessionClosed = "session.closed"
)

// Record is one history row. Keep it compact and schema-stable.
type Record struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	SessionID int64         `json:"session_id,omitempty"`
	Path      string        `json:"path"`
	URL       string        `json:"url,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	At        time.Time     `json:"at"`
	ShownFor  time.Duration `json:"shown_for,omitempty"`
}
