package eventbus

import "time"

// Event types published by the photo pipeline.
const (
	PhotoDetected = "photo.detected"
	PhotoAccepted = "photo.accepted"
	PhotoRejected = "photo.rejected"
	SessionOpened = "session.opened"
	SessionClosed = "session.closed"
)

// PhotoData accompanies photo.* events.
type PhotoData struct {
	Path   string
	Reason string // photo.rejected only: gone|timeout|invalid|error
	Err    string
}

// SessionData accompanies session.* events.
type SessionData struct {
	ID       int64
	Path     string
	URL      string
	Reason   string // session.closed only
	ShownFor time.Duration
}
