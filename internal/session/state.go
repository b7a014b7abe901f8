package session

// State is a session's lifecycle position. Transitions only move forward:
// Created -> Rendering -> Counting -> Closing -> Closed.
type State int32

const (
	Created State = iota
	Rendering
	Counting
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Rendering:
		return "rendering"
	case Counting:
		return "counting"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether user actions can no longer affect the session.
func (s State) Terminal() bool { return s >= Closing }

// CloseReason says why a session closed.
type CloseReason string

const (
	ReasonTimeout  CloseReason = "timeout"
	ReasonClick    CloseReason = "click"
	ReasonKey      CloseReason = "key"
	ReasonShutdown CloseReason = "shutdown"
)

// ParseReason maps a user-action label ("click", "key") to a CloseReason.
func ParseReason(s string) (CloseReason, bool) {
	switch CloseReason(s) {
	case ReasonClick, ReasonKey:
		return CloseReason(s), true
	}
	return "", false
}
