package pipeline

import "errors"

// Failure taxonomy shared by the ingest, dispatch and session stages.
// Stages wrap these with fmt.Errorf("...: %w", err); match with errors.Is.
var (
	// ErrTransientIO marks a momentary stat/read failure. The probe keeps polling.
	ErrTransientIO = errors.New("transient io error")
	// ErrFileVanished is terminal for the file; nothing is displayed.
	ErrFileVanished = errors.New("file vanished")
	// ErrStabilityTimeout is terminal for the file; nothing is displayed.
	ErrStabilityTimeout = errors.New("file did not stabilize")
	// ErrInvalidImage means the stable file does not decode. The path is released.
	ErrInvalidImage = errors.New("invalid image")
	// ErrPayloadNotConfigured degrades to a placeholder URL.
	ErrPayloadNotConfigured = errors.New("payload folder not configured")
	// ErrDisplayResource degrades to a placeholder asset.
	ErrDisplayResource = errors.New("display resource unavailable")
)

// RejectReason is a short stable label for a file that never reached a session.
func RejectReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFileVanished):
		return "gone"
	case errors.Is(err, ErrStabilityTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidImage):
		return "invalid"
	default:
		return "error"
	}
}
