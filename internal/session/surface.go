package session

import (
	"context"
	"errors"
	"image"
	"time"
)

// View is everything a surface needs to show one session.
type View struct {
	ID        int64
	Path      string
	Filename  string
	URL       string
	Remaining int
	Geometry  Geometry
	Photo     image.Image
	QR        image.Image
	// Placeholder is set when Photo is the stand-in, not the real image.
	Placeholder bool
	OpenedAt    time.Time
}

// Surface displays sessions. A surface may show many sessions at once and
// is called concurrently from each session's goroutine; implementations
// hand work off (a channel, a socket broadcast) rather than block for long.
type Surface interface {
	Open(ctx context.Context, v View) error
	Tick(ctx context.Context, id int64, remaining int) error
	Close(ctx context.Context, id int64, reason CloseReason) error
}

// Multi fans every call out to all surfaces and joins their errors.
type Multi []Surface

func (m Multi) Open(ctx context.Context, v View) error {
	var errs []error
	for _, s := range m {
		if s != nil {
			errs = append(errs, s.Open(ctx, v))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Tick(ctx context.Context, id int64, remaining int) error {
	var errs []error
	for _, s := range m {
		if s != nil {
			errs = append(errs, s.Tick(ctx, id, remaining))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close(ctx context.Context, id int64, reason CloseReason) error {
	var errs []error
	for _, s := range m {
		if s != nil {
			errs = append(errs, s.Close(ctx, id, reason))
		}
	}
	return errors.Join(errs...)
}
