// Package console is the always-on surface: it writes session lifecycle to
// the log so a headless booth still shows what would be on screen.
package console

import (
	"context"

	"boothqr/internal/session"
	logx "boothqr/pkg/logx"
)

type Surface struct {
	log logx.Logger
}

func New(log logx.Logger) *Surface {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Surface{log: log.With(logx.String("comp", "surface.console"))}
}

func (s *Surface) Open(_ context.Context, v session.View) error {
	s.log.Info("notification shown",
		logx.Int64("session", v.ID),
		logx.String("file", v.Filename),
		logx.Int("x", v.Geometry.Offset.X),
		logx.Int("y", v.Geometry.Offset.Y),
		logx.Int("seconds", v.Remaining),
		logx.Bool("placeholder", v.Placeholder),
	)
	return nil
}

func (s *Surface) Tick(_ context.Context, id int64, remaining int) error {
	s.log.Trace("closing in", logx.Int64("session", id), logx.Int("seconds", remaining))
	return nil
}

func (s *Surface) Close(_ context.Context, id int64, reason session.CloseReason) error {
	s.log.Info("notification closed", logx.Int64("session", id), logx.String("reason", string(reason)))
	return nil
}
