package app

import (
	"time"

	"boothqr/internal/session"
	"boothqr/internal/stability"
)

type options struct {
	tick        time.Duration
	surfaces    []session.Surface
	sessionOpts []session.Option
	probeOpts   []stability.Option
}

type Option func(*options)

// WithTick overrides the one-second countdown tick.
func WithTick(d time.Duration) Option { return func(o *options) { o.tick = d } }

// WithSurface adds a display surface next to the configured ones.
func WithSurface(s session.Surface) Option {
	return func(o *options) { o.surfaces = append(o.surfaces, s) }
}

func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

func WithProbeOptions(opts ...stability.Option) Option {
	return func(o *options) { o.probeOpts = append(o.probeOpts, opts...) }
}
