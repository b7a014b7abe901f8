// Package stability decides when a file written by an external process is
// complete: its size has stopped changing for several polls and it can be
// opened and read without contention.
package stability

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"boothqr/internal/pipeline"
	logx "boothqr/pkg/logx"
)

// Outcome is the result of one probe run.
type Outcome int

const (
	Stable Outcome = iota + 1
	Gone
	Timeout
	// Abandoned means the probe's context was cancelled (shutdown).
	Abandoned
)

func (o Outcome) String() string {
	switch o {
	case Stable:
		return "stable"
	case Gone:
		return "gone"
	case Timeout:
		return "timeout"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

const (
	DefaultInterval  = 300 * time.Millisecond
	DefaultChecks    = 3
	DefaultMaxWait   = 10 * time.Second
	DefaultReadBytes = 1024
)

type Options struct {
	Interval  time.Duration
	Checks    int
	MaxWait   time.Duration
	ReadBytes int
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Checks <= 0 {
		o.Checks = DefaultChecks
	}
	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWait
	}
	if o.ReadBytes <= 0 {
		o.ReadBytes = DefaultReadBytes
	}
	return o
}

// Prober runs stability probes. It is safe for concurrent use; each Probe
// call keeps its own record.
type Prober struct {
	opts Options
	fs   FS
	log  logx.Logger
}

type Option func(*Prober)

// WithFS swaps the filesystem used for size polls and read checks.
func WithFS(f FS) Option { return func(p *Prober) { p.fs = f } }

func New(opts Options, log logx.Logger, extra ...Option) *Prober {
	p := &Prober{opts: opts.withDefaults(), fs: OS{}, log: log}
	for _, o := range extra {
		o(p)
	}
	if p.log.IsZero() {
		p.log = logx.Nop()
	}
	return p
}

func (p *Prober) Options() Options { return p.opts }

// record is the per-run state. It never outlives a Probe call.
type record struct {
	lastSize int64
	stable   int
	started  time.Time
}

// Probe polls path until it is stable, disappears, or MaxWait elapses.
//
// Errors wrap pipeline.ErrFileVanished for Gone and
// pipeline.ErrStabilityTimeout for Timeout. A cancelled ctx returns
// Abandoned with ctx.Err().
func (p *Prober) Probe(ctx context.Context, path string) (Outcome, error) {
	rec := record{lastSize: -1, started: time.Now()}

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		if elapsed := time.Since(rec.started); elapsed >= p.opts.MaxWait {
			return Timeout, fmt.Errorf("%s after %s: %w", path, elapsed.Round(time.Millisecond), pipeline.ErrStabilityTimeout)
		}

		size, err := p.fs.Size(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return Gone, fmt.Errorf("%s: %w", path, pipeline.ErrFileVanished)
		case err != nil:
			p.log.Debug("stat failed; retrying", logx.String("path", path), logx.Err(fmt.Errorf("%w: %v", pipeline.ErrTransientIO, err)))
			rec.stable = 0
		case size == 0:
			// still being created; keeps lastSize and the counter
		case size == rec.lastSize:
			rec.stable++
			if rec.stable >= p.opts.Checks {
				rerr := p.fs.ReadCheck(path, p.opts.ReadBytes)
				if rerr == nil {
					p.log.Debug("file stable",
						logx.String("path", path),
						logx.Int64("size", size),
						logx.Duration("took", time.Since(rec.started)),
					)
					return Stable, nil
				}
				if errors.Is(rerr, fs.ErrNotExist) {
					return Gone, fmt.Errorf("%s: %w", path, pipeline.ErrFileVanished)
				}
				p.log.Debug("read check failed; still locked", logx.String("path", path), logx.Err(rerr))
				rec.stable = 0
			}
		default:
			rec.stable = 0
		}
		if err == nil && size > 0 {
			rec.lastSize = size
		}

		select {
		case <-ctx.Done():
			return Abandoned, ctx.Err()
		case <-ticker.C:
		}
	}
}
