// Package retention prunes history older than the configured window on a
// cron schedule.
package retention

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "boothqr/pkg/logx"
)

const (
	DefaultRetention = 30 * 24 * time.Hour
	DefaultSchedule  = "@hourly"
	pruneTimeout     = 30 * time.Second
)

type Config struct {
	// Retention is how long records are kept. Zero disables pruning.
	Retention time.Duration
	// Schedule is a cron spec ("@hourly", "0 3 * * *"), a Go duration
	// ("6h") or HH:MM ("02:30") meaning an interval.
	Schedule string
}

// Pruner deletes records older than before.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int, error)
}

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseSchedule normalizes a schedule string to a cron spec.
func ParseSchedule(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("schedule required")
	}

	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		if _, err := parser.Parse(s); err != nil {
			return "", fmt.Errorf("invalid cron schedule %q: %w", raw, err)
		}
		return s, nil
	}

	if m := reHHMM.FindStringSubmatch(s); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return "", fmt.Errorf("invalid minutes in %q", raw)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return "", fmt.Errorf("interval must be > 0")
		}
		return "@every " + d.String(), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return "", fmt.Errorf(
			"invalid schedule %q (use cron like '@hourly', HH:MM like '02:30', or duration like '6h')", raw)
	}
	if d <= 0 {
		return "", fmt.Errorf("interval must be > 0")
	}
	return "@every " + d.String(), nil
}

type Service struct {
	store Pruner
	log   logx.Logger
	now   func() time.Time

	mu  sync.Mutex
	cfg Config
	c   *cron.Cron
	ctx context.Context
}

func New(cfg Config, store Pruner, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store: store,
		log:   log.With(logx.String("comp", "retention")),
		now:   time.Now,
		cfg:   cfg,
	}
}

// RunOnce prunes immediately.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	keep := s.cfg.Retention
	s.mu.Unlock()
	if s.store == nil || keep <= 0 {
		return 0, nil
	}
	before := s.now().Add(-keep)
	start := time.Now()
	n, err := s.store.Prune(ctx, before)
	if err != nil {
		s.log.Warn("history prune failed", logx.Err(err))
		return n, err
	}
	if n > 0 {
		s.log.Info("history pruned", logx.Int("removed", n), logx.Time("before", before), logx.Duration("took", time.Since(start)))
	}
	return n, nil
}

// Start schedules pruning. It is a no-op when there is nothing to prune.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.ctx = ctx
	return s.startLocked()
}

func (s *Service) startLocked() error {
	if s.store == nil || s.cfg.Retention <= 0 {
		s.log.Debug("retention disabled")
		return nil
	}
	raw := s.cfg.Schedule
	if strings.TrimSpace(raw) == "" {
		raw = DefaultSchedule
	}
	spec, err := ParseSchedule(raw)
	if err != nil {
		return err
	}
	c := cron.New(cron.WithParser(parser))
	ctx := s.ctx
	if _, err := c.AddFunc(spec, func() {
		pctx, cancel := context.WithTimeout(ctx, pruneTimeout)
		defer cancel()
		_, _ = s.RunOnce(pctx)
	}); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("retention scheduled", logx.String("schedule", spec), logx.Duration("keep", s.cfg.Retention))
	return nil
}

// Apply swaps the config, rescheduling if the schedule changed.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	if s.ctx == nil {
		return nil
	}
	if old.Schedule == cfg.Schedule && (old.Retention > 0) == (cfg.Retention > 0) {
		return nil
	}
	if s.c != nil {
		s.c.Stop()
		s.c = nil
	}
	return s.startLocked()
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}
