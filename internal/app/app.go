// Package app wires the photo pipeline, display surfaces, history and
// operational plumbing into one daemon with a Start/Stop lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"boothqr/internal/camera"
	"boothqr/internal/config"
	"boothqr/internal/dispatch"
	"boothqr/internal/eventbus"
	"boothqr/internal/ingest"
	"boothqr/internal/payload"
	"boothqr/internal/pipeline"
	"boothqr/internal/retention"
	"boothqr/internal/runtime/supervisor"
	"boothqr/internal/session"
	"boothqr/internal/stability"
	"boothqr/internal/storage"
	"boothqr/internal/surface/console"
	"boothqr/internal/surface/kiosk"
	"boothqr/internal/surface/telegram"
	logx "boothqr/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.ConfigManager
	opts    options
	runID   string

	log  logx.Logger
	logs *logx.Service

	// sup runs the long-lived loops and fails the app on error; work runs
	// per-photo probes and sessions, whose failures stay local.
	sup  *supervisor.Supervisor
	work *supervisor.Supervisor

	bus      eventbus.Bus
	coord    *pipeline.Coordinator
	queue    *dispatch.Queue
	dispatch *dispatch.Supervisor
	watcher  *ingest.Watcher
	camera   camera.Source

	kiosk  *kiosk.Server
	mirror *telegram.Mirror

	store       storage.Store
	ret         *retention.Service
	stopHistory func()
	historyDone chan struct{}

	lock *instanceLock
	sd   *systemdNotifier
}

// NewApp loads (or creates) the config at cfgPath and builds every
// component. Nothing runs until Start.
func NewApp(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.tick <= 0 {
		o.tick = session.DefaultTick
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, created, err := cfgm.LoadOrInit()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(mapLogging(cfg))
	a := &App{
		cfgPath: cfgm.Path(),
		cfgm:    cfgm,
		opts:    o,
		runID:   uuid.NewString(),
		log:     log.With(logx.String("comp", "app")),
		logs:    logs,
		bus:     eventbus.New(),
		coord:   pipeline.NewCoordinator(),
		queue:   dispatch.NewQueue(),
		lock:    newInstanceLock(cfg.Runtime.StateDir),
	}
	if created {
		a.log.Info("default config written", logx.String("path", a.cfgPath))
	}
	a.sd = newSystemdNotifier(cfg.Runtime.SystemdNotify, log.With(logx.String("comp", "systemd")))

	fail := func(err error) (*App, error) {
		a.closeStore()
		_ = logs.Close()
		return nil, err
	}

	if a.camera, err = camera.FromConfig(config.CameraSource(cfg.Camera), cfg.Watch.Dir); err != nil {
		return fail(err)
	}

	if sc, ok := mapStorageConfig(cfg); ok {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return fail(fmt.Errorf("open history: %w", err))
		}
		a.store = st
	}
	a.ret = retention.New(mapRetention(cfg), a.store, log)

	surfaces := session.Multi{console.New(log)}
	if cfg.Kiosk.Enabled {
		a.kiosk = kiosk.New(kiosk.Config{Addr: cfg.Kiosk.Addr, DebugToken: cfg.Kiosk.DebugToken}, log)
		surfaces = append(surfaces, a.kiosk)
	}
	if cfg.Telegram.Enabled {
		m, err := telegram.New(telegram.Config{
			Token:      cfg.Telegram.Token,
			ChatID:     cfg.Telegram.ChatID,
			ThreadID:   cfg.Telegram.ThreadID,
			RatePerSec: cfg.Telegram.RatePerSec,
		}, log)
		if err != nil {
			return fail(fmt.Errorf("telegram mirror: %w", err))
		}
		a.mirror = m
		surfaces = append(surfaces, m)
	}
	surfaces = append(surfaces, o.surfaces...)

	a.dispatch = dispatch.NewSupervisor(mapPayload(cfg), mapSession(cfg, o.tick), dispatch.Deps{
		Coordinator: a.coord,
		Queue:       a.queue,
		Surface:     surfaces,
		Spawn:       a.spawn,
		Bus:         a.bus,
		Log:         log.With(logx.String("comp", "dispatch")),
		QR:          payload.NewRenderer(64),
	}, o.sessionOpts...)
	if a.kiosk != nil {
		a.kiosk.SetDismisser(a.dispatch)
	}

	a.watcher = ingest.NewWatcher(cfg.Watch.Dir, ingest.Deps{
		Coordinator: a.coord,
		Prober:      stability.New(mapStability(cfg), log.With(logx.String("comp", "stability")), o.probeOpts...),
		Queue:       a.queue,
		Spawn:       a.spawn,
		Bus:         a.bus,
		Log:         log.With(logx.String("comp", "ingest")),
	})
	return a, nil
}

// spawn runs per-photo work (probes, sessions). A panic there is logged
// and counted but never cancels the watcher or the dispatch loop.
func (a *App) spawn(name string, fn func(ctx context.Context) error) {
	a.work.Go(name, fn)
}

// Dispatcher exposes the session supervisor (active sessions, dismiss).
func (a *App) Dispatcher() *dispatch.Supervisor { return a.dispatch }

func (a *App) Bus() eventbus.Bus { return a.bus }

func (a *App) WatchDir() string { return a.watcher.Dir() }

func (a *App) Logger() logx.Logger { return a.log }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if err := a.lock.Acquire(); err != nil {
		return err
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.work = supervisor.New(a.sup.Context(),
		supervisor.WithLogger(a.log.With(logx.String("comp", "work"))),
		supervisor.WithCancelOnError(false),
	)

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	if err := a.watcher.Open(); err != nil {
		a.sup.Cancel()
		_ = a.lock.Release()
		return err
	}

	if a.kiosk != nil {
		if err := a.kiosk.Start(); err != nil {
			a.sup.Cancel()
			_ = a.lock.Release()
			return fmt.Errorf("kiosk: %w", err)
		}
	}
	if a.mirror != nil {
		// Stopped explicitly in Stop, after sessions have closed.
		if err := a.mirror.Start(context.WithoutCancel(ctx)); err != nil {
			a.log.Warn("telegram mirror disabled", logx.Err(err))
		}
	}

	if a.store != nil {
		// The recorder outlives the supervisor so shutdown closes are kept.
		events, unsub := a.bus.Subscribe(256)
		a.stopHistory = unsub
		a.historyDone = make(chan struct{})
		go func() {
			defer close(a.historyDone)
			record(context.Background(), events, a.store, a.log.With(logx.String("comp", "history")))
		}()
		if err := a.ret.Start(a.sup.Context()); err != nil {
			a.log.Warn("history retention disabled", logx.Err(err))
		}
	}

	a.sup.GoRestart("ingest.watcher", a.watcher.Run,
		supervisor.WithRestartBackoff(250*time.Millisecond, 5*time.Second))
	a.sup.Go("dispatch.loop", a.dispatch.Run)

	a.startConfigReload()
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("systemd.watchdog", a.sd.watchdog)

	a.logBanner(a.cfgm.Get())
	a.sd.Ready()
	return nil
}

func (a *App) startConfigReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		// Track last applied config to generate a safe diff summary for logging.
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogging(newCfg))
	applyDisplay(a.dispatch, newCfg, a.opts.tick)
	if err := a.ret.Apply(mapRetention(newCfg)); err != nil {
		a.log.Warn("retention schedule not applied", logx.Err(err))
	}

	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
	if len(restart) > 0 {
		a.log.Warn("restart required for some changes", logx.String("sections", strings.Join(restart, ",")))
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	// Cancel first: the watcher, probes and the dispatch loop unwind and
	// every open session closes with reason "shutdown".
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		// respect the caller's deadline; never extend it
		if dl, ok := ctx.Deadline(); !ok || time.Until(dl) > max {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	// Sessions close their surfaces before the surfaces go away.
	step("sessions", 4*time.Second, func(c context.Context) error {
		err := a.work.Wait(c)
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})
	if a.kiosk != nil {
		step("kiosk", 2*time.Second, a.kiosk.Stop)
	}
	if a.mirror != nil {
		step("telegram", 2*time.Second, a.mirror.Stop)
	}
	step("retention", time.Second, func(c context.Context) error { a.ret.Stop(c); return nil })
	if a.stopHistory != nil {
		step("history", 2*time.Second, func(c context.Context) error {
			a.stopHistory()
			select {
			case <-a.historyDone:
				return nil
			case <-c.Done():
				return c.Err()
			}
		})
	}
	step("storage", time.Second, func(context.Context) error { a.closeStore(); return nil })
	step("lock", time.Second, func(context.Context) error { return a.lock.Release() })

	st := a.watcher.Stats()
	a.log.Info("stopped",
		logx.Uint64("fs_events", st.Events),
		logx.Uint64("photos_probed", st.Probes),
		logx.Uint64("photos_accepted", st.Accepted),
		logx.Uint64("photos_rejected", st.Rejected),
		logx.Int64("sessions", a.coord.Sessions()),
	)
	return a.logs.Close()
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("history close failed", logx.Err(err))
	}
	a.store = nil
}
