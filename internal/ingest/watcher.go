// Package ingest watches the capture directory and turns newly created
// photo files into dispatch queue entries once they are complete and valid.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"boothqr/internal/eventbus"
	"boothqr/internal/pipeline"
	"boothqr/internal/stability"
	logx "boothqr/pkg/logx"
)

var ErrWatcherClosed = errors.New("fsnotify watcher closed")

// Enqueuer receives stable, valid photo paths.
type Enqueuer interface {
	Push(path string)
}

// Spawner runs fn in its own goroutine. The app passes the runtime
// supervisor's Go method.
type Spawner func(name string, fn func(ctx context.Context) error)

type Deps struct {
	Coordinator *pipeline.Coordinator
	Prober      *stability.Prober
	Queue       Enqueuer
	Spawn       Spawner
	Bus         eventbus.Bus
	Log         logx.Logger
	// Verify defaults to VerifyImage.
	Verify func(path string) error
}

// Stats are best-effort counters.
type Stats struct {
	Events   uint64 `json:"events"`
	Probes   uint64 `json:"probes"`
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

// Watcher observes one directory, non-recursively.
type Watcher struct {
	dir string

	coord  *pipeline.Coordinator
	prober *stability.Prober
	queue  Enqueuer
	spawn  Spawner
	bus    eventbus.Bus
	log    logx.Logger
	verify func(string) error

	mu sync.Mutex
	fw *fsnotify.Watcher

	events   atomic.Uint64
	probes   atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
}

func NewWatcher(dir string, d Deps) *Watcher {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Verify == nil {
		d.Verify = VerifyImage
	}
	if d.Spawn == nil {
		d.Spawn = func(_ string, fn func(ctx context.Context) error) {
			go func() { _ = fn(context.Background()) }()
		}
	}
	return &Watcher{
		dir:    dir,
		coord:  d.Coordinator,
		prober: d.Prober,
		queue:  d.Queue,
		spawn:  d.Spawn,
		bus:    eventbus.Publisher(d.Bus),
		log:    d.Log,
		verify: d.Verify,
	}
}

func (w *Watcher) Dir() string { return w.dir }

func (w *Watcher) Stats() Stats {
	return Stats{
		Events:   w.events.Load(),
		Probes:   w.probes.Load(),
		Accepted: w.accepted.Load(),
		Rejected: w.rejected.Load(),
	}
}

// Open creates the directory if needed and starts watching it. Errors here
// are startup failures.
func (w *Watcher) Open() error {
	abs, err := filepath.Abs(w.dir)
	if err != nil {
		return fmt.Errorf("watch dir %q: %w", w.dir, err)
	}
	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		w.log.Info("creating watch folder", logx.String("dir", abs))
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("create watch dir %q: %w", abs, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	if err := fw.Add(abs); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %q: %w", abs, err)
	}

	w.mu.Lock()
	if w.fw != nil {
		_ = w.fw.Close()
	}
	w.dir = abs
	w.fw = fw
	w.mu.Unlock()
	return nil
}

// Run consumes filesystem events until ctx is done. It returns
// ErrWatcherClosed if fsnotify stops delivering, so a restart loop can
// reopen it.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	fw := w.fw
	w.mu.Unlock()
	if fw == nil {
		if err := w.Open(); err != nil {
			return err
		}
		w.mu.Lock()
		fw = w.fw
		w.mu.Unlock()
	}
	defer func() {
		w.mu.Lock()
		if w.fw == fw {
			w.fw = nil
		}
		w.mu.Unlock()
		_ = fw.Close()
	}()

	w.log.Info("watching", logx.String("dir", w.dir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return ErrWatcherClosed
			}
			w.handle(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			if err == nil {
				continue
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.log.Warn("watch overflow; some photos may be missed", logx.String("dir", w.dir))
				continue
			}
			w.log.Warn("watch error", logx.Err(err))
			if watcherClosed(err) {
				return ErrWatcherClosed
			}
		}
	}
}

func watcherClosed(err error) bool { return errors.Is(err, fsnotify.ErrClosed) }

func (w *Watcher) handle(ev fsnotify.Event) {
	w.events.Add(1)
	switch {
	case ev.Has(fsnotify.Create):
		w.Accept(ev.Name)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if !Supported(ev.Name) {
			return
		}
		if abs, err := filepath.Abs(ev.Name); err == nil && w.coord.Processed.Forget(abs) {
			w.log.Debug("photo removed; name may be reused", logx.String("path", abs))
		}
	}
}

// Accept applies the filter and dedup rules to a created path and, if it
// passes, starts a probe for it. It never blocks on file contents.
func (w *Watcher) Accept(path string) bool {
	if !Supported(path) {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if fi, err := os.Lstat(abs); err == nil && fi.IsDir() {
		return false
	}
	if !w.coord.Processed.Reserve(abs) {
		w.log.Debug("duplicate create event ignored", logx.String("path", abs))
		return false
	}

	w.probes.Add(1)
	w.log.Info("new photo detected", logx.String("file", filepath.Base(abs)))
	w.bus.Publish(eventbus.Event{Type: eventbus.PhotoDetected, Data: eventbus.PhotoData{Path: abs}})
	w.spawn("probe", func(ctx context.Context) error {
		settled := false
		defer func() {
			// a panicking probe or decoder must not pin the path forever
			if !settled {
				w.coord.Processed.Release(abs)
			}
		}()
		w.process(ctx, abs)
		settled = true
		return nil
	})
	return true
}

func (w *Watcher) process(ctx context.Context, path string) {
	out, err := w.prober.Probe(ctx, path)
	switch out {
	case stability.Stable:
	case stability.Abandoned:
		w.coord.Processed.Release(path)
		return
	default:
		w.reject(path, err)
		return
	}

	if err := w.verify(path); err != nil {
		w.reject(path, err)
		return
	}

	w.coord.Processed.MarkDispatched(path)
	w.queue.Push(path)
	w.accepted.Add(1)
	w.log.Info("photo ready", logx.String("file", filepath.Base(path)))
	w.bus.Publish(eventbus.Event{Type: eventbus.PhotoAccepted, Data: eventbus.PhotoData{Path: path}})
}

func (w *Watcher) reject(path string, err error) {
	w.coord.Processed.Release(path)
	w.rejected.Add(1)
	reason := pipeline.RejectReason(err)
	w.log.Warn("photo skipped", logx.String("file", filepath.Base(path)), logx.String("reason", reason), logx.Err(err))

	data := eventbus.PhotoData{Path: path, Reason: reason}
	if err != nil {
		data.Err = err.Error()
	}
	w.bus.Publish(eventbus.Event{Type: eventbus.PhotoRejected, Data: data})
}
