package app

import (
	"strings"
	"time"

	"boothqr/internal/config"
	"boothqr/internal/dispatch"
	"boothqr/internal/payload"
	"boothqr/internal/retention"
	"boothqr/internal/session"
	"boothqr/internal/stability"
	"boothqr/internal/storage"
	logx "boothqr/pkg/logx"
)

// The map* helpers translate the validated file config into each
// package's own Config type.

func mapStorageConfig(cfg *config.Config) (storage.Config, bool) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: cfg.Storage.BusyTimeoutDuration(),
	}, true
}

func mapRetention(cfg *config.Config) retention.Config {
	return retention.Config{
		Retention: cfg.Storage.RetentionDuration(),
		Schedule:  cfg.Storage.PruneSchedule,
	}
}

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStability(cfg *config.Config) stability.Options {
	interval, maxWait := cfg.Stability.Durations()
	return stability.Options{Interval: interval, Checks: cfg.Stability.Checks, MaxWait: maxWait}
}

func mapPayload(cfg *config.Config) *payload.Builder {
	return payload.NewBuilder(payload.Config{
		FolderID: cfg.Payload.DriveFolderID,
		Template: cfg.Payload.URLTemplate,
	})
}

func mapSession(cfg *config.Config, tick time.Duration) session.Config {
	return session.Config{
		Seconds:   cfg.Display.Seconds,
		Tick:      tick,
		PhotoSize: cfg.Display.PhotoSize,
		QRSize:    cfg.Payload.QRSize,
		Width:     cfg.Display.Window.Width,
		Height:    cfg.Display.Window.Height,
		Slots:     cfg.Display.Stagger.Slots,
		Step:      cfg.Display.Stagger.Step,
	}
}

// applyDisplay pushes hot-reloadable display and payload settings into the
// dispatcher; sessions already on screen keep their settings.
func applyDisplay(d *dispatch.Supervisor, cfg *config.Config, tick time.Duration) {
	d.SetSessionConfig(mapSession(cfg, tick))
	d.SetBuilder(mapPayload(cfg))
}
