package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"boothqr/internal/camera"
	"boothqr/internal/payload"
	"boothqr/internal/retention"
	logx "boothqr/pkg/logx"
)

// Validate reports every invalid key at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(cfg.Watch.Dir) == "" {
		add("watch.dir is required")
	}

	if d, err := ParseDurationField("stability.interval", cfg.Stability.Interval); err != nil {
		errs = append(errs, err)
	} else if d == 0 && strings.TrimSpace(cfg.Stability.Interval) != "" {
		add("stability.interval must be > 0")
	}
	if cfg.Stability.Checks < 1 {
		add("stability.checks must be >= 1")
	}
	if _, err := ParseDurationField("stability.max_wait", cfg.Stability.MaxWait); err != nil {
		errs = append(errs, err)
	}

	if err := payload.ValidateTemplate(cfg.Payload.URLTemplate); err != nil {
		add("payload.url_template: %w", err)
	}
	if cfg.Payload.QRSize < 64 || cfg.Payload.QRSize > 2048 {
		add("payload.qr_size must be between 64 and 2048")
	}

	if cfg.Display.Seconds < 1 {
		add("display.seconds must be >= 1")
	}
	if cfg.Display.Window.Width < 1 || cfg.Display.Window.Height < 1 {
		add("display.window width and height must be > 0")
	}
	if cfg.Display.PhotoSize < 1 {
		add("display.photo_size must be > 0")
	}
	if cfg.Display.Stagger.Slots < 1 {
		add("display.stagger.slots must be >= 1")
	}
	if cfg.Display.Stagger.Step < 0 {
		add("display.stagger.step must be >= 0")
	}

	if _, err := camera.FromConfig(CameraSource(cfg.Camera), cfg.Watch.Dir); err != nil {
		add("camera.kind: %w", err)
	}

	if cfg.Kiosk.Enabled && strings.TrimSpace(cfg.Kiosk.Addr) == "" {
		add("kiosk.addr is required when kiosk is enabled")
	}

	if cfg.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			add("telegram.token is required when telegram is enabled")
		}
		if cfg.Telegram.ChatID == 0 {
			add("telegram.chat_id is required when telegram is enabled")
		}
	}
	if cfg.Telegram.RatePerSec < 0 {
		add("telegram.rate_per_sec must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "none":
	case "file", "sqlite", "sqlite3", "bolt", "bbolt":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add("storage.path is required for driver %q", cfg.Storage.Driver)
		}
	default:
		add("storage.driver %q is unknown (want file, sqlite, bolt or none)", cfg.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("storage.retention", cfg.Storage.Retention); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(cfg.Storage.PruneSchedule) != "" {
		if _, err := retention.ParseSchedule(cfg.Storage.PruneSchedule); err != nil {
			add("storage.prune_schedule: %w", err)
		}
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		add("logging.level %q is unknown", cfg.Logging.Level)
	}

	return errors.Join(errs...)
}

// CameraSource maps the camera section to camera.Config.
func CameraSource(c CameraConfig) camera.Config {
	return camera.Config{Kind: c.Kind, Device: c.Device, Model: c.Model}
}

// Durations returns the parsed interval and max wait. Call it on a
// validated config; bad values fall back to the defaults.
func (c StabilityConfig) Durations() (interval, maxWait time.Duration) {
	interval, _ = ParseDurationOrDefault("stability.interval", c.Interval, 300*time.Millisecond)
	maxWait, _ = ParseDurationOrDefault("stability.max_wait", c.MaxWait, 10*time.Second)
	return interval, maxWait
}

// RetentionDuration is how long history is kept; zero disables pruning.
func (c StorageConfig) RetentionDuration() time.Duration {
	d, _ := ParseDurationField("storage.retention", c.Retention)
	return d
}

func (c StorageConfig) BusyTimeoutDuration() time.Duration {
	d, _ := ParseDurationField("storage.busy_timeout", c.BusyTimeout)
	return d
}
