package config

import (
	"reflect"
	"sort"
	"strings"

	logx "boothqr/pkg/logx"
)

// Sections applied at runtime by the daemon. Every other changed section
// needs a restart to take effect.
var hotSections = map[string]bool{
	"display":   true,
	"payload":   true,
	"logging":   true,
	"retention": true,
}

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like
// tokens), and (3) the changed sections that only apply after a restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Display != newCfg.Display {
		changed = append(changed, "display")
		attrs = append(attrs,
			logx.Int("display.seconds", newCfg.Display.Seconds),
			logx.Int("display.window.width", newCfg.Display.Window.Width),
			logx.Int("display.window.height", newCfg.Display.Window.Height),
		)
	}

	if oldCfg.Payload != newCfg.Payload {
		changed = append(changed, "payload")
		attrs = append(attrs,
			logx.String("payload.folder", TruncateID(newCfg.Payload.DriveFolderID)),
			logx.Bool("payload.template_set", strings.TrimSpace(newCfg.Payload.URLTemplate) != ""),
			logx.Int("payload.qr_size", newCfg.Payload.QRSize),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Storage.Retention != newCfg.Storage.Retention || oldCfg.Storage.PruneSchedule != newCfg.Storage.PruneSchedule {
		changed = append(changed, "retention")
		attrs = append(attrs,
			logx.String("storage.retention", newCfg.Storage.Retention),
			logx.String("storage.prune_schedule", newCfg.Storage.PruneSchedule),
		)
	}
	if oldCfg.Storage.Driver != newCfg.Storage.Driver || oldCfg.Storage.Path != newCfg.Storage.Path ||
		oldCfg.Storage.BusyTimeout != newCfg.Storage.BusyTimeout {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}

	// Telegram (never log token)
	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.enabled", newCfg.Telegram.Enabled),
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
		)
	}

	for name, pair := range map[string][2]any{
		"watch":     {oldCfg.Watch, newCfg.Watch},
		"stability": {oldCfg.Stability, newCfg.Stability},
		"camera":    {oldCfg.Camera, newCfg.Camera},
		"kiosk":     {oldCfg.Kiosk, newCfg.Kiosk},
		"runtime":   {oldCfg.Runtime, newCfg.Runtime},
	} {
		if !reflect.DeepEqual(pair[0], pair[1]) {
			changed = append(changed, name)
		}
	}

	sort.Strings(changed)
	var restart []string
	for _, s := range changed {
		if !hotSections[s] {
			restart = append(restart, s)
		}
	}
	return changed, attrs, restart
}

// TruncateID shortens a folder id for logs and banners.
func TruncateID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "(not set)"
	}
	if r := []rune(id); len(r) > 12 {
		return string(r[:12]) + "..."
	}
	return id
}
