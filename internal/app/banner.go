package app

import (
	"path/filepath"
	"strings"

	"boothqr/internal/camera"
	"boothqr/internal/config"
	"boothqr/internal/payload"
	logx "boothqr/pkg/logx"
)

// logBanner prints what the daemon is about to do, then anything that
// looks unconfigured.
func (a *App) logBanner(cfg *config.Config) {
	watchDir := a.watcher.Dir()
	if abs, err := filepath.Abs(watchDir); err == nil {
		watchDir = abs
	}
	fields := []logx.Field{
		logx.String("watch_dir", watchDir),
		logx.Int("display_seconds", cfg.Display.Seconds),
		logx.String("drive_folder", config.TruncateID(cfg.Payload.DriveFolderID)),
		logx.String("camera", camera.Describe(a.camera)),
		logx.String("storage", cfg.Storage.Driver),
		logx.String("run_id", a.runID),
	}
	if a.kiosk != nil {
		fields = append(fields, logx.String("kiosk", "http://"+a.kiosk.Addr()+"/"))
	}
	a.log.Info("photo booth QR display ready", fields...)

	for _, w := range startupWarnings(cfg) {
		a.log.Warn(w)
	}
}

func startupWarnings(cfg *config.Config) []string {
	var out []string
	folder := strings.TrimSpace(cfg.Payload.DriveFolderID)
	if folder == "" || folder == payload.PlaceholderFolder {
		out = append(out, "payload.drive_folder_id is not set; QR codes will point to a placeholder folder")
	}
	if filepath.Clean(cfg.Watch.Dir) == filepath.Clean(config.DefaultWatchDir) {
		out = append(out, "watch.dir is the default "+config.DefaultWatchDir+"; point it at your camera's output folder")
	}
	return out
}
