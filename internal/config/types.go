package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("300ms", "10s", "720h"); Load decodes the file over Defaults(), so any
// key may be omitted.
type Config struct {
	Watch     WatchConfig     `json:"watch"`
	Stability StabilityConfig `json:"stability"`
	Payload   PayloadConfig   `json:"payload"`
	Display   DisplayConfig   `json:"display"`
	Camera    CameraConfig    `json:"camera"`
	Kiosk     KioskConfig     `json:"kiosk"`
	Telegram  TelegramConfig  `json:"telegram"`
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging"`
	Runtime   RuntimeConfig   `json:"runtime"`
}

type WatchConfig struct {
	Dir string `json:"dir"`
}

type StabilityConfig struct {
	Interval string `json:"interval"`
	Checks   int    `json:"checks"`
	MaxWait  string `json:"max_wait"`
}

type PayloadConfig struct {
	DriveFolderID string `json:"drive_folder_id"`
	// URLTemplate may use {folder} and {filename}. Empty means the Drive
	// folder link.
	URLTemplate string `json:"url_template"`
	QRSize      int    `json:"qr_size"`
}

type DisplayConfig struct {
	Seconds   int           `json:"seconds"`
	Window    WindowConfig  `json:"window"`
	PhotoSize int           `json:"photo_size"`
	Stagger   StaggerConfig `json:"stagger"`
}

type WindowConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type StaggerConfig struct {
	Slots int `json:"slots"`
	Step  int `json:"step"`
}

// CameraConfig only describes the capture device for the startup banner.
type CameraConfig struct {
	Kind   string `json:"kind"` // webcam | dslr | folder
	Device string `json:"device,omitempty"`
	Model  string `json:"model,omitempty"`
}

type KioskConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`

	// DebugToken enables /debug/pprof/ on the kiosk server.
	DebugToken string `json:"debug_token,omitempty"`
}

type TelegramConfig struct {
	Enabled    bool    `json:"enabled"`
	Token      string  `json:"token"`
	ChatID     int64   `json:"chat_id"`
	ThreadID   int     `json:"thread_id,omitempty"`
	RatePerSec float64 `json:"rate_per_sec"`
}

// StorageConfig controls the history store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/history.db" }
type StorageConfig struct {
	Driver        string `json:"driver"` // file | sqlite | bolt | none
	Path          string `json:"path"`
	BusyTimeout   string `json:"busy_timeout,omitempty"` // sqlite
	Retention     string `json:"retention"`
	PruneSchedule string `json:"prune_schedule"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type RuntimeConfig struct {
	// StateDir holds the instance lock.
	StateDir      string `json:"state_dir"`
	SystemdNotify bool   `json:"systemd_notify"`
}

const (
	DefaultWatchDir  = "./photos"
	DefaultStateDir  = "./data"
	DefaultKioskAddr = "127.0.0.1:8787"
	DefaultFileName  = "boothqr.json"
)

// Defaults returns a fresh config with every default filled in.
func Defaults() *Config {
	return &Config{
		Watch:     WatchConfig{Dir: DefaultWatchDir},
		Stability: StabilityConfig{Interval: "300ms", Checks: 3, MaxWait: "10s"},
		Payload:   PayloadConfig{QRSize: 320},
		Display: DisplayConfig{
			Seconds:   30,
			Window:    WindowConfig{Width: 950, Height: 550},
			PhotoSize: 420,
			Stagger:   StaggerConfig{Slots: 5, Step: 30},
		},
		Camera:   CameraConfig{Kind: "folder"},
		Kiosk:    KioskConfig{Enabled: true, Addr: DefaultKioskAddr},
		Telegram: TelegramConfig{RatePerSec: 1},
		Storage: StorageConfig{
			Driver:        "file",
			Path:          "./data/history.jsonl",
			Retention:     "720h",
			PruneSchedule: "@hourly",
		},
		Logging: LoggingConfig{
			Level:   "INFO",
			Console: true,
			File:    LoggingFile{Path: "./boothqr.log"},
		},
		Runtime: RuntimeConfig{StateDir: DefaultStateDir, SystemdNotify: true},
	}
}
