// Package payload turns a photo filename into the link shown to guests and
// renders that link as a QR code.
package payload

import (
	"fmt"
	"net/url"
	"strings"

	"boothqr/internal/pipeline"
)

const (
	// DefaultTemplate links to the shared folder the photos sync into.
	DefaultTemplate = "https://drive.google.com/drive/folders/{folder}"
	// PlaceholderFolder is the stock value shipped in sample configs.
	PlaceholderFolder = "YOUR_GOOGLE_DRIVE_FOLDER_ID_HERE"
)

type Config struct {
	FolderID string
	// Template may use {folder} and {filename}. Empty means DefaultTemplate.
	Template string
}

// Builder derives URLs. It has no state beyond its configuration, so Build is
// a pure function of (config, filename).
type Builder struct {
	folder   string
	template string
}

func NewBuilder(cfg Config) *Builder {
	tpl := strings.TrimSpace(cfg.Template)
	if tpl == "" {
		tpl = DefaultTemplate
	}
	return &Builder{folder: strings.TrimSpace(cfg.FolderID), template: tpl}
}

// Configured reports whether a real folder id is set.
func (b *Builder) Configured() bool {
	return b.folder != "" && b.folder != PlaceholderFolder
}

// Build returns the link for filename. With no folder configured it still
// returns a usable placeholder URL, along with ErrPayloadNotConfigured.
func (b *Builder) Build(filename string) (string, error) {
	folder := b.folder
	var err error
	if !b.Configured() {
		folder = PlaceholderFolder
		err = fmt.Errorf("%s: %w", filename, pipeline.ErrPayloadNotConfigured)
	}
	r := strings.NewReplacer(
		"{folder}", url.PathEscape(folder),
		"{filename}", url.PathEscape(filename),
	)
	return r.Replace(b.template), err
}

// ValidateTemplate checks that tpl expands to an absolute http(s) URL.
func ValidateTemplate(tpl string) error {
	tpl = strings.TrimSpace(tpl)
	if tpl == "" {
		return nil
	}
	u, err := url.Parse(strings.NewReplacer("{folder}", "x", "{filename}", "x").Replace(tpl))
	if err != nil {
		return fmt.Errorf("payload.url_template: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("payload.url_template: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("payload.url_template: missing host")
	}
	return nil
}
