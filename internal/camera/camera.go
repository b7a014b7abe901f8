// Package camera describes where photos come from. Capture itself happens
// outside boothqr: a webcam tool or a tethered DSLR writes files into the
// watched directory, and the pipeline only ever sees those files.
package camera

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindWebcam Kind = "webcam"
	KindDSLR   Kind = "dslr"
	KindFolder Kind = "folder"
)

// Source is a camera that produces photos for the booth.
type Source interface {
	Kind() Kind
}

// WebcamSource is a V4L2-style capture device.
type WebcamSource struct {
	DevicePath string
}

func (WebcamSource) Kind() Kind       { return KindWebcam }
func (w WebcamSource) Device() string { return w.DevicePath }

// DSLRSource is a tethered camera whose software saves into Dir.
type DSLRSource struct {
	Model string
	Dir   string
}

func (DSLRSource) Kind() Kind          { return KindDSLR }
func (d DSLRSource) OutputDir() string { return d.Dir }

// FolderSource is anything else that drops files into the watch dir.
type FolderSource struct{}

func (FolderSource) Kind() Kind { return KindFolder }

// Config selects a source from configuration.
type Config struct {
	Kind   string
	Device string
	Model  string
}

// FromConfig builds the Source named by cfg. watchDir is where a DSLR's
// tethering software is expected to save.
func FromConfig(cfg Config, watchDir string) (Source, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(cfg.Kind))) {
	case "", KindFolder:
		return FolderSource{}, nil
	case KindWebcam:
		dev := strings.TrimSpace(cfg.Device)
		if dev == "" {
			dev = "/dev/video0"
		}
		return WebcamSource{DevicePath: dev}, nil
	case KindDSLR:
		return DSLRSource{Model: strings.TrimSpace(cfg.Model), Dir: watchDir}, nil
	default:
		return nil, fmt.Errorf("unknown camera kind %q (want webcam, dslr or folder)", cfg.Kind)
	}
}

// Describe is a one-line summary for the startup banner.
func Describe(src Source) string {
	switch s := src.(type) {
	case WebcamSource:
		return "webcam " + s.Device()
	case DSLRSource:
		if s.Model != "" {
			return fmt.Sprintf("dslr %s saving to %s", s.Model, s.OutputDir())
		}
		return "dslr saving to " + s.OutputDir()
	case nil:
		return "none"
	default:
		return string(src.Kind())
	}
}
