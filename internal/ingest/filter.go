package ingest

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"boothqr/internal/pipeline"
)

var supported = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Supported reports whether path has a photo extension, case-insensitively.
// It does no I/O.
func Supported(path string) bool {
	return supported[strings.ToLower(filepath.Ext(path))]
}

// VerifyImage fully decodes path. Truncated or corrupt files fail with
// pipeline.ErrInvalidImage.
func VerifyImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, pipeline.ErrFileVanished)
		}
		return fmt.Errorf("%s: %w: %v", path, pipeline.ErrInvalidImage, err)
	}
	defer f.Close()

	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("%s: header: %w: %v", path, pipeline.ErrInvalidImage, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%s: %w: %v", path, pipeline.ErrInvalidImage, err)
	}
	if _, _, err := image.Decode(f); err != nil {
		return fmt.Errorf("%s: body: %w: %v", path, pipeline.ErrInvalidImage, err)
	}
	return nil
}
