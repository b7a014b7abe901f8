// Package sample produces synthetic booth photos and writes them the way a
// capture device does: in several chunks with pauses in between.
package sample

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"
)

type Options struct {
	Width   int
	Height  int
	Quality int
	// Grain adds per-pixel noise, which makes the JPEG realistically large.
	Grain bool
	Seed  uint64
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1200
	}
	if o.Height <= 0 {
		o.Height = 800
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 95
	}
	return o
}

// Render draws a blue-to-purple gradient with a few light discs.
func Render(opts Options) image.Image {
	opts = opts.withDefaults()
	w, h := opts.Width, opts.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	for y := 0; y < h; y++ {
		r := 65 + (147-65)*y/h
		g := 105 + (112-105)*y/h
		b := 225 + (219-225)*y/h
		for x := 0; x < w; x++ {
			c := color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 0xff}
			if opts.Grain {
				n := rng.IntN(41) - 20
				c.R, c.G, c.B = clamp(r+n), clamp(g+n), clamp(b+n)
			}
			img.SetRGBA(x, y, c)
		}
	}

	for i := 0; i < 12; i++ {
		cx, cy := rng.IntN(w), rng.IntN(h)
		rad := 30 + rng.IntN(90)
		disc(img, cx, cy, rad)
	}
	return img
}

func disc(img *image.RGBA, cx, cy, rad int) {
	b := img.Bounds()
	for y := cy - rad; y <= cy+rad; y++ {
		for x := cx - rad; x <= cx+rad; x++ {
			if !(image.Point{X: x, Y: y}.In(b)) {
				continue
			}
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy > rad*rad {
				continue
			}
			c := img.RGBAAt(x, y)
			// blend 16% white
			c.R = uint8((int(c.R)*84 + 255*16) / 100)
			c.G = uint8((int(c.G)*84 + 255*16) / 100)
			c.B = uint8((int(c.B)*84 + 255*16) / 100)
			img.SetRGBA(x, y, c)
		}
	}
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// JPEG renders and encodes a sample photo.
func JPEG(opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Render(opts), &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteChunked writes data to path in the given number of chunks, sleeping
// pause between them. The file is created empty first, as capture software
// does.
func WriteChunked(ctx context.Context, path string, data []byte, chunks int, pause time.Duration) error {
	if chunks <= 0 {
		chunks = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	size := (len(data) + chunks - 1) / chunks
	for i := 0; i < chunks; i++ {
		lo := i * size
		if lo >= len(data) {
			break
		}
		hi := min(lo+size, len(data))
		if _, err := f.Write(data[lo:hi]); err != nil {
			return fmt.Errorf("write chunk %d: %w", i+1, err)
		}
		if err := f.Sync(); err != nil {
			return err
		}
		if i < chunks-1 && pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}
	}
	return f.Close()
}

// Name returns a timestamped demo filename.
func Name(now time.Time) string {
	return fmt.Sprintf("demo_photo_%s.jpg", now.Format("150405.000"))
}
