package session

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"boothqr/internal/pipeline"
)

const (
	DefaultPhotoSize = 420
)

var (
	placeholderPhoto = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	placeholderQR    = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
)

// LoadThumbnail decodes path and fits it inside max x max.
func LoadThumbnail(path string, max int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w: %v", pipeline.ErrDisplayResource, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w: %v", pipeline.ErrDisplayResource, err)
	}
	return Fit(src, max), nil
}

// Fit scales src down to fit inside max x max, keeping its aspect ratio.
// Images that already fit are returned unchanged.
func Fit(src image.Image, max int) image.Image {
	if max <= 0 {
		max = DefaultPhotoSize
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return src
	}
	nw, nh := max, max
	if w >= h {
		nh = h * max / w
	} else {
		nw = w * max / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

// PlaceholderPhoto is the neutral stand-in used when the photo cannot load.
func PlaceholderPhoto(size int) image.Image {
	return solid(size, placeholderPhoto)
}

// PlaceholderQR stands in for a QR code that failed to render.
func PlaceholderQR(size int) image.Image {
	return solid(size, placeholderQR)
}

func solid(size int, c color.Color) image.Image {
	if size <= 0 {
		size = DefaultPhotoSize
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}
