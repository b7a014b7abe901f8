package payload

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	qrcode "github.com/skip2/go-qrcode"
)

const DefaultQRSize = 320

var (
	// Foreground is the module colour (#1a1a2e) on a white background.
	Foreground = color.RGBA{R: 0x1a, G: 0x1a, B: 0x2e, A: 0xff}
	Background = color.White
)

// RenderQR encodes url at the highest error-correction level as a
// size x size image.
func RenderQR(url string, size int) (image.Image, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	q, err := qrcode.New(url, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	q.ForegroundColor = Foreground
	q.BackgroundColor = Background
	return q.Image(size), nil
}

type cacheKey struct {
	url  string
	size int
}

// Renderer caches PNG-encoded QR codes per (url, size). With a folder-level
// link every photo shares one URL, so the cache usually holds one entry.
type Renderer struct {
	mu    sync.Mutex
	cache map[cacheKey][]byte
	max   int
}

func NewRenderer(max int) *Renderer {
	if max <= 0 {
		max = 64
	}
	return &Renderer{cache: map[cacheKey][]byte{}, max: max}
}

// PNG returns the encoded QR for url. The returned slice must not be modified.
func (r *Renderer) PNG(url string, size int) ([]byte, error) {
	k := cacheKey{url: url, size: size}
	r.mu.Lock()
	b, ok := r.cache[k]
	r.mu.Unlock()
	if ok {
		return b, nil
	}

	img, err := RenderQR(url, size)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("qr png: %w", err)
	}
	b = buf.Bytes()

	r.mu.Lock()
	if len(r.cache) >= r.max {
		for old := range r.cache {
			delete(r.cache, old)
			break
		}
	}
	r.cache[k] = b
	r.mu.Unlock()
	return b, nil
}

// Image decodes the cached PNG for url.
func (r *Renderer) Image(url string, size int) (image.Image, error) {
	b, err := r.PNG(url, size)
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(b))
}

func (r *Renderer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}
