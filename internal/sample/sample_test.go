package sample

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJPEGDecodes(t *testing.T) {
	b, err := JPEG(Options{Width: 320, Height: 200, Seed: 7})
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 200), img.Bounds())
}

func TestGrainMakesLargerFiles(t *testing.T) {
	plain, err := JPEG(Options{Width: 400, Height: 300, Seed: 1})
	require.NoError(t, err)
	grainy, err := JPEG(Options{Width: 400, Height: 300, Seed: 1, Grain: true})
	require.NoError(t, err)
	assert.Greater(t, len(grainy), len(plain))
}

func TestWriteChunked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "x.jpg")
	data := bytes.Repeat([]byte("abcdefgh"), 1000)

	start := time.Now()
	require.NoError(t, WriteChunked(context.Background(), path, data, 3, 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriteChunkedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WriteChunked(ctx, filepath.Join(t.TempDir(), "x.jpg"), []byte("0123456789"), 2, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestName(t *testing.T) {
	ts := time.Date(2025, 1, 2, 13, 4, 5, 0, time.UTC)
	assert.Equal(t, "demo_photo_130405.000.jpg", Name(ts))
}
