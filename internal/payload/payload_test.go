package payload

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boothqr/internal/pipeline"
)

func TestBuildIsPure(t *testing.T) {
	b := NewBuilder(Config{FolderID: "1AbCdEf"})
	first, err := b.Build("photo_001.jpg")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := NewBuilder(Config{FolderID: "1AbCdEf"}).Build("photo_001.jpg")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "https://drive.google.com/drive/folders/1AbCdEf", first)
}

func TestBuildUnconfiguredReturnsPlaceholder(t *testing.T) {
	for _, folder := range []string{"", "  ", PlaceholderFolder} {
		b := NewBuilder(Config{FolderID: folder})
		assert.False(t, b.Configured())
		u, err := b.Build("a.jpg")
		assert.ErrorIs(t, err, pipeline.ErrPayloadNotConfigured)
		assert.Equal(t, "https://drive.google.com/drive/folders/"+PlaceholderFolder, u)
	}
}

func TestBuildTemplateEscapesFilename(t *testing.T) {
	b := NewBuilder(Config{FolderID: "booth", Template: "https://photos.example.com/{folder}/{filename}"})
	u, err := b.Build("party pic #1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://photos.example.com/booth/party%20pic%20%231.jpg", u)
}

func TestValidateTemplate(t *testing.T) {
	assert.NoError(t, ValidateTemplate(""))
	assert.NoError(t, ValidateTemplate("https://x.example/{folder}/{filename}"))
	assert.Error(t, ValidateTemplate("ftp://x.example/{folder}"))
	assert.Error(t, ValidateTemplate("/relative/{filename}"))
}

func TestRenderQRSizeAndColours(t *testing.T) {
	img, err := RenderQR("https://drive.google.com/drive/folders/abc", 320)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 320, img.Bounds().Dy())

	seen := map[color.RGBA]bool{}
	for y := 0; y < 320; y += 4 {
		for x := 0; x < 320; x += 4 {
			seen[color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)] = true
		}
	}
	assert.True(t, seen[Foreground], "foreground colour missing")
	assert.True(t, seen[color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}], "background colour missing")
}

func TestRendererDeterministicAndCached(t *testing.T) {
	r := NewRenderer(2)
	a, err := r.PNG("https://example.com/a", 200)
	require.NoError(t, err)
	b, err := NewRenderer(2).PNG("https://example.com/a", 200)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))

	_, _ = r.PNG("https://example.com/b", 200)
	_, _ = r.PNG("https://example.com/c", 200)
	assert.Equal(t, 2, r.Len())

	img, err := r.Image("https://example.com/c", 200)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
}
