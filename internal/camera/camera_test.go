package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromConfig(t *testing.T) {
	src, err := FromConfig(Config{}, "/w")
	require.NoError(t, err)
	assert.Equal(t, KindFolder, src.Kind())

	src, err = FromConfig(Config{Kind: "Webcam"}, "/w")
	require.NoError(t, err)
	require.IsType(t, WebcamSource{}, src)
	assert.Equal(t, "/dev/video0", src.(WebcamSource).Device())

	src, err = FromConfig(Config{Kind: "dslr", Model: "EOS R6"}, "/w/photos")
	require.NoError(t, err)
	assert.Equal(t, KindDSLR, src.Kind())
	assert.Equal(t, "/w/photos", src.(DSLRSource).OutputDir())

	_, err = FromConfig(Config{Kind: "polaroid"}, "/w")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "webcam /dev/video2", Describe(WebcamSource{DevicePath: "/dev/video2"}))
	assert.Equal(t, "dslr EOS R6 saving to /w", Describe(DSLRSource{Model: "EOS R6", Dir: "/w"}))
	assert.Equal(t, "dslr saving to /w", Describe(DSLRSource{Dir: "/w"}))
	assert.Equal(t, "folder", Describe(FolderSource{}))
	assert.Equal(t, "none", Describe(nil))
}
