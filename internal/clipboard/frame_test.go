package clipboard

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameTextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, TextContent("hello clipboard")))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, KindText, got.Kind)
	assert.Equal(t, "hello clipboard", got.Text)
}

func TestFrameImageRoundTrip(t *testing.T) {
	img := Image{Width: 2, Height: 3, RGBA: bytes.Repeat([]byte{0xAB}, 2*3*4)}
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, ImageContent(img)))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, KindImage, got.Kind)
	assert.Equal(t, 2, got.Image.Width)
	assert.Equal(t, 3, got.Image.Height)
	assert.Equal(t, img.RGBA, got.Image.RGBA)
}

func TestFrameEmptyWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, EmptyContent()))
	assert.Zero(t, buf.Len())
}

func TestFrameRejectsUnknownType(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x7F, 0, 0, 0, 0}))
	assert.Error(t, err)
}

func TestFrameRejectsInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x01, 0, 0, 0, 1, 0xFF})
	_, err := ReadFrame(&buf)
	assert.Error(t, err)
}

func TestFrameTruncatedHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x01, 0}))
	assert.Error(t, err)
}
