package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBytesDeterministic(t *testing.T) {
	h1 := HashBytes([]byte("hello"))
	h2 := HashBytes([]byte("hello"))
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // hex-encoded SHA-256
}

func TestHashBytesDifferentInput(t *testing.T) {
	assert.NotEqual(t, HashBytes([]byte("hello")), HashBytes([]byte("world")))
}

func TestNewText(t *testing.T) {
	e := NewText("test", "Firefox", "Mozilla Firefox")
	assert.Equal(t, TypeText, e.ContentType)
	assert.Equal(t, "test", e.TextContent)
	assert.True(t, e.IsText())
	assert.False(t, e.IsImage())
	require.NotNil(t, e.SourceApp)
	assert.Equal(t, "Firefox", *e.SourceApp)
	require.NotNil(t, e.SourceTitle)
	assert.Equal(t, "Mozilla Firefox", *e.SourceTitle)
	assert.Equal(t, HashBytes([]byte("test")), e.ContentHash)
}

func TestNewTextNoSource(t *testing.T) {
	e := NewText("test", "", "")
	assert.Nil(t, e.SourceApp)
	assert.Nil(t, e.SourceTitle)
}

func TestNewImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	e := NewImage(png, "GIMP", "")
	assert.Equal(t, TypeImage, e.ContentType)
	assert.True(t, e.IsImage())
	assert.Equal(t, png, e.BlobContent)
	assert.Equal(t, HashBytes(png), e.ContentHash)
	assert.Equal(t, len(png), e.Size())
}

func TestSetTextRecomputesHash(t *testing.T) {
	e := NewText("hello", "", "")
	before := e.ContentHash
	e.SetText("HELLO")
	assert.Equal(t, "HELLO", e.TextContent)
	assert.NotEqual(t, before, e.ContentHash)
	assert.Equal(t, HashBytes([]byte("HELLO")), e.ContentHash)
}

func TestSize(t *testing.T) {
	assert.Equal(t, 5, NewText("hello", "", "").Size())
}
