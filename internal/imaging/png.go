// Package imaging converts between raw RGBA pixel buffers and encoded
// PNG blobs. The rest of the daemon treats it as an opaque codec.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
)

// EncodePNG encodes a raw RGBA buffer (4 bytes per pixel, row-major)
// into PNG bytes.
func EncodePNG(width, height int, rgba []byte) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("imaging: invalid dimensions %dx%d", width, height)
	}
	if len(rgba) != width*height*4 {
		return nil, fmt.Errorf("imaging: buffer size %d does not match %dx%d", len(rgba), width, height)
	}
	img := &image.NRGBA{
		Pix:    rgba,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePNG decodes PNG bytes into a raw RGBA buffer.
func DecodePNG(data []byte) (width, height int, rgba []byte, err error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, nil, fmt.Errorf("imaging: decode: %w", err)
	}
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
	return bounds.Dx(), bounds.Dy(), out.Pix, nil
}
