package clipboard

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// Stdin protocol for the detached clipboard-holder process:
//
//	[1 byte]  type: 0x01 = text, 0x02 = image
//	[4 bytes] payload length, u32 big-endian
//	for text:  [len bytes] UTF-8 string
//	for image: [4 bytes] width u32 BE, [4 bytes] height u32 BE,
//	           [len bytes] raw RGBA
const (
	frameText  byte = 0x01
	frameImage byte = 0x02

	// maxFramePayload rejects absurd lengths before allocating.
	maxFramePayload = 256 * 1024 * 1024
)

// WriteFrame serializes content onto w. Empty content writes nothing.
func WriteFrame(w io.Writer, c Content) error {
	switch c.Kind {
	case KindText:
		payload := []byte(c.Text)
		if err := writeHeader(w, frameText, uint32(len(payload))); err != nil {
			return err
		}
		_, err := w.Write(payload)
		return err
	case KindImage:
		if err := writeHeader(w, frameImage, uint32(len(c.Image.RGBA))); err != nil {
			return err
		}
		var dims [8]byte
		binary.BigEndian.PutUint32(dims[0:4], uint32(c.Image.Width))
		binary.BigEndian.PutUint32(dims[4:8], uint32(c.Image.Height))
		if _, err := w.Write(dims[:]); err != nil {
			return err
		}
		_, err := w.Write(c.Image.RGBA)
		return err
	case KindEmpty:
		return nil
	}
	return fmt.Errorf("unknown content kind %d", c.Kind)
}

// ReadFrame parses one serialized content message from r.
func ReadFrame(r io.Reader) (Content, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return EmptyContent(), fmt.Errorf("frame header: %w", err)
	}
	payloadLen := binary.BigEndian.Uint32(header[1:5])
	if payloadLen > maxFramePayload {
		return EmptyContent(), fmt.Errorf("frame payload %d exceeds limit", payloadLen)
	}

	switch header[0] {
	case frameText:
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return EmptyContent(), fmt.Errorf("frame payload: %w", err)
		}
		if !utf8.Valid(payload) {
			return EmptyContent(), fmt.Errorf("text frame is not valid UTF-8")
		}
		return TextContent(string(payload)), nil
	case frameImage:
		var dims [8]byte
		if _, err := io.ReadFull(r, dims[:]); err != nil {
			return EmptyContent(), fmt.Errorf("frame dimensions: %w", err)
		}
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return EmptyContent(), fmt.Errorf("frame payload: %w", err)
		}
		return ImageContent(Image{
			Width:  int(binary.BigEndian.Uint32(dims[0:4])),
			Height: int(binary.BigEndian.Uint32(dims[4:8])),
			RGBA:   payload,
		}), nil
	}
	return EmptyContent(), fmt.Errorf("unknown frame type 0x%02x", header[0])
}

func writeHeader(w io.Writer, kind byte, payloadLen uint32) error {
	var header [5]byte
	header[0] = kind
	binary.BigEndian.PutUint32(header[1:5], payloadLen)
	_, err := w.Write(header[:])
	return err
}
