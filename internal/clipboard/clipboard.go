// Package clipboard abstracts the OS selection buffers behind a
// capability interface: the standard copy/paste buffer and, on systems
// that have one, the mouse-selection primary buffer.
package clipboard

import "errors"

// Selection identifies one OS selection buffer.
type Selection int

const (
	// SelectionClipboard is the standard copy/paste buffer.
	SelectionClipboard Selection = iota
	// SelectionPrimary is the mouse-selection buffer.
	SelectionPrimary
)

func (s Selection) String() string {
	switch s {
	case SelectionClipboard:
		return "clipboard"
	case SelectionPrimary:
		return "primary"
	}
	return "unknown"
}

// Kind discriminates the Content variant.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindImage
)

// Image is a raw RGBA pixel buffer, 4 bytes per pixel, row-major.
type Image struct {
	Width  int
	Height int
	RGBA   []byte
}

// Content is what a selection buffer currently holds.
type Content struct {
	Kind  Kind
	Text  string
	Image Image
}

func TextContent(s string) Content  { return Content{Kind: KindText, Text: s} }
func ImageContent(i Image) Content  { return Content{Kind: KindImage, Image: i} }
func EmptyContent() Content         { return Content{Kind: KindEmpty} }
func (c Content) IsEmpty() bool     { return c.Kind == KindEmpty }

// ErrUnavailable is returned when a selection buffer cannot be
// accessed. Always recoverable: callers skip the buffer for that tick.
var ErrUnavailable = errors.New("selection buffer unavailable")

// Provider reads and writes selection buffers.
type Provider interface {
	// Read returns the buffer's current content; Empty when it holds
	// nothing usable.
	Read(sel Selection) (Content, error)
	// WriteText writes text synchronously.
	WriteText(sel Selection, text string) error
	// WriteTextAsync writes text from a background task that may hold
	// buffer ownership; the returned handle joins that task.
	WriteTextAsync(sel Selection, text string) (*WriteHandle, error)
	// WriteImage writes a raw RGBA image (copy/paste buffer only).
	WriteImage(sel Selection, img Image) error
	// Clear empties the buffer.
	Clear(sel Selection) error
}

// WriteHandle tracks one outstanding background write. Callers keep at
// most one per buffer and join the previous one before the next write.
type WriteHandle struct {
	done chan struct{}
}

func newWriteHandle() *WriteHandle {
	return &WriteHandle{done: make(chan struct{})}
}

func (h *WriteHandle) finish() { close(h.done) }

// Done is closed once the background write has been handed off.
func (h *WriteHandle) Done() <-chan struct{} { return h.done }

// Join blocks until the background write has been handed off.
func (h *WriteHandle) Join() { <-h.done }

// Finished reports whether the write has completed, without blocking.
func (h *WriteHandle) Finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
