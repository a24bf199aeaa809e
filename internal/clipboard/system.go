package clipboard

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
	"unicode/utf8"

	sysclip "golang.design/x/clipboard"

	"clio/internal/imaging"
)

// toolTimeout bounds every external selection-tool invocation so the
// polling loop can never hang on a wedged compositor.
const toolTimeout = 2 * time.Second

// SystemProvider talks to the real OS buffers. The copy/paste buffer
// goes through golang.design/x/clipboard; the primary selection goes
// through wl-clipboard or xclip, whichever is present, because the
// library only exposes the standard buffer.
type SystemProvider struct {
	primaryRead  []string
	primaryWrite []string
}

// NewSystemProvider initializes the OS clipboard binding and probes
// for a primary-selection tool.
func NewSystemProvider() (*SystemProvider, error) {
	if err := sysclip.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	p := &SystemProvider{}
	p.primaryRead, p.primaryWrite = detectPrimaryTools()
	return p, nil
}

// HasPrimary reports whether the primary selection can be served.
func (p *SystemProvider) HasPrimary() bool {
	return p.primaryRead != nil
}

func (p *SystemProvider) Read(sel Selection) (Content, error) {
	switch sel {
	case SelectionClipboard:
		return p.readClipboard()
	case SelectionPrimary:
		return p.readPrimary()
	}
	return EmptyContent(), fmt.Errorf("%w: unknown selection %d", ErrUnavailable, sel)
}

func (p *SystemProvider) readClipboard() (Content, error) {
	if text := sysclip.Read(sysclip.FmtText); len(text) > 0 {
		return TextContent(string(text)), nil
	}
	if png := sysclip.Read(sysclip.FmtImage); len(png) > 0 {
		w, h, rgba, err := imaging.DecodePNG(png)
		if err != nil {
			return EmptyContent(), fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return ImageContent(Image{Width: w, Height: h, RGBA: rgba}), nil
	}
	return EmptyContent(), nil
}

// readPrimary shells out to the selection tool. Text only: the primary
// selection never carries images.
func (p *SystemProvider) readPrimary() (Content, error) {
	if p.primaryRead == nil {
		return EmptyContent(), fmt.Errorf("%w: no primary selection tool found", ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(context.Background(), toolTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.primaryRead[0], p.primaryRead[1:]...).Output()
	if err != nil {
		// The tools exit non-zero when the selection is empty.
		return EmptyContent(), nil
	}
	if len(out) == 0 || !utf8.Valid(out) {
		return EmptyContent(), nil
	}
	return TextContent(string(out)), nil
}

func (p *SystemProvider) WriteText(sel Selection, text string) error {
	switch sel {
	case SelectionClipboard:
		ch := sysclip.Write(sysclip.FmtText, []byte(text))
		// The library serves the selection for as long as the process
		// lives; drain the supersession signal off-loop.
		go func() { <-ch }()
		return nil
	case SelectionPrimary:
		return p.writePrimary(text)
	}
	return fmt.Errorf("%w: unknown selection %d", ErrUnavailable, sel)
}

func (p *SystemProvider) writePrimary(text string) error {
	if p.primaryWrite == nil {
		return fmt.Errorf("%w: no primary selection tool found", ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(context.Background(), toolTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.primaryWrite[0], p.primaryWrite[1:]...)
	cmd.Stdin = bytes.NewReader([]byte(text))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, p.primaryWrite[0], err)
	}
	return nil
}

func (p *SystemProvider) WriteTextAsync(sel Selection, text string) (*WriteHandle, error) {
	h := newWriteHandle()
	go func() {
		defer h.finish()
		_ = p.WriteText(sel, text)
	}()
	return h, nil
}

func (p *SystemProvider) WriteImage(sel Selection, img Image) error {
	if sel != SelectionClipboard {
		return fmt.Errorf("%w: images are only supported on the clipboard selection", ErrUnavailable)
	}
	png, err := imaging.EncodePNG(img.Width, img.Height, img.RGBA)
	if err != nil {
		return err
	}
	ch := sysclip.Write(sysclip.FmtImage, png)
	go func() { <-ch }()
	return nil
}

func (p *SystemProvider) Clear(sel Selection) error {
	return p.WriteText(sel, "")
}

// detectPrimaryTools picks the selection tool for the running session:
// wl-clipboard under Wayland, xclip or xsel under X11.
func detectPrimaryTools() (readCmd, writeCmd []string) {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if _, err := exec.LookPath("wl-paste"); err == nil {
			return []string{"wl-paste", "--primary", "--no-newline"},
				[]string{"wl-copy", "--primary"}
		}
	}
	if _, err := exec.LookPath("xclip"); err == nil {
		return []string{"xclip", "-selection", "primary", "-out"},
			[]string{"xclip", "-selection", "primary", "-in"}
	}
	if _, err := exec.LookPath("xsel"); err == nil {
		return []string{"xsel", "--primary", "--output"},
			[]string{"xsel", "--primary", "--input"}
	}
	return nil, nil
}
