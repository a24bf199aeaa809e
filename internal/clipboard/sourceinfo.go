package clipboard

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// SourceInfo is the best-effort origin of a clipboard change. Empty
// fields mean detection failed; callers must tolerate that.
type SourceInfo struct {
	App   string
	Title string
}

// SourceDetector identifies the application that owns the focused
// window. Implementations must return promptly and never block the
// watch loop.
type SourceDetector interface {
	Detect() SourceInfo
}

// NoopDetector never detects anything. Used on Wayland sessions where
// no portable detection protocol exists, and in tests.
type NoopDetector struct{}

func (NoopDetector) Detect() SourceInfo { return SourceInfo{} }

// detectTimeout bounds each xprop invocation.
const detectTimeout = 250 * time.Millisecond

// XPropDetector reads the active window's WM_CLASS and title via
// xprop on X11.
type XPropDetector struct{}

// NewSourceDetector picks the detector for the running session.
func NewSourceDetector() SourceDetector {
	if _, err := exec.LookPath("xprop"); err != nil {
		return NoopDetector{}
	}
	return XPropDetector{}
}

var (
	activeWindowRe = regexp.MustCompile(`window id # (0x[0-9a-fA-F]+)`)
	wmClassRe      = regexp.MustCompile(`WM_CLASS\(STRING\) = "[^"]*", "([^"]*)"`)
	wmNameRe       = regexp.MustCompile(`_NET_WM_NAME\(UTF8_STRING\) = "(.*)"`)
)

func (XPropDetector) Detect() SourceInfo {
	window := xprop("-root", "_NET_ACTIVE_WINDOW")
	m := activeWindowRe.FindStringSubmatch(window)
	if m == nil {
		return SourceInfo{}
	}

	props := xprop("-id", m[1], "WM_CLASS", "_NET_WM_NAME")
	var info SourceInfo
	if cm := wmClassRe.FindStringSubmatch(props); cm != nil {
		info.App = cm[1]
	}
	if tm := wmNameRe.FindStringSubmatch(props); tm != nil {
		info.Title = tm[1]
	}
	return info
}

func xprop(args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "xprop", args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
