// Package watch runs the polling loop that observes the selection
// buffers, drives rule evaluation and persistence, keeps the buffers
// in sync, and enforces entry TTLs against the live clipboard.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"clio/internal/clipboard"
	"clio/internal/config"
	"clio/internal/entry"
	"clio/internal/imaging"
	"clio/internal/rules"
	"clio/internal/store"
)

// releaseInterval paces debug.FreeOSMemory calls so long uptimes don't
// accumulate freed-but-resident pages.
const releaseInterval = 5 * time.Minute

// Options is the fixed per-run configuration snapshot.
type Options struct {
	Interval      time.Duration
	PruneInterval time.Duration
	SyncMode      config.SyncMode
	MaxEntrySize  int
	Capacity      int
	MaxAge        time.Duration
}

// trackedTTL is the single outstanding self-destructing entry: the
// selection it was seen on, the observed content hash it applies to,
// and the instant it should vanish.
type trackedTTL struct {
	sel      clipboard.Selection
	hash     string
	deadline time.Time
}

// Watcher owns all loop state. It is single-goroutine: one tick at a
// time, no shared mutable state.
type Watcher struct {
	store    *store.Store
	provider clipboard.Provider
	detector clipboard.SourceDetector
	rules    []rules.Rule
	opts     Options
	log      *slog.Logger

	hasTTLRules bool
	lastHash    map[clipboard.Selection]string
	tracked     *trackedTTL
	lastPrune   time.Time
	lastRelease time.Time
	writers     map[clipboard.Selection]*clipboard.WriteHandle
}

func New(st *store.Store, provider clipboard.Provider, detector clipboard.SourceDetector, ruleSet []rules.Rule, opts Options, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	if detector == nil {
		detector = clipboard.NoopDetector{}
	}
	return &Watcher{
		store:       st,
		provider:    provider,
		detector:    detector,
		rules:       ruleSet,
		opts:        opts,
		log:         log,
		hasTTLRules: rules.HasTTL(ruleSet),
		lastHash:    make(map[clipboard.Selection]string),
		lastPrune:   time.Now(),
		lastRelease: time.Now(),
		writers:     make(map[clipboard.Selection]*clipboard.WriteHandle),
	}
}

// Run polls until ctx is cancelled. Nothing inside a tick terminates
// the loop; per-tick failures are logged and dropped.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("watching clipboard",
		"interval", w.opts.Interval,
		"sync", string(w.opts.SyncMode),
		"rules", len(w.rules))

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.joinWriters()
			return nil
		case <-ticker.C:
			w.tick(ctx, time.Now())
		}
	}
}

func (w *Watcher) tick(ctx context.Context, now time.Time) {
	w.maybePrune(ctx, now)
	w.checkTrackedExpiry(ctx, now)

	// The copy/paste buffer is always processed before the primary
	// buffer so propagation skip-logic stays deterministic.
	mirroredToPrimary := false
	if content, err := w.provider.Read(clipboard.SelectionClipboard); err != nil {
		w.log.Warn("failed to read clipboard selection", "error", err)
	} else if text, changed := w.processChange(ctx, clipboard.SelectionClipboard, content, now); changed {
		if text != "" && (w.opts.SyncMode == config.SyncBoth || w.opts.SyncMode == config.SyncToPrimary) {
			w.mirror(clipboard.SelectionPrimary, text)
			mirroredToPrimary = true
		}
	}

	// In disabled mode the primary buffer is untouched. After a mirror
	// its content is already known, so the redundant read is skipped.
	if w.opts.SyncMode != config.SyncDisabled && !mirroredToPrimary {
		if content, err := w.provider.Read(clipboard.SelectionPrimary); err != nil {
			w.log.Warn("failed to read primary selection", "error", err)
		} else if text, changed := w.processChange(ctx, clipboard.SelectionPrimary, content, now); changed {
			if text != "" && (w.opts.SyncMode == config.SyncBoth || w.opts.SyncMode == config.SyncToClipboard) {
				w.mirror(clipboard.SelectionClipboard, text)
			}
		}
	}

	w.maintain(now)
}

// maybePrune runs store expiry pruning on its own rate limit, and only
// when TTLs can exist at all.
func (w *Watcher) maybePrune(ctx context.Context, now time.Time) {
	if w.opts.MaxAge <= 0 && !w.hasTTLRules {
		return
	}
	if now.Sub(w.lastPrune) < w.opts.PruneInterval {
		return
	}
	if _, err := w.store.PruneExpired(ctx, w.opts.MaxAge); err != nil {
		w.log.Error("failed to prune expired entries", "error", err)
	}
	w.lastPrune = now
}

// checkTrackedExpiry enforces the tracked entry's TTL. Restoration
// only happens when the buffer still holds the tracked content; if the
// user already overwrote it, the tracker is simply dropped.
func (w *Watcher) checkTrackedExpiry(ctx context.Context, now time.Time) {
	if w.tracked == nil || now.Before(w.tracked.deadline) {
		return
	}
	t := w.tracked
	w.tracked = nil

	if _, err := w.store.PruneExpired(ctx, w.opts.MaxAge); err != nil {
		w.log.Error("failed to prune expired entries", "error", err)
	}

	content, err := w.provider.Read(t.sel)
	if err != nil {
		w.log.Warn("failed to read selection for TTL restore", "selection", t.sel.String(), "error", err)
		return
	}
	if contentHash(content) != t.hash {
		return
	}

	latest, err := w.store.GetLatestActive(ctx)
	if err != nil {
		w.log.Error("failed to load restoration target", "error", err)
		return
	}
	if latest == nil {
		if err := w.provider.Clear(t.sel); err != nil {
			w.log.Warn("failed to clear selection", "selection", t.sel.String(), "error", err)
			return
		}
		delete(w.lastHash, t.sel)
		w.log.Info("expired entry removed from clipboard", "selection", t.sel.String())
		return
	}

	w.restore(t.sel, latest)
}

func (w *Watcher) restore(sel clipboard.Selection, e *entry.Entry) {
	if e.IsText() {
		w.joinWriter(sel)
		h, err := w.provider.WriteTextAsync(sel, e.TextContent)
		if err != nil {
			w.log.Warn("failed to restore text entry", "selection", sel.String(), "error", err)
			return
		}
		w.writers[sel] = h
		w.lastHash[sel] = entry.HashBytes([]byte(e.TextContent))
		w.log.Info("restored previous entry after TTL expiry", "selection", sel.String(), "id", e.ID)
		return
	}

	width, height, rgba, err := imaging.DecodePNG(e.BlobContent)
	if err != nil {
		w.log.Warn("failed to decode stored image for restore", "id", e.ID, "error", err)
		return
	}
	img := clipboard.Image{Width: width, Height: height, RGBA: rgba}
	if err := w.provider.WriteImage(sel, img); err != nil {
		w.log.Warn("failed to restore image entry", "selection", sel.String(), "error", err)
		return
	}
	w.lastHash[sel] = entry.HashBytes(rgba)
	w.log.Info("restored previous entry after TTL expiry", "selection", sel.String(), "id", e.ID)
}

// processChange handles one observed buffer. It returns the text that
// should be mirrored to the other buffer (empty for images or when
// nothing was persisted) and whether the buffer changed at all.
func (w *Watcher) processChange(ctx context.Context, sel clipboard.Selection, content clipboard.Content, now time.Time) (mirrorText string, changed bool) {
	if content.IsEmpty() {
		return "", false
	}
	observed := contentHash(content)
	if w.lastHash[sel] == observed {
		return "", false
	}

	// Oversized images are rejected before any encoding work. The
	// last-seen hash still advances so the same content is not
	// re-detected as new on every tick.
	if content.Kind == clipboard.KindImage && len(content.Image.RGBA) > w.opts.MaxEntrySize {
		w.log.Warn("skipping oversized image",
			"selection", sel.String(),
			"size", len(content.Image.RGBA),
			"limit", w.opts.MaxEntrySize)
		w.lastHash[sel] = observed
		return "", false
	}

	e, err := w.buildEntry(content)
	if err != nil {
		w.log.Warn("failed to build entry", "selection", sel.String(), "error", err)
		w.lastHash[sel] = observed
		return "", false
	}

	res := rules.Evaluate(w.rules, e)
	if e.IsText() {
		mirrorText = e.TextContent
	}
	if res.Transformed != nil {
		e.SetText(*res.Transformed)
		mirrorText = *res.Transformed
	}
	e.ExpiresAt = res.ExpiresAt

	if e.Size() > w.opts.MaxEntrySize {
		w.log.Warn("skipping entry over size limit",
			"selection", sel.String(),
			"size", e.Size(),
			"limit", w.opts.MaxEntrySize)
		w.lastHash[sel] = observed
		return "", false
	}

	id, err := w.store.SaveOrUpdate(ctx, e, w.opts.Capacity, w.opts.MaxAge)
	if err != nil {
		w.log.Error("failed to save entry", "selection", sel.String(), "error", err)
		w.lastHash[sel] = observed
		return "", false
	}

	w.trackTTL(ctx, sel, observed, id, res.TTL, now)
	w.lastHash[sel] = observed
	return mirrorText, true
}

// trackTTL records the newest change as the single tracked TTL entry.
// When the engine produced no TTL the merged row may still carry an
// expiry set elsewhere; its remaining duration is adopted.
func (w *Watcher) trackTTL(ctx context.Context, sel clipboard.Selection, observedHash string, id int64, ttl time.Duration, now time.Time) {
	if ttl > 0 {
		w.tracked = &trackedTTL{sel: sel, hash: observedHash, deadline: now.Add(ttl)}
		return
	}
	stored, err := w.store.GetByID(ctx, id)
	if err != nil || stored == nil || stored.ExpiresAt == nil {
		return
	}
	if stored.ExpiresAt.After(now) {
		w.tracked = &trackedTTL{sel: sel, hash: observedHash, deadline: *stored.ExpiresAt}
	}
}

func (w *Watcher) buildEntry(content clipboard.Content) (*entry.Entry, error) {
	info := w.detector.Detect()
	switch content.Kind {
	case clipboard.KindText:
		return entry.NewText(content.Text, info.App, info.Title), nil
	case clipboard.KindImage:
		png, err := imaging.EncodePNG(content.Image.Width, content.Image.Height, content.Image.RGBA)
		if err != nil {
			return nil, err
		}
		return entry.NewImage(png, info.App, info.Title), nil
	}
	return nil, fmt.Errorf("unsupported content kind %d", content.Kind)
}

// mirror propagates text to the other buffer and pre-seeds its
// last-seen hash so the write is not re-detected as a change.
func (w *Watcher) mirror(sel clipboard.Selection, text string) {
	w.joinWriter(sel)
	h, err := w.provider.WriteTextAsync(sel, text)
	if err != nil {
		w.log.Warn("failed to mirror text", "selection", sel.String(), "error", err)
		return
	}
	w.writers[sel] = h
	w.lastHash[sel] = entry.HashBytes([]byte(text))
}

// joinWriter waits for the previous background write to the selection,
// keeping at most one outstanding writer per buffer.
func (w *Watcher) joinWriter(sel clipboard.Selection) {
	if prev := w.writers[sel]; prev != nil {
		prev.Join()
		delete(w.writers, sel)
	}
}

func (w *Watcher) joinWriters() {
	for sel := range w.writers {
		w.joinWriter(sel)
	}
}

// maintain drops finished writer handles and periodically returns free
// memory to the OS.
func (w *Watcher) maintain(now time.Time) {
	for sel, h := range w.writers {
		if h.Finished() {
			delete(w.writers, sel)
		}
	}
	if now.Sub(w.lastRelease) >= releaseInterval {
		debug.FreeOSMemory()
		w.lastRelease = now
	}
}

// contentHash hashes the observed buffer payload: text bytes for text,
// raw pixels for images (encoding happens later, only if needed).
func contentHash(c clipboard.Content) string {
	switch c.Kind {
	case clipboard.KindText:
		return entry.HashBytes([]byte(c.Text))
	case clipboard.KindImage:
		return entry.HashBytes(c.Image.RGBA)
	}
	return ""
}
