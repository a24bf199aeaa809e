package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clio/internal/entry"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestSaveOrUpdateInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveOrUpdate(ctx, entry.NewText("hello", "Firefox", ""), 100, 0)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.TextContent)
	require.NotNil(t, got.SourceApp)
	assert.Equal(t, "Firefox", *got.SourceApp)
}

func TestSaveOrUpdateDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SaveOrUpdate(ctx, entry.NewText("hello", "", ""), 100, 0)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	second, err := s.SaveOrUpdate(ctx, entry.NewText("hello", "", ""), 100, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDedupRefreshMovesToFront(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveOrUpdate(ctx, entry.NewText("old", "", ""), 100, 0)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = s.SaveOrUpdate(ctx, entry.NewText("new", "", ""), 100, 0)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// Re-copying "old" refreshes its creation time.
	_, err = s.SaveOrUpdate(ctx, entry.NewText("old", "", ""), 100, 0)
	require.NoError(t, err)

	entries, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "old", entries[0].TextContent)
}

func TestDedupPreservesAbsentFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := entry.NewText("secret", "KeePassXC", "")
	e.ExpiresAt = timePtr(time.Now().UTC().Add(time.Hour))
	id, err := s.SaveOrUpdate(ctx, e, 100, 0)
	require.NoError(t, err)

	// Same content again, this time with no expiry and no source.
	_, err = s.SaveOrUpdate(ctx, entry.NewText("secret", "", ""), 100, 0)
	require.NoError(t, err)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotNil(t, got.ExpiresAt)
	require.NotNil(t, got.SourceApp)
	assert.Equal(t, "KeePassXC", *got.SourceApp)
}

func TestDedupOverwritesPresentFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := entry.NewText("secret", "KeePassXC", "")
	e.ExpiresAt = timePtr(time.Now().UTC().Add(time.Hour))
	id, err := s.SaveOrUpdate(ctx, e, 100, 0)
	require.NoError(t, err)

	later := time.Now().UTC().Add(24 * time.Hour)
	e2 := entry.NewText("secret", "Bitwarden", "Vault")
	e2.ExpiresAt = timePtr(later)
	_, err = s.SaveOrUpdate(ctx, e2, 100, 0)
	require.NoError(t, err)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, later, *got.ExpiresAt, time.Second)
	require.NotNil(t, got.SourceApp)
	assert.Equal(t, "Bitwarden", *got.SourceApp)
	require.NotNil(t, got.SourceTitle)
	assert.Equal(t, "Vault", *got.SourceTitle)
}

func TestFIFOEviction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.SaveOrUpdate(ctx, entry.NewText(fmt.Sprintf("entry-%d", i), "", ""), 3, 0)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	entries, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "entry-4", entries[0].TextContent)
	assert.Equal(t, "entry-3", entries[1].TextContent)
	assert.Equal(t, "entry-2", entries[2].TextContent)
}

func TestPruneExpiredPerEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	live := entry.NewText("live", "", "")
	live.ExpiresAt = timePtr(time.Now().UTC().Add(time.Hour))
	_, err := s.SaveOrUpdate(ctx, live, 100, 0)
	require.NoError(t, err)

	_, err = s.SaveOrUpdate(ctx, entry.NewText("forever", "", ""), 100, 0)
	require.NoError(t, err)

	// Inserted directly: SaveOrUpdate would prune it on the way in.
	dead := entry.NewText("dead", "", "")
	dead.CreatedAt = time.Now().UTC()
	dead.ExpiresAt = timePtr(time.Now().UTC().Add(-time.Minute))
	_, err = s.db.NewInsert().Model(dead).Exec(ctx)
	require.NoError(t, err)

	n, err := s.PruneExpired(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entries, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPruneExpiredMaxAge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveOrUpdate(ctx, entry.NewText("recent", "", ""), 100, 0)
	require.NoError(t, err)

	// Backdate a second row past the retention window.
	old := entry.NewText("ancient", "", "")
	_, err = s.SaveOrUpdate(ctx, old, 100, 0)
	require.NoError(t, err)
	_, err = s.db.NewUpdate().
		Model((*entry.Entry)(nil)).
		Set("created_at = ?", time.Now().UTC().Add(-48*time.Hour)).
		Where("content_hash = ?", old.ContentHash).
		Exec(ctx)
	require.NoError(t, err)

	n, err := s.PruneExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entries, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recent", entries[0].TextContent)
}

func TestPruneExpiredZeroMaxAgeKeepsOldRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := entry.NewText("ancient", "", "")
	_, err := s.SaveOrUpdate(ctx, e, 100, 0)
	require.NoError(t, err)
	_, err = s.db.NewUpdate().
		Model((*entry.Entry)(nil)).
		Set("created_at = ?", time.Now().UTC().Add(-1000*time.Hour)).
		Where("content_hash = ?", e.ContentHash).
		Exec(ctx)
	require.NoError(t, err)

	n, err := s.PruneExpired(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPruneExpiredSumsBothRules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	aged := entry.NewText("aged", "", "")
	_, err := s.SaveOrUpdate(ctx, aged, 100, 0)
	require.NoError(t, err)
	_, err = s.db.NewUpdate().
		Model((*entry.Entry)(nil)).
		Set("created_at = ?", time.Now().UTC().Add(-48*time.Hour)).
		Where("content_hash = ?", aged.ContentHash).
		Exec(ctx)
	require.NoError(t, err)

	_, err = s.SaveOrUpdate(ctx, entry.NewText("live", "", ""), 100, 0)
	require.NoError(t, err)

	// Inserted directly: SaveOrUpdate would prune it on the way in.
	dead := entry.NewText("dead", "", "")
	dead.CreatedAt = time.Now().UTC()
	dead.ExpiresAt = timePtr(time.Now().UTC().Add(-time.Minute))
	_, err = s.db.NewInsert().Model(dead).Exec(ctx)
	require.NoError(t, err)

	n, err := s.PruneExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	entries, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "live", entries[0].TextContent)
}

func TestGetLatestActiveSkipsExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveOrUpdate(ctx, entry.NewText("older", "", ""), 100, 0)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	newest := entry.NewText("newest", "", "")
	newest.CreatedAt = time.Now().UTC()
	newest.ExpiresAt = timePtr(time.Now().UTC().Add(-time.Minute))
	_, err = s.db.NewInsert().Model(newest).Exec(ctx)
	require.NoError(t, err)

	got, err := s.GetLatestActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "older", got.TextContent)
}

func TestGetLatestActiveEmpty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetLatestActive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"hello world", "goodbye world", "hello there"} {
		_, err := s.SaveOrUpdate(ctx, entry.NewText(text, "", ""), 100, 0)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	entries, err := s.Search(ctx, "hello", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "hello there", entries[0].TextContent)
	assert.Equal(t, "hello world", entries[1].TextContent)
}

func TestListPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.SaveOrUpdate(ctx, entry.NewText(fmt.Sprintf("entry-%d", i), "", ""), 100, 0)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	page, err := s.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "entry-2", page[0].TextContent)
	assert.Equal(t, "entry-1", page[1].TextContent)
}

func TestDeleteAndFindByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := entry.NewText("doomed", "", "")
	id, err := s.SaveOrUpdate(ctx, e, 100, 0)
	require.NoError(t, err)

	found, err := s.FindByHash(ctx, e.ContentHash)
	require.NoError(t, err)
	require.NotNil(t, found)

	require.NoError(t, s.Delete(ctx, id))

	found, err = s.FindByHash(ctx, e.ContentHash)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveOrUpdate(ctx, entry.NewText("a", "", ""), 100, 0)
	require.NoError(t, err)
	_, err = s.SaveOrUpdate(ctx, entry.NewText("b", "", ""), 100, 0)
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImageEntryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	png := []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}
	e := entry.NewImage(png, "", "")
	e.SourceTitle = strPtr("Screenshot")
	id, err := s.SaveOrUpdate(ctx, e, 100, 0)
	require.NoError(t, err)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsImage())
	assert.Equal(t, png, got.BlobContent)
}
