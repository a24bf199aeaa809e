// Package store persists clipboard history in SQLite with content-hash
// deduplication, count-based eviction and TTL-aware pruning.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"clio/internal/entry"
)

type Store struct {
	db *bun.DB
}

// Open opens (or creates) the history database at dbPath and runs
// migrations. Use ":memory:" for an ephemeral store.
func Open(dbPath string) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	ctx := context.Background()

	if _, err := s.db.NewCreateTable().Model((*entry.Entry)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_entries_created ON clipboard_entries(created_at DESC)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_hash ON clipboard_entries(content_hash)",
		"CREATE INDEX IF NOT EXISTS idx_entries_expires ON clipboard_entries(expires_at)",
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// SaveOrUpdate persists e, deduplicating on content hash. On a dedup
// hit the creation timestamp is refreshed and expiry/source fields are
// overwritten only when the incoming entry carries them. Expired
// entries are pruned first so capacity accounting sees live rows only,
// and a fresh insert evicts the oldest rows beyond capacity.
func (s *Store) SaveOrUpdate(ctx context.Context, e *entry.Entry, capacity int, maxAge time.Duration) (int64, error) {
	if _, err := s.PruneExpired(ctx, maxAge); err != nil {
		return 0, err
	}

	existing, err := s.FindByHash(ctx, e.ContentHash)
	if err != nil {
		return 0, err
	}

	if existing != nil {
		q := s.db.NewUpdate().
			Model((*entry.Entry)(nil)).
			Set("created_at = ?", time.Now().UTC()).
			Where("id = ?", existing.ID)
		if e.ExpiresAt != nil {
			q = q.Set("expires_at = ?", e.ExpiresAt)
		}
		if e.SourceApp != nil {
			q = q.Set("source_app = ?", e.SourceApp)
		}
		if e.SourceTitle != nil {
			q = q.Set("source_title = ?", e.SourceTitle)
		}
		if _, err := q.Exec(ctx); err != nil {
			return 0, fmt.Errorf("failed to refresh entry: %w", err)
		}
		return existing.ID, nil
	}

	e.CreatedAt = time.Now().UTC()
	if _, err := s.db.NewInsert().Model(e).Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}
	if _, err := s.PruneOldest(ctx, capacity); err != nil {
		return 0, err
	}
	return e.ID, nil
}

// FindByHash returns the entry with the given content hash, or nil.
func (s *Store) FindByHash(ctx context.Context, hash string) (*entry.Entry, error) {
	var e entry.Entry
	err := s.db.NewSelect().
		Model(&e).
		Where("content_hash = ?", hash).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entry by hash: %w", err)
	}
	return &e, nil
}

// GetByID returns the entry with the given id, or nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*entry.Entry, error) {
	var e entry.Entry
	err := s.db.NewSelect().
		Model(&e).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry by id: %w", err)
	}
	return &e, nil
}

// PruneOldest deletes the oldest entries by creation order until at
// most capacity remain. Returns the number of deleted rows.
func (s *Store) PruneOldest(ctx context.Context, capacity int) (int64, error) {
	keep := s.db.NewSelect().
		Model((*entry.Entry)(nil)).
		Column("id").
		OrderExpr("created_at DESC").
		Limit(capacity)

	res, err := s.db.NewDelete().
		Model((*entry.Entry)(nil)).
		Where("id NOT IN (?)", keep).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune oldest entries: %w", err)
	}
	return res.RowsAffected()
}

// PruneExpired applies two independent deletion rules and sums their
// counts: entries whose per-entry expiry has passed, and entries older
// than maxAge when maxAge is positive.
func (s *Store) PruneExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	now := time.Now().UTC()

	res, err := s.db.NewDelete().
		Model((*entry.Entry)(nil)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired entries: %w", err)
	}
	deleted, _ := res.RowsAffected()

	if maxAge > 0 {
		res, err := s.db.NewDelete().
			Model((*entry.Entry)(nil)).
			Where("created_at < ?", now.Add(-maxAge)).
			Exec(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to prune aged entries: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}
	return deleted, nil
}

// GetLatestActive returns the most recently created entry whose
// per-entry expiry, if any, is still in the future. Nil when the
// history holds no live entry.
func (s *Store) GetLatestActive(ctx context.Context) (*entry.Entry, error) {
	now := time.Now().UTC()
	var e entry.Entry
	err := s.db.NewSelect().
		Model(&e).
		Where("expires_at IS NULL OR expires_at > ?", now).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest active entry: %w", err)
	}
	return &e, nil
}

// List returns a page of entries, most recent first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*entry.Entry, error) {
	var entries []*entry.Entry
	err := s.db.NewSelect().
		Model(&entries).
		OrderExpr("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

// Search returns a page of text entries whose content contains query
// as a substring, most recent first.
func (s *Store) Search(ctx context.Context, query string, limit, offset int) ([]*entry.Entry, error) {
	var entries []*entry.Entry
	err := s.db.NewSelect().
		Model(&entries).
		Where("text_content LIKE ?", "%"+query+"%").
		OrderExpr("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search entries: %w", err)
	}
	return entries, nil
}

// Delete removes the entry with the given id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.NewDelete().
		Model((*entry.Entry)(nil)).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.NewDelete().
		Model((*entry.Entry)(nil)).
		Where("1=1").
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*entry.Entry)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
