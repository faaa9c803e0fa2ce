// internal/storage/cache.go
package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/valpere/FeedScrapexter/internal/selector"
)

// SQLStore is a selector.Store backed by the selector_cache table.
type SQLStore struct {
	db *DB
}

var _ selector.Store = (*SQLStore)(nil)

// NewSQLStore returns the cache store of db.
func NewSQLStore(db *DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, key string) (selector.CacheEntry, bool, error) {
	var (
		query   string
		savedAt int64
	)
	err := s.db.db.QueryRowContext(ctx,
		s.db.rebind(`SELECT selector_query, saved_at FROM selector_cache WHERE cache_key = ?`), key,
	).Scan(&query, &savedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return selector.CacheEntry{}, false, nil
	}
	if err != nil {
		return selector.CacheEntry{}, false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	return selector.CacheEntry{Query: query, SavedAt: time.UnixMilli(savedAt)}, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, entry selector.CacheEntry) error {
	_, err := s.db.db.ExecContext(ctx, s.db.rebind(s.db.dialect.upsertCache),
		key, entry.Query, entry.SavedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

// Reset deletes every cache entry.
func (s *SQLStore) Reset(ctx context.Context) error {
	if _, err := s.db.db.ExecContext(ctx, `DELETE FROM selector_cache`); err != nil {
		return fmt.Errorf("failed to reset selector cache: %w", err)
	}
	s.db.logger.Info("selector cache reset")
	return nil
}

// Len counts stored entries, expired ones included.
func (s *SQLStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM selector_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
