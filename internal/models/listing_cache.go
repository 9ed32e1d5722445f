// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adinunzio10/rd-watch-sub012/internal/browser"
	"github.com/adinunzio10/rd-watch-sub012/internal/database"
)

// ListingCacheStore persists listing snapshots so a restart can render
// content before the first remote page arrives.
type ListingCacheStore struct {
	db database.Querier
}

func NewListingCacheStore(db database.Querier) *ListingCacheStore {
	return &ListingCacheStore{db: db}
}

// UpsertListing writes the torrents in one transaction. The full torrent
// is stored as a JSON payload; the indexed columns exist for pruning and
// inspection.
func (s *ListingCacheStore) UpsertListing(ctx context.Context, torrents []browser.Torrent) error {
	if len(torrents) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin listing upsert: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO listing_cache (id, name, hash, size, progress, status, modified_at, payload, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			hash = excluded.hash,
			size = excluded.size,
			progress = excluded.progress,
			status = excluded.status,
			modified_at = excluded.modified_at,
			payload = excluded.payload,
			cached_at = CURRENT_TIMESTAMP
	`

	for _, torrent := range torrents {
		payload, err := json.Marshal(torrent)
		if err != nil {
			return fmt.Errorf("marshal torrent %s: %w", torrent.ID, err)
		}

		if _, err := tx.ExecContext(ctx, query,
			torrent.ID,
			torrent.Name,
			torrent.Hash,
			torrent.Size,
			torrent.Progress,
			torrent.Status.String(),
			torrent.Modified.UTC(),
			string(payload),
		); err != nil {
			return fmt.Errorf("upsert torrent %s: %w", torrent.ID, err)
		}
	}

	return tx.Commit()
}

// RemoveByIDs drops cached entries for the given torrent IDs.
func (s *ListingCacheStore) RemoveByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	query := fmt.Sprintf("DELETE FROM listing_cache WHERE id IN (%s)", placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove cached torrents: %w", err)
	}
	return nil
}

// LoadListing returns all cached torrents ordered by modification time,
// newest first.
func (s *ListingCacheStore) LoadListing(ctx context.Context) ([]browser.Torrent, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM listing_cache ORDER BY modified_at DESC")
	if err != nil {
		return nil, fmt.Errorf("query listing cache: %w", err)
	}
	defer rows.Close()

	var torrents []browser.Torrent
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan cached torrent: %w", err)
		}

		var torrent browser.Torrent
		if err := json.Unmarshal([]byte(payload), &torrent); err != nil {
			return nil, fmt.Errorf("decode cached torrent: %w", err)
		}
		torrents = append(torrents, torrent)
	}

	return torrents, rows.Err()
}

// PruneStale removes entries that have not been refreshed within maxAge
// and returns the number pruned.
func (s *ListingCacheStore) PruneStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	// CURRENT_TIMESTAMP stores "YYYY-MM-DD HH:MM:SS" UTC; compare in the
	// same textual format.
	cutoff := time.Now().UTC().Add(-maxAge).Format("2006-01-02 15:04:05")

	result, err := s.db.ExecContext(ctx, "DELETE FROM listing_cache WHERE cached_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune listing cache: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the number of cached entries.
func (s *ListingCacheStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listing_cache").Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("count listing cache: %w", err)
	}
	return count, nil
}
