// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package browser

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/adinunzio10/rd-watch-sub012/internal/realdebrid"
)

// RemoteListing is the read-side collaborator contract.
type RemoteListing interface {
	FetchPage(ctx context.Context, offset, limit int) ([]realdebrid.TorrentRecord, error)
	ExpandTorrent(ctx context.Context, id string) (realdebrid.TorrentRecord, error)
}

const defaultPageSize = 50

// Paginator windows the remote listing into pages. It applies no sorting
// of its own; sort/filter layer on top of the loaded snapshot.
type Paginator struct {
	listing  RemoteListing
	pageSize int

	offset  int
	hasMore bool
	seeded  bool
	loaded  []FileItem
}

// NewPaginator creates a paginator over the remote listing.
func NewPaginator(listing RemoteListing, pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Paginator{
		listing:  listing,
		pageSize: pageSize,
		hasMore:  true,
	}
}

// SetPageSize changes the window size for subsequent fetches. Values
// below one fall back to the default.
func (p *Paginator) SetPageSize(pageSize int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	p.pageSize = pageSize
}

// Seed installs a locally cached snapshot to display before the first
// remote page arrives. The seed is discarded on the first real fetch.
func (p *Paginator) Seed(items []FileItem) {
	p.loaded = items
	p.seeded = true
}

// LoadNextPage fetches the next window and appends it. It returns the
// number of items actually appended; hasMore turns false once the remote
// returns a short page.
func (p *Paginator) LoadNextPage(ctx context.Context) (int, error) {
	if !p.hasMore {
		return 0, nil
	}

	records, err := p.listing.FetchPage(ctx, p.offset, p.pageSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load page at offset %d: %w", p.offset, err)
	}

	if p.seeded {
		p.loaded = nil
		p.seeded = false
	}
	for _, record := range records {
		p.loaded = append(p.loaded, ToTorrent(record))
	}

	p.offset += len(records)
	p.hasMore = len(records) == p.pageSize

	log.Debug().
		Int("returned", len(records)).
		Int("offset", p.offset).
		Bool("hasMore", p.hasMore).
		Msg("Loaded listing page")

	return len(records), nil
}

// Refresh re-fetches page 0 and replaces the loaded snapshot instead of
// appending, so already-loaded entries are never duplicated.
func (p *Paginator) Refresh(ctx context.Context) error {
	records, err := p.listing.FetchPage(ctx, 0, p.pageSize)
	if err != nil {
		return fmt.Errorf("failed to refresh listing: %w", err)
	}

	refreshed := make([]FileItem, 0, len(records))
	for _, record := range records {
		refreshed = append(refreshed, ToTorrent(record))
	}

	p.loaded = refreshed
	p.seeded = false
	p.offset = len(records)
	p.hasMore = len(records) == p.pageSize

	return nil
}

// Reset clears all pagination state.
func (p *Paginator) Reset() {
	p.offset = 0
	p.hasMore = true
	p.seeded = false
	p.loaded = nil
}

// HasMore reports whether another page may be available.
func (p *Paginator) HasMore() bool { return p.hasMore }

// Items returns the loaded snapshot. Callers must treat it as read-only;
// mutation happens through the owning session.
func (p *Paginator) Items() []FileItem { return p.loaded }

// ReplaceItems swaps the loaded snapshot. Used by the owning session to
// apply bulk-operation outcomes.
func (p *Paginator) ReplaceItems(items []FileItem) { p.loaded = items }
