// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package browser

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adinunzio10/rd-watch-sub012/internal/realdebrid"
)

// fakeListing serves pages out of a fixed record slice.
type fakeListing struct {
	records []realdebrid.TorrentRecord
	err     error
	fetches int
}

func (f *fakeListing) FetchPage(_ context.Context, offset, limit int) ([]realdebrid.TorrentRecord, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.records) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.records) {
		end = len(f.records)
	}
	return f.records[offset:end], nil
}

func (f *fakeListing) ExpandTorrent(_ context.Context, id string) (realdebrid.TorrentRecord, error) {
	for _, record := range f.records {
		if record.ID == id {
			return record, nil
		}
	}
	return realdebrid.TorrentRecord{}, notFoundError(id)
}

func listingOf(n int) *fakeListing {
	records := make([]realdebrid.TorrentRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, realdebrid.TorrentRecord{
			ID:       fmt.Sprintf("t%03d", i),
			Filename: fmt.Sprintf("item-%03d.mkv", i),
			Bytes:    int64(i) * 1000,
			Status:   "downloaded",
			Added:    "2025-03-01T12:00:00Z",
		})
	}
	return &fakeListing{records: records}
}

func TestPaginatorCoversListingWithoutDuplicates(t *testing.T) {
	t.Parallel()

	paginator := NewPaginator(listingOf(23), 10)

	for paginator.HasMore() {
		_, err := paginator.LoadNextPage(context.Background())
		require.NoError(t, err)
	}

	items := paginator.Items()
	require.Len(t, items, 23)

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		_, dup := seen[item.ItemID()]
		require.False(t, dup, "duplicate id %s", item.ItemID())
		seen[item.ItemID()] = struct{}{}
	}
}

func TestPaginatorExactPageBoundary(t *testing.T) {
	t.Parallel()

	paginator := NewPaginator(listingOf(20), 10)

	n, err := paginator.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.True(t, paginator.HasMore())

	n, err = paginator.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	// A full final page keeps hasMore set until the empty page lands.
	assert.True(t, paginator.HasMore())

	n, err = paginator.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, paginator.HasMore())
}

func TestPaginatorStopsAfterExhaustion(t *testing.T) {
	t.Parallel()

	listing := listingOf(5)
	paginator := NewPaginator(listing, 10)

	_, err := paginator.LoadNextPage(context.Background())
	require.NoError(t, err)
	require.False(t, paginator.HasMore())

	fetchesBefore := listing.fetches
	n, err := paginator.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, fetchesBefore, listing.fetches)
}

func TestPaginatorErrorLeavesStateIntact(t *testing.T) {
	t.Parallel()

	listing := listingOf(15)
	paginator := NewPaginator(listing, 10)

	_, err := paginator.LoadNextPage(context.Background())
	require.NoError(t, err)

	listing.err = serverError("listing")
	_, err = paginator.LoadNextPage(context.Background())
	require.Error(t, err)

	// The loaded snapshot and cursor survive a failed page.
	assert.Len(t, paginator.Items(), 10)
	assert.True(t, paginator.HasMore())

	listing.err = nil
	n, err := paginator.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, paginator.Items(), 15)
}

func TestPaginatorRefreshReplacesSnapshot(t *testing.T) {
	t.Parallel()

	paginator := NewPaginator(listingOf(25), 10)

	_, err := paginator.LoadNextPage(context.Background())
	require.NoError(t, err)
	_, err = paginator.LoadNextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, paginator.Items(), 20)

	require.NoError(t, paginator.Refresh(context.Background()))

	assert.Len(t, paginator.Items(), 10)
	assert.True(t, paginator.HasMore())
}

func TestPaginatorReset(t *testing.T) {
	t.Parallel()

	paginator := NewPaginator(listingOf(5), 10)

	_, err := paginator.LoadNextPage(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, paginator.Items())

	paginator.Reset()

	assert.Empty(t, paginator.Items())
	assert.True(t, paginator.HasMore())
}
