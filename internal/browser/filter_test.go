// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterFixture() []FileItem {
	return []FileItem{
		Folder{ID: "folder:shows", Name: "Shows", Modified: testDate(1)},
		Torrent{
			ID: "t1", Name: "Big Buck Bunny 1080p", Size: 700_000_000,
			Modified: testDate(2), Status: TorrentDownloaded,
			Files: []File{
				{ID: "t1/1", Name: "bbb.mkv", Size: 699_000_000, Playable: true, Status: FileReady},
				{ID: "t1/2", Name: "bbb.srt", Size: 40_000, Status: FileReady},
			},
		},
		Torrent{ID: "t2", Name: "linux-6.12.tar.xz", Size: 140_000_000, Modified: testDate(3), Status: TorrentDownloading},
		File{ID: "t3/1", Name: "song.flac", Size: 30_000_000, Modified: testDate(4), Playable: true, Status: FileReady},
		File{ID: "t4/1", Name: "notes.txt", Size: 2_000, Modified: testDate(5), Status: FileUnavailable},
	}
}

func ids(items []FileItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ItemID())
	}
	return out
}

func TestFilterEmptyOptionsKeepsEverything(t *testing.T) {
	t.Parallel()

	items := filterFixture()
	filtered := Filter(items, FilterOptions{})

	assert.Equal(t, ids(items), ids(filtered))
}

func TestFilterSearch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		search string
		want   []string
	}{
		{name: "exact substring", search: "bunny", want: []string{"t1"}},
		{name: "all words any order", search: "bunny big", want: []string{"t1"}},
		{name: "fuzzy missing separator", search: "songflac", want: []string{"t3/1"}},
		{name: "no match", search: "zzzzqq", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			filtered := Filter(filterFixture(), FilterOptions{Search: tt.search})
			assert.Equal(t, tt.want, ids(filtered))
		})
	}
}

func TestFilterShowOnlyPlayable(t *testing.T) {
	t.Parallel()

	filtered := Filter(filterFixture(), FilterOptions{ShowOnlyPlayable: true})

	// Folders always pass. A torrent with a playable child passes, one
	// without expanded files passes too since its contents are unknown.
	assert.Equal(t, []string{"folder:shows", "t1", "t2", "t3/1"}, ids(filtered))
}

func TestFilterShowOnlyDownloaded(t *testing.T) {
	t.Parallel()

	filtered := Filter(filterFixture(), FilterOptions{ShowOnlyDownloaded: true})

	assert.Equal(t, []string{"folder:shows", "t1", "t3/1", "t4/1"}, ids(filtered))
}

func TestFilterFileStatuses(t *testing.T) {
	t.Parallel()

	filtered := Filter(filterFixture(), FilterOptions{Statuses: []string{"unavailable"}})

	// Status sets only constrain files; torrents and folders pass.
	assert.Equal(t, []string{"folder:shows", "t1", "t2", "t4/1"}, ids(filtered))
}

func TestFilterFileTypes(t *testing.T) {
	t.Parallel()

	filtered := Filter(filterFixture(), FilterOptions{FileTypes: []string{"audio"}})

	assert.Contains(t, ids(filtered), "t3/1")
	assert.NotContains(t, ids(filtered), "t4/1")
}

func TestFilterSizeRange(t *testing.T) {
	t.Parallel()

	minSize := int64(1_000_000)
	maxSize := int64(200_000_000)
	filtered := Filter(filterFixture(), FilterOptions{MinSize: &minSize, MaxSize: &maxSize})

	assert.Equal(t, []string{"t2", "t3/1"}, ids(filtered))
}

func TestFilterModifiedRange(t *testing.T) {
	t.Parallel()

	after := testDate(3)
	filtered := Filter(filterFixture(), FilterOptions{ModifiedAfter: &after})

	assert.Equal(t, []string{"t2", "t3/1", "t4/1"}, ids(filtered))
}

func TestFilterExpression(t *testing.T) {
	t.Parallel()

	filtered := Filter(filterFixture(), FilterOptions{Expr: `kind == "torrent" && size > 200000000`})

	assert.Equal(t, []string{"t1"}, ids(filtered))
}

func TestFilterInvalidExpressionIsIgnored(t *testing.T) {
	t.Parallel()

	items := filterFixture()
	filtered := Filter(items, FilterOptions{Expr: `size >`})

	assert.Equal(t, ids(items), ids(filtered))
}

func TestFilterPreservesOrderAndIsIdempotent(t *testing.T) {
	t.Parallel()

	opts := FilterOptions{Search: "b"}
	once := Filter(filterFixture(), opts)
	twice := Filter(once, opts)

	require.NotEmpty(t, once)
	assert.Equal(t, ids(once), ids(twice))
}
