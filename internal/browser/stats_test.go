// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatistics(t *testing.T) {
	t.Parallel()

	stats := Statistics(filterFixture())

	assert.Equal(t, 1, stats.FolderCount)
	assert.Equal(t, 2, stats.TorrentCount)
	assert.Equal(t, 2, stats.FileCount)
	// Playable torrent children count alongside playable files.
	assert.Equal(t, 2, stats.PlayableCount)
	assert.Equal(t, int64(700_000_000+140_000_000+30_000_000+2_000), stats.TotalSize)
}

func TestStatisticsEmpty(t *testing.T) {
	t.Parallel()

	stats := Statistics(nil)

	assert.Zero(t, stats.TotalSize)
	assert.Zero(t, stats.FileCount)
	assert.Equal(t, "0 B", stats.HumanTotalSize())
}
