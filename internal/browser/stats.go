// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package browser

import (
	"github.com/dustin/go-humanize"
)

// ContentStatistics aggregates the items in a view.
type ContentStatistics struct {
	TotalSize     int64 `json:"totalSize"`
	FileCount     int   `json:"fileCount"`
	FolderCount   int   `json:"folderCount"`
	TorrentCount  int   `json:"torrentCount"`
	PlayableCount int   `json:"playableCount"`
}

// HumanTotalSize renders the total size for display.
func (s ContentStatistics) HumanTotalSize() string {
	return humanize.IBytes(uint64(s.TotalSize))
}

// Statistics computes aggregates over a view. Torrent sizes already cover
// their files, so expanded children do not double count; playable torrent
// children still count toward PlayableCount.
func Statistics(items []FileItem) ContentStatistics {
	var stats ContentStatistics
	for _, item := range items {
		switch v := item.(type) {
		case Folder:
			stats.FolderCount++
			stats.TotalSize += v.Size
		case Torrent:
			stats.TorrentCount++
			stats.TotalSize += v.Size
			for _, f := range v.Files {
				if f.Playable {
					stats.PlayableCount++
				}
			}
		case File:
			stats.FileCount++
			stats.TotalSize += v.Size
			if v.Playable {
				stats.PlayableCount++
			}
		default:
			panic("unhandled file item variant")
		}
	}
	return stats
}
