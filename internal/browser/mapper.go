// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package browser

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/adinunzio10/rd-watch-sub012/internal/realdebrid"
)

// FileCategory groups extensions for filtering and playability checks.
type FileCategory string

const (
	CategoryVideo    FileCategory = "video"
	CategoryAudio    FileCategory = "audio"
	CategorySubtitle FileCategory = "subtitle"
	CategoryImage    FileCategory = "image"
	CategoryArchive  FileCategory = "archive"
	CategoryOther    FileCategory = "other"
)

var mimeByExtension = map[string]string{
	"mp4":  "video/mp4",
	"m4v":  "video/x-m4v",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"wmv":  "video/x-ms-wmv",
	"flv":  "video/x-flv",
	"mpg":  "video/mpeg",
	"mpeg": "video/mpeg",
	"ts":   "video/mp2t",
	"3gp":  "video/3gpp",

	"mp3":  "audio/mpeg",
	"flac": "audio/flac",
	"wav":  "audio/wav",
	"aac":  "audio/aac",
	"ogg":  "audio/ogg",
	"m4a":  "audio/mp4",
	"opus": "audio/opus",
	"wma":  "audio/x-ms-wma",

	"srt": "application/x-subrip",
	"vtt": "text/vtt",

	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",

	"zip": "application/zip",
	"rar": "application/vnd.rar",
	"7z":  "application/x-7z-compressed",

	"txt": "text/plain",
	"nfo": "text/plain",
}

var categoryByExtension = map[string]FileCategory{
	"mp4": CategoryVideo, "m4v": CategoryVideo, "mkv": CategoryVideo,
	"webm": CategoryVideo, "avi": CategoryVideo, "mov": CategoryVideo,
	"wmv": CategoryVideo, "flv": CategoryVideo, "mpg": CategoryVideo,
	"mpeg": CategoryVideo, "ts": CategoryVideo, "3gp": CategoryVideo,

	"mp3": CategoryAudio, "flac": CategoryAudio, "wav": CategoryAudio,
	"aac": CategoryAudio, "ogg": CategoryAudio, "m4a": CategoryAudio,
	"opus": CategoryAudio, "wma": CategoryAudio,

	"srt": CategorySubtitle, "sub": CategorySubtitle, "vtt": CategorySubtitle,
	"ass": CategorySubtitle, "ssa": CategorySubtitle,

	"jpg": CategoryImage, "jpeg": CategoryImage, "png": CategoryImage,
	"gif": CategoryImage,

	"zip": CategoryArchive, "rar": CategoryArchive, "7z": CategoryArchive,
}

// ExtensionOf returns the lower-cased extension without the leading dot.
func ExtensionOf(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	return ext
}

// CategoryOf classifies a file name by extension.
func CategoryOf(name string) FileCategory {
	if category, ok := categoryByExtension[ExtensionOf(name)]; ok {
		return category
	}
	return CategoryOther
}

// MimeTypeOf resolves the MIME type from the extension table; unknown
// extensions yield the empty string.
func MimeTypeOf(name string) string {
	return mimeByExtension[ExtensionOf(name)]
}

// IsPlayable reports whether the extension falls in a playable category.
// Playability follows the category table even when MIME resolution fails.
func IsPlayable(name string) bool {
	switch CategoryOf(name) {
	case CategoryVideo, CategoryAudio:
		return true
	case CategorySubtitle, CategoryImage, CategoryArchive, CategoryOther:
		return false
	}
	return false
}

// ToTorrent maps a raw listing record into the domain model. Malformed
// timestamps fall back to now so one bad record never blocks a listing.
func ToTorrent(record realdebrid.TorrentRecord) Torrent {
	torrent := Torrent{
		ID:       record.ID,
		Name:     record.Filename,
		Size:     record.Bytes,
		Modified: parseTimestamp(record.Added),
		Hash:     record.Hash,
		Progress: clampProgress(record.Progress / 100),
		Status:   parseTorrentStatus(record.Status),
	}

	if record.Seeders > 0 {
		seeders := record.Seeders
		torrent.Seeders = &seeders
	}
	if record.Speed > 0 {
		speed := record.Speed
		torrent.Speed = &speed
	}

	if len(record.Files) > 0 {
		torrent.Files = make([]File, 0, len(record.Files))
		// The remote returns one link per selected file, in file order.
		linkIdx := 0
		for _, file := range record.Files {
			link := ""
			if file.IsSelected() && linkIdx < len(record.Links) {
				link = record.Links[linkIdx]
				linkIdx++
			}
			torrent.Files = append(torrent.Files, ToFile(record.ID, file, link, torrent.Modified, torrent.Status))
		}
	}

	return torrent
}

// ToFile maps a constituent file record. The file ID is namespaced by the
// parent torrent so IDs stay unique within a listing.
func ToFile(torrentID string, record realdebrid.FileRecord, link string, modified time.Time, parentStatus TorrentStatus) File {
	name := path.Base(strings.TrimPrefix(record.Path, "/"))

	file := File{
		ID:          fmt.Sprintf("%s/%d", torrentID, record.ID),
		Name:        name,
		Size:        record.Bytes,
		Modified:    modified,
		MimeType:    MimeTypeOf(name),
		DownloadURL: link,
		Playable:    IsPlayable(name),
		Status:      fileStatusFor(record, parentStatus, link),
	}

	return file
}

// NewFolder builds a synthetic structural node for the given path.
func NewFolder(folderPath string, modified time.Time) Folder {
	cleaned := path.Clean("/" + strings.Trim(folderPath, "/"))
	return Folder{
		ID:       "folder:" + cleaned,
		Name:     path.Base(cleaned),
		Modified: modified,
		Path:     cleaned,
	}
}

func fileStatusFor(record realdebrid.FileRecord, parentStatus TorrentStatus, link string) FileStatus {
	switch parentStatus {
	case TorrentDownloaded:
		if record.IsSelected() && link != "" {
			return FileReady
		}
		return FileUnavailable
	case TorrentDownloading, TorrentQueued, TorrentCompressing, TorrentUploading:
		if record.IsSelected() {
			return FileDownloading
		}
		return FileUnavailable
	case TorrentError, TorrentMagnetError, TorrentDead, TorrentVirus:
		return FileError
	}
	return FileUnavailable
}

func parseTorrentStatus(status string) TorrentStatus {
	switch status {
	case realdebrid.StatusQueued, realdebrid.StatusMagnetConversion, realdebrid.StatusWaitingSelection:
		return TorrentQueued
	case realdebrid.StatusDownloading:
		return TorrentDownloading
	case realdebrid.StatusDownloaded:
		return TorrentDownloaded
	case realdebrid.StatusError:
		return TorrentError
	case realdebrid.StatusMagnetError:
		return TorrentMagnetError
	case realdebrid.StatusDead:
		return TorrentDead
	case realdebrid.StatusVirus:
		return TorrentVirus
	case realdebrid.StatusCompressing:
		return TorrentCompressing
	case realdebrid.StatusUploading:
		return TorrentUploading
	}
	return TorrentQueued
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed
		}
	}
	return time.Now()
}

func clampProgress(progress float64) float64 {
	if progress < 0 {
		return 0
	}
	if progress > 1 {
		return 1
	}
	return progress
}
