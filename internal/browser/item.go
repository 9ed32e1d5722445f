// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package browser implements the remote content browser and bulk-operation
// engine: a sortable, filterable, paginated view over the two-level debrid
// hierarchy (torrents and their files), plus bulk delete/select/download
// with partial-failure recovery.
package browser

import (
	"encoding/json"
	"time"
)

// FileItem is the sealed union of browsable entities. Exactly one of
// Folder, Torrent or File describes any node; consumers dispatch with an
// exhaustive type switch.
type FileItem interface {
	isFileItem()

	ItemID() string
	ItemName() string
	ItemSize() int64
	ItemModified() time.Time
}

// TorrentStatus mirrors the remote torrent lifecycle. Ordinal order is the
// sort order used by the status comparator.
type TorrentStatus int

const (
	TorrentQueued TorrentStatus = iota
	TorrentDownloading
	TorrentDownloaded
	TorrentError
	TorrentMagnetError
	TorrentDead
	TorrentVirus
	TorrentCompressing
	TorrentUploading
)

var torrentStatusNames = map[TorrentStatus]string{
	TorrentQueued:      "queued",
	TorrentDownloading: "downloading",
	TorrentDownloaded:  "downloaded",
	TorrentError:       "error",
	TorrentMagnetError: "magnet_error",
	TorrentDead:        "dead",
	TorrentVirus:       "virus",
	TorrentCompressing: "compressing",
	TorrentUploading:   "uploading",
}

func (s TorrentStatus) String() string {
	if name, ok := torrentStatusNames[s]; ok {
		return name
	}
	return "queued"
}

func (s TorrentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TorrentStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for status, n := range torrentStatusNames {
		if n == name {
			*s = status
			return nil
		}
	}
	*s = TorrentQueued
	return nil
}

// FileStatus mirrors the per-file availability state.
type FileStatus int

const (
	FileReady FileStatus = iota
	FileUnavailable
	FileDownloading
	FileError
)

var fileStatusNames = map[FileStatus]string{
	FileReady:       "ready",
	FileUnavailable: "unavailable",
	FileDownloading: "downloading",
	FileError:       "error",
}

func (s FileStatus) String() string {
	if name, ok := fileStatusNames[s]; ok {
		return name
	}
	return "ready"
}

func (s FileStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *FileStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for status, n := range fileStatusNames {
		if n == name {
			*s = status
			return nil
		}
	}
	*s = FileReady
	return nil
}

// Folder is a purely structural node with a synthetic path identity.
type Folder struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Path     string    `json:"path"`
}

func (Folder) isFileItem() {}

func (f Folder) ItemID() string          { return f.ID }
func (f Folder) ItemName() string        { return f.Name }
func (f Folder) ItemSize() int64         { return f.Size }
func (f Folder) ItemModified() time.Time { return f.Modified }

func (f Folder) MarshalJSON() ([]byte, error) {
	type alias Folder
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{Kind: "folder", alias: alias(f)})
}

// Torrent is a remote torrent entry. Files stays empty until an explicit
// expand fetch populates it.
type Torrent struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Size     int64         `json:"size"`
	Modified time.Time     `json:"modified"`
	Hash     string        `json:"hash"`
	Progress float64       `json:"progress"`
	Status   TorrentStatus `json:"status"`
	Seeders  *int          `json:"seeders,omitempty"`
	Speed    *int64        `json:"speed,omitempty"`
	Files    []File        `json:"files,omitempty"`
}

func (Torrent) isFileItem() {}

func (t Torrent) ItemID() string          { return t.ID }
func (t Torrent) ItemName() string        { return t.Name }
func (t Torrent) ItemSize() int64         { return t.Size }
func (t Torrent) ItemModified() time.Time { return t.Modified }

func (t Torrent) MarshalJSON() ([]byte, error) {
	type alias Torrent
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{Kind: "torrent", alias: alias(t)})
}

// File is a constituent file of a torrent, or a standalone download.
type File struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Size        int64      `json:"size"`
	Modified    time.Time  `json:"modified"`
	MimeType    string     `json:"mimeType,omitempty"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	StreamURL   string     `json:"streamUrl,omitempty"`
	Playable    bool       `json:"playable"`
	Status      FileStatus `json:"status"`
	Progress    *float64   `json:"progress,omitempty"`
}

func (File) isFileItem() {}

func (f File) ItemID() string          { return f.ID }
func (f File) ItemName() string        { return f.Name }
func (f File) ItemSize() int64         { return f.Size }
func (f File) ItemModified() time.Time { return f.Modified }

func (f File) MarshalJSON() ([]byte, error) {
	type alias File
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{Kind: "file", alias: alias(f)})
}
