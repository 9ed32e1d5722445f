// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package realdebrid is a thin client for the debrid cloud-storage API:
// torrent listings, per-torrent file expansion, deletion, file selection
// and link unrestriction.
package realdebrid

import "fmt"

// TorrentRecord is a raw listing entry as returned by GET /torrents and
// GET /torrents/info/{id}. Files and Links are only populated by the info
// endpoint.
type TorrentRecord struct {
	ID               string       `json:"id"`
	Filename         string       `json:"filename"`
	OriginalFilename string       `json:"original_filename,omitempty"`
	Hash             string       `json:"hash"`
	Bytes            int64        `json:"bytes"`
	OriginalBytes    int64        `json:"original_bytes,omitempty"`
	Host             string       `json:"host"`
	Progress         float64      `json:"progress"`
	Status           string       `json:"status"`
	Added            string       `json:"added"`
	Ended            string       `json:"ended,omitempty"`
	Speed            int64        `json:"speed,omitempty"`
	Seeders          int          `json:"seeders,omitempty"`
	Files            []FileRecord `json:"files,omitempty"`
	Links            []string     `json:"links,omitempty"`
}

// FileRecord is a constituent file inside a torrent info response.
type FileRecord struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

// IsSelected reports whether the remote marked this file selected.
func (f FileRecord) IsSelected() bool { return f.Selected == 1 }

// UnrestrictedLink is the response of POST /unrestrict/link.
type UnrestrictedLink struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	Filesize   int64  `json:"filesize"`
	Link       string `json:"link"`
	Host       string `json:"host"`
	Download   string `json:"download"`
	Streamable int    `json:"streamable"`
}

// Torrent status values used by the remote API.
const (
	StatusMagnetError      = "magnet_error"
	StatusMagnetConversion = "magnet_conversion"
	StatusWaitingSelection = "waiting_files_selection"
	StatusQueued           = "queued"
	StatusDownloading      = "downloading"
	StatusDownloaded       = "downloaded"
	StatusError            = "error"
	StatusVirus            = "virus"
	StatusCompressing      = "compressing"
	StatusUploading        = "uploading"
	StatusDead             = "dead"
)

// APIError is an HTTP-level failure from the debrid API. It preserves the
// status code so callers can classify retryability.
type APIError struct {
	StatusCode int
	Endpoint   string
	Code       int    `json:"error_code,omitempty"`
	Message    string `json:"error,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("debrid %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("debrid %s returned status %d", e.Endpoint, e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	_, ok := target.(*APIError)
	return ok
}

// IsRateLimited reports whether this error indicates remote throttling.
func (e *APIError) IsRateLimited() bool { return e.StatusCode == 429 }
