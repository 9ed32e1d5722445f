// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package realdebrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adinunzio10/rd-watch-sub012/internal/backoff"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "test-token", 5)
	client.policy = backoff.Policy{Base: time.Millisecond, Multiplier: 2, Max: 5 * time.Millisecond}
	return client
}

func TestFetchPage(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/torrents", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("offset"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode([]TorrentRecord{
			{ID: "AAA", Filename: "one.mkv", Bytes: 100, Status: StatusDownloaded},
			{ID: "BBB", Filename: "two.mkv", Bytes: 200, Status: StatusDownloading},
		})
	}))

	records, err := client.FetchPage(context.Background(), 100, 50)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "AAA", records[0].ID)
	assert.Equal(t, StatusDownloading, records[1].Status)
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]TorrentRecord{{ID: "AAA"}})
	}))

	records, err := client.FetchPage(context.Background(), 0, 10)
	require.NoError(t, err)

	assert.Len(t, records, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchPageDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "bad_token", "error_code": 8})
	}))

	_, err := client.FetchPage(context.Background(), 0, 10)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExpandTorrent(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/torrents/info/AAA", r.URL.Path)
		_ = json.NewEncoder(w).Encode(TorrentRecord{
			ID:       "AAA",
			Filename: "pack",
			Files:    []FileRecord{{ID: 1, Path: "/pack/video.mkv", Bytes: 10, Selected: 1}},
			Links:    []string{"https://real-debrid.com/d/XYZ"},
		})
	}))

	record, err := client.ExpandTorrent(context.Background(), "AAA")
	require.NoError(t, err)

	require.Len(t, record.Files, 1)
	assert.True(t, record.Files[0].IsSelected())
}

func TestDeleteItem(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/torrents/delete/AAA", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	assert.NoError(t, client.DeleteItem(context.Background(), "AAA"))
}

func TestDeleteItemNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "unknown_resource", "error_code": 7})
	}))

	err := client.DeleteItem(context.Background(), "AAA")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "unknown_resource", apiErr.Message)
	assert.Equal(t, 7, apiErr.Code)
}

func TestDeleteBatchDecomposesPerID(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/torrents/delete", r.URL.Path)

		var payload struct {
			IDs []string `json:"ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, []string{"AAA", "BBB", "CCC"}, payload.IDs)

		_ = json.NewEncoder(w).Encode(batchDeleteResponse{Results: map[string]batchDeleteResult{
			"AAA": {Success: true},
			"BBB": {Success: false, Status: 503, Error: "unavailable"},
		}})
	}))

	outcomes, err := client.DeleteBatch(context.Background(), []string{"AAA", "BBB", "CCC"})
	require.NoError(t, err)

	require.Len(t, outcomes, 3)
	assert.NoError(t, outcomes["AAA"])

	var apiErr *APIError
	require.ErrorAs(t, outcomes["BBB"], &apiErr)
	assert.Equal(t, 503, apiErr.StatusCode)

	// IDs missing from the response surface as server errors.
	require.ErrorAs(t, outcomes["CCC"], &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
}

func TestSelectFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fileIDs []int
		want    string
	}{
		{name: "specific files", fileIDs: []int{1, 3, 7}, want: "1,3,7"},
		{name: "all files", fileIDs: nil, want: "all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/torrents/selectFiles/AAA", r.URL.Path)
				require.NoError(t, r.ParseForm())
				assert.Equal(t, tt.want, r.PostForm.Get("files"))
				w.WriteHeader(http.StatusNoContent)
			}))

			assert.NoError(t, client.SelectFiles(context.Background(), "AAA", tt.fileIDs))
		})
	}
}

func TestUnrestrict(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/unrestrict/link", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://real-debrid.com/d/XYZ", r.PostForm.Get("link"))

		_ = json.NewEncoder(w).Encode(UnrestrictedLink{
			ID:       "UNR1",
			Filename: "video.mkv",
			Download: "https://cdn.real-debrid.com/video.mkv",
		})
	}))

	link, err := client.Unrestrict(context.Background(), "https://real-debrid.com/d/XYZ")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.real-debrid.com/video.mkv", link.Download)
}

func TestAPIErrorIsRateLimited(t *testing.T) {
	t.Parallel()

	assert.True(t, (&APIError{StatusCode: 429}).IsRateLimited())
	assert.False(t, (&APIError{StatusCode: 500}).IsRateLimited())
}
