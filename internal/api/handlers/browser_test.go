// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adinunzio10/rd-watch-sub012/internal/backoff"
	"github.com/adinunzio10/rd-watch-sub012/internal/browser"
	"github.com/adinunzio10/rd-watch-sub012/internal/realdebrid"
)

// stubListing serves a fixed set of torrent records page by page.
type stubListing struct {
	records []realdebrid.TorrentRecord
}

func (s *stubListing) FetchPage(_ context.Context, offset, limit int) ([]realdebrid.TorrentRecord, error) {
	if offset >= len(s.records) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.records) {
		end = len(s.records)
	}
	return s.records[offset:end], nil
}

func (s *stubListing) ExpandTorrent(_ context.Context, id string) (realdebrid.TorrentRecord, error) {
	for _, record := range s.records {
		if record.ID == id {
			return record, nil
		}
	}
	return realdebrid.TorrentRecord{}, &realdebrid.APIError{StatusCode: http.StatusNotFound, Endpoint: "/torrents/info/" + id}
}

// stubOps scripts per-ID failures and records deletions. A delete blocks
// on gate when one is set, so tests can hold an operation in flight.
type stubOps struct {
	mu      sync.Mutex
	errs    map[string]error
	deleted []string

	gateStarted chan struct{}
	gateRelease chan struct{}
}

func (s *stubOps) DeleteItem(_ context.Context, id string) error {
	if s.gateStarted != nil {
		s.gateStarted <- struct{}{}
		<-s.gateRelease
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	if err, ok := s.errs[id]; ok {
		return err
	}
	return nil
}

func (s *stubOps) SelectFiles(_ context.Context, id string, _ []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[id]; ok {
		return err
	}
	return nil
}

func (s *stubOps) Unrestrict(_ context.Context, link string) (realdebrid.UnrestrictedLink, error) {
	return realdebrid.UnrestrictedLink{Download: link + "/direct"}, nil
}

func stubRecords(n int) []realdebrid.TorrentRecord {
	records := make([]realdebrid.TorrentRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, realdebrid.TorrentRecord{
			ID:       fmt.Sprintf("t%03d", i),
			Filename: fmt.Sprintf("item-%03d.mkv", i),
			Bytes:    int64((i + 1) * 1024),
			Status:   "downloaded",
			Progress: 100,
		})
	}
	return records
}

func newTestRouter(t *testing.T, listing *stubListing, ops browser.RemoteOperations) (chi.Router, *browser.Session) {
	t.Helper()

	session, err := browser.NewSession(listing, ops, browser.SessionOptions{
		PageSize:         50,
		Workers:          2,
		ItemTimeout:      time.Second,
		RecoveryAttempts: 2,
		Policy:           backoff.Policy{Base: time.Millisecond, Multiplier: 2, Max: 5 * time.Millisecond},
	})
	require.NoError(t, err)

	router := chi.NewRouter()
	NewBrowserHandler(session, nil).Routes(router)
	return router, session
}

func loadFirstPage(t *testing.T, router chi.Router) {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/listing/load-more", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListItemsWindowsTheView(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, &stubListing{records: stubRecords(25)}, &stubOps{})
	loadFirstPage(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listing?limit=10&page=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items   []map[string]any `json:"items"`
		Total   int              `json:"total"`
		Page    int              `json:"page"`
		HasMore bool             `json:"hasMore"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, 25, resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.False(t, resp.HasMore)
	require.Len(t, resp.Items, 10)
	assert.Equal(t, "torrent", resp.Items[0]["kind"])
	assert.Equal(t, "item-010.mkv", resp.Items[0]["name"])
}

func TestListItemsAppliesSearchFilter(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, &stubListing{records: stubRecords(25)}, &stubOps{})
	loadFirstPage(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listing?search=item-004", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "item-004.mkv", resp.Items[0]["name"])
}

func TestGetStatisticsAggregatesTheView(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, &stubListing{records: stubRecords(4)}, &stubOps{})
	loadFirstPage(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listing/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		TorrentCount int   `json:"torrentCount"`
		TotalSize    int64 `json:"totalSize"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 4, stats.TorrentCount)
	assert.Equal(t, int64(1024+2048+3072+4096), stats.TotalSize)
}

func TestExpandTorrentUnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, &stubListing{records: stubRecords(2)}, &stubOps{})
	loadFirstPage(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/torrents/nope/expand", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func bulkBody(opType string, ids ...string) *strings.Reader {
	payload, _ := json.Marshal(map[string]any{"type": opType, "targetIds": ids})
	return strings.NewReader(string(payload))
}

func TestRunBulkOperationDeleteSucceeds(t *testing.T) {
	t.Parallel()

	ops := &stubOps{}
	router, _ := newTestRouter(t, &stubListing{records: stubRecords(5)}, ops)
	loadFirstPage(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bulk", bulkBody("DELETE", "t000", "t001")))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Succeeded      []string       `json:"succeeded"`
		Failed         map[string]any `json:"failed"`
		TotalRequested int            `json:"totalRequested"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.ElementsMatch(t, []string{"t000", "t001"}, resp.Succeeded)
	assert.Empty(t, resp.Failed)
	assert.Equal(t, 2, resp.TotalRequested)
}

func TestRunBulkOperationPartialFailureReturnsMultiStatus(t *testing.T) {
	t.Parallel()

	ops := &stubOps{errs: map[string]error{
		"t001": &realdebrid.APIError{StatusCode: http.StatusForbidden, Endpoint: "/torrents/delete/t001"},
	}}
	router, _ := newTestRouter(t, &stubListing{records: stubRecords(5)}, ops)
	loadFirstPage(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bulk", bulkBody("DELETE", "t000", "t001")))
	require.Equal(t, http.StatusMultiStatus, rec.Code)

	var resp struct {
		Succeeded []string `json:"succeeded"`
		Failed    map[string]struct {
			Kind string `json:"kind"`
		} `json:"failed"`
		Recovery *struct {
			Outcome string `json:"outcome"`
		} `json:"recovery"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.ElementsMatch(t, []string{"t000"}, resp.Succeeded)
	require.Contains(t, resp.Failed, "t001")
	assert.Equal(t, "permission_denied", resp.Failed["t001"].Kind)
}

func TestRunBulkOperationRejectsBadRequests(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, &stubListing{records: stubRecords(2)}, &stubOps{})

	tests := []struct {
		name string
		body *strings.Reader
	}{
		{name: "no targets", body: bulkBody("DELETE")},
		{name: "unknown type", body: bulkBody("ARCHIVE", "t000")},
		{name: "invalid json", body: strings.NewReader("{")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bulk", tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRunBulkOperationConflictsWhileBusy(t *testing.T) {
	t.Parallel()

	ops := &stubOps{
		gateStarted: make(chan struct{}, 1),
		gateRelease: make(chan struct{}),
	}
	router, session := newTestRouter(t, &stubListing{records: stubRecords(3)}, ops)
	loadFirstPage(t, router)

	firstDone := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bulk", bulkBody("DELETE", "t000")))
		firstDone <- rec.Code
	}()

	// Wait until the first operation holds the session.
	<-ops.gateStarted
	assert.True(t, session.Busy())

	statusRec := httptest.NewRecorder()
	router.ServeHTTP(statusRec, httptest.NewRequest(http.MethodGet, "/bulk/active", nil))
	require.Equal(t, http.StatusOK, statusRec.Code)
	assert.JSONEq(t, `{"active": true}`, statusRec.Body.String())

	secondRec := httptest.NewRecorder()
	router.ServeHTTP(secondRec, httptest.NewRequest(http.MethodPost, "/bulk", bulkBody("DELETE", "t001")))
	assert.Equal(t, http.StatusConflict, secondRec.Code)

	close(ops.gateRelease)
	assert.Equal(t, http.StatusOK, <-firstDone)
}
