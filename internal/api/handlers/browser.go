// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/adinunzio10/rd-watch-sub012/internal/browser"
	"github.com/adinunzio10/rd-watch-sub012/internal/metrics"
)

// BrowserHandler exposes the listing, statistics and bulk-operation
// endpoints over one browser session.
type BrowserHandler struct {
	session *browser.Session
	metrics *metrics.BrowserMetrics
}

func NewBrowserHandler(session *browser.Session, browserMetrics *metrics.BrowserMetrics) *BrowserHandler {
	return &BrowserHandler{
		session: session,
		metrics: browserMetrics,
	}
}

func (h *BrowserHandler) Routes(r chi.Router) {
	r.Route("/listing", func(r chi.Router) {
		r.Get("/", h.ListItems)
		r.Post("/load-more", h.LoadMore)
		r.Post("/refresh", h.Refresh)
		r.Get("/stats", h.GetStatistics)
	})
	r.Post("/torrents/{id}/expand", h.ExpandTorrent)
	r.Route("/bulk", func(r chi.Router) {
		r.Post("/", h.RunBulkOperation)
		r.Get("/active", h.GetBulkStatus)
	})
}

type listResponse struct {
	Items   []browser.FileItem `json:"items"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	Limit   int                `json:"limit"`
	HasMore bool               `json:"hasMore"`
}

// ListItems returns the current view windowed by page and limit. Sorting
// and filtering apply to the whole loaded snapshot before windowing.
func (h *BrowserHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	limit := 100
	page := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 2000 {
			limit = parsed
		}
	}

	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed >= 0 {
			page = parsed
		}
	}

	sorting := browser.SortingOptions{Field: browser.SortByName, Order: browser.OrderAscending}
	if s := r.URL.Query().Get("sort"); s != "" {
		sorting.Field = browser.SortField(s)
	}
	if o := r.URL.Query().Get("order"); o != "" {
		sorting.Order = browser.SortOrder(o)
	}

	var filters browser.FilterOptions
	if q := r.URL.Query().Get("search"); q != "" {
		filters.Search = q
	}
	if f := r.URL.Query().Get("filters"); f != "" {
		if err := json.Unmarshal([]byte(f), &filters); err != nil {
			log.Warn().Err(err).Msg("Failed to parse filters, ignoring")
		}
	}

	view := h.session.CurrentView(sorting, filters)

	start := page * limit
	if start > len(view) {
		start = len(view)
	}
	end := start + limit
	if end > len(view) {
		end = len(view)
	}

	RespondJSON(w, http.StatusOK, listResponse{
		Items:   view[start:end],
		Total:   len(view),
		Page:    page,
		Limit:   limit,
		HasMore: h.session.HasMore(),
	})
}

// LoadMore fetches the next remote page into the session.
func (h *BrowserHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	n, err := h.session.LoadMore(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load listing page")
		RespondError(w, http.StatusBadGateway, "Failed to load listing page")
		return
	}

	if h.metrics != nil {
		h.metrics.PagesLoaded.Inc()
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"loaded":  n,
		"hasMore": h.session.HasMore(),
	})
}

// Refresh replaces the loaded snapshot with a fresh first page.
func (h *BrowserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Refresh(r.Context()); err != nil {
		log.Error().Err(err).Msg("Failed to refresh listing")
		RespondError(w, http.StatusBadGateway, "Failed to refresh listing")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{"hasMore": h.session.HasMore()})
}

// GetStatistics aggregates the current view. The same sort-independent
// filters as ListItems apply.
func (h *BrowserHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	var filters browser.FilterOptions
	if q := r.URL.Query().Get("search"); q != "" {
		filters.Search = q
	}
	if f := r.URL.Query().Get("filters"); f != "" {
		if err := json.Unmarshal([]byte(f), &filters); err != nil {
			log.Warn().Err(err).Msg("Failed to parse filters, ignoring")
		}
	}

	view := h.session.CurrentView(browser.SortingOptions{Field: browser.SortByName, Order: browser.OrderAscending}, filters)
	stats := browser.Statistics(view)

	log.Debug().
		Str("totalSize", humanize.IBytes(uint64(stats.TotalSize))).
		Int("torrents", stats.TorrentCount).
		Int("files", stats.FileCount).
		Msg("Computed content statistics")

	RespondJSON(w, http.StatusOK, stats)
}

// ExpandTorrent fetches a torrent's file list.
func (h *BrowserHandler) ExpandTorrent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		RespondError(w, http.StatusBadRequest, "Torrent ID is required")
		return
	}

	torrent, err := h.session.ExpandTorrent(r.Context(), id)
	if err != nil {
		reason := browser.ClassifyError(err)
		if reason.Kind == browser.FailureNotFound {
			RespondError(w, http.StatusNotFound, "Torrent not found")
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to expand torrent")
		RespondError(w, http.StatusBadGateway, "Failed to expand torrent")
		return
	}

	RespondJSON(w, http.StatusOK, torrent)
}

type bulkRequest struct {
	Type      string   `json:"type"`
	TargetIDs []string `json:"targetIds"`
}

type bulkResponse struct {
	Succeeded      []string                         `json:"succeeded"`
	Failed         map[string]browser.FailureReason `json:"failed"`
	TotalRequested int                              `json:"totalRequested"`
	Recovery       *bulkRecoverySummary             `json:"recovery,omitempty"`
}

type bulkRecoverySummary struct {
	Outcome   string `json:"outcome"`
	Attempts  int    `json:"attempts"`
	Recovered int    `json:"recovered"`
}

// RunBulkOperation executes a bulk request and responds once it has run
// to completion, including any recovery rounds.
func (h *BrowserHandler) RunBulkOperation(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.TargetIDs) == 0 {
		RespondError(w, http.StatusBadRequest, "At least one target ID is required")
		return
	}

	opType := browser.OperationType(req.Type)
	switch opType {
	case browser.OperationDelete, browser.OperationDownload, browser.OperationSelect:
	default:
		RespondError(w, http.StatusBadRequest, "Unknown bulk operation type")
		return
	}

	started := time.Now()
	events, err := h.session.RunBulkOperation(r.Context(), browser.BulkOperationRequest{
		Type:      opType,
		TargetIDs: req.TargetIDs,
	})
	if err != nil {
		RespondError(w, http.StatusConflict, err.Error())
		return
	}

	var result *browser.BulkOperationResult
	var recovery *browser.RecoveryState
	for event := range events {
		if event.Kind == browser.EventCompleted {
			result = event.Result
			recovery = event.Recovery
		}
	}

	if result == nil {
		RespondError(w, http.StatusInternalServerError, "Bulk operation produced no result")
		return
	}

	h.recordBulkMetrics(opType, result, recovery, time.Since(started))

	resp := bulkResponse{
		Succeeded:      make([]string, 0, len(result.Succeeded)),
		Failed:         result.Failed,
		TotalRequested: result.TotalRequested,
	}
	for id := range result.Succeeded {
		resp.Succeeded = append(resp.Succeeded, id)
	}
	if recovery != nil {
		resp.Recovery = &bulkRecoverySummary{
			Outcome:   string(recovery.Outcome()),
			Attempts:  recovery.Attempt,
			Recovered: len(recovery.Recovered),
		}
	}

	status := http.StatusOK
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	RespondJSON(w, status, resp)
}

// GetBulkStatus reports whether a bulk operation is in flight.
func (h *BrowserHandler) GetBulkStatus(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]bool{"active": h.session.Busy()})
}

func (h *BrowserHandler) recordBulkMetrics(opType browser.OperationType, result *browser.BulkOperationResult, recovery *browser.RecoveryState, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}

	h.metrics.BulkOperationsRun.WithLabelValues(string(opType)).Inc()
	h.metrics.BulkItemsSucceeded.Add(float64(len(result.Succeeded)))
	for _, reason := range result.Failed {
		h.metrics.BulkItemsFailed.WithLabelValues(string(reason.Kind)).Inc()
	}
	h.metrics.BulkDuration.Observe(elapsed.Seconds())

	if recovery != nil {
		h.metrics.RecoveryRounds.Add(float64(recovery.Attempt))
		h.metrics.RecoveryRecovered.Add(float64(len(recovery.Recovered)))
		if recovery.Outcome() == browser.RecoveryExhausted {
			h.metrics.RecoveryExhausted.Add(float64(len(recovery.Pending)))
		}
	}
}
