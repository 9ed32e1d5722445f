// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package realdebrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"

	"github.com/adinunzio10/rd-watch-sub012/internal/backoff"
	"github.com/adinunzio10/rd-watch-sub012/internal/buildinfo"
)

const maxResponseBytes int64 = 16 << 20 // safety limit for API payloads

// Client talks to the debrid API with bearer-token auth.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	policy     backoff.Policy
	attempts   uint
}

// NewClient creates a client for the given API base URL and token.
func NewClient(baseURL, token string, timeoutSeconds int) *Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
		policy:     backoff.Default(),
		attempts:   3,
	}
}

// FetchPage returns the listing window [offset, offset+limit). Transient
// failures are retried with the shared backoff policy; the returned slice
// order is the remote's ordering.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) ([]TorrentRecord, error) {
	endpoint := fmt.Sprintf("/torrents?offset=%d&limit=%d", offset, limit)

	var records []TorrentRecord
	err := c.getWithRetry(ctx, endpoint, &records)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("offset", offset).
		Int("limit", limit).
		Int("returned", len(records)).
		Msg("Fetched listing page")

	return records, nil
}

// ExpandTorrent fetches the torrent info including its constituent files
// and unrestrictable links.
func (c *Client) ExpandTorrent(ctx context.Context, id string) (TorrentRecord, error) {
	var record TorrentRecord
	if strings.TrimSpace(id) == "" {
		return record, errors.New("torrent id is required")
	}

	err := c.getWithRetry(ctx, "/torrents/info/"+url.PathEscape(id), &record)
	return record, err
}

// DeleteItem removes a single torrent from the remote account.
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("torrent id is required")
	}

	req, err := c.newRequest(ctx, http.MethodDelete, "/torrents/delete/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

type batchDeleteResult struct {
	Success bool   `json:"success"`
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    int    `json:"error_code,omitempty"`
}

type batchDeleteResponse struct {
	Results map[string]batchDeleteResult `json:"results"`
}

// DeleteBatch removes several torrents in one call and decomposes the
// response back into per-ID outcomes. IDs absent from the response are
// treated as failed so every requested ID resolves exactly once.
func (c *Client) DeleteBatch(ctx context.Context, ids []string) (map[string]error, error) {
	if len(ids) == 0 {
		return map[string]error{}, nil
	}

	payload, err := json.Marshal(struct {
		IDs []string `json:"ids"`
	}{IDs: ids})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/torrents/delete", strings.NewReader(string(payload)), "application/json")
	if err != nil {
		return nil, err
	}

	var resp batchDeleteResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	outcomes := make(map[string]error, len(ids))
	for _, id := range ids {
		result, ok := resp.Results[id]
		if !ok {
			outcomes[id] = &APIError{StatusCode: http.StatusInternalServerError, Endpoint: "/torrents/delete", Message: "missing from batch response"}
			continue
		}
		if result.Success {
			outcomes[id] = nil
			continue
		}
		status := result.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		outcomes[id] = &APIError{StatusCode: status, Endpoint: "/torrents/delete", Code: result.Code, Message: result.Error}
	}

	return outcomes, nil
}

// SelectFiles marks torrent files for remote download. An empty fileIDs
// slice selects all files.
func (c *Client) SelectFiles(ctx context.Context, id string, fileIDs []int) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("torrent id is required")
	}

	files := "all"
	if len(fileIDs) > 0 {
		parts := make([]string, 0, len(fileIDs))
		for _, fileID := range fileIDs {
			parts = append(parts, strconv.Itoa(fileID))
		}
		files = strings.Join(parts, ",")
	}

	form := url.Values{"files": {files}}
	req, err := c.newRequest(ctx, http.MethodPost, "/torrents/selectFiles/"+url.PathEscape(id), strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Unrestrict resolves a restricted link into a direct download URL.
func (c *Client) Unrestrict(ctx context.Context, link string) (UnrestrictedLink, error) {
	var unrestricted UnrestrictedLink
	if strings.TrimSpace(link) == "" {
		return unrestricted, errors.New("link is required")
	}

	form := url.Values{"link": {link}}
	req, err := c.newRequest(ctx, http.MethodPost, "/unrestrict/link", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return unrestricted, err
	}

	err = c.do(req, &unrestricted)
	return unrestricted, err
}

func (c *Client) getWithRetry(ctx context.Context, endpoint string, out any) error {
	return retry.Do(
		func() error {
			req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil, "")
			if err != nil {
				return retry.Unrecoverable(err)
			}
			return c.do(req, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return c.policy.Delay(int(n))
		}),
	)
}

// isTransient reports whether a request is worth retrying: throttling,
// server errors and network-level failures qualify, other client errors
// do not.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.IsRateLimited()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s request: %w", method, endpoint, err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	endpoint := req.URL.Path

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if readErr == nil && len(body) > 0 {
			// Error payloads are best-effort JSON; keep the status either way.
			_ = json.Unmarshal(body, apiErr)
		}

		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" && apiErr.IsRateLimited() {
			if seconds, parseErr := strconv.Atoi(retryAfter); parseErr == nil {
				log.Debug().Int("retryAfterSeconds", seconds).Str("endpoint", endpoint).Msg("Remote requested throttling")
			}
		}

		return apiErr
	}

	if out == nil {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	return nil
}
