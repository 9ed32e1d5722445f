// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/adinunzio10/rd-watch-sub012/internal/realdebrid"
)

// FailureKind classifies why a single bulk-operation target failed.
type FailureKind string

const (
	FailureNetwork          FailureKind = "network"
	FailureRateLimited      FailureKind = "rate_limited"
	FailureNotFound         FailureKind = "not_found"
	FailurePermissionDenied FailureKind = "permission_denied"
	FailureServerError      FailureKind = "server_error"
	FailureClientError      FailureKind = "client_error"
	FailureCancelled        FailureKind = "cancelled"
	FailureUnknown          FailureKind = "unknown"
)

// FailureReason is the per-item failure payload. Failures are data, never
// exceptions, once they cross the coordinator boundary.
type FailureReason struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (r FailureReason) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// Retryable reports whether a recovery round should re-attempt the item.
// Rate-limited failures are retryable but warrant the longer end of the
// backoff curve; cancelled items are never retried automatically.
func (r FailureReason) Retryable() bool {
	switch r.Kind {
	case FailureNetwork, FailureRateLimited, FailureServerError:
		return true
	case FailureNotFound, FailurePermissionDenied, FailureClientError, FailureCancelled, FailureUnknown:
		return false
	}
	return false
}

// ClassifyError maps a remote-call error onto the failure taxonomy.
func ClassifyError(err error) FailureReason {
	if err == nil {
		return FailureReason{Kind: FailureUnknown, Message: "no error"}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureReason{Kind: FailureNetwork, Message: "request timed out"}
	}
	if errors.Is(err, context.Canceled) {
		return FailureReason{Kind: FailureCancelled, Message: "operation cancelled"}
	}

	var apiErr *realdebrid.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return FailureReason{Kind: FailureNotFound, Message: apiErr.Error()}
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return FailureReason{Kind: FailurePermissionDenied, Message: apiErr.Error()}
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return FailureReason{Kind: FailureRateLimited, Message: apiErr.Error()}
		case apiErr.StatusCode >= 500:
			return FailureReason{Kind: FailureServerError, Message: apiErr.Error()}
		case apiErr.StatusCode >= 400:
			return FailureReason{Kind: FailureClientError, Message: apiErr.Error()}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureReason{Kind: FailureNetwork, Message: err.Error()}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureReason{Kind: FailureNetwork, Message: err.Error()}
	}

	return FailureReason{Kind: FailureUnknown, Message: err.Error()}
}
