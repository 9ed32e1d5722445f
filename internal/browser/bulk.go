// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package browser

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/adinunzio10/rd-watch-sub012/internal/realdebrid"
)

// OperationType identifies a bulk action.
type OperationType string

const (
	OperationDelete   OperationType = "DELETE"
	OperationDownload OperationType = "DOWNLOAD"
	OperationSelect   OperationType = "SELECT"
)

// RemoteOperations is the write-side collaborator contract.
type RemoteOperations interface {
	DeleteItem(ctx context.Context, id string) error
	SelectFiles(ctx context.Context, id string, fileIDs []int) error
	Unrestrict(ctx context.Context, link string) (realdebrid.UnrestrictedLink, error)
}

// BatchDeleter is an optional upgrade of RemoteOperations. When the remote
// supports it, DELETE requests go out as one batch call with per-ID results
// instead of a call per target.
type BatchDeleter interface {
	DeleteBatch(ctx context.Context, ids []string) (map[string]error, error)
}

// BulkOperationRequest describes one bulk action over a set of target IDs.
// Duplicate IDs are collapsed before execution.
type BulkOperationRequest struct {
	Type      OperationType
	TargetIDs []string
}

// BulkOperationResult partitions the requested targets. Every requested ID
// lands in exactly one of Succeeded or Failed.
type BulkOperationResult struct {
	Succeeded      map[string]struct{}
	Failed         map[string]FailureReason
	TotalRequested int
}

// FailedCount returns the number of targets that did not complete.
func (r BulkOperationResult) FailedCount() int { return len(r.Failed) }

// AllSucceeded reports whether every target completed.
func (r BulkOperationResult) AllSucceeded() bool { return len(r.Failed) == 0 }

// linkResolver maps a target ID to the restricted link to unrestrict. The
// session provides one backed by its loaded snapshot.
type linkResolver func(id string) (string, error)

// selectionResolver maps a torrent ID to the file IDs to select. Empty
// means select all files.
type selectionResolver func(id string) []int

const (
	defaultBulkWorkers     = 6
	defaultBulkItemTimeout = 30 * time.Second
)

// Coordinator fans a bulk request out over a bounded worker pool and
// accumulates one outcome per target.
type Coordinator struct {
	ops         RemoteOperations
	workers     int
	itemTimeout time.Duration

	resolveLink      linkResolver
	resolveSelection selectionResolver
}

// NewCoordinator creates a coordinator over the remote operations.
func NewCoordinator(ops RemoteOperations, workers int, itemTimeout time.Duration) *Coordinator {
	if workers <= 0 {
		workers = defaultBulkWorkers
	}
	if itemTimeout <= 0 {
		itemTimeout = defaultBulkItemTimeout
	}
	return &Coordinator{
		ops:         ops,
		workers:     workers,
		itemTimeout: itemTimeout,
	}
}

// Execute runs the request to completion and returns the partitioned
// result. Execution never aborts on individual failures; a failed target
// is recorded and the rest proceed. An empty target set is an error.
func (c *Coordinator) Execute(ctx context.Context, req BulkOperationRequest) (BulkOperationResult, error) {
	targets := dedupIDs(req.TargetIDs)
	if len(targets) == 0 {
		return BulkOperationResult{}, errors.New("bulk operation has no targets")
	}

	switch req.Type {
	case OperationDelete, OperationDownload, OperationSelect:
	default:
		return BulkOperationResult{}, errors.Errorf("unknown bulk operation type %q", req.Type)
	}

	result := BulkOperationResult{
		Succeeded:      make(map[string]struct{}, len(targets)),
		Failed:         make(map[string]FailureReason),
		TotalRequested: len(targets),
	}

	if req.Type == OperationDelete {
		if batcher, ok := c.ops.(BatchDeleter); ok {
			c.executeBatchDelete(ctx, batcher, targets, &result)
			return result, nil
		}
	}

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(c.workers)

	for _, id := range targets {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			result.Failed[id] = FailureReason{Kind: FailureCancelled, Message: "operation cancelled before dispatch"}
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			// Targets queued behind the worker limit check again, so a
			// cancellation mid-run stops issuing new remote calls.
			var err error
			if ctx.Err() != nil {
				err = ctx.Err()
			} else {
				err = c.executeOne(ctx, req.Type, id)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[id] = ClassifyError(err)
			} else {
				result.Succeeded[id] = struct{}{}
			}
			return nil
		})
	}

	_ = g.Wait()

	log.Debug().
		Str("type", string(req.Type)).
		Int("requested", result.TotalRequested).
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Msg("Bulk operation finished")

	return result, nil
}

// executeOne runs a single target. Work already in flight finishes even
// when the request context is cancelled; the per-item timeout bounds it
// instead.
func (c *Coordinator) executeOne(ctx context.Context, op OperationType, id string) error {
	itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.itemTimeout)
	defer cancel()

	switch op {
	case OperationDelete:
		err := c.ops.DeleteItem(itemCtx, id)
		if isNotFound(err) {
			// The target is already gone, which is what deletion wanted.
			return nil
		}
		return err

	case OperationSelect:
		var fileIDs []int
		if c.resolveSelection != nil {
			fileIDs = c.resolveSelection(id)
		}
		return c.ops.SelectFiles(itemCtx, id, fileIDs)

	case OperationDownload:
		if c.resolveLink == nil {
			return errors.Errorf("no link available for %s", id)
		}
		link, err := c.resolveLink(id)
		if err != nil {
			return err
		}
		_, err = c.ops.Unrestrict(itemCtx, link)
		return err

	default:
		panic("unhandled bulk operation type: " + string(op))
	}
}

func (c *Coordinator) executeBatchDelete(ctx context.Context, batcher BatchDeleter, targets []string, result *BulkOperationResult) {
	outcomes, err := batcher.DeleteBatch(ctx, targets)
	if err != nil {
		// The whole batch failed; every target shares the reason.
		reason := ClassifyError(err)
		for _, id := range targets {
			result.Failed[id] = reason
		}
		return
	}

	for _, id := range targets {
		itemErr, ok := outcomes[id]
		switch {
		case !ok:
			result.Failed[id] = FailureReason{Kind: FailureUnknown, Message: "missing from batch response"}
		case itemErr == nil, isNotFound(itemErr):
			result.Succeeded[id] = struct{}{}
		default:
			result.Failed[id] = ClassifyError(itemErr)
		}
	}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *realdebrid.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

func dedupIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
