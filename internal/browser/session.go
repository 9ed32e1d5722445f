// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package browser

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/adinunzio10/rd-watch-sub012/internal/backoff"
)

// ListingCache persists listing snapshots locally so a restart can show
// content before the first remote page lands.
type ListingCache interface {
	UpsertListing(ctx context.Context, torrents []Torrent) error
	RemoveByIDs(ctx context.Context, ids []string) error
	LoadListing(ctx context.Context) ([]Torrent, error)
}

// EventKind tags a bulk-operation progress event.
type EventKind string

const (
	EventStarted       EventKind = "started"
	EventPartialResult EventKind = "partial_result"
	EventRecovering    EventKind = "recovering"
	EventCompleted     EventKind = "completed"
)

// Event reports bulk-operation progress. Result is set on PartialResult
// and Completed; Recovery is set on Recovering and Completed when a
// recovery ran.
type Event struct {
	Kind     EventKind
	Result   *BulkOperationResult
	Recovery *RecoveryState
}

// Session owns one user's view of the remote listing and serializes its
// bulk operations: at most one runs at a time.
type Session struct {
	paginator   *Paginator
	coordinator *Coordinator
	recovery    *Recovery
	cache       ListingCache

	mu       sync.Mutex
	opActive bool
}

// SessionOptions configures a session.
type SessionOptions struct {
	PageSize         int
	Workers          int
	ItemTimeout      time.Duration
	RecoveryAttempts int
	Policy           backoff.Policy
	Cache            ListingCache
}

// NewSession wires a session over the remote collaborators.
func NewSession(listing RemoteListing, ops RemoteOperations, opts SessionOptions) (*Session, error) {
	coordinator := NewCoordinator(ops, opts.Workers, opts.ItemTimeout)

	attempts := opts.RecoveryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	recovery, err := NewRecovery(coordinator, opts.Policy, attempts)
	if err != nil {
		return nil, err
	}

	s := &Session{
		paginator:   NewPaginator(listing, opts.PageSize),
		coordinator: coordinator,
		recovery:    recovery,
		cache:       opts.Cache,
	}
	coordinator.resolveLink = s.linkFor
	return s, nil
}

// WarmStart seeds the view from the local listing cache so content shows
// before the first remote page lands. The seed is replaced, not appended
// to, by the first LoadMore or Refresh. It returns the number of seeded
// items; without a cache it is a no-op.
func (s *Session) WarmStart(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}

	torrents, err := s.cache.LoadListing(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to load cached listing")
	}
	if len(torrents) == 0 {
		return 0, nil
	}

	items := make([]FileItem, 0, len(torrents))
	for _, t := range torrents {
		items = append(items, t)
	}

	s.mu.Lock()
	s.paginator.Seed(items)
	s.mu.Unlock()

	log.Debug().Int("items", len(items)).Msg("Seeded listing from cache")
	return len(items), nil
}

// CurrentView returns the loaded snapshot with the filter and sort
// applied, in that order. The underlying snapshot is never mutated.
func (s *Session) CurrentView(sorting SortingOptions, filter FilterOptions) []FileItem {
	s.mu.Lock()
	items := s.paginator.Items()
	s.mu.Unlock()

	return Sort(Filter(items, filter), sorting)
}

// LoadMore fetches and appends the next listing page.
func (s *Session) LoadMore(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.paginator.LoadNextPage(ctx)
	if err != nil {
		return 0, err
	}
	s.persistSnapshot(ctx)
	return n, nil
}

// Refresh replaces the snapshot with a fresh first page.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.paginator.Refresh(ctx); err != nil {
		return err
	}
	s.persistSnapshot(ctx)
	return nil
}

// Busy reports whether a bulk operation is currently in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opActive
}

// SetPageSize adjusts the page size for subsequent fetches. Safe to call
// from a config-reload listener.
func (s *Session) SetPageSize(pageSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paginator.SetPageSize(pageSize)
}

// HasMore reports whether another listing page may be available.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paginator.HasMore()
}

// ExpandTorrent fetches a torrent's file list and folds it into the
// loaded snapshot.
func (s *Session) ExpandTorrent(ctx context.Context, id string) (Torrent, error) {
	record, err := s.paginator.listing.ExpandTorrent(ctx, id)
	if err != nil {
		return Torrent{}, errors.Wrapf(err, "failed to expand torrent %s", id)
	}
	expanded := ToTorrent(record)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy-on-write: CurrentView hands out the loaded slice, so the
	// snapshot is replaced rather than mutated in place.
	items := s.paginator.Items()
	updated := make([]FileItem, len(items))
	copy(updated, items)
	for i, item := range updated {
		if t, ok := item.(Torrent); ok && t.ID == id {
			updated[i] = expanded
			break
		}
	}
	s.paginator.ReplaceItems(updated)

	return expanded, nil
}

// RunBulkOperation executes the request asynchronously and streams
// progress on the returned channel, which is closed after the Completed
// event. A second call while one is in flight fails immediately.
func (s *Session) RunBulkOperation(ctx context.Context, req BulkOperationRequest) (<-chan Event, error) {
	s.mu.Lock()
	if s.opActive {
		s.mu.Unlock()
		return nil, errors.New("a bulk operation is already in progress")
	}
	s.opActive = true
	s.mu.Unlock()

	events := make(chan Event, 8)

	go func() {
		defer close(events)
		defer func() {
			s.mu.Lock()
			s.opActive = false
			s.mu.Unlock()
		}()

		events <- Event{Kind: EventStarted}

		result, err := s.coordinator.Execute(ctx, req)
		if err != nil {
			log.Error().Err(err).Str("type", string(req.Type)).Msg("Bulk operation rejected")
			events <- Event{Kind: EventCompleted, Result: &BulkOperationResult{}}
			return
		}

		events <- Event{Kind: EventPartialResult, Result: &result}

		var recoveryState *RecoveryState
		if len(result.Failed) > 0 && hasRetryable(result.Failed) {
			state, rerr := s.recovery.Run(ctx, req.Type, result.Failed, func(rs RecoveryState) {
				events <- Event{Kind: EventRecovering, Recovery: &rs}
			})
			if rerr != nil {
				log.Error().Err(rerr).Msg("Recovery aborted")
			}
			recoveryState = &state

			for id := range state.Recovered {
				delete(result.Failed, id)
				result.Succeeded[id] = struct{}{}
			}
			for id, reason := range state.Final {
				result.Failed[id] = reason
			}
		}

		if req.Type == OperationDelete {
			s.applyDeletions(ctx, result.Succeeded)
		}

		events <- Event{Kind: EventCompleted, Result: &result, Recovery: recoveryState}
	}()

	return events, nil
}

// applyDeletions drops successfully deleted torrents from the snapshot
// and the local cache.
func (s *Session) applyDeletions(ctx context.Context, deleted map[string]struct{}) {
	if len(deleted) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.paginator.Items()
	kept := make([]FileItem, 0, len(items))
	removed := make([]string, 0, len(deleted))
	for _, item := range items {
		if _, gone := deleted[item.ItemID()]; gone {
			removed = append(removed, item.ItemID())
			continue
		}
		kept = append(kept, item)
	}
	s.paginator.ReplaceItems(kept)

	if s.cache != nil && len(removed) > 0 {
		if err := s.cache.RemoveByIDs(context.WithoutCancel(ctx), removed); err != nil {
			log.Warn().Err(err).Msg("Failed to prune deleted torrents from listing cache")
		}
	}
}

// persistSnapshot mirrors the loaded torrents into the cache. Failures
// are logged and otherwise ignored; the cache is best effort.
func (s *Session) persistSnapshot(ctx context.Context) {
	if s.cache == nil {
		return
	}

	var torrents []Torrent
	for _, item := range s.paginator.Items() {
		if t, ok := item.(Torrent); ok {
			torrents = append(torrents, t)
		}
	}
	if len(torrents) == 0 {
		return
	}

	if err := s.cache.UpsertListing(context.WithoutCancel(ctx), torrents); err != nil {
		log.Warn().Err(err).Int("count", len(torrents)).Msg("Failed to persist listing snapshot")
	}
}

// linkFor resolves a file ID from the snapshot to its restricted link.
func (s *Session) linkFor(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.paginator.Items() {
		t, ok := item.(Torrent)
		if !ok {
			continue
		}
		if t.ID == id {
			if len(t.Files) == 0 {
				return "", errors.Errorf("torrent %s has no expanded files to download", id)
			}
			if t.Files[0].DownloadURL == "" {
				return "", errors.Errorf("torrent %s has no download link", id)
			}
			return t.Files[0].DownloadURL, nil
		}
		for _, f := range t.Files {
			if f.ID == id {
				if f.DownloadURL == "" {
					return "", errors.Errorf("file %s has no download link", id)
				}
				return f.DownloadURL, nil
			}
		}
	}
	return "", errors.Errorf("no loaded item with id %s", id)
}

func hasRetryable(failed map[string]FailureReason) bool {
	for _, reason := range failed {
		if reason.Retryable() {
			return true
		}
	}
	return false
}
