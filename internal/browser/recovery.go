// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package browser

import (
	"context"
	"maps"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/adinunzio10/rd-watch-sub012/internal/backoff"
)

// RecoveryOutcome is the terminal state of a recovery run.
type RecoveryOutcome string

const (
	// RecoveryRecovered means every failed target eventually succeeded.
	RecoveryRecovered RecoveryOutcome = "recovered"
	// RecoverySettled means nothing retryable remains but some targets
	// failed terminally.
	RecoverySettled RecoveryOutcome = "settled"
	// RecoveryExhausted means retryable failures remained after the final attempt.
	RecoveryExhausted RecoveryOutcome = "exhausted"
)

// RecoveryState tracks a recovery run across rounds.
type RecoveryState struct {
	Attempt     int
	MaxAttempts int
	Pending     map[string]FailureReason
	Recovered   map[string]struct{}
	Final       map[string]FailureReason
}

// Done reports whether no retryable work remains.
func (s RecoveryState) Done() bool { return len(s.Pending) == 0 }

// snapshot deep-copies the state so consumers can read it while later
// rounds keep mutating the live maps.
func (s RecoveryState) snapshot() RecoveryState {
	out := RecoveryState{
		Attempt:     s.Attempt,
		MaxAttempts: s.MaxAttempts,
		Pending:     make(map[string]FailureReason, len(s.Pending)),
		Recovered:   make(map[string]struct{}, len(s.Recovered)),
		Final:       make(map[string]FailureReason, len(s.Final)),
	}
	maps.Copy(out.Pending, s.Pending)
	maps.Copy(out.Recovered, s.Recovered)
	maps.Copy(out.Final, s.Final)
	return out
}

// Outcome returns the terminal outcome. Only meaningful once Done or the
// attempt budget is spent.
func (s RecoveryState) Outcome() RecoveryOutcome {
	switch {
	case len(s.Pending) > 0:
		return RecoveryExhausted
	case len(s.Final) > 0:
		return RecoverySettled
	default:
		return RecoveryRecovered
	}
}

// bulkExecutor runs one retry round. Satisfied by *Coordinator; tests
// substitute a scripted implementation.
type bulkExecutor interface {
	Execute(ctx context.Context, req BulkOperationRequest) (BulkOperationResult, error)
}

// Recovery retries the retryable slice of a failed bulk result in
// sequential rounds with exponential backoff between them.
type Recovery struct {
	executor    bulkExecutor
	policy      backoff.Policy
	maxAttempts int
}

// NewRecovery creates a recovery engine. maxAttempts must be positive.
func NewRecovery(executor bulkExecutor, policy backoff.Policy, maxAttempts int) (*Recovery, error) {
	if maxAttempts <= 0 {
		return nil, errors.Errorf("recovery max attempts must be positive, got %d", maxAttempts)
	}
	return &Recovery{
		executor:    executor,
		policy:      policy,
		maxAttempts: maxAttempts,
	}, nil
}

// Run retries the failed portion of a bulk result. Non-retryable failures
// go straight to the final set and are never re-attempted. The onRound
// callback, when non-nil, observes the state after each round.
func (r *Recovery) Run(ctx context.Context, opType OperationType, failed map[string]FailureReason, onRound func(RecoveryState)) (RecoveryState, error) {
	state := RecoveryState{
		MaxAttempts: r.maxAttempts,
		Pending:     make(map[string]FailureReason),
		Recovered:   make(map[string]struct{}),
		Final:       make(map[string]FailureReason),
	}

	for id, reason := range failed {
		if reason.Retryable() {
			state.Pending[id] = reason
		} else {
			state.Final[id] = reason
		}
	}

	for state.Attempt = 1; state.Attempt <= r.maxAttempts && len(state.Pending) > 0; state.Attempt++ {
		if state.Attempt > 1 {
			if err := r.policy.Sleep(ctx, state.Attempt-2); err != nil {
				return state, err
			}
		}

		ids := make([]string, 0, len(state.Pending))
		for id := range state.Pending {
			ids = append(ids, id)
		}

		result, err := r.executor.Execute(ctx, BulkOperationRequest{Type: opType, TargetIDs: ids})
		if err != nil {
			return state, errors.Wrap(err, "recovery round failed")
		}

		for id := range result.Succeeded {
			delete(state.Pending, id)
			state.Recovered[id] = struct{}{}
		}
		for id, reason := range result.Failed {
			if reason.Retryable() {
				state.Pending[id] = reason
			} else {
				delete(state.Pending, id)
				state.Final[id] = reason
			}
		}

		log.Debug().
			Int("attempt", state.Attempt).
			Int("pending", len(state.Pending)).
			Int("recovered", len(state.Recovered)).
			Msg("Recovery round finished")

		if onRound != nil {
			onRound(state.snapshot())
		}
	}

	// Attempt ends one past the last executed round.
	state.Attempt--

	// Whatever is still pending after the final round is a permanent failure.
	for id, reason := range state.Pending {
		state.Final[id] = reason
	}

	return state, nil
}
