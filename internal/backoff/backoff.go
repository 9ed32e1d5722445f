// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package backoff provides the exponential backoff policy shared by the
// realdebrid client retries and the bulk recovery manager.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Policy computes capped exponential delays with random jitter.
// The delay for attempt n is Base * Multiplier^n, capped at Max, plus a
// random jitter of up to half the computed delay.
type Policy struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

// Default matches the cadence used for transient download retries.
func Default() Policy {
	return Policy{
		Base:       2 * time.Second,
		Multiplier: 2,
		Max:        30 * time.Second,
	}
}

// Delay returns the backoff duration for the given zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	base := p.Base
	if base <= 0 {
		base = Default().Base
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = Default().Multiplier
	}

	delay := float64(base)
	for range attempt {
		delay *= mult
		if p.Max > 0 && delay >= float64(p.Max) {
			delay = float64(p.Max)
			break
		}
	}
	if p.Max > 0 && delay > float64(p.Max) {
		delay = float64(p.Max)
	}

	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return time.Duration(delay) + jitter
}

// Sleep waits for the attempt's delay or until the context is done.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
