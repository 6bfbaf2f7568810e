// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"context"
	"time"

	"github.com/anser/netq/request"
)

// A Backoff is a stateful exponential-backoff retrier. It answers true
// after sleeping the current delay, provided its predicate matches the
// failure and the current delay has not passed the ceiling; otherwise
// it answers false immediately.
//
// The delay starts at the configured initial value and doubles on
// every Retry call, whether or not that call resulted in a retry. This
// is deliberate, if slightly surprising: a Backoff consulted after its
// ceiling keeps advancing, so a single instance shared across
// unrelated requests would eventually refuse everything. Mint a fresh
// instance per scheduled request; Factory exists precisely so this
// property never bites.
//
// A Backoff is not safe for concurrent use by multiple goroutines; the
// scheduling pipeline consults it from one goroutine at a time.
type Backoff struct {
	next    time.Duration
	ceiling time.Duration
	pred    Predicate
}

// NewBackoff constructs a Backoff with the given initial delay,
// ceiling, and predicate. Initial must be positive and ceiling must be
// at least initial. A nil predicate means Default.
func NewBackoff(initial, ceiling time.Duration, pred Predicate) *Backoff {
	if initial < 1 {
		panic("netq/retry: initial delay must be positive")
	}
	if ceiling < initial {
		panic("netq/retry: ceiling must be at least the initial delay")
	}
	if pred == nil {
		pred = Default
	}
	return &Backoff{
		next:    initial,
		ceiling: ceiling,
		pred:    pred,
	}
}

// Retry implements Retrier. For a continuously failing retryable
// request with initial delay 1 and ceiling C, Retry answers true
// exactly floor(log2(C))+1 times: the delays 1, 2, 4, … are slept
// while they do not exceed C, then the original failure is forwarded.
func (b *Backoff) Retry(ctx context.Context, s *request.State, err error) bool {
	delay := b.next
	// The delay advances on every call regardless of the decision.
	b.next *= 2

	if delay > b.ceiling || !b.pred(s, err) {
		return false
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// AllowsMultiple implements MultiRetrier. A Backoff expects to be
// consulted after every failed attempt.
func (b *Backoff) AllowsMultiple() bool {
	return true
}
