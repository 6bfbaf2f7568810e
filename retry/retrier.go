// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"context"
	"time"

	"github.com/anser/netq/request"
)

// A Retrier decides, given a failed attempt, whether the attempt
// should be re-executed. Retry never fails; it may block, for example
// to wait out a backoff delay or to refresh credentials with a nested
// call, and must honor ctx while blocked (return false promptly once
// ctx is done).
//
// Stateful retriers such as *Backoff are not safe for concurrent use
// and must be minted fresh for every scheduled request via a Factory.
// Stateless retriers such as None may be shared freely.
type Retrier interface {
	// Retry reports whether the failed attempt described by s and err
	// should be re-executed. It may sleep before answering.
	Retry(ctx context.Context, s *request.State, err error) bool
}

// A MultiRetrier is a Retrier that may be consulted more than once per
// scheduled request. A plain Retrier is asked only after the first
// failure; subsequent failures are forwarded downstream unasked.
type MultiRetrier interface {
	Retrier

	// AllowsMultiple reports whether the retrier may be consulted
	// after every failed attempt rather than only the first.
	AllowsMultiple() bool
}

// AllowsMultiple reports whether r may be consulted after every failed
// attempt. Retriers that do not implement MultiRetrier are consulted
// at most once per scheduled request.
func AllowsMultiple(r Retrier) bool {
	if m, ok := r.(MultiRetrier); ok {
		return m.AllowsMultiple()
	}
	return false
}

// None is a Retrier that never retries. It is stateless and shared.
var None Retrier = noRetrier{}

type noRetrier struct{}

func (noRetrier) Retry(context.Context, *request.State, error) bool {
	return false
}

// A Factory mints the Retrier for one scheduled request. The factory
// is invoked once per schedule call, so stateful policies (backoff
// counters) never leak across unrelated requests.
type Factory func(d *request.Descriptor) Retrier

// Shared returns a Factory that hands out the same retrier instance
// for every request. Use it only with stateless retriers.
func Shared(r Retrier) Factory {
	if r == nil {
		panic("netq/retry: nil retrier")
	}
	return func(*request.Descriptor) Retrier {
		return r
	}
}

// DefaultInitial is the initial backoff delay used by DefaultFactory.
const DefaultInitial = 1 * time.Second

// DefaultCeiling is the backoff ceiling used by DefaultFactory.
const DefaultCeiling = 32 * time.Second

// DefaultFactory mints a fresh *Backoff per request with DefaultInitial,
// DefaultCeiling, and the Default predicate.
var DefaultFactory Factory = func(*request.Descriptor) Retrier {
	return NewBackoff(DefaultInitial, DefaultCeiling, nil)
}
