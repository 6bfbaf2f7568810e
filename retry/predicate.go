// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"errors"

	"github.com/anser/netq/request"
	"github.com/anser/netq/transient"
)

// A Predicate decides whether a particular failure is eligible for
// retry. It examines the failed attempt's state and error; it must not
// block and must be safe for concurrent use by multiple goroutines.
//
// Simple predicates can be composed into complex decision trees using
// the logical composition methods Predicate.And and Predicate.Or.
type Predicate func(s *request.State, err error) bool

// Default is the predicate used when a Backoff is constructed without
// one. It retries transient transport failures (no connection,
// timeout, unknown transport error) and HTTP 429 (Too Many Requests).
var Default = StatusCode(429).Or(TransientErr)

// TransientErr is a predicate that indicates a retry if the failure's
// transport category is retryable according to transient.Retryable.
//
// TransientErr only looks at the error, so it always returns false for
// status-range failures. Compose it with a StatusCode predicate to get
// more complex functionality.
var TransientErr Predicate = transientErr

// And composes two predicates into a new predicate which returns true
// if both sub-predicates return true, and false otherwise.
//
// Short-circuit logic is used, so g is not evaluated if p returns
// false.
func (p Predicate) And(g Predicate) Predicate {
	return func(s *request.State, err error) bool {
		return p(s, err) && g(s, err)
	}
}

// Or composes two predicates into a new predicate which returns true
// if either of the two sub-predicates returns true, but false if they
// both return false.
//
// Short-circuit logic is used, so g is not evaluated if p returns
// true.
func (p Predicate) Or(g Predicate) Predicate {
	return func(s *request.State, err error) bool {
		return p(s, err) || g(s, err)
	}
}

// StatusCode constructs a predicate matching failures whose response
// carried one of the given HTTP status codes. Status-range failures
// carry the offending code on the request state, so a 429 rejected by
// the accept range can still be matched here.
func StatusCode(ss ...int) Predicate {
	ss2 := make([]int, len(ss))
	copy(ss2, ss)
	return func(s *request.State, _ error) bool {
		for _, code := range ss2 {
			if s.StatusCode() == code {
				return true
			}
		}
		return false
	}
}

// Attempts constructs a predicate which allows up to n retries. It
// returns true while the state's attempt index is less than n, and
// false otherwise. Compose it with other predicates to bound them.
func Attempts(n int) Predicate {
	return func(s *request.State, _ error) bool {
		return s.Attempt < n
	}
}

func transientErr(_ *request.State, err error) bool {
	// Only transport failures wrapped by the session layer are
	// eligible. Status-range and decode failures categorize as Unknown
	// and must not slip in through here.
	var te *transient.Error
	if errors.As(err, &te) {
		return transient.Retryable(te.Category)
	}
	return false
}
