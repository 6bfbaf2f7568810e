// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"net/http"
	"time"

	"github.com/anser/netq/transient"
)

// A State represents the progress of a single scheduled request,
// including all of its retried attempts.
//
// When a descriptor is scheduled, a State is created for it. The State
// is updated as the execution progresses (for example when a response
// becomes available, or when a retry is needed). Retriers and hooks
// may read the State and may stash arbitrary values on it via SetValue,
// but they should treat the exported fields as immutable, as the state
// is vital to the correct functioning of the scheduling logic.
type State struct {
	// Descriptor is the logical request being executed. It is never
	// nil.
	Descriptor *Descriptor

	// Start is the start time of the execution. It is assigned a
	// non-zero value when the execution starts, and this value remains
	// constant thereafter.
	Start time.Time

	// End is the end time of the execution. It contains the zero value
	// until the execution ends, when it is set to the current time.
	End time.Time

	// Attempt is the zero-based number of the current request attempt.
	// It is zero on the initial attempt, one on the first retry, and
	// so on.
	Attempt int

	// AttemptTimeouts counts how many attempts ended in a timeout
	// during the execution.
	AttemptTimeouts int

	// Request is the wire-level request made in the current or most
	// recent attempt.
	Request *http.Request

	// Status is the HTTP status code received in the most recent
	// attempt, or zero if the attempt ended in a transport error or is
	// still underway.
	Status int

	// Header contains the response headers from the most recent
	// attempt, or nil if there is no response.
	Header http.Header

	// Body is the complete buffered response body from the most recent
	// attempt. It is nil if the attempt ended in a transport error.
	Body []byte

	// Err is the failure from the most recent attempt, or nil. While
	// the execution is in flight Err may fluctuate between nil and
	// various non-nil values as attempts fail and are retried.
	Err error

	// data holds user values attached via SetValue.
	data context.Context
}

// StatusCode returns the status code of the response from the most
// recent attempt, or 0 if there is no response.
func (s *State) StatusCode() int {
	return s.Status
}

// Duration returns the duration of the execution so far, or its final
// duration once ended. Before the execution starts it is zero.
func (s *State) Duration() time.Duration {
	if !s.Started() {
		return 0
	} else if !s.Ended() {
		return time.Since(s.Start)
	}
	return s.End.Sub(s.Start)
}

// Started indicates whether the execution has started.
func (s *State) Started() bool {
	return s.Start != (time.Time{})
}

// Ended indicates whether the execution has ended. Once Ended returns
// true there will be no further changes to the State.
func (s *State) Ended() bool {
	return s.End != (time.Time{})
}

// Timeout indicates whether Err currently contains a non-nil value
// classified as a timeout.
//
// Note that Timeout may return false even if AttemptTimeouts > 0 (the
// most recent attempt did not time out), and vice versa.
func (s *State) Timeout() bool {
	return transient.Categorize(s.Err) == transient.Timeout
}

// SetValue attaches an arbitrary value to the State.
//
// The key must follow the same rules as the key parameter in
// context.WithValue: it may not be nil, it must be comparable, and it
// should not be of a built-in type, to avoid collisions between
// different retriers or hooks putting data into the same State.
func (s *State) SetValue(key, value interface{}) {
	ctx := s.data
	if ctx == nil {
		ctx = context.Background()
	}
	s.data = context.WithValue(ctx, key, value)
}

// Value returns the value associated with this State for key, or nil
// if there is no value associated with key.
func (s *State) Value(key interface{}) interface{} {
	if s.data == nil {
		return nil
	}
	return s.data.Value(key)
}
