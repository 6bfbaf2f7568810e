// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netq

import (
	"fmt"
)

// A StatusError reports a response whose status code fell outside the
// descriptor's accepted range. It carries the raw response body so
// callers can extract a service-specific error payload.
//
// Status errors are eligible for retry, subject to the active
// retrier's predicate.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("netq: response status %d outside accepted range", e.Code)
}

// A DecodeError reports that a response arrived and was accepted but
// its body could not be decoded. Decode errors are always terminal:
// the bytes already arrived, so retrying would not change the outcome.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return "netq: decoding response body: " + e.Cause.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}
