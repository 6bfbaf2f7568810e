// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// A Category is the failure category of a transport-level error, as
// reported by function Categorize().
//
// The category Not means there is no transport failure (nil error).
// All other categories classify a non-nil error from a request attempt
// so that retry predicates, log fields, and error buckets can treat
// failures uniformly without inspecting platform error chains.
type Category int

const (
	// Not indicates no error (Categorize was given nil).
	Not Category = iota
	// Timeout indicates a client-side timeout. The server may be going
	// through a temporary period of slowness, or the client may succeed
	// on a future attempt waiting longer (increasing its timeout).
	//
	// Function Categorize() will return Timeout if the error or any of
	// its wrapped causes has a Timeout() function that reports true, or
	// is context.DeadlineExceeded.
	Timeout
	// NoConnection indicates the remote host could not be reached or
	// dropped the connection. It covers the POSIX error codes
	// ECONNREFUSED, ECONNRESET, EHOSTUNREACH, and ENETUNREACH.
	//
	// Connection refusal may be a permanent condition, but it commonly
	// happens while the service on the remote host is starting or
	// restarting, so a retry has some prospect of success.
	NoConnection
	// UnknownHost indicates the host name could not be resolved. It
	// corresponds to a *net.DNSError anywhere in the wrapped chain.
	UnknownHost
	// InvalidURL indicates the request URL could not be parsed or used,
	// for example an unsupported scheme. Retrying cannot help.
	InvalidURL
	// Unknown indicates any other non-nil error. The cause is preserved
	// in the Error wrapper so it can still be unwrapped and inspected.
	Unknown
)

var categoryNames = []string{
	"Not",
	"Timeout",
	"NoConnection",
	"UnknownHost",
	"InvalidURL",
	"Unknown",
}

// String returns the name of the category.
func (c Category) String() string {
	if c >= 0 && int(c) < len(categoryNames) {
		return categoryNames[int(c)]
	}
	return "Invalid"
}

// Categorize returns the failure category of the given error. A nil
// error produces the return value Not; every non-nil error produces
// one of the remaining categories, falling back to Unknown.
//
// In assessing the category, Categorize looks at wrapped cause errors
// contained within err, not just err itself. However, Categorize never
// checks if an error has a Temporary() function that returns true, as
// the semantics of Temporary() aren't entirely clear.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var hasTimeout hasTimeout
	if errors.As(err, &hasTimeout) && hasTimeout.Timeout() {
		return Timeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return UnknownHost
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET,
			syscall.EHOSTUNREACH, syscall.ENETUNREACH:
			return NoConnection
		}
	}

	if isURLErr(err) {
		return InvalidURL
	}

	return Unknown
}

// Retryable reports whether the category has some prospect of success
// on a future attempt. Timeout, NoConnection, and Unknown are
// retryable; InvalidURL and UnknownHost are not, because the failure
// is deterministic from the client's point of view.
func Retryable(c Category) bool {
	switch c {
	case Timeout, NoConnection, Unknown:
		return true
	}
	return false
}

// An Error wraps a transport-level cause with its failure category. It
// is the error type surfaced by the session layer for every failed
// transport operation.
type Error struct {
	Category Category
	Cause    error
}

// NewError classifies cause and wraps it in an *Error. A nil cause
// returns nil. If cause is already an *Error somewhere in its chain it
// is returned unchanged so that categories assigned upstream are not
// reclassified.
func NewError(cause error) error {
	if cause == nil {
		return nil
	}
	var te *Error
	if errors.As(cause, &te) {
		return cause
	}
	return &Error{Category: Categorize(cause), Cause: cause}
}

func (e *Error) Error() string {
	return "netq/transient: " + e.Category.String() + ": " + e.Cause.Error()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the error represents a timeout, following
// the convention of net.Error.
func (e *Error) Timeout() bool {
	return e.Category == Timeout
}

type hasTimeout interface {
	Timeout() bool
}

// isURLErr sniffs for URL problems. Failures from url.Parse and from
// net/http scheme checks surface as plain errors with no sentinel to
// test against, so the error text is the only signal available.
func isURLErr(err error) bool {
	msg := err.Error()
	for _, sub := range []string{
		"unsupported protocol scheme",
		"missing protocol scheme",
		"invalid URL",
		"invalid control character in URL",
		"invalid port",
	} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
