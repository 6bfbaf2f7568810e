// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"context"
	"io"
	"net/http"
	urlpkg "net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"
)

var template, _ = http.NewRequest("GET", "", nil)

// A DecodeFunc converts a buffered response body into the caller's
// result value. A decode failure is terminal for the logical request:
// the bytes already arrived, so retrying cannot change the outcome.
type DecodeFunc func(body []byte) (interface{}, error)

// RawDecode is the decode function used when a Descriptor does not set
// one. It returns the body bytes unchanged.
func RawDecode(body []byte) (interface{}, error) {
	return body, nil
}

// A Priority selects the concurrency lane on which the final decoded
// result of a request is delivered.
type Priority int

const (
	// Standard is the lane for ordinary requests. Deliveries may run
	// in parallel.
	Standard Priority = iota
	// Background is the lane for prefetching and other deferrable
	// work. Deliveries run serially, optionally throttled.
	Background
	// Interactive is the lane for requests whose results a user is
	// actively waiting on. Deliveries may run in parallel.
	Interactive
)

var priorityNames = []string{"Standard", "Background", "Interactive"}

// String returns the name of the priority.
func (p Priority) String() string {
	if p >= 0 && int(p) < len(priorityNames) {
		return priorityNames[int(p)]
	}
	return "Invalid"
}

// A StatusRange is an inclusive range of HTTP status codes a request
// considers successful. The zero value is treated as 200–299.
type StatusRange struct {
	Lo, Hi int
}

// Contains reports whether the range contains status code s. The zero
// range behaves as 200–299.
func (r StatusRange) Contains(s int) bool {
	if r == (StatusRange{}) {
		return s >= 200 && s <= 299
	}
	return s >= r.Lo && s <= r.Hi
}

// A Descriptor is an immutable description of one logical request:
// method, route, query, header, body, and decoding. The scheduler owns
// how and when the bytes move.
//
// A Descriptor never touches the network itself, and the scheduler
// treats it as read-only, so a single Descriptor may be scheduled any
// number of times, against any number of endpoints, concurrently.
type Descriptor struct {
	// Method specifies the HTTP method (GET, POST, PUT, etc.).
	// An empty string means GET.
	Method string

	// Route is the endpoint-relative path of the request, for example
	// "/users". It is resolved against the endpoint's base URL when
	// the wire request is built.
	Route string

	// Query contains query parameters to append to the resolved URL.
	Query urlpkg.Values

	// Header contains request-specific header fields. On key conflict
	// these win over both the endpoint's static and dynamic headers.
	Header http.Header

	// Body is the pre-buffered request body to be sent. A nil or
	// empty body indicates no request body should be sent. Use
	// BodyBytes to convert strings and readers.
	Body []byte

	// Accept is the inclusive range of response status codes treated
	// as success. A response outside the range surfaces as a typed
	// status failure carrying the code and raw body. The zero value
	// means 200–299.
	Accept StatusRange

	// Decode converts the buffered response body into the result
	// value delivered to the caller. Nil means RawDecode.
	Decode DecodeFunc

	// Priority selects the concurrency lane for final delivery.
	Priority Priority

	// Timeout, if positive, bounds each individual request attempt.
	// Zero means the scheduler's timeout policy applies.
	Timeout time.Duration
}

// NewDescriptor returns a validated Descriptor for the given method,
// route, and optional body.
//
// Parameter body may be nil (empty body), or it may be a string,
// []byte, io.Reader, or io.ReadCloser; see BodyBytes.
func NewDescriptor(method, route string, body interface{}) (*Descriptor, error) {
	b, err := BodyBytes(body)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{
		Method: method,
		Route:  route,
		Query:  urlpkg.Values{},
		Header: make(http.Header),
		Body:   b,
	}
	if err = d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks that the Descriptor describes a request that can be
// put on the wire. It returns a *BuildError describing the first
// problem found, or nil. The scheduler calls Validate before any
// network activity, so a malformed descriptor never costs a
// connection.
func (d *Descriptor) Validate() error {
	if m := d.method(); !httpguts.ValidHeaderFieldName(m) {
		return &BuildError{Reason: "invalid method " + strconv.Quote(m)}
	}
	switch d.method() {
	case "GET", "HEAD":
		if len(d.Body) > 0 {
			return &BuildError{Reason: d.method() + " request may not carry a body"}
		}
	}
	if d.Accept != (StatusRange{}) && d.Accept.Lo > d.Accept.Hi {
		return &BuildError{Reason: "inverted accept range"}
	}
	return nil
}

// ToRequest builds the wire-level request for one attempt. The base
// URL comes from the endpoint and header is the fully merged header
// set (endpoint static < endpoint dynamic < descriptor). ToRequest is
// a pure function of its inputs: it does not mutate the Descriptor,
// and each call returns an independent http.Request so that retried
// attempts never share body readers.
func (d *Descriptor) ToRequest(ctx context.Context, base *urlpkg.URL, header http.Header) (*http.Request, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if base == nil {
		return nil, &BuildError{Reason: "nil base URL"}
	}
	ref, err := urlpkg.Parse(d.Route)
	if err != nil {
		return nil, &BuildError{Reason: "invalid route " + strconv.Quote(d.Route)}
	}
	u := base.ResolveReference(ref)
	if len(d.Query) > 0 {
		q := u.Query()
		for k, vs := range d.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	r := template.WithContext(ctx)
	r.Method = d.method()
	r.URL = u
	r.Host = u.Host
	r.Header = header
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	if len(d.Body) > 0 {
		body := d.Body
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		r.ContentLength = int64(len(body))
	}
	return r, nil
}

func (d *Descriptor) method() string {
	if d.Method == "" {
		return "GET"
	}
	return strings.ToUpper(d.Method)
}

// A BuildError reports a malformed Descriptor or a failure to build
// the wire-level request. Build errors short-circuit before any
// transport activity and are never retried.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string {
	return "netq/request: " + e.Reason
}
