// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/anser/netq/retry"
	"github.com/anser/netq/session"
)

// A HeaderFunc asynchronously produces headers for an endpoint at
// schedule time. Typical implementations fetch or refresh credentials.
// It is called once per schedule and its result is merged over the
// endpoint's static header.
type HeaderFunc func(ctx context.Context) (http.Header, error)

// An Endpoint describes where requests are sent and with which shared
// configuration. It is read-only during a schedule call: the scheduler
// never mutates it, so a single Endpoint value may serve any number of
// concurrent schedules.
//
// The zero value is not useful on its own since BaseURL is required;
// every other field has a working default. Construct with New or with
// a struct literal.
type Endpoint struct {
	// BaseURL is the absolute URL request routes are resolved
	// against, for example "https://api.example.com/v2".
	BaseURL string

	// Header contains headers applied to every request sent to the
	// endpoint. Per-key, a header produced by HeaderFunc replaces a
	// static header, and a request's own header replaces both.
	Header http.Header

	// HeaderFunc, if non-nil, supplies headers resolved at schedule
	// time (for example an authorization token). An error from
	// HeaderFunc fails the schedule before any network activity.
	HeaderFunc HeaderFunc

	// Transport selects the session the endpoint's requests share.
	// The zero value is a valid configuration.
	Transport session.Config

	// Retry mints the retrier used for requests against the
	// endpoint. If nil, retry.DefaultFactory is used.
	Retry retry.Factory

	// Hook, if non-nil, observes scheduling on the endpoint and may
	// short-circuit a request with a cached result.
	Hook Hook
}

// New constructs an Endpoint for the given base URL with default
// configuration.
func New(baseURL string) *Endpoint {
	return &Endpoint{BaseURL: baseURL}
}

// URL parses and returns the endpoint's base URL. The URL must be
// absolute.
func (e *Endpoint) URL() (*url.URL, error) {
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("netq/endpoint: invalid base URL: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("netq/endpoint: base URL %q is not absolute", e.BaseURL)
	}
	return u, nil
}

// ResolveHeader produces the effective header for one request against
// the endpoint: the static header, overlaid by the HeaderFunc result,
// overlaid by reqHeader. Later sources win whole keys. The returned
// header is freshly allocated; none of the inputs are mutated.
func (e *Endpoint) ResolveHeader(ctx context.Context, reqHeader http.Header) (http.Header, error) {
	var async http.Header
	if e.HeaderFunc != nil {
		h, err := e.HeaderFunc(ctx)
		if err != nil {
			return nil, fmt.Errorf("netq/endpoint: header source failed: %w", err)
		}
		async = h
	}
	return MergeHeaders(e.Header, async, reqHeader), nil
}

// MergeHeaders overlays the given headers in order. A key present in a
// later header replaces all values for that key from earlier headers;
// values within one source are preserved. Nil headers are skipped.
func MergeHeaders(layers ...http.Header) http.Header {
	merged := make(http.Header)
	for _, layer := range layers {
		for k, vs := range layer {
			ck := http.CanonicalHeaderKey(k)
			merged[ck] = append([]string(nil), vs...)
		}
	}
	return merged
}
