// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"net/http"

	"github.com/anser/netq/request"
)

// A Hook observes the lifecycle of requests scheduled against an
// endpoint.
//
// OnSchedule is called after the wire request is built but before any
// network activity. Returning (v, true) short-circuits the schedule:
// no transport operation is started, OnSuccess is not invoked, and v
// is delivered to the caller as the terminal success. The usual
// implementation is a cache lookup.
//
// OnSuccess is called exactly once with the decoded value of a request
// that completed over the network. OnFailure is called exactly once
// with the terminal error of a request that failed, whether it was
// rejected before any network activity or exhausted its retries in
// flight.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
type Hook interface {
	OnSchedule(d *request.Descriptor, wire *http.Request) (interface{}, bool)
	OnSuccess(d *request.Descriptor, wire *http.Request, v interface{})
	OnFailure(err error)
}

// NopHook is a Hook with no behavior. Embed it to implement only the
// methods you care about.
type NopHook struct{}

func (NopHook) OnSchedule(*request.Descriptor, *http.Request) (interface{}, bool) {
	return nil, false
}
func (NopHook) OnSuccess(*request.Descriptor, *http.Request, interface{}) {}
func (NopHook) OnFailure(error)                                           {}

// Hooks chains multiple hooks into one. OnSchedule consults the hooks
// in order and the first cached result wins; OnSuccess and OnFailure
// notify every hook in order.
type Hooks []Hook

func (hs Hooks) OnSchedule(d *request.Descriptor, wire *http.Request) (interface{}, bool) {
	for _, h := range hs {
		if v, ok := h.OnSchedule(d, wire); ok {
			return v, true
		}
	}
	return nil, false
}

func (hs Hooks) OnSuccess(d *request.Descriptor, wire *http.Request, v interface{}) {
	for _, h := range hs {
		h.OnSuccess(d, wire, v)
	}
}

func (hs Hooks) OnFailure(err error) {
	for _, h := range hs {
		h.OnFailure(err)
	}
}
