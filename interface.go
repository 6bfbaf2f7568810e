// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netq

import (
	"context"
	"net/url"

	"github.com/anser/netq/endpoint"
	"github.com/anser/netq/paging"
	"github.com/anser/netq/request"
)

// Requester is the interface that wraps the basic Schedule method.
//
// Schedule prepares the network operation described by a descriptor
// against an endpoint and returns its shareable Handle. Scheduler
// implements the Requester interface, and any other Requester
// implementation must behave substantially the same as
// Scheduler.Schedule.
type Requester interface {
	Schedule(ctx context.Context, d *request.Descriptor, ep *endpoint.Endpoint) (*Handle, error)
}

// StreamRequester is the interface that wraps the basic ScheduleStream
// method.
//
// ScheduleStream prepares the WebSocket operation described by a
// descriptor against an endpoint and returns its shareable Stream.
type StreamRequester interface {
	ScheduleStream(ctx context.Context, d *request.Descriptor, ep *endpoint.Endpoint) (*Stream, error)
}

// Paginator is the interface that wraps the basic Paginate method.
//
// Paginate sequences dependent page requests driven by an external
// tick signal; see package paging for the sequencing contract.
type Paginator interface {
	Paginate(ctx context.Context, fetch paging.PageFunc, ticks <-chan struct{}) *paging.Sequence
}

// Engine is the interface that groups the basic Schedule,
// ScheduleStream, and Paginate methods. Scheduler implements Engine.
type Engine interface {
	Requester
	StreamRequester
	Paginator
}

// Get uses the specified Requester to schedule a GET for the given
// route against ep.
//
// To set request-specific headers, query parameters, or a decode
// function, build a request.Descriptor and call Schedule directly.
func Get(ctx context.Context, r Requester, ep *endpoint.Endpoint, route string) (*Handle, error) {
	d, err := request.NewDescriptor("GET", route, nil)
	if err != nil {
		return nil, err
	}
	return r.Schedule(ctx, d, ep)
}

// Post uses the specified Requester to schedule a POST for the given
// route against ep.
//
// The body parameter may be nil for an empty body, or may be any of
// the types supported by request.BodyBytes, namely: string; []byte;
// io.Reader; and io.ReadCloser.
func Post(ctx context.Context, r Requester, ep *endpoint.Endpoint, route, contentType string, body interface{}) (*Handle, error) {
	d, err := request.NewDescriptor("POST", route, body)
	if err != nil {
		return nil, err
	}
	d.Header.Set("Content-Type", contentType)
	return r.Schedule(ctx, d, ep)
}

// PostForm uses the specified Requester to schedule a POST for the
// given route against ep, with data's keys and values URL-encoded as
// the request body and the Content-Type header set to
// application/x-www-form-urlencoded.
func PostForm(ctx context.Context, r Requester, ep *endpoint.Endpoint, route string, data url.Values) (*Handle, error) {
	return Post(ctx, r, ep, route, "application/x-www-form-urlencoded", data.Encode())
}
