// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package paging

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// PageMeta locates a page within a paginated resource. Index is the
// zero-based page number; Token is an opaque continuation token for
// APIs that paginate by cursor. Page functions receive the meta of the
// previously fetched page and return the meta for the page after the
// one they fetched.
type PageMeta struct {
	Index int
	Token string
}

// A PageFunc fetches one page. prev is nil for the first page and the
// next meta returned by the previous call afterwards. It returns the
// page value, the meta the following call should receive, and whether
// the fetched page was the last one. A page function typically wraps a
// scheduled request and blocks until its terminal outcome.
type PageFunc func(ctx context.Context, prev *PageMeta) (page interface{}, next *PageMeta, last bool, err error)

// State is the lifecycle state of a pagination conduit.
type State int32

const (
	// Waiting means no page request is in flight and the next tick
	// will start one.
	Waiting State = iota
	// Running means a page request is in flight. Ticks arriving in
	// this state are dropped.
	Running
	// Failed means a page request failed and the sequence has
	// terminated with that failure.
	Failed
	// Done means the last page arrived and the sequence has
	// completed normally.
	Done
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "Waiting"
	case Running:
		return "Running"
	case Failed:
		return "Failed"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// A Conduit sequences dependent page requests: page N+1 is requested
// only after page N has arrived, driven by an external tick signal.
// At most one page request is in flight at any time; ticks arriving
// while a request is running are dropped, not queued, so a jittery
// tick source can never pile up requests.
//
// A Conduit serves a single Connect call.
type Conduit struct {
	fetch  PageFunc
	logger *zap.Logger
	state  atomic.Int32

	connect sync.Once
	seq     *Sequence
}

// NewConduit returns a Conduit that fetches pages with fetch. A nil
// logger is replaced with a no-op logger.
func NewConduit(fetch PageFunc, logger *zap.Logger) *Conduit {
	if fetch == nil {
		panic("netq/paging: nil page function")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conduit{fetch: fetch, logger: logger}
}

// State returns the conduit's current lifecycle state.
func (c *Conduit) State() State {
	return State(c.state.Load())
}

// Connect starts the pagination sequence. An implicit first tick fires
// immediately: the first page is requested without waiting on ticks.
// Each later tick received while the conduit is Waiting requests the
// next page. The sequence terminates normally when a page function
// reports the last page, terminates with the page error when one
// fails, completes normally if ticks is closed while Waiting, and
// terminates with ctx.Err() if ctx is cancelled.
//
// Connect may be called once; later calls return the same Sequence.
func (c *Conduit) Connect(ctx context.Context, ticks <-chan struct{}) *Sequence {
	c.connect.Do(func() {
		c.seq = newSequence()
		go c.run(ctx, ticks)
	})
	return c.seq
}

type fetched struct {
	page interface{}
	next *PageMeta
	last bool
	err  error
}

func (c *Conduit) run(ctx context.Context, ticks <-chan struct{}) {
	var prev *PageMeta
	inflight := make(chan fetched, 1)
	for {
		c.state.Store(int32(Running))
		go func(prev *PageMeta) {
			page, next, last, err := c.fetch(ctx, prev)
			inflight <- fetched{page: page, next: next, last: last, err: err}
		}(prev)

		var r fetched
	running:
		for {
			select {
			case r = <-inflight:
				break running
			case _, ok := <-ticks:
				if !ok {
					ticks = nil
					continue
				}
				c.logger.Debug("tick dropped, page request in flight")
			case <-ctx.Done():
				c.state.Store(int32(Failed))
				c.seq.terminate(ctx.Err())
				return
			}
		}

		if r.err != nil {
			c.state.Store(int32(Failed))
			c.logger.Debug("page request failed", zap.Error(r.err))
			c.seq.terminate(r.err)
			return
		}
		if !c.seq.emit(ctx, r.page) {
			c.state.Store(int32(Failed))
			c.seq.terminate(ctx.Err())
			return
		}
		if r.last {
			c.state.Store(int32(Done))
			c.seq.terminate(nil)
			return
		}
		prev = r.next

		c.state.Store(int32(Waiting))
		if ticks == nil {
			// The tick source was exhausted; no further pages will
			// ever be requested.
			c.state.Store(int32(Done))
			c.seq.terminate(nil)
			return
		}
		select {
		case _, ok := <-ticks:
			if !ok {
				c.state.Store(int32(Done))
				c.seq.terminate(nil)
				return
			}
		case <-ctx.Done():
			c.state.Store(int32(Failed))
			c.seq.terminate(ctx.Err())
			return
		}
	}
}
