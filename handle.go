// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netq

import (
	"context"
	"sync"
	"sync/atomic"
)

// A Handle is the shareable result of one scheduled request. Any
// number of consumers may Attach to a Handle; the underlying network
// operation is triggered at most once, on the first attachment, no
// matter how many tickets exist. A consumer attaching after the
// terminal outcome was delivered still receives it.
//
// Handles are returned by Scheduler.Schedule.
type Handle struct {
	start sync.Once
	run   func()

	mu        sync.Mutex
	tickets   []*Ticket
	active    int
	completed bool
	value     interface{}
	err       error

	cancelWork func()
}

func newHandle(run, cancelWork func()) *Handle {
	return &Handle{run: run, cancelWork: cancelWork}
}

// Attach registers a new consumer and returns its Ticket. The first
// attachment triggers the underlying operation; later attachments
// share its outcome. Attaching after the outcome was delivered yields
// a ticket that is already done, carrying that outcome.
func (h *Handle) Attach() *Ticket {
	t := &Ticket{h: h, done: make(chan struct{})}
	h.mu.Lock()
	if h.completed {
		h.mu.Unlock()
		t.settle()
		return t
	}
	h.tickets = append(h.tickets, t)
	h.active++
	h.mu.Unlock()
	h.start.Do(func() { go h.run() })
	return t
}

// complete records the terminal outcome and settles every ticket that
// has not been cancelled. First outcome wins.
func (h *Handle) complete(v interface{}, err error) {
	h.mu.Lock()
	if h.completed {
		h.mu.Unlock()
		return
	}
	h.completed = true
	h.value, h.err = v, err
	ts := h.tickets
	h.tickets = nil
	h.mu.Unlock()
	for _, t := range ts {
		t.settle()
	}
}

// A Ticket is one consumer's attachment to a Handle. Tickets are not
// shared between goroutines; attach once per consumer instead.
type Ticket struct {
	h         *Handle
	cancelled atomic.Bool
	once      sync.Once
	done      chan struct{}
}

func (t *Ticket) settle() {
	t.once.Do(func() { close(t.done) })
}

// Done returns a channel closed when the ticket's outcome is
// available, or when the ticket is cancelled.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Value returns the decoded result. It must only be called after
// Done's channel is closed; a cancelled ticket has no value.
func (t *Ticket) Value() interface{} {
	if t.cancelled.Load() {
		return nil
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	return t.h.value
}

// Err returns the terminal error, nil on success. It must only be
// called after Done's channel is closed. A cancelled ticket reports
// context.Canceled.
func (t *Ticket) Err() error {
	if t.cancelled.Load() {
		return context.Canceled
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	return t.h.err
}

// Cancel detaches this consumer: no outcome will be delivered to it.
// Sibling tickets of the same Handle are unaffected. If this was the
// last interested ticket, the underlying network operation and any
// in-flight retry wait are cancelled. Idempotent.
func (t *Ticket) Cancel() {
	if !t.cancelled.CompareAndSwap(false, true) {
		return
	}
	h := t.h
	h.mu.Lock()
	last := false
	if !h.completed {
		h.active--
		last = h.active == 0
	}
	h.mu.Unlock()
	t.settle()
	if last {
		h.cancelWork()
	}
}
