// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netq

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/anser/netq/session"
)

const defaultCursorBuffer = 64

// A StreamItem is one delivered message of a scheduled stream: the
// decoded value, or the error decoding that one message produced. A
// decode failure is carried on the item alone and does not terminate
// the stream.
type StreamItem struct {
	Value interface{}
	Err   error
}

// A Stream is the shareable handle of one scheduled WebSocket
// operation: a single live connection whose decoded message sequence
// fans out to any number of cursors. The connection is dialed at most
// once per attempt, on the first attachment; a handshake failure runs
// through the same retry pipeline as a scheduled request. Unlike an
// HTTP Handle there is no value replay; a cursor attaching late
// observes only subsequent messages, plus the terminal outcome.
//
// Streams are returned by Scheduler.ScheduleStream.
type Stream struct {
	start  sync.Once
	run    func()
	cancel func()

	readyOnce sync.Once
	ready     chan struct{}

	mu         sync.Mutex
	task       *session.StreamTask
	cursors    []*Cursor
	active     int
	terminated bool
	err        error
}

func newStream() *Stream {
	return &Stream{ready: make(chan struct{})}
}

// Attach registers a new consumer and returns its Cursor. The first
// attachment dials the connection; later attachments share the live
// sequence. A consumer must drain its cursor or cancel it, or it will
// eventually stall the shared sequence.
func (s *Stream) Attach() *Cursor {
	c := &Cursor{s: s, msgs: make(chan StreamItem, defaultCursorBuffer), done: make(chan struct{})}
	s.mu.Lock()
	if s.terminated {
		close(c.msgs)
		s.mu.Unlock()
		c.settle()
		return c
	}
	s.cursors = append(s.cursors, c)
	s.active++
	s.mu.Unlock()
	s.start.Do(func() { go s.run() })
	return c
}

// Ready returns a channel closed once the connection handshake has
// completed and Send may proceed. The channel is also closed if the
// stream terminates without ever connecting, so a waiter never blocks
// past a failed dial.
func (s *Stream) Ready() <-chan struct{} {
	return s.ready
}

// Send writes a message over the live connection. It fails with
// session.ErrNotConnected until the handshake completes.
func (s *Stream) Send(m session.Message) error {
	s.mu.Lock()
	task := s.task
	s.mu.Unlock()
	if task == nil {
		return session.ErrNotConnected
	}
	return task.Send(m)
}

// goLive publishes the connected task so Send can reach it and
// releases waiters blocked on Ready.
func (s *Stream) goLive(task *session.StreamTask) {
	s.mu.Lock()
	s.task = task
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Stream) broadcast(item StreamItem) {
	s.mu.Lock()
	cursors := make([]*Cursor, len(s.cursors))
	copy(cursors, s.cursors)
	s.mu.Unlock()
	for _, c := range cursors {
		select {
		case c.msgs <- item:
		case <-c.done:
			// cancelled cursor; skip
		}
	}
}

// finish records the terminal outcome, settles every cursor, and
// releases any waiter still blocked on Ready. First outcome wins.
func (s *Stream) finish(err error) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.terminated = true
	s.err = err
	cursors := s.cursors
	s.cursors = nil
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
	for _, c := range cursors {
		close(c.msgs)
		c.settle()
	}
}

// A Cursor is one consumer's attachment to a Stream.
type Cursor struct {
	s         *Stream
	cancelled atomic.Bool
	once      sync.Once
	msgs      chan StreamItem
	done      chan struct{}
}

func (c *Cursor) settle() {
	c.once.Do(func() { close(c.done) })
}

// Messages returns the channel on which this cursor receives the
// stream's decoded items. It is closed when the stream terminates;
// consult Err to distinguish a peer close from a transport failure.
func (c *Cursor) Messages() <-chan StreamItem {
	return c.msgs
}

// Done returns a channel closed when the stream terminates or the
// cursor is cancelled.
func (c *Cursor) Done() <-chan struct{} {
	return c.done
}

// Err returns the stream's terminal error. It must only be called
// after Done's channel is closed. A cancelled cursor reports
// context.Canceled; a peer close surfaces as *session.ClosedError.
func (c *Cursor) Err() error {
	if c.cancelled.Load() {
		return context.Canceled
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.err
}

// Cancel detaches this cursor: no further messages are delivered to
// it, and sibling cursors are unaffected. If this was the last
// interested cursor the connection and any in-flight retry wait are
// torn down. Idempotent.
func (c *Cursor) Cancel() {
	if !c.cancelled.CompareAndSwap(false, true) {
		return
	}
	s := c.s
	s.mu.Lock()
	last := false
	if !s.terminated {
		s.active--
		last = s.active == 0
	}
	s.mu.Unlock()
	c.settle()
	if last {
		s.cancel()
	}
}
