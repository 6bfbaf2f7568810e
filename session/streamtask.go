// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// A Message is one WebSocket message. Type is a gorilla/websocket
// message type (websocket.TextMessage or websocket.BinaryMessage);
// the payload is treated opaquely.
type Message struct {
	Type int
	Data []byte
}

// A ClosedError is the terminal failure of a WebSocket stream whose
// peer sent a close frame. A peer close is surfaced as an error
// carrying the close code, never as a silent finish.
type ClosedError struct {
	Code   int
	Reason string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("netq/session: stream closed by peer (code %d): %s", e.Code, e.Reason)
}

// ErrNotConnected is returned by Send before the connection handshake
// has completed.
var ErrNotConnected = errors.New("netq/session: stream not connected")

// A StreamTask is the long-lived WebSocket variant of a network task.
// It follows the same single-use activation discipline as Task, but
// after activation it produces an unbounded sequence of messages,
// terminated only by a peer close, a transport failure, or
// cancellation, never by a single terminal value.
//
// The live connection is exposed through Ready and Send so a higher
// layer can write messages over the same connection the read loop is
// consuming.
type StreamTask struct {
	sess   *Session
	url    string
	header http.Header
	id     uuid.UUID
	state  atomic.Int32
	cancel context.CancelFunc
	ctx    context.Context

	connMu   sync.Mutex
	conn     *websocket.Conn
	writeMu  sync.Mutex
	liveOnce sync.Once
	live     chan struct{}

	msgs chan Message
	err  error
	done chan struct{}
}

// NewStreamTask returns an idle StreamTask that will connect to urlStr
// (a ws:// or wss:// URL) with the given handshake header when
// activated.
func NewStreamTask(ctx context.Context, sess *Session, urlStr string, header http.Header) *StreamTask {
	ctx, cancel := context.WithCancel(ctx)
	return &StreamTask{
		sess:   sess,
		url:    urlStr,
		header: header,
		id:     uuid.New(),
		cancel: cancel,
		ctx:    ctx,
		live:   make(chan struct{}),
		msgs:   make(chan Message, defaultStreamBuffer),
		done:   make(chan struct{}),
	}
}

// ID returns the operation identifier the task registers under.
func (t *StreamTask) ID() uuid.UUID {
	return t.id
}

// Activate dials the connection and starts the read loop. The first
// call wins; later calls and calls after Cancel are no-ops.
func (t *StreamTask) Activate() bool {
	if !t.state.CompareAndSwap(taskCreated, taskActive) {
		return false
	}
	t.sess.proxy.RegisterWS(t.id, t)
	t.sess.startWS(t.ctx, t.id, t.url, t.header)
	return true
}

// Cancel tears the stream down: the dial or read loop is interrupted,
// the connection closed, and no further messages are delivered.
// Idempotent.
func (t *StreamTask) Cancel() {
	if t.state.CompareAndSwap(taskCreated, taskCancelled) {
		t.cancel()
		t.err = context.Canceled
		close(t.done)
		t.liveOnce.Do(func() { close(t.live) })
		return
	}
	if t.state.CompareAndSwap(taskActive, taskCancelled) {
		t.cancel()
		t.sess.proxy.DeregisterWS(t.id)
		t.connMu.Lock()
		if t.conn != nil {
			_ = t.conn.Close()
		}
		t.connMu.Unlock()
		t.err = context.Canceled
		close(t.done)
		t.liveOnce.Do(func() { close(t.live) })
	}
}

// Messages returns the channel of received messages. It is never
// closed; select against Done to observe termination.
func (t *StreamTask) Messages() <-chan Message {
	return t.msgs
}

// Ready returns a channel closed once the connection handshake has
// completed and Send may proceed. The channel is also closed if the
// task terminates without ever connecting, so a waiter never blocks
// past a failed dial; use Connected to tell the two apart.
func (t *StreamTask) Ready() <-chan struct{} {
	return t.live
}

// Connected reports whether the connection handshake ever completed.
func (t *StreamTask) Connected() bool {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.conn != nil
}

// Done returns a channel closed when the stream reaches a terminal
// state.
func (t *StreamTask) Done() <-chan struct{} {
	return t.done
}

// Err returns the terminal error. It must only be called after Done's
// channel is closed. A peer close yields a *ClosedError.
func (t *StreamTask) Err() error {
	return t.err
}

// Send writes a message over the live connection. It fails with
// ErrNotConnected until the handshake completes; it does not wait.
// Writers are serialized internally, as the connection permits only
// one concurrent writer.
func (t *StreamTask) Send(m Message) error {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteMessage(m.Type, m.Data)
}

// Live implements StreamDelegate.
func (t *StreamTask) Live(conn *websocket.Conn) {
	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()
	t.liveOnce.Do(func() { close(t.live) })
}

// Message implements StreamDelegate. Delivery blocks until a consumer
// drains the buffer or the stream terminates, which keeps the read
// loop from outrunning slow consumers without dropping messages.
func (t *StreamTask) Message(messageType int, data []byte) {
	select {
	case t.msgs <- Message{Type: messageType, Data: data}:
	case <-t.done:
	}
}

// Closed implements StreamDelegate.
func (t *StreamTask) Closed(code int, reason string) {
	t.terminate(&ClosedError{Code: code, Reason: reason})
}

// Failed implements StreamDelegate.
func (t *StreamTask) Failed(err error) {
	t.terminate(err)
}

func (t *StreamTask) terminate(err error) {
	if !t.state.CompareAndSwap(taskActive, taskDone) {
		return
	}
	t.sess.proxy.DeregisterWS(t.id)
	t.err = err
	close(t.done)
	t.liveOnce.Do(func() { close(t.live) })
}
