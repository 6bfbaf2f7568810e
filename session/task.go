// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"bytes"
	"context"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
)

// Task states. A task moves Created → Active on first activation, then
// to exactly one of Done or Cancelled.
const (
	taskCreated int32 = iota
	taskActive
	taskDone
	taskCancelled
)

// A Result is the raw terminal outcome of one HTTP transport
// operation: buffered body bytes plus status on success, or a
// classified transport error.
type Result struct {
	Status int
	Header http.Header
	Body   []byte
	Err    error
}

// A Task is a single-use, demand-driven HTTP network operation. It is
// created idle, starts exactly one underlying transport operation when
// Activate is first called, and produces exactly one terminal Result.
// If cancelled first, delivery is silenced.
//
// A Task registers itself with the session's Proxy on activation and
// always deregisters on the way out, whether it completes, fails, or
// is cancelled.
type Task struct {
	sess   *Session
	req    *http.Request
	id     uuid.UUID
	state  atomic.Int32
	cancel context.CancelFunc
	buf    bytes.Buffer
	result Result
	done   chan struct{}
}

// NewTask returns an idle Task that will execute req on the given
// session when activated. The request's context governs the attempt;
// the task adds its own cancellation on top.
func NewTask(sess *Session, req *http.Request) *Task {
	ctx, cancel := context.WithCancel(req.Context())
	return &Task{
		sess:   sess,
		req:    req.WithContext(ctx),
		cancel: cancel,
		id:     uuid.New(),
		done:   make(chan struct{}),
	}
}

// ID returns the operation identifier the task registers under.
func (t *Task) ID() uuid.UUID {
	return t.id
}

// Activate starts the underlying transport operation. The first call
// wins: a second call, or a call after Cancel, is a no-op. Activate
// returns whether this call started the operation.
func (t *Task) Activate() bool {
	if !t.state.CompareAndSwap(taskCreated, taskActive) {
		return false
	}
	t.sess.proxy.RegisterHTTP(t.id, t)
	t.sess.startHTTP(t.id, t.req)
	return true
}

// Cancel tears the task down. Before activation it prevents
// activation; after activation it stops the underlying operation and
// silences any further delivery. Cancel is idempotent, and cancelling
// a task that already completed is a no-op.
func (t *Task) Cancel() {
	if t.state.CompareAndSwap(taskCreated, taskCancelled) {
		t.cancel()
		t.result.Err = context.Canceled
		close(t.done)
		return
	}
	if t.state.CompareAndSwap(taskActive, taskCancelled) {
		t.cancel()
		t.sess.proxy.DeregisterHTTP(t.id)
		t.result.Err = context.Canceled
		close(t.done)
	}
}

// Done returns a channel closed when the task reaches a terminal
// state, whether completed or cancelled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result returns the terminal outcome. It must only be called after
// Done's channel is closed.
func (t *Task) Result() Result {
	return t.result
}

// Receive implements HTTPDelegate. Chunks for one operation arrive
// serially from the transport loop, so the buffer needs no lock.
func (t *Task) Receive(chunk []byte) {
	t.buf.Write(chunk)
}

// Complete implements HTTPDelegate. If the task was cancelled in the
// meantime the outcome is discarded.
func (t *Task) Complete(resp *http.Response, err error) {
	if !t.state.CompareAndSwap(taskActive, taskDone) {
		return
	}
	t.sess.proxy.DeregisterHTTP(t.id)
	if err != nil {
		t.result = Result{Err: err}
	} else {
		t.result = Result{
			Status: resp.StatusCode,
			Header: resp.Header,
			Body:   t.buf.Bytes(),
		}
	}
	close(t.done)
}
