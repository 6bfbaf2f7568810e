// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anser/netq/transient"
)

func testSession(t *testing.T) *Session {
	t.Helper()
	return NewRegistry(nil).Session(Config{DisableHTTP2: true})
}

func newTestTask(t *testing.T, sess *Session, url string) *Task {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), "GET", url, nil)
	require.NoError(t, err)
	return NewTask(sess, req)
}

func awaitTask(t *testing.T, task *Task) Result {
	t.Helper()
	select {
	case <-task.Done():
		return task.Result()
	case <-time.After(5 * time.Second):
		t.Fatal("task did not finish")
		return Result{}
	}
}

func TestTaskSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Marker", "yes")
		w.WriteHeader(201)
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	sess := testSession(t)
	task := newTestTask(t, sess, server.URL)

	require.True(t, task.Activate())
	res := awaitTask(t, task)
	require.NoError(t, res.Err)
	assert.Equal(t, 201, res.Status)
	assert.Equal(t, "yes", res.Header.Get("X-Marker"))
	assert.Equal(t, []byte("payload"), res.Body)
	assert.Equal(t, 0, sess.Proxy().HTTPCount(), "terminal completion must deregister")
}

func TestTaskSingleUse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	sess := testSession(t)
	task := newTestTask(t, sess, server.URL)

	require.True(t, task.Activate())
	assert.False(t, task.Activate(), "second activation is a no-op")
	awaitTask(t, task)
	assert.False(t, task.Activate(), "activation after completion is a no-op")
	assert.EqualValues(t, 1, calls.Load(), "exactly one transport operation")
}

func TestTaskTransportErrorClassified(t *testing.T) {
	sess := testSession(t)
	// Nothing listens on this port.
	task := newTestTask(t, sess, "http://127.0.0.1:1")

	require.True(t, task.Activate())
	res := awaitTask(t, task)
	require.Error(t, res.Err)
	var te *transient.Error
	require.ErrorAs(t, res.Err, &te)
	assert.Equal(t, transient.NoConnection, te.Category)
	assert.Equal(t, 0, sess.Proxy().HTTPCount())
}

func TestTaskTimeoutClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	sess := testSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", server.URL, nil)
	require.NoError(t, err)
	task := NewTask(sess, req)

	require.True(t, task.Activate())
	res := awaitTask(t, task)
	require.Error(t, res.Err)
	var te *transient.Error
	require.ErrorAs(t, res.Err, &te)
	assert.Equal(t, transient.Timeout, te.Category)
}

func TestTaskCancelBeforeActivation(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	sess := testSession(t)
	task := newTestTask(t, sess, server.URL)

	task.Cancel()
	assert.False(t, task.Activate(), "cancellation before activation prevents activation")
	res := awaitTask(t, task)
	assert.True(t, errors.Is(res.Err, context.Canceled))
	assert.EqualValues(t, 0, calls.Load())
}

func TestTaskCancelAfterActivation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	sess := testSession(t)
	task := newTestTask(t, sess, server.URL)

	require.True(t, task.Activate())
	<-started
	task.Cancel()
	task.Cancel() // idempotent
	res := awaitTask(t, task)
	assert.True(t, errors.Is(res.Err, context.Canceled))
	assert.Equal(t, 0, sess.Proxy().HTTPCount(), "cancellation must deregister")
}

func TestTaskIDsDistinct(t *testing.T) {
	sess := testSession(t)
	a := newTestTask(t, sess, "http://example.com")
	b := newTestTask(t, sess, "http://example.com")
	assert.NotEqual(t, a.ID(), b.ID())
}
