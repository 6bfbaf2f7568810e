// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

type recordingHTTPDelegate struct {
	mu       sync.Mutex
	chunks   [][]byte
	resp     *http.Response
	err      error
	complete int
}

func (d *recordingHTTPDelegate) Receive(chunk []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chunks = append(d.chunks, chunk)
}

func (d *recordingHTTPDelegate) Complete(resp *http.Response, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resp = resp
	d.err = err
	d.complete++
}

type recordingStreamDelegate struct {
	mu     sync.Mutex
	live   int
	msgs   []Message
	code   int
	reason string
	err    error
}

func (d *recordingStreamDelegate) Live(*websocket.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live++
}

func (d *recordingStreamDelegate) Message(messageType int, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, Message{Type: messageType, Data: data})
}

func (d *recordingStreamDelegate) Closed(code int, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.code = code
	d.reason = reason
}

func (d *recordingStreamDelegate) Failed(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func TestProxyRoutesHTTP(t *testing.T) {
	p := newProxy()
	d := &recordingHTTPDelegate{}
	id := uuid.New()

	p.RegisterHTTP(id, d)
	assert.Equal(t, 1, p.HTTPCount())

	p.OnData(id, []byte("he"))
	p.OnData(id, []byte("llo"))
	p.OnComplete(id, &http.Response{StatusCode: 200}, nil)

	assert.Equal(t, [][]byte{[]byte("he"), []byte("llo")}, d.chunks)
	assert.Equal(t, 200, d.resp.StatusCode)
	assert.Equal(t, 1, d.complete)
}

func TestProxyUnknownIDSilentNoOp(t *testing.T) {
	p := newProxy()
	id := uuid.New()
	assert.NotPanics(t, func() {
		p.OnData(id, []byte("x"))
		p.OnComplete(id, nil, errors.New("boom"))
		p.OnLive(id, nil)
		p.OnMessage(id, websocket.TextMessage, []byte("x"))
		p.OnClose(id, websocket.CloseNormalClosure, "bye")
		p.OnError(id, errors.New("boom"))
	})
}

func TestProxyDeregisterIdempotent(t *testing.T) {
	p := newProxy()
	d := &recordingHTTPDelegate{}
	id := uuid.New()
	p.RegisterHTTP(id, d)

	p.DeregisterHTTP(id)
	p.DeregisterHTTP(id)
	assert.Equal(t, 0, p.HTTPCount())

	// Callbacks after deregistration must not reach the delegate.
	p.OnData(id, []byte("late"))
	p.OnComplete(id, nil, nil)
	assert.Empty(t, d.chunks)
	assert.Equal(t, 0, d.complete)
}

func TestProxyRoutesWS(t *testing.T) {
	p := newProxy()
	d := &recordingStreamDelegate{}
	id := uuid.New()

	p.RegisterWS(id, d)
	assert.Equal(t, 1, p.WSCount())

	p.OnLive(id, nil)
	p.OnMessage(id, websocket.TextMessage, []byte("hi"))
	p.OnClose(id, websocket.CloseGoingAway, "going away")

	assert.Equal(t, 1, d.live)
	assert.Equal(t, []Message{{Type: websocket.TextMessage, Data: []byte("hi")}}, d.msgs)
	assert.Equal(t, websocket.CloseGoingAway, d.code)
	assert.Equal(t, "going away", d.reason)

	p.DeregisterWS(id)
	p.DeregisterWS(id)
	assert.Equal(t, 0, p.WSCount())
}

// Transport callbacks arrive on arbitrary goroutines while tasks
// register and deregister concurrently; the proxy must tolerate the
// interleaving.
func TestProxyConcurrent(t *testing.T) {
	p := newProxy()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.New()
			d := &recordingHTTPDelegate{}
			for j := 0; j < 100; j++ {
				p.RegisterHTTP(id, d)
				p.OnData(id, []byte("x"))
				p.OnComplete(id, nil, nil)
				p.DeregisterHTTP(id)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, p.HTTPCount())
}
