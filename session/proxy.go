// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// An HTTPDelegate receives the transport callbacks for one HTTP
// operation. Callbacks for a single operation are serialized by the
// transport loop: all Receive calls happen before the single Complete
// call.
type HTTPDelegate interface {
	// Receive delivers the next chunk of response body bytes. The
	// chunk is owned by the delegate after the call returns.
	Receive(chunk []byte)
	// Complete delivers the terminal outcome: a response whose body
	// has been fully streamed through Receive, or an error.
	Complete(resp *http.Response, err error)
}

// A StreamDelegate receives the transport callbacks for one WebSocket
// operation. Live is called once when the connection is established;
// Message is called for each received message; exactly one of Closed
// or Failed terminates the operation.
type StreamDelegate interface {
	Live(conn *websocket.Conn)
	Message(messageType int, data []byte)
	Closed(code int, reason string)
	Failed(err error)
}

// A Proxy is a per-session directory mapping an operation identifier
// to its pending task. Transport callbacks arrive on arbitrary
// goroutines while tasks register and deregister concurrently, so each
// directory is guarded by a read/write lock: callback routing takes
// the read side, registration the write side.
//
// Delivering a callback for an unregistered id is a silent no-op, not
// an error: the task was already torn down.
type Proxy struct {
	httpMu    sync.RWMutex
	httpTasks map[uuid.UUID]HTTPDelegate

	wsMu    sync.RWMutex
	wsTasks map[uuid.UUID]StreamDelegate
}

func newProxy() *Proxy {
	return &Proxy{
		httpTasks: make(map[uuid.UUID]HTTPDelegate),
		wsTasks:   make(map[uuid.UUID]StreamDelegate),
	}
}

// RegisterHTTP registers the delegate for an HTTP operation id. An id
// is registered no earlier than the underlying transport operation is
// started.
func (p *Proxy) RegisterHTTP(id uuid.UUID, d HTTPDelegate) {
	p.httpMu.Lock()
	defer p.httpMu.Unlock()
	p.httpTasks[id] = d
}

// DeregisterHTTP removes the delegate for id. Deregistration is
// idempotent: it happens on terminal completion or on subscriber
// teardown, whichever comes first, and the second call is a no-op.
func (p *Proxy) DeregisterHTTP(id uuid.UUID) {
	p.httpMu.Lock()
	defer p.httpMu.Unlock()
	delete(p.httpTasks, id)
}

// RegisterWS registers the delegate for a WebSocket operation id.
func (p *Proxy) RegisterWS(id uuid.UUID, d StreamDelegate) {
	p.wsMu.Lock()
	defer p.wsMu.Unlock()
	p.wsTasks[id] = d
}

// DeregisterWS removes the delegate for id; idempotent.
func (p *Proxy) DeregisterWS(id uuid.UUID) {
	p.wsMu.Lock()
	defer p.wsMu.Unlock()
	delete(p.wsTasks, id)
}

// HTTPCount reports the number of registered HTTP operations.
func (p *Proxy) HTTPCount() int {
	p.httpMu.RLock()
	defer p.httpMu.RUnlock()
	return len(p.httpTasks)
}

// WSCount reports the number of registered WebSocket operations.
func (p *Proxy) WSCount() int {
	p.wsMu.RLock()
	defer p.wsMu.RUnlock()
	return len(p.wsTasks)
}

// OnData routes a body chunk to the HTTP operation id.
func (p *Proxy) OnData(id uuid.UUID, chunk []byte) {
	p.httpMu.RLock()
	d := p.httpTasks[id]
	p.httpMu.RUnlock()
	if d != nil {
		d.Receive(chunk)
	}
}

// OnComplete routes the terminal outcome to the HTTP operation id.
func (p *Proxy) OnComplete(id uuid.UUID, resp *http.Response, err error) {
	p.httpMu.RLock()
	d := p.httpTasks[id]
	p.httpMu.RUnlock()
	if d != nil {
		d.Complete(resp, err)
	}
}

// OnLive routes the established connection to the WebSocket operation
// id, so the task can expose it to its send side channel.
func (p *Proxy) OnLive(id uuid.UUID, conn *websocket.Conn) {
	p.wsMu.RLock()
	d := p.wsTasks[id]
	p.wsMu.RUnlock()
	if d != nil {
		d.Live(conn)
	}
}

// OnMessage routes a received message to the WebSocket operation id.
func (p *Proxy) OnMessage(id uuid.UUID, messageType int, data []byte) {
	p.wsMu.RLock()
	d := p.wsTasks[id]
	p.wsMu.RUnlock()
	if d != nil {
		d.Message(messageType, data)
	}
}

// OnClose routes a peer close event to the WebSocket operation id.
func (p *Proxy) OnClose(id uuid.UUID, code int, reason string) {
	p.wsMu.RLock()
	d := p.wsTasks[id]
	p.wsMu.RUnlock()
	if d != nil {
		d.Closed(code, reason)
	}
}

// OnError routes a transport failure to the WebSocket operation id.
func (p *Proxy) OnError(id uuid.UUID, err error) {
	p.wsMu.RLock()
	d := p.wsTasks[id]
	p.wsMu.RUnlock()
	if d != nil {
		d.Failed(err)
	}
}
