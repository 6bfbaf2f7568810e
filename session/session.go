// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/anser/netq/transient"
)

// A Session is the lazily created, shared connection handle for one
// transport configuration. It owns an HTTP client (connection pool), a
// WebSocket dialer, and exactly one Proxy routing transport callbacks
// to pending tasks.
//
// Sessions are created by a Registry and shared for the life of the
// process; they are safe for concurrent use by any number of tasks.
type Session struct {
	cfg    Config
	client *http.Client
	dialer *websocket.Dialer
	proxy  *Proxy
	logger *zap.Logger
}

func newSession(cfg Config, logger *zap.Logger) *Session {
	cfg = cfg.withDefaults()

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		Proxy:                 http.ProxyFromEnvironment,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.ProxyURL != "" {
		if u, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		} else {
			logger.Warn("invalid proxy URL ignored",
				zap.String("proxy", cfg.ProxyURL), zap.Error(err))
		}
	}
	if !cfg.DisableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn("http2 unavailable for session", zap.Error(err))
		}
	}

	tlsCfg := transport.TLSClientConfig

	return &Session{
		cfg:    cfg,
		client: &http.Client{Transport: transport},
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			TLSClientConfig:  tlsCfg,
			Proxy:            transport.Proxy,
		},
		proxy:  newProxy(),
		logger: logger,
	}
}

// Proxy returns the session's delegate proxy.
func (s *Session) Proxy() *Proxy {
	return s.proxy
}

// CloseIdleConnections closes keep-alive connections sitting idle in
// the session's pool. It does not interrupt connections in use.
func (s *Session) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}

// startHTTP runs one HTTP transport operation for the given id,
// delivering callbacks through the proxy. The response body is
// streamed in chunks so the registered delegate sees incremental bytes
// followed by exactly one Complete.
func (s *Session) startHTTP(id uuid.UUID, req *http.Request) {
	go func() {
		resp, err := s.client.Do(req)
		if err != nil {
			s.proxy.OnComplete(id, nil, transient.NewError(err))
			return
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		buf := make([]byte, defaultReadChunkSize)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				s.proxy.OnData(id, chunk)
			}
			if rerr != nil {
				if errors.Is(rerr, io.EOF) {
					s.proxy.OnComplete(id, resp, nil)
				} else {
					s.proxy.OnComplete(id, resp, transient.NewError(rerr))
				}
				return
			}
		}
	}()
}

// startWS runs one WebSocket transport operation for the given id. On
// a successful handshake the live connection is surfaced through
// OnLive, then the read loop re-arms the next receive after each
// delivered message until the peer closes or the operation is
// cancelled via ctx.
func (s *Session) startWS(ctx context.Context, id uuid.UUID, urlStr string, header http.Header) {
	go func() {
		conn, resp, err := s.dialer.DialContext(ctx, urlStr, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			s.proxy.OnError(id, transient.NewError(err))
			return
		}
		s.proxy.OnLive(id, conn)
		defer conn.Close()

		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				var ce *websocket.CloseError
				if errors.As(err, &ce) {
					s.proxy.OnClose(id, ce.Code, ce.Text)
				} else {
					s.proxy.OnError(id, transient.NewError(err))
				}
				return
			}
			s.proxy.OnMessage(id, messageType, data)
		}
	}()
}
