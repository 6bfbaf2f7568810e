// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"fmt"
	"time"
)

// A Config describes the transport-level configuration of a session.
// Two endpoints with equal configs share one session, and therefore
// one connection pool; the Fingerprint method provides the equality
// key. The zero value is a valid configuration with conservative
// defaults.
type Config struct {
	// ConnectTimeout bounds establishing a TCP connection. Zero means
	// 30 seconds.
	ConnectTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake. Zero means 10
	// seconds.
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout bounds waiting for the response headers
	// after the request is fully written. Zero means no limit; the
	// per-attempt timeout still applies.
	ResponseHeaderTimeout time.Duration

	// IdleConnTimeout is how long an idle keep-alive connection is
	// kept before closed. Zero means 90 seconds.
	IdleConnTimeout time.Duration

	// MaxIdleConnsPerHost caps idle keep-alive connections per host.
	// Zero means 8.
	MaxIdleConnsPerHost int

	// DisableHTTP2 turns off HTTP/2 support, which is otherwise
	// negotiated via ALPN.
	DisableHTTP2 bool

	// InsecureSkipVerify disables TLS certificate verification. For
	// test rigs only.
	InsecureSkipVerify bool

	// ProxyURL routes requests through the given proxy. Empty means
	// the environment proxy settings apply.
	ProxyURL string

	// HandshakeTimeout bounds the WebSocket opening handshake. Zero
	// means 10 seconds.
	HandshakeTimeout time.Duration
}

const (
	defaultConnectTimeout      = 30 * time.Second
	defaultTLSTimeout          = 10 * time.Second
	defaultIdleConnTimeout     = 90 * time.Second
	defaultMaxIdlePerHost      = 8
	defaultHandshakeTimeout    = 10 * time.Second
	defaultReadChunkSize       = 32 * 1024
	defaultStreamBuffer        = 64
)

// Fingerprint returns the value-equality key of the Config, used by
// the Registry to deduplicate sessions. Two configs with the same
// fingerprint are interchangeable at the transport level.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("ct=%d|tls=%d|rht=%d|idle=%d|mih=%d|h2=%t|insec=%t|proxy=%s|hs=%d",
		c.ConnectTimeout, c.TLSHandshakeTimeout, c.ResponseHeaderTimeout,
		c.IdleConnTimeout, c.MaxIdleConnsPerHost, !c.DisableHTTP2,
		c.InsecureSkipVerify, c.ProxyURL, c.HandshakeTimeout)
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.TLSHandshakeTimeout == 0 {
		c.TLSHandshakeTimeout = defaultTLSTimeout
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = defaultIdleConnTimeout
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = defaultMaxIdlePerHost
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	return c
}
