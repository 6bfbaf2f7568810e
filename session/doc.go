// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package session provides the connection layer of netq: a registry of
// shared transport sessions, a per-session delegate proxy routing
// transport callbacks to pending tasks, and the single-use network
// tasks themselves (one-shot HTTP Task, long-lived WebSocket
// StreamTask).
//
// A Session is keyed by the fingerprint of its transport Config, so
// all requests with equivalent transport needs share one connection
// pool. The Registry is the only place sessions are created; the
// look-up-or-insert runs under a single lock, guaranteeing exactly one
// session per fingerprint even under concurrent first access.
package session
