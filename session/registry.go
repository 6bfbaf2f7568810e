// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"sync"

	"go.uber.org/zap"
)

// A Registry is a thread-safe cache mapping a transport configuration
// fingerprint to a reusable *Session. Sessions are created lazily on
// first request and shared thereafter; they are never evicted, so the
// table has process lifetime.
//
// The zero value is not usable; call NewRegistry. Most programs use
// the process-wide DefaultRegistry.
type Registry struct {
	logger   *zap.Logger
	mu       sync.Mutex
	sessions map[string]*Session
}

// DefaultRegistry is the process-wide session registry. It is created
// at package initialization and never torn down.
var DefaultRegistry = NewRegistry(nil)

// NewRegistry returns an empty Registry. Sessions it creates log
// through logger; nil means no logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for the given transport configuration,
// creating it if this is the first request for its fingerprint.
//
// The look-up-or-insert runs under a single lock, so two concurrent
// callers requesting the same fingerprint for the first time are
// guaranteed to observe the same *Session: no duplicate session is
// ever created and no handle is lost.
func (r *Registry) Session(cfg Config) *Session {
	key := cfg.Fingerprint()
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s
	}
	s := newSession(cfg, r.logger)
	r.sessions[key] = s
	r.logger.Debug("session created", zap.String("fingerprint", key))
	return s
}

// Len reports how many sessions the registry currently holds.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
