// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFingerprint(t *testing.T) {
	t.Run("equal configs equal fingerprints", func(t *testing.T) {
		a := Config{ConnectTimeout: time.Second, ProxyURL: "http://p:3128"}
		b := Config{ConnectTimeout: time.Second, ProxyURL: "http://p:3128"}
		assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	})
	t.Run("distinct configs distinct fingerprints", func(t *testing.T) {
		a := Config{}
		seen := map[string]bool{a.Fingerprint(): true}
		for _, c := range []Config{
			{ConnectTimeout: time.Second},
			{DisableHTTP2: true},
			{InsecureSkipVerify: true},
			{ProxyURL: "http://p:3128"},
			{MaxIdleConnsPerHost: 2},
			{HandshakeTimeout: time.Minute},
		} {
			fp := c.Fingerprint()
			assert.False(t, seen[fp], "collision for %+v", c)
			seen[fp] = true
		}
	})
}

func TestRegistrySharesSessions(t *testing.T) {
	r := NewRegistry(nil)
	cfg := Config{ConnectTimeout: time.Second}
	s1 := r.Session(cfg)
	s2 := r.Session(cfg)
	require.NotNil(t, s1)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, r.Len())

	s3 := r.Session(Config{ConnectTimeout: 2 * time.Second})
	assert.NotSame(t, s1, s3)
	assert.Equal(t, 2, r.Len())
}

// Concurrent first access for the same fingerprint must observe the
// same session: creation is exactly-once.
func TestRegistryConcurrentFirstAccess(t *testing.T) {
	r := NewRegistry(nil)
	cfg := Config{ConnectTimeout: 7 * time.Second}
	const n = 32
	sessions := make([]*Session, n)
	var start, finish sync.WaitGroup
	start.Add(1)
	finish.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer finish.Done()
			start.Wait()
			sessions[i] = r.Session(cfg)
		}(i)
	}
	start.Done()
	finish.Wait()
	for i := 1; i < n; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
	assert.Equal(t, 1, r.Len())
}

func TestDefaultRegistry(t *testing.T) {
	require.NotNil(t, DefaultRegistry)
	s := DefaultRegistry.Session(Config{IdleConnTimeout: 123 * time.Second})
	assert.Same(t, s, DefaultRegistry.Session(Config{IdleConnTimeout: 123 * time.Second}))
}

func TestSessionAccessors(t *testing.T) {
	r := NewRegistry(nil)
	s := r.Session(Config{})
	require.NotNil(t, s.Proxy())
	assert.Same(t, s.Proxy(), s.Proxy())
	s.CloseIdleConnections()
}
