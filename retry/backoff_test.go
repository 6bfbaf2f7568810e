// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anser/netq/request"
	"github.com/anser/netq/transient"
)

func always(*request.State, error) bool { return true }
func never(*request.State, error) bool  { return false }

func TestNewBackoff(t *testing.T) {
	t.Run("invalid initial", func(t *testing.T) {
		assert.Panics(t, func() {
			NewBackoff(0, time.Second, nil)
		})
		assert.Panics(t, func() {
			NewBackoff(-1, time.Second, nil)
		})
	})
	t.Run("ceiling below initial", func(t *testing.T) {
		assert.Panics(t, func() {
			NewBackoff(2, 1, nil)
		})
	})
	t.Run("nil predicate means default", func(t *testing.T) {
		b := NewBackoff(1, 16, nil)
		s := &request.State{Status: 429}
		assert.True(t, b.Retry(context.Background(), s, nil))
	})
}

// The number of retries for a continuously failing retryable request
// is floor(log2(ceiling))+1 when the initial delay is one unit.
func TestBackoffTermination(t *testing.T) {
	testCases := []struct {
		ceiling time.Duration
		retries int
	}{
		{ceiling: 1, retries: 1},
		{ceiling: 2, retries: 2},
		{ceiling: 3, retries: 2},
		{ceiling: 8, retries: 4},
		{ceiling: 10, retries: 4},
		{ceiling: 16, retries: 5},
		{ceiling: 100, retries: 7},
	}
	s := &request.State{}
	failure := transient.NewError(syscall.ECONNREFUSED)
	for _, testCase := range testCases {
		b := NewBackoff(1, testCase.ceiling, always)
		n := 0
		for b.Retry(context.Background(), s, failure) {
			n++
			require.Less(t, n, 64, "runaway retry loop at ceiling %d", testCase.ceiling)
		}
		assert.Equal(t, testCase.retries, n, "ceiling %d", testCase.ceiling)
	}
}

// The internal delay doubles on every call, even when the call decides
// not to retry. A refusal therefore advances the state toward the
// ceiling exactly like a retry does.
func TestBackoffAdvancesOnEveryCall(t *testing.T) {
	b := NewBackoff(1, 100, never)
	s := &request.State{}
	for i := 0; i < 8; i++ {
		assert.False(t, b.Retry(context.Background(), s, nil))
	}
	assert.Equal(t, time.Duration(256), b.next)

	// Same number of calls with an always-true predicate exhausts the
	// ceiling; the instance never recovers.
	b2 := NewBackoff(1, 4, always)
	assert.True(t, b2.Retry(context.Background(), s, nil))  // 1
	assert.True(t, b2.Retry(context.Background(), s, nil))  // 2
	assert.True(t, b2.Retry(context.Background(), s, nil))  // 4
	assert.False(t, b2.Retry(context.Background(), s, nil)) // 8 > 4
	assert.False(t, b2.Retry(context.Background(), s, nil))
}

func TestBackoffNonRetryableImmediate(t *testing.T) {
	b := NewBackoff(time.Hour, 10*time.Hour, nil)
	s := &request.State{Status: 404}
	start := time.Now()
	assert.False(t, b.Retry(context.Background(), s, nil))
	assert.Less(t, time.Since(start), time.Second, "refusal must not sleep")
}

func TestBackoffSleepsDelay(t *testing.T) {
	b := NewBackoff(30*time.Millisecond, time.Second, always)
	s := &request.State{}
	start := time.Now()
	require.True(t, b.Retry(context.Background(), s, nil))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestBackoffContextCancelled(t *testing.T) {
	b := NewBackoff(time.Hour, 10*time.Hour, always)
	s := &request.State{}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	assert.False(t, b.Retry(ctx, s, nil))
	assert.Less(t, time.Since(start), time.Hour)
}

func TestBackoffAllowsMultiple(t *testing.T) {
	assert.True(t, AllowsMultiple(NewBackoff(1, 2, nil)))
	assert.False(t, AllowsMultiple(None))
}
