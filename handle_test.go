// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor   = 5 * time.Second
	pollEvery = 10 * time.Millisecond
)

func TestHandleTriggersOnce(t *testing.T) {
	var runs atomic.Int32
	var h *Handle
	h = newHandle(func() {
		runs.Add(1)
		h.complete("done", nil)
	}, func() {})

	const n = 32
	var wg sync.WaitGroup
	tickets := make([]*Ticket, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tickets[i] = h.Attach()
		}(i)
	}
	wg.Wait()
	for _, tk := range tickets {
		<-tk.Done()
		assert.Equal(t, "done", tk.Value())
		assert.NoError(t, tk.Err())
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestHandleLazyTrigger(t *testing.T) {
	var runs atomic.Int32
	h := newHandle(func() { runs.Add(1) }, func() {})
	assert.Equal(t, int32(0), runs.Load(), "work must not start before the first attachment")
	h.Attach()
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, waitFor, pollEvery)
}

func TestHandleReplayToLateTicket(t *testing.T) {
	h := newHandle(func() {}, func() {})
	h.complete(42, nil)
	tk := h.Attach()
	select {
	case <-tk.Done():
	default:
		t.Fatal("late ticket must be settled immediately")
	}
	assert.Equal(t, 42, tk.Value())
}

func TestHandleFirstOutcomeWins(t *testing.T) {
	h := newHandle(func() {}, func() {})
	h.complete("first", nil)
	h.complete("second", errors.New("late"))
	tk := h.Attach()
	assert.Equal(t, "first", tk.Value())
	assert.NoError(t, tk.Err())
}

func TestTicketCancelIdempotent(t *testing.T) {
	var cancels atomic.Int32
	h := newHandle(func() {}, func() { cancels.Add(1) })
	tk := h.Attach()
	tk.Cancel()
	tk.Cancel()
	<-tk.Done()
	assert.ErrorIs(t, tk.Err(), context.Canceled)
	assert.Nil(t, tk.Value())
	assert.Equal(t, int32(1), cancels.Load())
}

func TestLastTicketCancelsWork(t *testing.T) {
	var cancelled atomic.Bool
	h := newHandle(func() {}, func() { cancelled.Store(true) })
	a := h.Attach()
	b := h.Attach()

	a.Cancel()
	assert.False(t, cancelled.Load(), "a sibling is still interested")
	b.Cancel()
	assert.True(t, cancelled.Load(), "last ticket gone, work must be cancelled")
}

func TestCancelledTicketMissesDelivery(t *testing.T) {
	h := newHandle(func() {}, func() {})
	keeper := h.Attach()
	quitter := h.Attach()
	quitter.Cancel()
	h.complete("v", nil)

	require.Equal(t, "v", keeper.Value())
	assert.Nil(t, quitter.Value())
	assert.ErrorIs(t, quitter.Err(), context.Canceled)
}

func TestCancelAfterCompleteKeepsOutcome(t *testing.T) {
	var cancelled atomic.Bool
	h := newHandle(func() {}, func() { cancelled.Store(true) })
	tk := h.Attach()
	h.complete("v", nil)
	tk.Cancel()
	assert.False(t, cancelled.Load(), "work already finished, nothing to cancel")
}
