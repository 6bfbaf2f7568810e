// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netq

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/anser/netq/request"
)

const (
	defaultLaneParallel   = 8
	defaultBackgroundSize = 64
)

// Lanes dispatches final result deliveries onto priority-associated
// concurrency contexts. The Standard and Interactive lanes run
// deliveries in parallel, each bounded by its own semaphore, so a
// burst of background-quality work can never starve work a user is
// waiting on. The Background lane runs deliveries serially on a single
// goroutine and may additionally be throttled.
//
// The zero value is a valid dispatcher with default bounds. Lanes are
// process-lifetime state, like the session registry: the background
// goroutine is started on first dispatch and never torn down.
type Lanes struct {
	// Parallel bounds the number of concurrent deliveries on each of
	// the Standard and Interactive lanes. Zero means a small default.
	Parallel int

	// BackgroundLimit, if non-nil, throttles the rate at which
	// background deliveries run.
	BackgroundLimit *rate.Limiter

	once  sync.Once
	bg    chan func()
	std   chan struct{}
	inter chan struct{}
}

var defaultLanes Lanes

func (l *Lanes) init() {
	l.once.Do(func() {
		n := l.Parallel
		if n <= 0 {
			n = defaultLaneParallel
		}
		l.std = make(chan struct{}, n)
		l.inter = make(chan struct{}, n)
		l.bg = make(chan func(), defaultBackgroundSize)
		go l.runBackground()
	})
}

func (l *Lanes) runBackground() {
	for fn := range l.bg {
		if l.BackgroundLimit != nil {
			_ = l.BackgroundLimit.Wait(context.Background())
		}
		fn()
	}
}

// Dispatch runs fn on the lane selected by p. It never blocks the
// caller beyond queueing: parallel-lane deliveries wait for a
// semaphore slot on their own goroutine, and background deliveries
// queue for the serial worker.
func (l *Lanes) Dispatch(p request.Priority, fn func()) {
	l.init()
	switch p {
	case request.Background:
		l.bg <- fn
	case request.Interactive:
		go l.bounded(l.inter, fn)
	default:
		go l.bounded(l.std, fn)
	}
}

func (l *Lanes) bounded(sem chan struct{}, fn func()) {
	sem <- struct{}{}
	defer func() { <-sem }()
	fn()
}
