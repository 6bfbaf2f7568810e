// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netq

import (
	"sync"
)

// A liveTask is a single-use network task the conduit can own across
// attempts. Both session.Task and session.StreamTask satisfy it.
type liveTask interface {
	Activate() bool
	Cancel()
}

// A conduit owns the live network task of one logical request across
// its retried attempts. It separates the two reasons a task gets torn
// down: the consumer gave up (logical cancel), or the pipeline is
// replacing a failed attempt with a fresh task (internal replace).
// Without that separation, a cancel arriving while an attempt is being
// replaced could either be lost or tear down the very task the retry
// is about to run.
type conduit struct {
	mu             sync.Mutex
	task           liveTask
	pendingReplace bool
	cancelled      bool
}

// install makes next the live task and activates it. It reports false
// if the consumer has already cancelled, or cancels during the
// replacement, in which case next is cancelled and must not be waited
// on for a useful result.
func (c *conduit) install(next liveTask) bool {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		next.Cancel()
		return false
	}
	c.pendingReplace = true
	c.task = next
	c.mu.Unlock()

	next.Activate()

	c.mu.Lock()
	c.pendingReplace = false
	cancelled := c.cancelled
	c.mu.Unlock()
	if cancelled {
		// The consumer cancelled mid-replacement; cancel() deferred
		// the task teardown to us.
		next.Cancel()
		return false
	}
	return true
}

// cancel is the consumer teardown path. Idempotent. If a replacement
// is in progress the live task is left for install to cancel, so the
// teardown is never lost and never hits a half-installed task.
func (c *conduit) cancel() {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		return
	}
	c.cancelled = true
	t := c.task
	pending := c.pendingReplace
	c.mu.Unlock()
	if !pending && t != nil {
		t.Cancel()
	}
}
