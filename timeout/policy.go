// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"time"

	"github.com/anser/netq/request"
)

// A Policy decides the timeout for the next attempt of an operation.
// The scheduler consults the policy once per attempt, so a policy can
// react to what happened on earlier attempts. A request descriptor's
// own Timeout field, when set, takes precedence over the policy.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	// Timeout returns the timeout for the next attempt given the
	// operation's execution state so far.
	Timeout(s *request.State) time.Duration
}

// DefaultPolicy sets a fixed timeout of 5 seconds on each attempt.
var DefaultPolicy Policy = Fixed(5 * time.Second)

// Infinite never times out.
var Infinite Policy = Fixed(1<<63 - 1)

// Fixed returns a policy that uses the same timeout for every attempt.
func Fixed(d time.Duration) Policy {
	return ladder{d}
}

// Adaptive returns a policy that lengthens the timeout after attempts
// that themselves timed out. The usual value applies to the first
// attempt and to any retry whose predecessor did not time out. If the
// previous attempt timed out, after[n-1] applies where n is the number
// of timed-out attempts so far, clamped to the last element.
//
// For example, Adaptive(200*time.Millisecond, time.Second,
// 10*time.Second) probes quickly, backs off to one second after the
// first timeout, and to ten seconds after that.
func Adaptive(usual time.Duration, after ...time.Duration) Policy {
	l := make(ladder, 1, 1+len(after))
	l[0] = usual
	return append(l, after...)
}

type ladder []time.Duration

func (l ladder) Timeout(s *request.State) time.Duration {
	if !s.Timeout() {
		return l[0]
	}
	i := s.AttemptTimeouts
	if i > len(l)-1 {
		i = len(l) - 1
	}
	return l[i]
}
