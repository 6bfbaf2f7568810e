// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package paging

import (
	"context"
	"sync"
)

const defaultPageBuffer = 16

// A Sequence is the consumer-facing side of a pagination conduit. It
// yields one item per delivered page, in page order, and is shareable:
// any number of consumers may call Pages, each receiving its own
// channel, without re-issuing any page request. A consumer attaching
// after some pages were delivered observes only later pages; the
// terminal outcome is replayed to every consumer through Done and Err.
type Sequence struct {
	mu      sync.Mutex
	subs    []chan interface{}
	arrived chan struct{}
	err     error
	done    chan struct{}
}

func newSequence() *Sequence {
	return &Sequence{
		arrived: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Pages returns a channel on which this consumer receives pages. The
// channel is closed when the sequence terminates; consult Err to
// distinguish normal completion from failure. Each call returns an
// independent channel.
func (s *Sequence) Pages() <-chan interface{} {
	ch := make(chan interface{}, defaultPageBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		close(ch)
	default:
		s.subs = append(s.subs, ch)
		select {
		case s.arrived <- struct{}{}:
		default:
		}
	}
	return ch
}

// Done returns a channel closed when the sequence terminates.
func (s *Sequence) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal error of the sequence, or nil if it
// completed normally. It must only be called after Done's channel is
// closed.
func (s *Sequence) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// emit delivers page to every current consumer. A sequence nobody has
// attached to yet exerts backpressure: emit waits for the first
// consumer rather than dropping the page. It then blocks until each
// consumer has buffer room, which is what keeps a slow consumer from
// being outrun. It reports false if ctx is cancelled while blocked.
func (s *Sequence) emit(ctx context.Context, page interface{}) bool {
	var subs []chan interface{}
	for {
		s.mu.Lock()
		if len(s.subs) > 0 {
			subs = make([]chan interface{}, len(s.subs))
			copy(subs, s.subs)
			s.mu.Unlock()
			break
		}
		s.mu.Unlock()
		select {
		case <-s.arrived:
		case <-ctx.Done():
			return false
		}
	}
	for _, ch := range subs {
		select {
		case ch <- page:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// terminate records the terminal outcome and closes every consumer
// channel. Idempotent in effect; the conduit calls it exactly once.
func (s *Sequence) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	s.err = err
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	close(s.done)
}
