// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry decides if and when failed network attempts are
// re-executed.
//
// The interface Retrier answers a single question, whether a failed
// attempt should run again, and may sleep before answering. Two retriers
// are built in: None, which never retries, and Backoff, a stateful
// exponential-backoff retrier gated by a composable Predicate:
//
//	pred := retry.StatusCode(429, 503).Or(retry.TransientErr)
//	factory := func(d *request.Descriptor) retry.Retrier {
//		return retry.NewBackoff(250*time.Millisecond, 8*time.Second, pred)
//	}
//
// Retriers are minted per scheduled request through a Factory, so
// stateful policies never leak backoff state across unrelated
// requests. Stateless retriers may share a singleton via Shared.
package retry
