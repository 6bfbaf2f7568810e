// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package netq is a client-side networking engine. Callers describe
// what a request is (package request) and where it goes (package
// endpoint); the Scheduler owns how and when the bytes move: session
// reuse, automatic retrying with backoff, per-attempt timeouts,
// priority-based delivery lanes, and safe cancellation.
//
// An HTTP operation is scheduled with Scheduler.Schedule and consumed
// through a shareable Handle: the network operation runs at most once
// no matter how many consumers attach, and late consumers receive the
// delivered outcome. A WebSocket operation is scheduled with
// Scheduler.ScheduleStream and consumed through a Stream whose decoded
// message sequence fans out to any number of cursors. Dependent
// paginated requests are sequenced with Scheduler.Paginate; see
// package paging.
package netq
