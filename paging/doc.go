// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package paging sequences dependent page requests over a paginated
// resource. A Conduit drives a PageFunc from an external tick signal,
// holding the central invariant that at most one page request is in
// flight at a time: ticks arriving while a request runs are dropped,
// and pages are therefore always observed in page order. The resulting
// Sequence is shareable across consumers without re-issuing requests.
package paging
