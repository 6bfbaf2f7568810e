// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package request provides the declarative description of a logical
// network request (Descriptor) and the mutable state of one execution
// of that request (State).
//
// A Descriptor says what a request is: method, route, query, header,
// body, accepted status range, decode function, priority, and timeout.
// It never touches the network, and a single Descriptor may be
// scheduled against many endpoints concurrently. The scheduler in the
// netq root package owns how and when the bytes move.
package request
