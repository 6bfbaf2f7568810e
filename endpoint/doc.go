// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package endpoint describes where requests are sent: a base URL,
// shared headers (static and asynchronously resolved), transport
// configuration, a retry factory, and scheduling hooks. Endpoints are
// read-only to the engine and safe to share across concurrent
// schedules.
package endpoint
