// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout provides per-attempt timeout policies for scheduled
// requests, including a fixed policy and an adaptive policy that
// reacts to attempts which timed out.
package timeout
