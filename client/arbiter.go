// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"sync/atomic"
)

// completionArbiter guarantees exactly-once finalization of a task.
// Backends are observed to emit overlapping terminal signals (a named
// completion event plus a transport error as the server tears the
// connection down, a timeout racing a late completion); the first signal
// to claim the arbiter wins and every other one is a no-op.
type completionArbiter struct {
	claimed   atomic.Bool
	finalized atomic.Bool
}

// claim runs fn if and only if no terminal signal won before. It reports
// whether this caller won. A compare-and-swap rather than sync.Once keeps
// re-entrant claims legal: a callback cancelling its own task would
// deadlock a Once.
func (a *completionArbiter) claim(fn func()) bool {
	if !a.claimed.CompareAndSwap(false, true) {
		return false
	}
	fn()
	a.finalized.Store(true)
	return true
}

// done reports whether a terminal signal already won and finished.
func (a *completionArbiter) done() bool {
	return a.finalized.Load()
}
