// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestCompletionArbiterSingleWinner(t *testing.T) {
	var arb completionArbiter
	var ran atomic.Int32

	if !arb.claim(func() { ran.Add(1) }) {
		t.Fatal("first claim lost")
	}
	if arb.claim(func() { ran.Add(1) }) {
		t.Error("second claim won")
	}
	if got := ran.Load(); got != 1 {
		t.Errorf("claim body ran %d times, want 1", got)
	}
	if !arb.done() {
		t.Error("done() = false after a claim won")
	}
}

func TestCompletionArbiterConcurrentSignals(t *testing.T) {
	// Overlapping terminal signals race freely; exactly one may finalize.
	for range 50 {
		var arb completionArbiter
		var winners, ran atomic.Int32
		var wg sync.WaitGroup

		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if arb.claim(func() { ran.Add(1) }) {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()

		if got := winners.Load(); got != 1 {
			t.Fatalf("winners = %d, want 1", got)
		}
		if got := ran.Load(); got != 1 {
			t.Fatalf("claim body ran %d times, want 1", got)
		}
	}
}

func TestCompletionArbiterDoneOnlyAfterBody(t *testing.T) {
	var arb completionArbiter
	arb.claim(func() {
		// Inside the winning claim the arbiter does not yet report done,
		// so a re-entrant terminal signal still loses via sync.Once.
		if arb.done() {
			t.Error("done() = true inside the winning claim body")
		}
		if arb.claim(func() {}) {
			t.Error("re-entrant claim won")
		}
	})
	if !arb.done() {
		t.Error("done() = false after the body finished")
	}
}
