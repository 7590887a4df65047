// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"sync"
)

// Registry tracks the currently open task handles for one client. It is
// explicit, caller-owned state rather than an ambient singleton, so
// multiple tasks can run concurrently and tests stay deterministic.
//
// Task identifiers are unique among open handles: opening a second handle
// with the same identifier closes and replaces the first. A cancelled
// identifier leaves a tombstone and can never be reopened.
type Registry struct {
	mu         sync.Mutex
	open       map[string]Handle
	tombstones map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		open:       make(map[string]Handle),
		tombstones: make(map[string]struct{}),
	}
}

// add registers a handle, cancelling any open handle with the same task
// identifier. Reuse of a cancelled identifier is rejected.
func (r *Registry) add(h Handle) error {
	id := h.Task().ID

	r.mu.Lock()
	if _, dead := r.tombstones[id]; dead {
		r.mu.Unlock()
		return ErrTaskIDReused
	}
	prev := r.open[id]
	r.open[id] = h
	r.mu.Unlock()

	// Cancel the replaced handle outside the lock; its removal callback
	// re-enters the registry.
	if prev != nil {
		prev.Cancel()

		// The replacement deliberately reuses the identifier; the
		// tombstone from cancelling the predecessor does not apply to it.
		r.mu.Lock()
		delete(r.tombstones, id)
		r.mu.Unlock()
	}
	return nil
}

// remove drops a handle once it reached a terminal phase. A cancelled task
// leaves a tombstone. The identity check keeps a replaced handle's removal
// from evicting its replacement.
func (r *Registry) remove(id string, h Handle, cancelled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open[id] == h {
		delete(r.open, id)
	}
	if cancelled {
		r.tombstones[id] = struct{}{}
	}
}

// Get returns the open handle for a task identifier.
func (r *Registry) Get(id string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.open[id]
	return h, ok
}

// Len returns the number of currently open handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

// CancelAll cancels every open handle. Handles are snapshotted first, so
// the close-triggered removals never race the iteration.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.open))
	for _, h := range r.open {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}
