// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	chatsql "github.com/jalalirs/chatsql-sub000"
)

// Callbacks receive a task's progressively built result and its single
// outcome. All failures arrive through OnError; nothing is ever thrown
// across the asynchronous boundary.
type Callbacks struct {
	// OnPatch is invoked with a fresh snapshot after every applied slot
	// patch. Optional.
	OnPatch func(chatsql.ResultRecord)

	// OnCompleted is invoked exactly once on success, with the final
	// record.
	OnCompleted func(chatsql.ResultRecord)

	// OnError is invoked exactly once on failure or timeout. Cancellation
	// invokes neither callback.
	OnError func(chatsql.ErrorDetail)
}

func (c Callbacks) validate() error {
	if c.OnCompleted == nil {
		return &ValidationError{Field: "OnCompleted", Message: "completion callback is required"}
	}
	if c.OnError == nil {
		return &ValidationError{Field: "OnError", Message: "error callback is required"}
	}
	return nil
}

// Handle is a live task attachment: either a push channel or a polling
// loop. A handle is single-use; once its phase is terminal it is inert.
type Handle interface {
	// Task returns the task with its current phase.
	Task() chatsql.Task

	// Phase returns the current lifecycle phase.
	Phase() chatsql.Phase

	// Record returns a snapshot of the progressively built result.
	Record() chatsql.ResultRecord

	// Cancel transitions the task to cancelled, suppresses all further
	// callbacks and closes the underlying transport. Safe to call at any
	// time, from any goroutine, including from within a callback.
	Cancel()

	// Done is closed once the task reaches a terminal phase.
	Done() <-chan struct{}
}
