// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package chatsql

import (
	"github.com/go-json-experiment/json/jsontext"
)

// StartResponse is the body of a task-initiating REST call. A present
// StreamURL means the backend offers a push channel for the task; an absent
// one means the client must fall back to polling the task status endpoint.
type StartResponse struct {
	TaskID    string `json:"task_id"`
	StreamURL string `json:"stream_url,omitempty"`
}

// Task status values reported by the polling endpoint.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// TaskStatus is the polled state of a task for backends that offer no push
// channel.
type TaskStatus struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`

	// Result is the task's result payload. A non-empty Result is itself a
	// terminal indicator for backends that report no status field.
	Result jsontext.Value `json:"result,omitempty"`

	Error string `json:"error,omitempty"`
}

// Terminal reports whether the polled state means the task is done. A task
// is terminal when its status is in the closed terminal set, or when a
// result payload appeared where absence previously meant "not ready".
func (s *TaskStatus) Terminal() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusError, StatusCancelled:
		return true
	}
	return len(s.Result) > 0
}

// Failed reports whether the polled terminal state is a failure.
func (s *TaskStatus) Failed() bool {
	return s.Status == StatusFailed || s.Status == StatusError
}
