// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrTaskIDReused is returned when a caller opens a task whose
	// identifier was already cancelled. A cancelled identifier is dead;
	// the logical slot must get a fresh one.
	ErrTaskIDReused = errors.New("task identifier was cancelled and cannot be reused")

	// ErrStreamClosed is returned when reading from a closed stream.
	ErrStreamClosed = errors.New("stream is closed")
)

// ValidationError reports an invalid option or argument.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// HTTPError reports a non-success status from a task-initiating request.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}
