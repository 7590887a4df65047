// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package chatsql

import (
	"fmt"
	"time"
)

// ErrorKind classifies how a task failed. Callers render timeouts and
// declared backend failures differently, so the kind travels with the
// message.
type ErrorKind string

const (
	// ErrorKindTransport means the underlying connection failed before any
	// terminal signal.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindTimeout means the client-enforced ceiling elapsed.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindDeclared means the backend explicitly reported failure.
	ErrorKindDeclared ErrorKind = "declared"
)

// Fallback messages used when the backend supplies none.
const (
	genericTransportMessage = "connection failed"
	genericDeclaredMessage  = "task failed"
)

// ErrorDetail is the single failure value delivered to a task's error
// callback. Exactly one ErrorDetail or one successful result is delivered
// per task, never both.
type ErrorDetail struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e ErrorDetail) Error() string {
	return fmt.Sprintf("task %s: %s", e.Kind, e.Message)
}

// Timeout reports whether the failure was the client-side ceiling.
func (e ErrorDetail) Timeout() bool {
	return e.Kind == ErrorKindTimeout
}

// TransportError builds a transport failure detail.
func TransportError(message string) ErrorDetail {
	if message == "" {
		message = genericTransportMessage
	}
	return ErrorDetail{Kind: ErrorKindTransport, Message: message}
}

// TimeoutError builds a timeout detail naming the elapsed ceiling.
func TimeoutError(after time.Duration) ErrorDetail {
	return ErrorDetail{
		Kind:    ErrorKindTimeout,
		Message: fmt.Sprintf("timed out after %s", after),
	}
}

// DeclaredError builds a backend-declared failure detail, passing the
// backend's message through verbatim when present.
func DeclaredError(message string) ErrorDetail {
	if message == "" {
		message = genericDeclaredMessage
	}
	return ErrorDetail{Kind: ErrorKindDeclared, Message: message}
}
