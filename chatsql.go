// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatsql defines the task model and wire vocabulary shared by the
// ChatSQL streaming task client. A task is one long-running unit of backend
// work (a chat query, a connection test, a schema refresh, a training-data
// generation run, or a model training run) whose partial results arrive as
// named server-sent events.
package chatsql

import (
	"time"

	"github.com/google/uuid"
)

// TaskKind identifies the kind of backend task a channel is attached to.
type TaskKind string

const (
	// TaskKindQuery is a natural-language chat query being translated to
	// SQL and executed.
	TaskKindQuery TaskKind = "query"

	// TaskKindConnectionTest is a database connection test.
	TaskKindConnectionTest TaskKind = "connection_test"

	// TaskKindSchemaRefresh is a re-read of a connection's schema.
	TaskKindSchemaRefresh TaskKind = "schema_refresh"

	// TaskKindDataGeneration is an AI generation run producing training
	// question/SQL examples.
	TaskKindDataGeneration TaskKind = "data_generation"

	// TaskKindModelTraining is a model training run.
	TaskKindModelTraining TaskKind = "model_training"
)

// Valid reports whether k is a recognized task kind.
func (k TaskKind) Valid() bool {
	switch k {
	case TaskKindQuery, TaskKindConnectionTest, TaskKindSchemaRefresh,
		TaskKindDataGeneration, TaskKindModelTraining:
		return true
	}
	return false
}

// Phase is the lifecycle phase of a task as observed by the client.
type Phase string

const (
	// PhasePending means the channel is constructed but no event has
	// arrived yet.
	PhasePending Phase = "pending"

	// PhaseStreaming means at least one event has been received.
	PhaseStreaming Phase = "streaming"

	// PhaseFinalizing means a terminal signal won arbitration and the
	// completion callback is about to run.
	PhaseFinalizing Phase = "finalizing"

	// PhaseCompleted means the task finished successfully.
	PhaseCompleted Phase = "completed"

	// PhaseFailed means the backend declared failure or the transport
	// failed before a terminal event.
	PhaseFailed Phase = "failed"

	// PhaseTimedOut means the client-side ceiling elapsed first.
	PhaseTimedOut Phase = "timed_out"

	// PhaseCancelled means the caller cancelled the task.
	PhaseCancelled Phase = "cancelled"
)

// Terminal reports whether no further transition can occur from p.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseTimedOut, PhaseCancelled:
		return true
	}
	return false
}

// Loading reports whether a task in this phase is still in flight. UI
// loading state is a pure projection of this predicate.
func (p Phase) Loading() bool {
	switch p {
	case PhasePending, PhaseStreaming, PhaseFinalizing:
		return true
	}
	return false
}

// Default client-side ceilings per task kind. These are safety nets
// independent of any server-side timeout.
const (
	DefaultQueryTimeout          = 30 * time.Second
	DefaultConnectionTestTimeout = 30 * time.Second
	DefaultSchemaRefreshTimeout  = 60 * time.Second
	DefaultDataGenerationTimeout = 120 * time.Second
	DefaultModelTrainingTimeout  = 600 * time.Second
)

// DefaultTimeout returns the default hard ceiling for the given task kind.
func DefaultTimeout(kind TaskKind) time.Duration {
	switch kind {
	case TaskKindConnectionTest:
		return DefaultConnectionTestTimeout
	case TaskKindSchemaRefresh:
		return DefaultSchemaRefreshTimeout
	case TaskKindDataGeneration:
		return DefaultDataGenerationTimeout
	case TaskKindModelTraining:
		return DefaultModelTrainingTimeout
	default:
		return DefaultQueryTimeout
	}
}

// Task is one unit of asynchronous backend work tracked by a channel.
type Task struct {
	// ID is the correlation identifier. Server-issued when the initiating
	// response carries one, client-issued otherwise.
	ID string `json:"id"`

	// Kind is the task kind.
	Kind TaskKind `json:"kind"`

	// CreatedAt is when the channel for this task was opened.
	CreatedAt time.Time `json:"created_at"`

	// Phase is the lifecycle phase at the time the Task value was handed
	// out.
	Phase Phase `json:"phase"`
}

// NewTask creates a Task in the pending phase. If id is empty a fresh
// identifier is generated.
func NewTask(kind TaskKind, id string) Task {
	if id == "" {
		id = uuid.NewString()
	}
	return Task{
		ID:        id,
		Kind:      kind,
		CreatedAt: time.Now(),
		Phase:     PhasePending,
	}
}
