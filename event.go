// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package chatsql

import (
	"github.com/tidwall/gjson"
)

// Event is one named message received over a task's push channel. The task
// it belongs to is implied by the channel that received it.
type Event struct {
	// Kind is the SSE event name. Unnamed frames carry EventKindMessage.
	Kind string

	// Payload is the raw JSON data of the frame.
	Payload []byte
}

// Event kinds shared across task kinds.
const (
	// EventKindConnected acknowledges the push channel is established.
	EventKindConnected = "connected"

	// EventKindMessage is the default kind for unnamed SSE frames. It is
	// never bound by name; the dispatcher's generic fallback inspects it.
	EventKindMessage = "message"

	// EventKindError is a generic backend error event.
	EventKindError = "error"

	// EventKindProgress is a generic textual or percentage progress event.
	EventKindProgress = "progress"
)

// Query task events.
const (
	EventKindQueryProgress  = "query_progress"
	EventKindSQLGenerated   = "sql_generated"
	EventKindDataFetched    = "data_fetched"
	EventKindChartGenerated = "chart_generated"
	EventKindQueryCompleted = "query_completed"
	EventKindQueryError     = "query_error"
)

// Connection test events. The backend emits both the short and the long
// completion/failure names depending on version; both are recognized.
const (
	EventKindTestCompleted           = "test_completed"
	EventKindConnectionTestCompleted = "connection_test_completed"
	EventKindTestFailed              = "test_failed"
	EventKindConnectionTestFailed    = "connection_test_failed"
)

// Schema refresh events.
const (
	EventKindSchemaRefreshCompleted = "schema_refresh_completed"
	EventKindSchemaRefreshFailed    = "schema_refresh_failed"
)

// Training data generation events.
const (
	EventKindDataGenerationStarted   = "data_generation_started"
	EventKindExampleGenerated        = "example_generated"
	EventKindDataGenerationCompleted = "data_generation_completed"
	EventKindDataGenerationError     = "data_generation_error"
)

// Model training events.
const (
	EventKindTrainingStarted   = "training_started"
	EventKindTrainingInfo      = "info"
	EventKindTrainingLog       = "log"
	EventKindTrainingCompleted = "training_completed"
	EventKindTrainingError     = "training_error"
)

// Action describes what a recognized event does beyond patching slots.
type Action uint8

const (
	// ActionNone patches slots only.
	ActionNone Action = iota

	// ActionComplete finalizes the task successfully.
	ActionComplete

	// ActionFail finalizes the task as a declared failure.
	ActionFail
)

// PatchRule binds one result slot to candidate payload paths. Paths are
// tried in order; the first present one wins. Alternate paths absorb
// backend shape drift such as "data" vs "query_results.data".
type PatchRule struct {
	Slot  Slot
	Paths []string
}

// Binding is the declared behavior of one named event kind.
type Binding struct {
	Patches []PatchRule
	Action  Action

	// SuccessGated marks completion kinds whose payload carries a
	// "success" boolean deciding between completion and failure.
	SuccessGated bool

	// ErrorPaths are the candidate payload paths for a backend-supplied
	// failure message on ActionFail or a gated failure.
	ErrorPaths []string
}

// Vocabulary maps named event kinds to bindings for one task kind.
type Vocabulary map[string]Binding

var vocabularies = map[TaskKind]Vocabulary{
	TaskKindQuery: {
		EventKindConnected:     {},
		EventKindQueryProgress: {Patches: []PatchRule{{Slot: SlotMessage, Paths: []string{"message"}}}},
		EventKindSQLGenerated:  {Patches: []PatchRule{{Slot: SlotGeneratedQuery, Paths: []string{"sql"}}}},
		EventKindDataFetched:   {Patches: []PatchRule{{Slot: SlotRows, Paths: []string{"data", "query_results.data"}}}},
		EventKindChartGenerated: {Patches: []PatchRule{
			{Slot: SlotChart, Paths: []string{"chart", "chart_data"}},
		}},
		EventKindQueryCompleted: {
			Patches: []PatchRule{
				{Slot: SlotSummary, Paths: []string{"summary"}},
				{Slot: SlotRows, Paths: []string{"data", "query_results.data"}},
			},
			Action: ActionComplete,
		},
		EventKindQueryError: {Action: ActionFail, ErrorPaths: []string{"error", "message"}},
	},

	TaskKindConnectionTest: {
		EventKindConnected:     {},
		EventKindProgress:      {Patches: []PatchRule{{Slot: SlotMessage, Paths: []string{"message"}}}},
		EventKindTestCompleted: connectionTestCompleted,
		// Alias carrying identical semantics; kept recognized so either
		// spelling finalizes, with the arbiter absorbing duplicates.
		EventKindConnectionTestCompleted: connectionTestCompleted,
		EventKindTestFailed:              {Action: ActionFail, ErrorPaths: []string{"error_message", "error"}},
		EventKindConnectionTestFailed:    {Action: ActionFail, ErrorPaths: []string{"error_message", "error"}},
		EventKindError:                   {Action: ActionFail, ErrorPaths: []string{"error_message", "error", "message"}},
	},

	TaskKindSchemaRefresh: {
		EventKindConnected: {},
		EventKindSchemaRefreshCompleted: {
			Patches: []PatchRule{{Slot: SlotSummary, Paths: []string{"summary", "message"}}},
			Action:  ActionComplete,
		},
		EventKindSchemaRefreshFailed: {Action: ActionFail, ErrorPaths: []string{"error", "message"}},
	},

	TaskKindDataGeneration: {
		EventKindConnected:             {},
		EventKindDataGenerationStarted: {Patches: []PatchRule{{Slot: SlotMessage, Paths: []string{"message"}}}},
		EventKindExampleGenerated: {Patches: []PatchRule{
			{Slot: SlotMessage, Paths: []string{"question"}},
			{Slot: SlotGeneratedQuery, Paths: []string{"sql"}},
			{Slot: SlotProgressPercent, Paths: []string{"progress"}},
		}},
		EventKindDataGenerationCompleted: {
			Patches: []PatchRule{{Slot: SlotSummary, Paths: []string{"summary", "message"}}},
			Action:  ActionComplete,
		},
		EventKindDataGenerationError: {Action: ActionFail, ErrorPaths: []string{"error", "message"}},
	},

	TaskKindModelTraining: {
		EventKindConnected:       {},
		EventKindTrainingStarted: {Patches: []PatchRule{{Slot: SlotMessage, Paths: []string{"message"}}}},
		EventKindProgress: {Patches: []PatchRule{
			{Slot: SlotProgressPercent, Paths: []string{"progress"}},
			{Slot: SlotMessage, Paths: []string{"message"}},
		}},
		EventKindTrainingInfo: {Patches: []PatchRule{{Slot: SlotMessage, Paths: []string{"message"}}}},
		EventKindTrainingLog:  {Patches: []PatchRule{{Slot: SlotMessage, Paths: []string{"message", "log"}}}},
		EventKindTrainingCompleted: {
			Patches: []PatchRule{{Slot: SlotSummary, Paths: []string{"summary", "message"}}},
			Action:  ActionComplete,
		},
		EventKindTrainingError: {Action: ActionFail, ErrorPaths: []string{"error", "message"}},
	},
}

var connectionTestCompleted = Binding{
	Patches: []PatchRule{
		{Slot: SlotRows, Paths: []string{"sample_data"}},
	},
	Action:       ActionComplete,
	SuccessGated: true,
	ErrorPaths:   []string{"error_message", "error"},
}

// VocabularyFor returns the recognized event vocabulary for a task kind.
// The returned map is shared; callers must not mutate it.
func VocabularyFor(kind TaskKind) Vocabulary {
	return vocabularies[kind]
}

// CompletionKind returns the canonical named completion event for a task
// kind. The polling fallback synthesizes an event of this kind from a
// polled result payload so both transports finalize through one path.
func CompletionKind(kind TaskKind) string {
	switch kind {
	case TaskKindConnectionTest:
		return EventKindConnectionTestCompleted
	case TaskKindSchemaRefresh:
		return EventKindSchemaRefreshCompleted
	case TaskKindDataGeneration:
		return EventKindDataGenerationCompleted
	case TaskKindModelTraining:
		return EventKindTrainingCompleted
	default:
		return EventKindQueryCompleted
	}
}

// FirstPath returns the first present path in payload, in declaration
// order.
func FirstPath(payload []byte, paths []string) (gjson.Result, bool) {
	for _, p := range paths {
		if res := gjson.GetBytes(payload, p); res.Exists() {
			return res, true
		}
	}
	return gjson.Result{}, false
}
