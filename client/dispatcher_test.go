// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	chatsql "github.com/jalalirs/chatsql-sub000"
)

// dispatchSink records everything a dispatcher routes.
type dispatchSink struct {
	patches   []sinkPatch
	completes int
	failures  []chatsql.ErrorDetail
}

type sinkPatch struct {
	Slot  chatsql.Slot
	Value any
}

func (s *dispatchSink) patch(slot chatsql.Slot, value any) {
	s.patches = append(s.patches, sinkPatch{Slot: slot, Value: value})
}

func (s *dispatchSink) complete() { s.completes++ }

func (s *dispatchSink) fail(detail chatsql.ErrorDetail) {
	s.failures = append(s.failures, detail)
}

func newTestDispatcher(kind chatsql.TaskKind, sink *dispatchSink) *dispatcher {
	return newDispatcher(kind, slog.New(slog.DiscardHandler), sink.patch, sink.complete, sink.fail)
}

func TestDispatcherQueryEvents(t *testing.T) {
	tests := map[string]struct {
		event         chatsql.Event
		wantPatches   []sinkPatch
		wantCompletes int
		wantFailures  []chatsql.ErrorDetail
	}{
		"connected patches nothing": {
			event: chatsql.Event{Kind: chatsql.EventKindConnected, Payload: []byte(`{}`)},
		},
		"progress patches message": {
			event: chatsql.Event{Kind: chatsql.EventKindQueryProgress, Payload: []byte(`{"message":"Generating SQL..."}`)},
			wantPatches: []sinkPatch{
				{Slot: chatsql.SlotMessage, Value: "Generating SQL..."},
			},
		},
		"sql generated patches query": {
			event: chatsql.Event{Kind: chatsql.EventKindSQLGenerated, Payload: []byte(`{"sql":"SELECT 1"}`)},
			wantPatches: []sinkPatch{
				{Slot: chatsql.SlotGeneratedQuery, Value: "SELECT 1"},
			},
		},
		"data fetched flat shape": {
			event: chatsql.Event{Kind: chatsql.EventKindDataFetched, Payload: []byte(`{"data":[{"a":1}]}`)},
			wantPatches: []sinkPatch{
				{Slot: chatsql.SlotRows, Value: []map[string]any{{"a": float64(1)}}},
			},
		},
		"data fetched nested shape": {
			event: chatsql.Event{Kind: chatsql.EventKindDataFetched, Payload: []byte(`{"query_results":{"data":[{"a":1}]}}`)},
			wantPatches: []sinkPatch{
				{Slot: chatsql.SlotRows, Value: []map[string]any{{"a": float64(1)}}},
			},
		},
		"chart generated alternate path": {
			event: chatsql.Event{Kind: chatsql.EventKindChartGenerated, Payload: []byte(`{"chart_data":{"type":"bar"}}`)},
			wantPatches: []sinkPatch{
				{Slot: chatsql.SlotChart, Value: []byte(`{"type":"bar"}`)},
			},
		},
		"completed patches then completes": {
			event: chatsql.Event{Kind: chatsql.EventKindQueryCompleted, Payload: []byte(`{"summary":"2 rows","data":[{"a":1}]}`)},
			wantPatches: []sinkPatch{
				{Slot: chatsql.SlotSummary, Value: "2 rows"},
				{Slot: chatsql.SlotRows, Value: []map[string]any{{"a": float64(1)}}},
			},
			wantCompletes: 1,
		},
		"error fails with backend message": {
			event:        chatsql.Event{Kind: chatsql.EventKindQueryError, Payload: []byte(`{"error":"table missing"}`)},
			wantFailures: []chatsql.ErrorDetail{chatsql.DeclaredError("table missing")},
		},
		"error without message gets generic text": {
			event:        chatsql.Event{Kind: chatsql.EventKindQueryError, Payload: []byte(`{}`)},
			wantFailures: []chatsql.ErrorDetail{chatsql.DeclaredError("")},
		},
		"malformed payload dropped": {
			event: chatsql.Event{Kind: chatsql.EventKindQueryCompleted, Payload: []byte(`{"summary": truncat`)},
		},
		"unknown kind with message retained": {
			event: chatsql.Event{Kind: "query_planning", Payload: []byte(`{"message":"planning"}`)},
			wantPatches: []sinkPatch{
				{Slot: chatsql.SlotMessage, Value: "planning"},
			},
		},
		"unknown kind without signal dropped": {
			event: chatsql.Event{Kind: "heartbeat", Payload: []byte(`{"ts":123}`)},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			sink := &dispatchSink{}
			d := newTestDispatcher(chatsql.TaskKindQuery, sink)

			d.dispatch(tt.event)

			if diff := cmp.Diff(tt.wantPatches, sink.patches); diff != "" {
				t.Errorf("patches mismatch (-want +got):\n%s", diff)
			}
			if sink.completes != tt.wantCompletes {
				t.Errorf("completes = %d, want %d", sink.completes, tt.wantCompletes)
			}
			if diff := cmp.Diff(tt.wantFailures, sink.failures); diff != "" {
				t.Errorf("failures mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDispatcherSuccessGate(t *testing.T) {
	tests := map[string]struct {
		payload       string
		wantCompletes int
		wantFailures  []chatsql.ErrorDetail
	}{
		"success true completes": {
			payload:       `{"success":true,"sample_data":[{"n":1}]}`,
			wantCompletes: 1,
		},
		"success absent completes": {
			// Polled results replayed through the completion binding carry
			// no success flag.
			payload:       `{"sample_data":[{"n":1}]}`,
			wantCompletes: 1,
		},
		"success false fails with backend message": {
			payload:      `{"success":false,"error_message":"auth failed"}`,
			wantFailures: []chatsql.ErrorDetail{chatsql.DeclaredError("auth failed")},
		},
		"success false without message fails generically": {
			payload:      `{"success":false}`,
			wantFailures: []chatsql.ErrorDetail{chatsql.DeclaredError("")},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			sink := &dispatchSink{}
			d := newTestDispatcher(chatsql.TaskKindConnectionTest, sink)

			d.dispatch(chatsql.Event{
				Kind:    chatsql.EventKindTestCompleted,
				Payload: []byte(tt.payload),
			})

			if sink.completes != tt.wantCompletes {
				t.Errorf("completes = %d, want %d", sink.completes, tt.wantCompletes)
			}
			if diff := cmp.Diff(tt.wantFailures, sink.failures); diff != "" {
				t.Errorf("failures mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDispatcherGenericFallback(t *testing.T) {
	tests := map[string]struct {
		event         chatsql.Event
		wantPatches   []sinkPatch
		wantCompletes int
		wantFailures  []chatsql.ErrorDetail
	}{
		"unnamed frame with success true": {
			event: chatsql.Event{Kind: chatsql.EventKindMessage, Payload: []byte(`{"success":true,"message":"ok"}`)},
			wantPatches: []sinkPatch{
				{Slot: chatsql.SlotMessage, Value: "ok"},
			},
			wantCompletes: 1,
		},
		"unnamed frame with success false": {
			event: chatsql.Event{Kind: chatsql.EventKindMessage, Payload: []byte(`{"success":false,"error":"no"}`)},
			wantFailures: []chatsql.ErrorDetail{
				chatsql.DeclaredError("no"),
			},
		},
		"unnamed frame with message only": {
			event: chatsql.Event{Kind: chatsql.EventKindMessage, Payload: []byte(`{"message":"still working"}`)},
			wantPatches: []sinkPatch{
				{Slot: chatsql.SlotMessage, Value: "still working"},
			},
		},
		"unnamed frame with nothing useful": {
			event: chatsql.Event{Kind: chatsql.EventKindMessage, Payload: []byte(`{"uptime":3}`)},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			sink := &dispatchSink{}
			d := newTestDispatcher(chatsql.TaskKindQuery, sink)

			d.dispatch(tt.event)

			if diff := cmp.Diff(tt.wantPatches, sink.patches); diff != "" {
				t.Errorf("patches mismatch (-want +got):\n%s", diff)
			}
			if sink.completes != tt.wantCompletes {
				t.Errorf("completes = %d, want %d", sink.completes, tt.wantCompletes)
			}
			if diff := cmp.Diff(tt.wantFailures, sink.failures); diff != "" {
				t.Errorf("failures mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDispatcherTrainingProgress(t *testing.T) {
	sink := &dispatchSink{}
	d := newTestDispatcher(chatsql.TaskKindModelTraining, sink)

	d.dispatch(chatsql.Event{
		Kind:    chatsql.EventKindProgress,
		Payload: []byte(`{"progress":62.5,"message":"epoch 5/8"}`),
	})

	want := []sinkPatch{
		{Slot: chatsql.SlotProgressPercent, Value: 62.5},
		{Slot: chatsql.SlotMessage, Value: "epoch 5/8"},
	}
	if diff := cmp.Diff(want, sink.patches); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}
}
