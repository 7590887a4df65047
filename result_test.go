// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package chatsql

import (
	"testing"

	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestResultRecordApply(t *testing.T) {
	tests := map[string]struct {
		slot    Slot
		value   any
		wantErr bool
		check   func(t *testing.T, r *ResultRecord)
	}{
		"message": {
			slot:  SlotMessage,
			value: "Generating SQL...",
			check: func(t *testing.T, r *ResultRecord) {
				if r.Message != "Generating SQL..." {
					t.Errorf("Message = %q, want %q", r.Message, "Generating SQL...")
				}
			},
		},
		"generated query": {
			slot:  SlotGeneratedQuery,
			value: "SELECT * FROM orders",
			check: func(t *testing.T, r *ResultRecord) {
				if r.GeneratedQuery != "SELECT * FROM orders" {
					t.Errorf("GeneratedQuery = %q", r.GeneratedQuery)
				}
			},
		},
		"rows": {
			slot:  SlotRows,
			value: []map[string]any{{"name": "a", "total": float64(3)}},
			check: func(t *testing.T, r *ResultRecord) {
				if len(r.Rows) != 1 || r.Rows[0]["name"] != "a" {
					t.Errorf("Rows = %v", r.Rows)
				}
			},
		},
		"chart from jsontext value": {
			slot:  SlotChart,
			value: jsontext.Value(`{"type":"bar"}`),
			check: func(t *testing.T, r *ResultRecord) {
				if string(r.Chart) != `{"type":"bar"}` {
					t.Errorf("Chart = %s", r.Chart)
				}
			},
		},
		"chart from raw bytes": {
			slot:  SlotChart,
			value: []byte(`{"type":"line"}`),
			check: func(t *testing.T, r *ResultRecord) {
				if string(r.Chart) != `{"type":"line"}` {
					t.Errorf("Chart = %s", r.Chart)
				}
			},
		},
		"progress percent": {
			slot:  SlotProgressPercent,
			value: 42.5,
			check: func(t *testing.T, r *ResultRecord) {
				if r.ProgressPercent != 42.5 {
					t.Errorf("ProgressPercent = %v", r.ProgressPercent)
				}
			},
		},
		"error detail": {
			slot:  SlotErrorDetail,
			value: "connection refused",
			check: func(t *testing.T, r *ResultRecord) {
				if r.ErrorDetail != "connection refused" {
					t.Errorf("ErrorDetail = %q", r.ErrorDetail)
				}
			},
		},
		"string slot rejects non-string": {
			slot:    SlotMessage,
			value:   123,
			wantErr: true,
		},
		"rows slot rejects string": {
			slot:    SlotRows,
			value:   "not rows",
			wantErr: true,
		},
		"progress slot rejects string": {
			slot:    SlotProgressPercent,
			value:   "50",
			wantErr: true,
		},
		"unknown slot": {
			slot:    Slot("bogus"),
			value:   "x",
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var r ResultRecord
			err := r.Apply(tt.slot, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Apply succeeded, want error")
				}
				if r.Has(tt.slot) {
					t.Error("rejected patch marked the slot populated")
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			if !r.Has(tt.slot) {
				t.Errorf("Has(%s) = false after Apply", tt.slot)
			}
			tt.check(t, &r)
		})
	}
}

func TestResultRecordLastWriteWins(t *testing.T) {
	var r ResultRecord
	if err := r.Apply(SlotMessage, "first"); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := r.Apply(SlotMessage, "second"); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if r.Message != "second" {
		t.Errorf("Message = %q, want %q", r.Message, "second")
	}

	// Re-applying the same value is a no-op in effect.
	if err := r.Apply(SlotMessage, "second"); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if r.Message != "second" {
		t.Errorf("Message = %q after duplicate patch", r.Message)
	}
}

func TestResultRecordRowsReplacedWholesale(t *testing.T) {
	var r ResultRecord
	if err := r.Apply(SlotRows, []map[string]any{{"a": float64(1)}, {"a": float64(2)}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := r.Apply(SlotRows, []map[string]any{{"b": float64(3)}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := []map[string]any{{"b": float64(3)}}
	if diff := cmp.Diff(want, r.Rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
}

func TestResultRecordHasDistinguishesAbsence(t *testing.T) {
	var r ResultRecord
	if r.Has(SlotMessage) {
		t.Error("Has reports true for an untouched slot")
	}
	if err := r.Apply(SlotMessage, ""); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	// An empty string is still a patched value.
	if !r.Has(SlotMessage) {
		t.Error("Has = false after patching an empty string")
	}
	if r.Has(SlotSummary) {
		t.Error("patching one slot marked another populated")
	}
}

func TestResultRecordClone(t *testing.T) {
	var r ResultRecord
	if err := r.Apply(SlotRows, []map[string]any{{"name": "a"}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := r.Apply(SlotChart, jsontext.Value(`{"type":"bar"}`)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := r.Apply(SlotSummary, "done"); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	clone := r.Clone()
	if diff := cmp.Diff(r, clone, cmpopts.IgnoreUnexported(ResultRecord{})); diff != "" {
		t.Fatalf("Clone mismatch (-orig +clone):\n%s", diff)
	}

	// Mutating the clone must not touch the original.
	clone.Rows[0]["name"] = "tampered"
	clone.Chart[0] = 'X'
	if r.Rows[0]["name"] != "a" {
		t.Error("mutating clone rows changed the original")
	}
	if string(r.Chart) != `{"type":"bar"}` {
		t.Error("mutating clone chart changed the original")
	}
	if !clone.Has(SlotSummary) {
		t.Error("clone lost populated markers")
	}
}
