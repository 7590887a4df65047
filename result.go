// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package chatsql

import (
	"fmt"

	"github.com/go-json-experiment/json/jsontext"
)

// Slot names one field of the progressively built result.
type Slot string

const (
	SlotMessage         Slot = "message"
	SlotGeneratedQuery  Slot = "generatedQuery"
	SlotRows            Slot = "rows"
	SlotChart           Slot = "chart"
	SlotSummary         Slot = "summary"
	SlotProgressPercent Slot = "progressPercent"
	SlotErrorDetail     Slot = "errorDetail"
)

// ResultRecord is the progressively merged result of one task. Each slot
// holds the latest value observed for it; a slot that has never been
// patched is absent, which Has distinguishes from a zero value. Patch
// application is last-write-wins per slot and idempotent.
//
// A ResultRecord is owned by the channel that builds it. Callers receive
// value copies and must not feed them back.
type ResultRecord struct {
	// Message is the current human-readable status text.
	Message string `json:"message,omitempty"`

	// GeneratedQuery is the SQL generated so far.
	GeneratedQuery string `json:"generated_query,omitempty"`

	// Rows is the latest complete row snapshot. Patches replace it
	// wholesale; the backend sends snapshots, not deltas.
	Rows []map[string]any `json:"rows,omitempty"`

	// Chart is the raw chart payload.
	Chart jsontext.Value `json:"chart,omitempty"`

	// Summary is the final natural-language summary.
	Summary string `json:"summary,omitempty"`

	// ProgressPercent is the reported completion percentage.
	ProgressPercent float64 `json:"progress_percent,omitempty"`

	// ErrorDetail is the backend-declared failure message, when any.
	ErrorDetail string `json:"error_detail,omitempty"`

	populated map[Slot]bool
}

// Apply sets slot to value, overwriting any earlier value. It returns an
// error for an unknown slot or a value of the wrong type; the record is
// untouched in either case.
func (r *ResultRecord) Apply(slot Slot, value any) error {
	switch slot {
	case SlotMessage, SlotGeneratedQuery, SlotSummary, SlotErrorDetail:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("slot %s: want string, got %T", slot, value)
		}
		switch slot {
		case SlotMessage:
			r.Message = s
		case SlotGeneratedQuery:
			r.GeneratedQuery = s
		case SlotSummary:
			r.Summary = s
		case SlotErrorDetail:
			r.ErrorDetail = s
		}
	case SlotRows:
		rows, ok := value.([]map[string]any)
		if !ok {
			return fmt.Errorf("slot %s: want []map[string]any, got %T", slot, value)
		}
		r.Rows = rows
	case SlotChart:
		switch v := value.(type) {
		case jsontext.Value:
			r.Chart = v
		case []byte:
			r.Chart = jsontext.Value(v)
		default:
			return fmt.Errorf("slot %s: want jsontext.Value, got %T", slot, value)
		}
	case SlotProgressPercent:
		f, ok := value.(float64)
		if !ok {
			return fmt.Errorf("slot %s: want float64, got %T", slot, value)
		}
		r.ProgressPercent = f
	default:
		return fmt.Errorf("unknown slot %q", slot)
	}

	if r.populated == nil {
		r.populated = make(map[Slot]bool, 4)
	}
	r.populated[slot] = true
	return nil
}

// Has reports whether slot has been patched at least once.
func (r *ResultRecord) Has(slot Slot) bool {
	return r.populated[slot]
}

// Clone returns a deep copy safe to hand to a caller.
func (r *ResultRecord) Clone() ResultRecord {
	out := *r
	if r.Rows != nil {
		out.Rows = make([]map[string]any, len(r.Rows))
		for i, row := range r.Rows {
			cp := make(map[string]any, len(row))
			for k, v := range row {
				cp[k] = v
			}
			out.Rows[i] = cp
		}
	}
	if r.Chart != nil {
		out.Chart = append(jsontext.Value(nil), r.Chart...)
	}
	if r.populated != nil {
		out.populated = make(map[Slot]bool, len(r.populated))
		for k, v := range r.populated {
			out.populated[k] = v
		}
	}
	return out
}
