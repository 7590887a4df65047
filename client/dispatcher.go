// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"log/slog"

	"github.com/go-json-experiment/json"
	"github.com/tidwall/gjson"

	chatsql "github.com/jalalirs/chatsql-sub000"
)

// dispatcher routes named events to slot patches and terminal actions
// according to one task kind's declared vocabulary. A single corrupt or
// unrecognized event never aborts an otherwise healthy stream: it is
// logged and dropped.
type dispatcher struct {
	vocab  chatsql.Vocabulary
	logger *slog.Logger

	// sinks supplied by the owning channel or poller.
	patch    func(slot chatsql.Slot, value any)
	complete func()
	fail     func(chatsql.ErrorDetail)
}

func newDispatcher(kind chatsql.TaskKind, logger *slog.Logger,
	patch func(chatsql.Slot, any), complete func(), fail func(chatsql.ErrorDetail),
) *dispatcher {
	return &dispatcher{
		vocab:    chatsql.VocabularyFor(kind),
		logger:   logger,
		patch:    patch,
		complete: complete,
		fail:     fail,
	}
}

// dispatch applies one event. Unknown kinds fall through to the generic
// handler; malformed payloads are no-ops.
func (d *dispatcher) dispatch(ev chatsql.Event) {
	if len(ev.Payload) > 0 && !gjson.ValidBytes(ev.Payload) {
		d.logger.Warn("dropping event with malformed payload", "kind", ev.Kind)
		return
	}

	binding, ok := d.vocab[ev.Kind]
	if !ok {
		d.dispatchGeneric(ev)
		return
	}

	for _, rule := range binding.Patches {
		res, found := chatsql.FirstPath(ev.Payload, rule.Paths)
		if !found {
			continue
		}
		value, err := slotValue(rule.Slot, res)
		if err != nil {
			d.logger.Warn("dropping slot patch", "kind", ev.Kind, "slot", rule.Slot, "error", err)
			continue
		}
		d.patch(rule.Slot, value)
	}

	switch binding.Action {
	case chatsql.ActionComplete:
		if binding.SuccessGated {
			if success := gjson.GetBytes(ev.Payload, "success"); success.Exists() && !success.Bool() {
				d.fail(chatsql.DeclaredError(d.errorMessage(ev.Payload, binding.ErrorPaths)))
				return
			}
		}
		d.complete()
	case chatsql.ActionFail:
		d.fail(chatsql.DeclaredError(d.errorMessage(ev.Payload, binding.ErrorPaths)))
	}
}

// dispatchGeneric handles unnamed frames and unrecognized kinds. A payload
// carrying a success boolean is a terminal signal; one carrying only a
// message is retained as a progress patch; anything else is dropped.
func (d *dispatcher) dispatchGeneric(ev chatsql.Event) {
	if success := gjson.GetBytes(ev.Payload, "success"); success.Exists() && success.IsBool() {
		if msg := gjson.GetBytes(ev.Payload, "message"); msg.Exists() {
			d.patch(chatsql.SlotMessage, msg.String())
		}
		if success.Bool() {
			d.complete()
		} else {
			d.fail(chatsql.DeclaredError(d.errorMessage(ev.Payload, []string{"error", "error_message", "message"})))
		}
		return
	}

	if msg := gjson.GetBytes(ev.Payload, "message"); msg.Exists() {
		d.patch(chatsql.SlotMessage, msg.String())
		return
	}

	d.logger.Debug("ignoring unrecognized event", "kind", ev.Kind)
}

// errorMessage pulls the backend-supplied failure text, else empty so the
// caller's constructor falls back to a generic string.
func (d *dispatcher) errorMessage(payload []byte, paths []string) string {
	if res, ok := chatsql.FirstPath(payload, paths); ok {
		return res.String()
	}
	return ""
}

// slotValue converts an extracted payload field to the slot's value type.
func slotValue(slot chatsql.Slot, res gjson.Result) (any, error) {
	switch slot {
	case chatsql.SlotRows:
		var rows []map[string]any
		if err := json.Unmarshal([]byte(res.Raw), &rows); err != nil {
			return nil, err
		}
		return rows, nil
	case chatsql.SlotChart:
		return []byte(res.Raw), nil
	case chatsql.SlotProgressPercent:
		return res.Float(), nil
	default:
		return res.String(), nil
	}
}
