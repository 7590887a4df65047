// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	chatsql "github.com/jalalirs/chatsql-sub000"
)

// Channel owns one push connection for one task: it demultiplexes raw SSE
// frames into typed events, enforces the hard timeout and guarantees
// close-once semantics. Construction never fails on transport problems;
// dialing happens asynchronously and dial errors surface through the same
// error path as mid-stream failures, because the push transport cannot
// report connection failure synchronously.
type Channel struct {
	task    chatsql.Task
	cb      Callbacks
	logger  *slog.Logger
	timeout time.Duration

	builder    *resultBuilder
	dispatcher *dispatcher
	arb        completionArbiter
	registry   *Registry

	invoke    Invoker
	authToken string

	mu        sync.Mutex
	phase     chatsql.Phase
	conn      *streamConn
	timer     *time.Timer
	cancelled bool

	dialCancel context.CancelFunc
	doneCh     chan struct{}
}

// channelConfig carries everything a channel needs from its client.
type channelConfig struct {
	task      chatsql.Task
	streamURL string
	timeout   time.Duration
	cb        Callbacks
	logger    *slog.Logger
	invoke    Invoker
	authToken string
	registry  *Registry
}

// openChannel constructs a channel, registers it and starts dialing. The
// only synchronous failure is a rejected task identifier.
func openChannel(cfg channelConfig) (*Channel, error) {
	ch := &Channel{
		task:      cfg.task,
		cb:        cfg.cb,
		logger:    cfg.logger.With("task_id", cfg.task.ID, "task_kind", cfg.task.Kind),
		timeout:   cfg.timeout,
		builder:   &resultBuilder{},
		registry:  cfg.registry,
		invoke:    cfg.invoke,
		authToken: cfg.authToken,
		phase:     chatsql.PhasePending,
		doneCh:    make(chan struct{}),
	}
	ch.dispatcher = newDispatcher(cfg.task.Kind, ch.logger, ch.applyPatch, ch.completeTask, ch.failTask)

	if cfg.registry != nil {
		if err := cfg.registry.add(ch); err != nil {
			return nil, err
		}
	}

	dialCtx, cancel := context.WithCancel(context.Background())
	ch.dialCancel = cancel

	// The hard ceiling is armed before dialing so an unreachable endpoint
	// still resolves within the budget.
	ch.timer = time.AfterFunc(cfg.timeout, func() {
		ch.finalize(chatsql.PhaseTimedOut, chatsql.TimeoutError(cfg.timeout))
	})

	go ch.run(dialCtx, cfg.streamURL)
	return ch, nil
}

// Task returns the task with its current phase.
func (ch *Channel) Task() chatsql.Task {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	t := ch.task
	t.Phase = ch.phase
	return t
}

// Phase returns the current lifecycle phase.
func (ch *Channel) Phase() chatsql.Phase {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.phase
}

// Record returns a snapshot of the progressively built result.
func (ch *Channel) Record() chatsql.ResultRecord {
	return ch.builder.snapshot()
}

// Done is closed once the task reaches a terminal phase.
func (ch *Channel) Done() <-chan struct{} {
	return ch.doneCh
}

// Cancel transitions the task to cancelled and closes the transport. No
// callback is invoked; cancellation is an outcome the caller opted into.
func (ch *Channel) Cancel() {
	ch.mu.Lock()
	ch.cancelled = true
	ch.mu.Unlock()
	ch.finalize(chatsql.PhaseCancelled, chatsql.ErrorDetail{})
}

// run dials the push endpoint and pumps events until a terminal signal.
func (ch *Channel) run(ctx context.Context, streamURL string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		ch.failTransport("invalid stream URL: " + err.Error())
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if ch.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+ch.authToken)
	}

	resp, err := ch.invoke(ctx, req)
	if err != nil {
		ch.failTransport("")
		return
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		ch.failTransport("")
		return
	}

	conn := newStreamConn(resp.Body)

	ch.mu.Lock()
	if ch.phase.Terminal() {
		// Lost the race against timeout or cancel while dialing.
		ch.mu.Unlock()
		conn.Close()
		return
	}
	ch.conn = conn
	ch.mu.Unlock()

	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			if ch.arb.done() {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, ErrStreamClosed) {
				// Stream ended without a terminal event.
				ch.failTransport("stream closed before completion")
			} else {
				ch.failTransport("")
			}
			return
		}
		ch.handleEvent(ev)
	}
}

// handleEvent applies one incoming event. Events landing after a terminal
// phase produce zero callbacks and zero state mutation.
func (ch *Channel) handleEvent(ev chatsql.Event) {
	ch.mu.Lock()
	if ch.phase.Terminal() {
		ch.mu.Unlock()
		return
	}
	if ch.phase == chatsql.PhasePending {
		ch.phase = chatsql.PhaseStreaming
	}
	ch.mu.Unlock()

	ch.dispatcher.dispatch(ev)
}

// applyPatch is the dispatcher's patch sink.
func (ch *Channel) applyPatch(slot chatsql.Slot, value any) {
	ch.mu.Lock()
	if ch.phase.Terminal() {
		ch.mu.Unlock()
		return
	}
	ch.mu.Unlock()

	snapshot, err := ch.builder.apply(slot, value)
	if err != nil {
		ch.logger.Warn("patch rejected", "slot", slot, "error", err)
		return
	}
	if ch.cb.OnPatch != nil {
		ch.cb.OnPatch(snapshot)
	}
}

func (ch *Channel) completeTask() {
	ch.finalize(chatsql.PhaseCompleted, chatsql.ErrorDetail{})
}

func (ch *Channel) failTask(detail chatsql.ErrorDetail) {
	ch.finalize(chatsql.PhaseFailed, detail)
}

func (ch *Channel) failTransport(message string) {
	ch.finalize(chatsql.PhaseFailed, chatsql.TransportError(message))
}

// finalize is the single terminal path. The arbiter admits exactly one
// caller; every later terminal signal is a no-op. Safe to call re-entrantly
// from within an event handler.
func (ch *Channel) finalize(phase chatsql.Phase, detail chatsql.ErrorDetail) {
	ch.arb.claim(func() {
		ch.mu.Lock()
		ch.phase = chatsql.PhaseFinalizing
		cancelled := ch.cancelled
		conn := ch.conn
		if ch.timer != nil {
			ch.timer.Stop()
		}
		if cancelled {
			phase = chatsql.PhaseCancelled
		}
		ch.phase = phase
		ch.mu.Unlock()

		ch.dialCancel()
		if conn != nil {
			conn.Close()
		}
		if ch.registry != nil {
			ch.registry.remove(ch.task.ID, ch, phase == chatsql.PhaseCancelled)
		}

		switch {
		case cancelled || phase == chatsql.PhaseCancelled:
			// No callback by design.
		case phase == chatsql.PhaseCompleted:
			ch.cb.OnCompleted(ch.builder.snapshot())
		default:
			ch.logger.Debug("task failed", "phase", phase, "error_kind", detail.Kind)
			ch.builder.apply(chatsql.SlotErrorDetail, detail.Message)
			ch.cb.OnError(detail)
		}

		close(ch.doneCh)
	})
}
