// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	chatsql "github.com/jalalirs/chatsql-sub000"
)

// ResourceFetcher re-requests the state of one task or resource. The
// poller tolerates per-attempt failures; only the attempt budget is
// terminal.
type ResourceFetcher func(ctx context.Context) (*chatsql.TaskStatus, error)

var errNotReady = errors.New("task not ready")

// Poller drives a task for which the backend offered no push channel: it
// re-fetches the task state on a fixed interval until a terminal state is
// observed or the attempt budget runs out. Terminal handling is identical
// to the push path: the polled result is replayed through the task kind's
// canonical completion event so both transports finalize the same way.
type Poller struct {
	task   chatsql.Task
	cb     Callbacks
	logger *slog.Logger

	fetch       ResourceFetcher
	interval    time.Duration
	maxAttempts int

	builder    *resultBuilder
	dispatcher *dispatcher
	arb        completionArbiter
	registry   *Registry

	mu        sync.Mutex
	phase     chatsql.Phase
	cancelled bool

	cancelPoll context.CancelFunc
	doneCh     chan struct{}
}

// pollerConfig carries everything a poller needs from its client.
type pollerConfig struct {
	task        chatsql.Task
	cb          Callbacks
	logger      *slog.Logger
	fetch       ResourceFetcher
	interval    time.Duration
	maxAttempts int
	registry    *Registry
}

// startPoller constructs a poller, registers it and starts polling.
func startPoller(cfg pollerConfig) (*Poller, error) {
	p := &Poller{
		task:        cfg.task,
		cb:          cfg.cb,
		logger:      cfg.logger.With("task_id", cfg.task.ID, "task_kind", cfg.task.Kind),
		fetch:       cfg.fetch,
		interval:    cfg.interval,
		maxAttempts: cfg.maxAttempts,
		builder:     &resultBuilder{},
		registry:    cfg.registry,
		phase:       chatsql.PhasePending,
		doneCh:      make(chan struct{}),
	}
	p.dispatcher = newDispatcher(cfg.task.Kind, p.logger, p.applyPatch, p.completeTask, p.failTask)

	if cfg.registry != nil {
		if err := cfg.registry.add(p); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancelPoll = cancel

	go p.run(ctx)
	return p, nil
}

// Task returns the task with its current phase.
func (p *Poller) Task() chatsql.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.task
	t.Phase = p.phase
	return t
}

// Phase returns the current lifecycle phase.
func (p *Poller) Phase() chatsql.Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Record returns a snapshot of the progressively built result.
func (p *Poller) Record() chatsql.ResultRecord {
	return p.builder.snapshot()
}

// Done is closed once the task reaches a terminal phase.
func (p *Poller) Done() <-chan struct{} {
	return p.doneCh
}

// Cancel stops polling and transitions the task to cancelled. No callback
// is invoked.
func (p *Poller) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()
	p.finalize(chatsql.PhaseCancelled, chatsql.ErrorDetail{})
}

// run polls until terminal state, cancellation or budget exhaustion.
func (p *Poller) run(ctx context.Context) {
	backoff := retry.WithMaxRetries(uint64(p.maxAttempts-1), retry.NewConstant(p.interval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		status, err := p.fetch(ctx)
		if err != nil {
			// Per-attempt failure, tolerated and retried.
			p.logger.Debug("poll attempt failed", "error", err)
			return retry.RetryableError(err)
		}

		p.markStreaming()

		if !status.Terminal() {
			return retry.RetryableError(errNotReady)
		}

		p.settle(status)
		return nil
	})
	if err == nil || p.arb.done() {
		return
	}
	if ctx.Err() != nil {
		// Cancelled mid-poll; finalize silently.
		p.finalize(chatsql.PhaseCancelled, chatsql.ErrorDetail{})
		return
	}

	p.finalize(chatsql.PhaseTimedOut, chatsql.ErrorDetail{
		Kind:    chatsql.ErrorKindTimeout,
		Message: fmt.Sprintf("timed out after %d poll attempts", p.maxAttempts),
	})
}

// settle finalizes from a terminal polled state.
func (p *Poller) settle(status *chatsql.TaskStatus) {
	if status.Failed() {
		p.failTask(chatsql.DeclaredError(status.Error))
		return
	}
	if status.Status == chatsql.StatusCancelled {
		p.finalize(chatsql.PhaseCancelled, chatsql.ErrorDetail{})
		return
	}
	if len(status.Result) > 0 {
		// Replay the result through the named completion binding so slot
		// extraction matches the push path.
		p.dispatcher.dispatch(chatsql.Event{
			Kind:    chatsql.CompletionKind(p.task.Kind),
			Payload: []byte(status.Result),
		})
		if p.arb.done() {
			return
		}
	}
	p.completeTask()
}

func (p *Poller) markStreaming() {
	p.mu.Lock()
	if p.phase == chatsql.PhasePending {
		p.phase = chatsql.PhaseStreaming
	}
	p.mu.Unlock()
}

// applyPatch is the dispatcher's patch sink.
func (p *Poller) applyPatch(slot chatsql.Slot, value any) {
	p.mu.Lock()
	if p.phase.Terminal() {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	snapshot, err := p.builder.apply(slot, value)
	if err != nil {
		p.logger.Warn("patch rejected", "slot", slot, "error", err)
		return
	}
	if p.cb.OnPatch != nil {
		p.cb.OnPatch(snapshot)
	}
}

func (p *Poller) completeTask() {
	p.finalize(chatsql.PhaseCompleted, chatsql.ErrorDetail{})
}

func (p *Poller) failTask(detail chatsql.ErrorDetail) {
	p.finalize(chatsql.PhaseFailed, detail)
}

// finalize mirrors the channel's single terminal path.
func (p *Poller) finalize(phase chatsql.Phase, detail chatsql.ErrorDetail) {
	p.arb.claim(func() {
		p.mu.Lock()
		cancelled := p.cancelled
		if cancelled {
			phase = chatsql.PhaseCancelled
		}
		p.phase = phase
		p.mu.Unlock()

		p.cancelPoll()
		if p.registry != nil {
			p.registry.remove(p.task.ID, p, phase == chatsql.PhaseCancelled)
		}

		switch phase {
		case chatsql.PhaseCancelled:
			// No callback by design.
		case chatsql.PhaseCompleted:
			p.cb.OnCompleted(p.builder.snapshot())
		default:
			p.builder.apply(chatsql.SlotErrorDetail, detail.Message)
			p.cb.OnError(detail)
		}

		close(p.doneCh)
	})
}
