// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"log/slog"
	"net/http"
	"time"

	chatsql "github.com/jalalirs/chatsql-sub000"
)

// Option configures a Client.
type Option func(*options) error

// options holds all configuration for a Client.
type options struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// Authentication: an opaque bearer token forwarded on every request.
	// Token acquisition and refresh happen outside this client.
	authToken string

	interceptors []Interceptor

	// Per-kind hard ceilings; falls back to chatsql.DefaultTimeout.
	timeouts map[chatsql.TaskKind]time.Duration

	// Polling fallback settings.
	pollInterval    time.Duration
	maxPollAttempts int
}

// defaultOptions returns default client options.
func defaultOptions() *options {
	return &options{
		httpClient:      http.DefaultClient,
		logger:          slog.Default(),
		timeouts:        make(map[chatsql.TaskKind]time.Duration),
		pollInterval:    2 * time.Second,
		maxPollAttempts: 30,
	}
}

func (o *options) timeoutFor(kind chatsql.TaskKind) time.Duration {
	if d, ok := o.timeouts[kind]; ok {
		return d
	}
	return chatsql.DefaultTimeout(kind)
}

// WithBaseURL sets the base URL of the ChatSQL backend.
func WithBaseURL(url string) Option {
	return func(o *options) error {
		if url == "" {
			return &ValidationError{Field: "baseURL", Message: "base URL cannot be empty"}
		}
		o.baseURL = url
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client for initiating requests and
// status polling. Streams use the same transport without the client-level
// timeout, which would cut long-lived bodies short.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) error {
		if client == nil {
			return &ValidationError{Field: "httpClient", Message: "HTTP client cannot be nil"}
		}
		o.httpClient = client
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return &ValidationError{Field: "logger", Message: "logger cannot be nil"}
		}
		o.logger = logger
		return nil
	}
}

// WithAuthToken sets the bearer token attached to every request.
func WithAuthToken(token string) Option {
	return func(o *options) error {
		o.authToken = token
		return nil
	}
}

// WithInterceptors appends HTTP interceptors, applied in order.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(o *options) error {
		o.interceptors = append(o.interceptors, interceptors...)
		return nil
	}
}

// WithTaskTimeout overrides the hard ceiling for one task kind.
func WithTaskTimeout(kind chatsql.TaskKind, timeout time.Duration) Option {
	return func(o *options) error {
		if !kind.Valid() {
			return &ValidationError{Field: "kind", Message: "unknown task kind"}
		}
		if timeout <= 0 {
			return &ValidationError{Field: "timeout", Message: "timeout must be positive"}
		}
		o.timeouts[kind] = timeout
		return nil
	}
}

// WithPollInterval sets the fixed delay between fallback poll attempts.
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) error {
		if interval <= 0 {
			return &ValidationError{Field: "pollInterval", Message: "poll interval must be positive"}
		}
		o.pollInterval = interval
		return nil
	}
}

// WithMaxPollAttempts sets the fallback poller's attempt budget.
func WithMaxPollAttempts(attempts int) Option {
	return func(o *options) error {
		if attempts <= 0 {
			return &ValidationError{Field: "maxPollAttempts", Message: "max poll attempts must be positive"}
		}
		o.maxPollAttempts = attempts
		return nil
	}
}
