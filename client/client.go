// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

// Package client implements the streaming task client for the ChatSQL
// backend. A caller initiates a long-running task with an ordinary REST
// call; the response either names a push-channel URL, in which case a
// Channel streams partial results as server-sent events, or it does not,
// in which case a Poller re-requests the task state on a fixed interval.
// Either way the caller's callbacks observe one evolving result record
// and exactly one final outcome.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-json-experiment/json"

	chatsql "github.com/jalalirs/chatsql-sub000"
)

// Initiator is an opaque task-initiating function. It performs whatever
// request starts the backend task and returns the start response. The
// client never retries it; a failed initiation is the caller's to redo.
type Initiator func(ctx context.Context) (*chatsql.StartResponse, error)

// Client starts backend tasks and attaches channels or pollers to them.
type Client struct {
	opts     *options
	registry *Registry

	// streamClient shares the configured transport but carries no
	// client-level timeout; one would sever long-lived stream bodies.
	streamClient *http.Client
}

// New creates a new client.
func New(opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.baseURL == "" {
		return nil, &ValidationError{Field: "baseURL", Message: "base URL is required"}
	}
	o.baseURL = strings.TrimRight(o.baseURL, "/")

	return &Client{
		opts:         o,
		registry:     NewRegistry(),
		streamClient: &http.Client{Transport: o.httpClient.Transport},
	}, nil
}

// Registry returns the client's open-task registry.
func (c *Client) Registry() *Registry {
	return c.registry
}

// QueryRequest is the body of a chat query initiation.
type QueryRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Question       string `json:"question"`
}

// SendQuery starts a natural-language query task.
func (c *Client) SendQuery(ctx context.Context, req QueryRequest, cb Callbacks) (Handle, error) {
	if req.Question == "" {
		return nil, &ValidationError{Field: "question", Message: "question cannot be empty"}
	}
	return c.StartTask(ctx, chatsql.TaskKindQuery,
		c.restInitiator(http.MethodPost, "/api/v0/chat/query", req), cb)
}

// TestConnection starts a connection test task.
func (c *Client) TestConnection(ctx context.Context, connectionID string, cb Callbacks) (Handle, error) {
	if connectionID == "" {
		return nil, &ValidationError{Field: "connectionID", Message: "connection ID cannot be empty"}
	}
	path := fmt.Sprintf("/api/v0/connections/%s/test", url.PathEscape(connectionID))
	return c.StartTask(ctx, chatsql.TaskKindConnectionTest,
		c.restInitiator(http.MethodPost, path, nil), cb)
}

// RefreshSchema starts a schema refresh task for a connection.
func (c *Client) RefreshSchema(ctx context.Context, connectionID string, cb Callbacks) (Handle, error) {
	if connectionID == "" {
		return nil, &ValidationError{Field: "connectionID", Message: "connection ID cannot be empty"}
	}
	path := fmt.Sprintf("/api/v0/connections/%s/refresh-schema", url.PathEscape(connectionID))
	return c.StartTask(ctx, chatsql.TaskKindSchemaRefresh,
		c.restInitiator(http.MethodPost, path, nil), cb)
}

// GenerateRequest is the body of a training-data generation initiation.
type GenerateRequest struct {
	ConnectionID string `json:"connection_id"`
	NumExamples  int    `json:"num_examples,omitempty"`
}

// GenerateTrainingData starts an AI training-data generation task.
func (c *Client) GenerateTrainingData(ctx context.Context, req GenerateRequest, cb Callbacks) (Handle, error) {
	if req.ConnectionID == "" {
		return nil, &ValidationError{Field: "connectionID", Message: "connection ID cannot be empty"}
	}
	return c.StartTask(ctx, chatsql.TaskKindDataGeneration,
		c.restInitiator(http.MethodPost, "/api/v0/training/generate", req), cb)
}

// TrainModel starts a model training task.
func (c *Client) TrainModel(ctx context.Context, connectionID string, cb Callbacks) (Handle, error) {
	if connectionID == "" {
		return nil, &ValidationError{Field: "connectionID", Message: "connection ID cannot be empty"}
	}
	body := struct {
		ConnectionID string `json:"connection_id"`
	}{ConnectionID: connectionID}
	return c.StartTask(ctx, chatsql.TaskKindModelTraining,
		c.restInitiator(http.MethodPost, "/api/v0/training/train", body), cb)
}

// StartTask initiates a task with the supplied initiator and attaches the
// right transport for the response: a push channel when a stream URL is
// offered, the polling fallback otherwise.
//
// The initiating request itself fails synchronously; everything after it,
// including an unreachable stream endpoint, surfaces through cb.
func (c *Client) StartTask(ctx context.Context, kind chatsql.TaskKind, initiate Initiator, cb Callbacks) (Handle, error) {
	if !kind.Valid() {
		return nil, &ValidationError{Field: "kind", Message: "unknown task kind"}
	}
	if err := cb.validate(); err != nil {
		return nil, err
	}

	start, err := initiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("initiate %s task: %w", kind, err)
	}

	task := chatsql.NewTask(kind, start.TaskID)

	if start.StreamURL != "" {
		ch, err := openChannel(channelConfig{
			task:      task,
			streamURL: c.resolveURL(start.StreamURL),
			timeout:   c.opts.timeoutFor(kind),
			cb:        cb,
			logger:    c.opts.logger,
			invoke:    c.invoker(c.streamClient),
			authToken: c.opts.authToken,
			registry:  c.registry,
		})
		if err != nil {
			return nil, err
		}
		return ch, nil
	}

	c.opts.logger.Debug("no stream offered, falling back to polling", "task_id", task.ID, "task_kind", kind)
	p, err := startPoller(pollerConfig{
		task:        task,
		cb:          cb,
		logger:      c.opts.logger,
		fetch:       c.statusFetcher(task.ID),
		interval:    c.opts.pollInterval,
		maxAttempts: c.opts.maxPollAttempts,
		registry:    c.registry,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// restInitiator builds an Initiator for one of the backend's task
// endpoints.
func (c *Client) restInitiator(method, path string, body any) Initiator {
	return func(ctx context.Context) (*chatsql.StartResponse, error) {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.opts.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		c.applyAuth(req)

		resp, err := c.invoker(c.opts.httpClient)(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}

		var start chatsql.StartResponse
		if err := json.UnmarshalRead(resp.Body, &start); err != nil {
			return nil, fmt.Errorf("decode start response: %w", err)
		}
		return &start, nil
	}
}

// statusFetcher builds the polling fallback's resource fetcher for a task.
func (c *Client) statusFetcher(taskID string) ResourceFetcher {
	path := fmt.Sprintf("/api/v0/tasks/%s", url.PathEscape(taskID))
	return func(ctx context.Context) (*chatsql.TaskStatus, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		c.applyAuth(req)

		resp, err := c.invoker(c.opts.httpClient)(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("fetch task status: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, &HTTPError{StatusCode: resp.StatusCode}
		}

		var status chatsql.TaskStatus
		if err := json.UnmarshalRead(resp.Body, &status); err != nil {
			return nil, fmt.Errorf("decode task status: %w", err)
		}
		return &status, nil
	}
}

// invoker wraps an HTTP client in the configured interceptor chain.
func (c *Client) invoker(hc *http.Client) Invoker {
	invoke := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return hc.Do(req.WithContext(ctx))
	}
	return chainInterceptors(c.opts.interceptors, invoke)
}

// applyAuth attaches the opaque bearer token, when configured.
func (c *Client) applyAuth(req *http.Request) {
	if c.opts.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.authToken)
	}
}

// resolveURL resolves a possibly relative stream URL against the base URL.
func (c *Client) resolveURL(streamURL string) string {
	if strings.HasPrefix(streamURL, "http://") || strings.HasPrefix(streamURL, "https://") {
		return streamURL
	}
	if !strings.HasPrefix(streamURL, "/") {
		streamURL = "/" + streamURL
	}
	return c.opts.baseURL + streamURL
}
