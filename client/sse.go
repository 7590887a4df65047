// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bufio"
	"io"
	"strings"
	"sync"

	chatsql "github.com/jalalirs/chatsql-sub000"
)

// streamConn reads server-sent events off one long-lived response body.
// The connection is server-to-client only; the client never writes.
type streamConn struct {
	reader *bufio.Reader
	closer io.Closer

	mu     sync.Mutex
	closed bool
}

func newStreamConn(rc io.ReadCloser) *streamConn {
	return &streamConn{
		reader: bufio.NewReader(rc),
		closer: rc,
	}
}

// Close closes the stream connection. Idempotent.
func (s *streamConn) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.closer.Close()
}

// ReadEvent reads a single SSE event from the stream. Frames without an
// event name carry the generic message kind.
func (s *streamConn) ReadEvent() (chatsql.Event, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return chatsql.Event{}, ErrStreamClosed
	}
	s.mu.Unlock()

	var kind string
	var data []byte

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return chatsql.Event{}, err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			// Empty line signals end of event
			if len(data) > 0 {
				if kind == "" {
					kind = chatsql.EventKindMessage
				}
				return chatsql.Event{Kind: kind, Payload: data}, nil
			}
			kind = ""
			continue
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			kind = strings.TrimSpace(line[6:])
		case strings.HasPrefix(line, "data:"):
			chunk := strings.TrimSpace(line[5:])
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, chunk...)
		case strings.HasPrefix(line, ":"):
			// Comment, ignore
		}
	}
}
