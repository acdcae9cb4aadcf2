// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/acheong08/matrix-bot/lib/clock"
)

// StreamOptions configures a Stream.
type StreamOptions struct {
	// Timeout is the server-side long-poll hold per incremental
	// /sync call. Zero uses DefaultLongPoll.
	Timeout time.Duration

	// TimelineTypes restricts timeline events to these Matrix event
	// types (e.g., "m.room.message"). Empty means all timeline types.
	TimelineTypes []string

	// TimelineLimit caps timeline events per room per /sync response.
	// Zero means the server default.
	TimelineLimit int

	// Clock drives backoff sleeps. Nil uses the real clock.
	Clock clock.Clock

	// Logger is used for retry diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultLongPoll is the server-side long-poll hold for incremental
// /sync calls. 30 seconds matches the Matrix client-server spec
// recommendation.
const DefaultLongPoll = 30 * time.Second

// Backoff bounds for transient /sync failures. The first retry waits
// initialBackoff; each subsequent failure doubles the wait up to
// maxBackoff. A successful sync resets the backoff.
const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Stream is a pull-based consumer of the Matrix /sync long-poll. Each
// Next call blocks until the homeserver returns a batch of events (or
// the long-poll window expires, yielding an empty batch) and advances
// the stream position.
//
// The first Next call performs the initial sync (no since token):
// the homeserver responds immediately with a snapshot that includes
// recent timeline history. Callers must expect replayed events in that
// first batch; suppressing them is the consumer's job.
//
// Transient errors are retried internally with exponential backoff;
// Next only returns an error when ctx is cancelled. A Stream is not
// safe for concurrent use, and the position is not restartable: to
// resume from scratch, open a new Stream.
type Stream struct {
	session   Session
	filter    string
	timeout   time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	nextBatch string
	backoff   time.Duration
}

// NewStream creates a Stream over the session's /sync endpoint. No
// network call is made until the first Next.
func NewStream(session Session, options StreamOptions) *Stream {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultLongPoll
	}
	streamClock := options.Clock
	if streamClock == nil {
		streamClock = clock.Real()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		session: session,
		filter:  buildInlineFilter(options.TimelineTypes, options.TimelineLimit),
		timeout: timeout,
		clock:   streamClock,
		logger:  logger,
		backoff: initialBackoff,
	}
}

// Next blocks until the next /sync batch arrives and returns it.
// Transient errors are retried with exponential backoff after dropping
// idle connections; the only error Next returns is ctx's when the
// context is cancelled.
func (s *Stream) Next(ctx context.Context) (*SyncResponse, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("messaging: stream cancelled: %w", err)
		}

		options := SyncOptions{
			Since:  s.nextBatch,
			Filter: s.filter,
		}
		// The initial sync (no since token) returns immediately with
		// a snapshot; only incremental syncs long-poll.
		if s.nextBatch != "" {
			options.Timeout = int(s.timeout.Milliseconds())
			options.SetTimeout = true
		}

		response, err := s.session.Sync(ctx, options)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("messaging: stream cancelled: %w", ctx.Err())
			}

			// TCP-level errors (connection reset, EOF) often indicate
			// a poisoned connection in Go's HTTP pool. Drop idle
			// connections so the next attempt opens a fresh socket.
			if closer, ok := s.session.(interface{ CloseIdleConnections() }); ok {
				closer.CloseIdleConnections()
			}

			s.logger.Error("sync failed, retrying",
				"error", err,
				"backoff", s.backoff,
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("messaging: stream cancelled: %w", ctx.Err())
			case <-s.clock.After(s.backoff):
			}
			s.backoff *= 2
			if s.backoff > maxBackoff {
				s.backoff = maxBackoff
			}
			continue
		}

		s.backoff = initialBackoff
		s.nextBatch = response.NextBatch
		return response, nil
	}
}

// Position returns the current sync stream position token. Empty until
// the first successful Next.
func (s *Stream) Position() string {
	return s.nextBatch
}

// buildInlineFilter constructs the inline JSON filter for /sync.
// Presence, account data, and state events are always suppressed: the
// bot only reacts to timeline messages.
func buildInlineFilter(timelineTypes []string, timelineLimit int) string {
	timeline := map[string]any{}
	if len(timelineTypes) > 0 {
		timeline["types"] = timelineTypes
	}
	if timelineLimit > 0 {
		timeline["limit"] = timelineLimit
	}

	top := map[string]any{
		"room": map[string]any{
			"timeline":     timeline,
			"state":        map[string]any{"types": []string{}},
			"ephemeral":    map[string]any{"types": []string{}},
			"account_data": map[string]any{"types": []string{}},
		},
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}

	data, _ := json.Marshal(top)
	return string(data)
}
