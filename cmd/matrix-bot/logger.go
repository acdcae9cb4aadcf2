// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"

	"github.com/acheong08/matrix-bot/lib/clock"
	"github.com/acheong08/matrix-bot/lib/ref"
	"github.com/acheong08/matrix-bot/messaging"
)

// roomLogger writes human-readable log lines both to the process log
// and into a Matrix room. Each line is prefixed with a local wall-clock
// timestamp so that the room transcript reads chronologically even
// when federation reorders delivery.
//
// Room delivery is best-effort: a failed send is reported to the
// process log and otherwise swallowed. Logging must never take the bot
// down.
type roomLogger struct {
	session messaging.Session
	room    ref.RoomID
	clock   clock.Clock
	logger  *slog.Logger
}

// timestampLayout is the prefix format for room log lines.
const timestampLayout = "2006-01-02 15:04:05"

func newRoomLogger(session messaging.Session, room ref.RoomID, streamClock clock.Clock, logger *slog.Logger) *roomLogger {
	return &roomLogger{
		session: session,
		room:    room,
		clock:   streamClock,
		logger:  logger,
	}
}

// Log writes message to the default log room.
func (l *roomLogger) Log(ctx context.Context, message string) {
	l.LogTo(ctx, l.room, message)
}

// LogTo writes message to a specific room with the timestamp prefix.
func (l *roomLogger) LogTo(ctx context.Context, room ref.RoomID, message string) {
	line := l.clock.Now().Local().Format(timestampLayout) + " " + message

	l.logger.Info("room log", "room_id", room, "message", message)

	if _, err := l.session.SendMessage(ctx, room, messaging.NewMarkdownMessage(line)); err != nil {
		l.logger.Error("failed to deliver log line to room",
			"room_id", room,
			"message", message,
			"error", err,
		)
	}
}
