// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/acheong08/matrix-bot/lib/clock"
	"github.com/acheong08/matrix-bot/lib/config"
	"github.com/acheong08/matrix-bot/lib/ref"
	"github.com/acheong08/matrix-bot/lib/state"
	"github.com/acheong08/matrix-bot/messaging"
)

// handshakePrefix introduces the session marker message the bot sends
// to the log room at startup. The suffix is a per-run random token.
const handshakePrefix = "Timestamp: "

// Bot is the long-lived sync consumer. It filters timeline events
// through a replay gate and dispatches control-room commands.
//
// The gate exists because the initial /sync returns recent timeline
// history: without it, a restart would re-execute every command still
// in the visible window. Two mechanisms cooperate:
//
//   - the watermark: events older than the persisted LAST_TIMESTAMP
//     are dropped outright;
//   - the handshake: at startup the bot posts "Timestamp: <token>"
//     with a fresh random token to the log room, and dispatches
//     nothing until it sees that exact message come back through
//     /sync. Everything before the marker is by definition replayed
//     history, whatever its timestamp.
type Bot struct {
	session    messaging.Session
	config     *config.Config
	state      *state.State
	roomLogger *roomLogger
	logger     *slog.Logger
	clock      clock.Clock

	// handshakeToken is this run's marker token. Markers from earlier
	// runs never match and are suppressed like any other replay.
	handshakeToken string

	// sessionStarted is set when the handshake marker arrives. It
	// never reverts.
	sessionStarted bool
}

func newBot(session messaging.Session, cfg *config.Config, record *state.State, botClock clock.Clock, token string, logger *slog.Logger) *Bot {
	return &Bot{
		session:        session,
		config:         cfg,
		state:          record,
		roomLogger:     newRoomLogger(session, record.LogRoom, botClock, logger),
		logger:         logger,
		clock:          botClock,
		handshakeToken: token,
	}
}

// processSync runs every timeline event of a sync batch through the
// gate and dispatches admitted commands in server order. Returns true
// when a command asked the bot to terminate; remaining events in the
// batch are not dispatched.
func (b *Bot) processSync(ctx context.Context, response *messaging.SyncResponse) bool {
	for roomID, room := range response.Rooms.Join {
		for _, event := range room.Timeline.Events {
			event.RoomID = roomID
			if terminate := b.processEvent(ctx, event); terminate {
				return true
			}
		}
	}
	return false
}

// processEvent gates and dispatches a single timeline event. Returns
// true when the event's command asked the bot to terminate.
func (b *Bot) processEvent(ctx context.Context, event messaging.Event) bool {
	if event.Type != ref.EventTypeMessage {
		return false
	}

	// Watermark: anything strictly older than the persisted exit
	// timestamp is a replay of history already acted upon.
	if event.OriginServerTS < b.state.LastTimestamp {
		return false
	}

	body := event.MessageBody()

	// Handshake marker in the log room. Only this run's token counts;
	// markers from previous runs fail the comparison and fall through
	// to the pre-handshake drop below.
	if !b.sessionStarted && event.RoomID == b.state.LogRoom && body == handshakePrefix+b.handshakeToken {
		b.sessionStarted = true
		b.state.LastTimestamp = event.OriginServerTS
		b.logger.Info("handshake confirmed, session live",
			"origin_server_ts", event.OriginServerTS,
		)
		return false
	}

	// Before the handshake every command is replayed history. Dropped,
	// not queued.
	if !b.sessionStarted {
		return false
	}

	// Only control-room messages carry commands.
	if event.RoomID != b.state.ControlRoom {
		return false
	}

	// Ignore the bot's own messages (command replies echo back
	// through /sync).
	if event.Sender == b.session.UserID() {
		return false
	}

	if !strings.HasPrefix(body, "!") {
		return false
	}

	b.logger.Info("dispatching command",
		"sender", event.Sender,
		"body", body,
		"event_id", event.EventID,
	)
	return b.dispatch(ctx, parseCommand(body), event)
}
