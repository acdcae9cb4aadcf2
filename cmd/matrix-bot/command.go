// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

package main

// Command handling for control-room messages. Any message whose body
// starts with "!" is parsed into a command value and dispatched; the
// handlers reply into the control room and forward output into the log
// room. A send failure never aborts the remaining effects of a
// command, it is logged and the handler carries on.

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/acheong08/matrix-bot/lib/ref"
	"github.com/acheong08/matrix-bot/messaging"
)

// commandKind discriminates parsed commands.
type commandKind int

const (
	commandUnknown commandKind = iota
	commandPing
	commandExit
	commandCrawl
)

// command is one parsed control-room instruction. Built per event and
// discarded after dispatch.
type command struct {
	kind commandKind

	// raw is the original body, kept for the unknown-command reply.
	raw string

	// crawl arguments, valid only when kind == commandCrawl.
	crawlRoom  ref.RoomID
	crawlCount int

	// argErr holds a validation failure for commands whose shape was
	// recognized but whose arguments were not.
	argErr string
}

const usageText = "Available commands: `!ping`, `!exit`, `!crawl <roomId> <count>`"

// parseCommand parses a control-room body that starts with "!". Crawl
// argument validation happens here so that dispatch sees either a
// well-formed command or a ready-made usage error.
func parseCommand(body string) command {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return command{kind: commandUnknown, raw: body}
	}

	switch fields[0] {
	case "!ping":
		return command{kind: commandPing}
	case "!exit":
		return command{kind: commandExit}
	case "!crawl":
		return parseCrawl(body, fields[1:])
	default:
		return command{kind: commandUnknown, raw: body}
	}
}

func parseCrawl(body string, args []string) command {
	if len(args) != 2 {
		return command{
			kind:   commandCrawl,
			raw:    body,
			argErr: "Usage: `!crawl <roomId> <count>`",
		}
	}

	roomID, err := ref.ParseRoomID(args[0])
	if err != nil {
		return command{
			kind:   commandCrawl,
			raw:    body,
			argErr: fmt.Sprintf("Invalid room ID %q: must look like `!room:server`", args[0]),
		}
	}

	count, err := strconv.Atoi(args[1])
	if err != nil || count <= 0 {
		return command{
			kind:   commandCrawl,
			raw:    body,
			argErr: fmt.Sprintf("Invalid count %q: must be a positive integer", args[1]),
		}
	}

	return command{kind: commandCrawl, crawlRoom: roomID, crawlCount: count}
}

// dispatch executes a parsed command. The returned bool is true when
// the command asks the bot to terminate; the main loop stops pulling
// sync batches and the process exits cleanly.
func (b *Bot) dispatch(ctx context.Context, cmd command, event messaging.Event) bool {
	switch cmd.kind {
	case commandPing:
		b.handlePing(ctx)
		return false
	case commandExit:
		b.handleExit(ctx, event)
		return true
	case commandCrawl:
		b.handleCrawl(ctx, cmd)
		return false
	default:
		b.reply(ctx, fmt.Sprintf("Unknown command %q. %s", cmd.raw, usageText))
		return false
	}
}

// handlePing confirms liveness with a single reply in the control
// room.
func (b *Bot) handlePing(ctx context.Context) {
	b.reply(ctx, "Pong!")
}

// handleExit performs the ordered shutdown effects: announce in the
// log room, sign off, stamp the triggering event's timestamp as the
// replay watermark, and persist the state file. Persistence strictly
// precedes termination so that a restart never re-executes this exit.
func (b *Bot) handleExit(ctx context.Context, event messaging.Event) {
	b.roomLogger.Log(ctx, "Exiting...")
	b.roomLogger.Log(ctx, "Goodbye! Session closed by "+event.Sender.String())

	b.state.LastTimestamp = event.OriginServerTS
	if err := b.state.Save(b.config.StateFile); err != nil {
		// The watermark is lost but the handshake token of the next
		// run still suppresses this event on replay.
		b.logger.Error("failed to persist watermark on exit", "error", err)
	}
}

// handleCrawl validates the target, fetches up to count recent
// messages from it, and forwards each original content verbatim into
// the log room, oldest first.
func (b *Bot) handleCrawl(ctx context.Context, cmd command) {
	if cmd.argErr != "" {
		b.reply(ctx, cmd.argErr)
		return
	}

	joined, err := b.session.JoinedRooms(ctx)
	if err != nil {
		b.reply(ctx, "Could not check room membership: "+err.Error())
		return
	}
	if !slices.Contains(joined, cmd.crawlRoom) {
		b.reply(ctx, fmt.Sprintf("Not in room %s; invite me first", cmd.crawlRoom))
		return
	}

	b.roomLogger.Log(ctx, fmt.Sprintf("Crawling %d message(s) from %s", cmd.crawlCount, cmd.crawlRoom))

	response, err := b.session.RoomMessages(ctx, cmd.crawlRoom, messaging.RoomMessagesOptions{
		Direction: "b",
		Limit:     cmd.crawlCount,
	})
	if err != nil {
		b.reply(ctx, fmt.Sprintf("Failed to fetch history from %s: %v", cmd.crawlRoom, err))
		return
	}

	// The backward pagination chunk is newest-first; replay it in
	// chronological order.
	for i := len(response.Chunk) - 1; i >= 0; i-- {
		event := response.Chunk[i]
		if event.Type != ref.EventTypeMessage || len(event.Content) == 0 {
			continue
		}
		// Forward the original content untouched so rich messages
		// (images, formatted text) survive the copy.
		if _, err := b.session.SendEvent(ctx, b.state.LogRoom, ref.EventTypeMessage, event.Content); err != nil {
			b.logger.Error("failed to forward crawled message",
				"source_room", cmd.crawlRoom,
				"event_id", event.EventID,
				"error", err,
			)
		}
	}
}

// reply posts a message into the control room. Failures are logged
// locally; a lost reply does not affect command semantics.
func (b *Bot) reply(ctx context.Context, message string) {
	if _, err := b.session.SendMessage(ctx, b.state.ControlRoom, messaging.NewMarkdownMessage(message)); err != nil {
		b.logger.Error("failed to reply in control room", "error", err)
	}
}
