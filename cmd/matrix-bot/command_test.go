// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/acheong08/matrix-bot/lib/ref"
	"github.com/acheong08/matrix-bot/lib/state"
	"github.com/acheong08/matrix-bot/messaging"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		body string
		kind commandKind
	}{
		{"!ping", commandPing},
		{"!exit", commandExit},
		{"!crawl !room:example.org 5", commandCrawl},
		{"!frobnicate", commandUnknown},
		{"!ping extra args are fine", commandPing},
	}
	for _, test := range tests {
		t.Run(test.body, func(t *testing.T) {
			if got := parseCommand(test.body); got.kind != test.kind {
				t.Errorf("parseCommand(%q).kind = %d, want %d", test.body, got.kind, test.kind)
			}
		})
	}
}

func TestParseCrawlValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing args", "!crawl"},
		{"one arg", "!crawl !room:example.org"},
		{"three args", "!crawl !room:example.org 5 extra"},
		{"bad room id", "!crawl not-a-room 5"},
		{"non-numeric count", "!crawl !room:example.org several"},
		{"zero count", "!crawl !room:example.org 0"},
		{"negative count", "!crawl !room:example.org -3"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cmd := parseCommand(test.body)
			if cmd.kind != commandCrawl {
				t.Fatalf("parseCommand(%q).kind = %d, want crawl", test.body, cmd.kind)
			}
			if cmd.argErr == "" {
				t.Errorf("parseCommand(%q) accepted invalid arguments", test.body)
			}
		})
	}

	t.Run("valid", func(t *testing.T) {
		cmd := parseCommand("!crawl !room:example.org 25")
		if cmd.argErr != "" {
			t.Fatalf("unexpected validation error: %s", cmd.argErr)
		}
		if cmd.crawlRoom.String() != "!room:example.org" || cmd.crawlCount != 25 {
			t.Errorf("unexpected parse result: %+v", cmd)
		}
	})
}

func TestPingCommand(t *testing.T) {
	session := newFakeSession()
	bot := newTestBot(t, session)
	startSession(t, bot, 1000)

	bot.processEvent(context.Background(), controlMessage("!ping", 2000))

	replies := session.messagesTo(testControl)
	if len(replies) != 1 {
		t.Fatalf("got %d control room messages, want exactly 1", len(replies))
	}
	if bodyOf(t, replies[0]) != "Pong!" {
		t.Errorf("unexpected reply body: %q", bodyOf(t, replies[0]))
	}
}

func TestExitCommand(t *testing.T) {
	session := newFakeSession()
	bot := newTestBot(t, session)
	startSession(t, bot, 1000)

	terminate := bot.processEvent(context.Background(), controlMessage("!exit", 7000))
	if !terminate {
		t.Fatal("!exit did not request termination")
	}

	// Announcement plus sign-off go to the log room.
	logLines := session.messagesTo(testLog)
	if len(logLines) != 2 {
		t.Fatalf("got %d log room messages, want 2", len(logLines))
	}
	if !strings.Contains(bodyOf(t, logLines[0]), "Exiting...") {
		t.Errorf("first log line is not the exit announcement: %q", bodyOf(t, logLines[0]))
	}

	// The triggering event's timestamp is persisted as the watermark
	// before the process terminates.
	persisted, err := state.Load(bot.config.StateFile)
	if err != nil {
		t.Fatalf("loading persisted state: %v", err)
	}
	if persisted.LastTimestamp != 7000 {
		t.Errorf("persisted watermark = %d, want 7000", persisted.LastTimestamp)
	}
}

func TestUnknownCommand(t *testing.T) {
	session := newFakeSession()
	bot := newTestBot(t, session)
	startSession(t, bot, 1000)

	bot.processEvent(context.Background(), controlMessage("!dance", 2000))

	replies := session.messagesTo(testControl)
	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	body := bodyOf(t, replies[0])
	for _, name := range []string{"!ping", "!exit", "!crawl"} {
		if !strings.Contains(body, name) {
			t.Errorf("usage reply does not mention %s: %q", name, body)
		}
	}
}

func TestCrawlCommand(t *testing.T) {
	target := ref.MustParseRoomID("!target:example.org")

	// seed fills the target room with n plain messages, oldest first.
	seed := func(session *fakeSession, n int) {
		session.joinedRooms = append(session.joinedRooms, target)
		for i := 1; i <= n; i++ {
			session.roomHistory[target] = append(session.roomHistory[target], messaging.Event{
				EventID:        ref.MustParseEventID(fmt.Sprintf("$h%d:example.org", i)),
				Type:           ref.EventTypeMessage,
				Sender:         testAdmin,
				OriginServerTS: int64(i * 1000),
				Content:        map[string]any{"msgtype": "m.text", "body": "msg"},
			})
		}
	}

	t.Run("forwards verbatim oldest first", func(t *testing.T) {
		session := newFakeSession()
		session.joinedRooms = append(session.joinedRooms, target)
		session.roomHistory[target] = []messaging.Event{
			{Type: ref.EventTypeMessage, OriginServerTS: 1000, Content: map[string]any{"msgtype": "m.text", "body": "first"}},
			{Type: ref.EventTypeMessage, OriginServerTS: 2000, Content: map[string]any{"msgtype": "m.image", "body": "pic.png", "url": "mxc://example.org/abc"}},
			{Type: ref.EventTypeMessage, OriginServerTS: 3000, Content: map[string]any{"msgtype": "m.text", "body": "third"}},
		}
		bot := newTestBot(t, session)
		startSession(t, bot, 500)

		bot.processEvent(context.Background(), controlMessage("!crawl !target:example.org 3", 5000))

		// One progress line plus the three forwarded contents in the
		// log room.
		logMessages := session.messagesTo(testLog)
		if len(logMessages) != 4 {
			t.Fatalf("got %d log room sends, want 4 (progress + 3 forwards)", len(logMessages))
		}

		forwarded := logMessages[1:]
		first, ok := forwarded[0].Content.(map[string]any)
		if !ok || first["body"] != "first" {
			t.Errorf("forwarding is not oldest-first: %#v", forwarded[0].Content)
		}
		// Rich content survives untouched.
		image, ok := forwarded[1].Content.(map[string]any)
		if !ok || image["msgtype"] != "m.image" || image["url"] != "mxc://example.org/abc" {
			t.Errorf("rich content was not forwarded verbatim: %#v", forwarded[1].Content)
		}
	})

	t.Run("invalid arguments reply once and stop", func(t *testing.T) {
		session := newFakeSession()
		seed(session, 3)
		bot := newTestBot(t, session)
		startSession(t, bot, 500)

		bot.processEvent(context.Background(), controlMessage("!crawl !target:example.org zero", 5000))

		if got := len(session.messagesTo(testControl)); got != 1 {
			t.Errorf("got %d control room replies, want 1", got)
		}
		if got := len(session.messagesTo(testLog)); got != 0 {
			t.Errorf("got %d log room sends, want 0", got)
		}
	})

	t.Run("not in room replies once and stops", func(t *testing.T) {
		session := newFakeSession()
		bot := newTestBot(t, session)
		startSession(t, bot, 500)

		bot.processEvent(context.Background(), controlMessage("!crawl !elsewhere:example.org 3", 5000))

		replies := session.messagesTo(testControl)
		if len(replies) != 1 {
			t.Fatalf("got %d control room replies, want 1", len(replies))
		}
		if !strings.Contains(bodyOf(t, replies[0]), "Not in room") {
			t.Errorf("unexpected reply: %q", bodyOf(t, replies[0]))
		}
		if got := len(session.messagesTo(testLog)); got != 0 {
			t.Errorf("got %d log room sends, want 0", got)
		}
	})

	t.Run("history fetch failure aborts the invocation", func(t *testing.T) {
		session := newFakeSession()
		seed(session, 3)
		session.failRoomMessages = errors.New("homeserver unavailable")
		bot := newTestBot(t, session)
		startSession(t, bot, 500)

		bot.processEvent(context.Background(), controlMessage("!crawl !target:example.org 3", 5000))

		replies := session.messagesTo(testControl)
		if len(replies) != 1 {
			t.Fatalf("got %d control room replies, want 1", len(replies))
		}
		if !strings.Contains(bodyOf(t, replies[0]), "Failed to fetch history") {
			t.Errorf("unexpected reply: %q", bodyOf(t, replies[0]))
		}
	})

	t.Run("limit caps the forwarded count", func(t *testing.T) {
		session := newFakeSession()
		seed(session, 10)
		bot := newTestBot(t, session)
		startSession(t, bot, 500)

		bot.processEvent(context.Background(), controlMessage("!crawl !target:example.org 4", 50000))

		// Progress line + 4 forwards.
		if got := len(session.messagesTo(testLog)); got != 5 {
			t.Errorf("got %d log room sends, want 5", got)
		}
	})
}
