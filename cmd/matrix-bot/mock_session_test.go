// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/acheong08/matrix-bot/lib/clock"
	"github.com/acheong08/matrix-bot/lib/config"
	"github.com/acheong08/matrix-bot/lib/ref"
	"github.com/acheong08/matrix-bot/lib/state"
	"github.com/acheong08/matrix-bot/messaging"
)

// sentMessage records one SendMessage or SendEvent call.
type sentMessage struct {
	Room    ref.RoomID
	Type    ref.EventType
	Content any
}

// sentState records one SendStateEvent call.
type sentState struct {
	Room     ref.RoomID
	Type     ref.EventType
	StateKey string
	Content  any
}

// fakeSession is an in-memory messaging.Session that records every
// write and serves scripted reads. Error injection per operation via
// the fail* fields.
type fakeSession struct {
	userID ref.UserID

	sent       []sentMessage
	sentStates []sentState
	invited    []sentState // Room + Content carry the invite target

	joinedRooms  []ref.RoomID
	roomHistory  map[ref.RoomID][]messaging.Event
	createdRooms []messaging.CreateRoomRequest

	failSendMessage  error
	failSendState    error
	failCreateRoom   error
	failJoinedRooms  error
	failRoomMessages error
	failInvite       error

	// nextRoomID numbers rooms minted by CreateRoom.
	nextRoomID int
	// emptyChildLink makes SendStateEvent return a zero event ID.
	emptyChildLink bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		userID:      ref.MustParseUserID("@bot:example.org"),
		roomHistory: map[ref.RoomID][]messaging.Event{},
	}
}

func (s *fakeSession) UserID() ref.UserID { return s.userID }
func (s *fakeSession) Close() error       { return nil }

func (s *fakeSession) WhoAmI(ctx context.Context) (ref.UserID, error) {
	return s.userID, nil
}

func (s *fakeSession) CreateRoom(ctx context.Context, request messaging.CreateRoomRequest) (*messaging.CreateRoomResponse, error) {
	if s.failCreateRoom != nil {
		return nil, s.failCreateRoom
	}
	s.createdRooms = append(s.createdRooms, request)
	s.nextRoomID++
	roomID := ref.MustParseRoomID(fmt.Sprintf("!room%d:example.org", s.nextRoomID))
	s.joinedRooms = append(s.joinedRooms, roomID)
	return &messaging.CreateRoomResponse{RoomID: roomID}, nil
}

func (s *fakeSession) JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error) {
	s.joinedRooms = append(s.joinedRooms, roomID)
	return roomID, nil
}

func (s *fakeSession) InviteUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error {
	if s.failInvite != nil {
		return s.failInvite
	}
	s.invited = append(s.invited, sentState{Room: roomID, Content: userID})
	return nil
}

func (s *fakeSession) SendMessage(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error) {
	if s.failSendMessage != nil {
		return ref.EventID{}, s.failSendMessage
	}
	s.sent = append(s.sent, sentMessage{Room: roomID, Type: ref.EventTypeMessage, Content: content})
	return ref.MustParseEventID(fmt.Sprintf("$sent%d:example.org", len(s.sent))), nil
}

func (s *fakeSession) SendEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, content any) (ref.EventID, error) {
	if s.failSendMessage != nil {
		return ref.EventID{}, s.failSendMessage
	}
	s.sent = append(s.sent, sentMessage{Room: roomID, Type: eventType, Content: content})
	return ref.MustParseEventID(fmt.Sprintf("$sent%d:example.org", len(s.sent))), nil
}

func (s *fakeSession) SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) (ref.EventID, error) {
	if s.failSendState != nil {
		return ref.EventID{}, s.failSendState
	}
	s.sentStates = append(s.sentStates, sentState{Room: roomID, Type: eventType, StateKey: stateKey, Content: content})
	if s.emptyChildLink && eventType == ref.EventTypeSpaceChild {
		return ref.EventID{}, nil
	}
	return ref.MustParseEventID(fmt.Sprintf("$state%d:example.org", len(s.sentStates))), nil
}

func (s *fakeSession) JoinedRooms(ctx context.Context) ([]ref.RoomID, error) {
	if s.failJoinedRooms != nil {
		return nil, s.failJoinedRooms
	}
	return s.joinedRooms, nil
}

func (s *fakeSession) RoomMessages(ctx context.Context, roomID ref.RoomID, options messaging.RoomMessagesOptions) (*messaging.RoomMessagesResponse, error) {
	if s.failRoomMessages != nil {
		return nil, s.failRoomMessages
	}
	history := s.roomHistory[roomID]
	// Backward pagination: newest first, capped at the limit.
	chunk := make([]messaging.Event, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		if options.Limit > 0 && len(chunk) >= options.Limit {
			break
		}
		chunk = append(chunk, history[i])
	}
	return &messaging.RoomMessagesResponse{Chunk: chunk}, nil
}

func (s *fakeSession) Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error) {
	return &messaging.SyncResponse{NextBatch: "s1"}, nil
}

var _ messaging.Session = (*fakeSession)(nil)

// messagesTo filters the recorded sends down to one room.
func (s *fakeSession) messagesTo(room ref.RoomID) []sentMessage {
	var out []sentMessage
	for _, message := range s.sent {
		if message.Room == room {
			out = append(out, message)
		}
	}
	return out
}

// Fixed room set used across the bot tests.
var (
	testSpace   = ref.MustParseRoomID("!space:example.org")
	testControl = ref.MustParseRoomID("!control:example.org")
	testLog     = ref.MustParseRoomID("!log:example.org")
	testAdmin   = ref.MustParseUserID("@admin:example.org")
)

// newTestBot wires a Bot over a fake session with a provisioned state
// record and a temp-dir state file.
func newTestBot(t *testing.T, session *fakeSession) *Bot {
	t.Helper()

	cfg := &config.Config{
		HomeserverURL: "http://localhost:8008",
		UserID:        session.userID,
		LogRoom:       testLog,
		Tunables:      config.DefaultTunables(),
	}
	cfg.StateFile = t.TempDir() + "/state.json"

	record := &state.State{
		AdminSpace:  testSpace,
		ControlRoom: testControl,
		LogRoom:     testLog,
	}

	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return newBot(session, cfg, record, fakeClock, "test-token", newLogger("error"))
}

// controlMessage builds an admitted-shape control room event.
func controlMessage(body string, ts int64) messaging.Event {
	return messaging.Event{
		EventID:        ref.MustParseEventID(fmt.Sprintf("$ev%d:example.org", ts)),
		Type:           ref.EventTypeMessage,
		Sender:         testAdmin,
		OriginServerTS: ts,
		Content:        map[string]any{"msgtype": "m.text", "body": body},
		RoomID:         testControl,
	}
}

// handshakeEvent builds the bot's own marker message as it would come
// back through /sync.
func handshakeEvent(token string, ts int64) messaging.Event {
	event := controlMessage(handshakePrefix+token, ts)
	event.Sender = ref.MustParseUserID("@bot:example.org")
	event.RoomID = testLog
	return event
}

// bodyOf extracts the plain-text body of a recorded send.
func bodyOf(t *testing.T, message sentMessage) string {
	t.Helper()
	content, ok := message.Content.(messaging.MessageContent)
	if !ok {
		t.Fatalf("recorded send is not a MessageContent: %#v", message.Content)
	}
	return content.Body
}
