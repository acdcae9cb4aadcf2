// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventType identifies a Matrix state or timeline event type
// (m.room.message, m.space.child, and so on).
//
// EventType is a named string type, not a struct wrapper: event types
// are opaque identifiers that need no parsing or validation. The type
// exists purely for compile-time safety, preventing accidental use of
// a state key where an event type is expected (or vice versa).
type EventType string

// Standard Matrix event types used by the bot.
const (
	// EventTypeMessage is a room timeline message (m.room.message).
	EventTypeMessage EventType = "m.room.message"

	// EventTypeRoomName sets a room's display name.
	EventTypeRoomName EventType = "m.room.name"

	// EventTypeSpaceChild declares a child room on a space. The state
	// key is the child room ID.
	EventTypeSpaceChild EventType = "m.space.child"

	// EventTypeSpaceParent declares a parent space on a room. The
	// state key is the parent room ID.
	EventTypeSpaceParent EventType = "m.space.parent"
)

// String returns the event type string (e.g., "m.room.message").
func (t EventType) String() string { return string(t) }
