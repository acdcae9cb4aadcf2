// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated Matrix identifier types: RoomID,
// UserID, EventID, and EventType.
//
// Identifiers arrive from the homeserver (room creation, /sync, message
// history) or from operator input (environment variables, command
// arguments) and are parsed into these types at the boundary. Code past
// the boundary never handles raw identifier strings, so a room ID can
// never be passed where a user ID is expected.
//
// All wrapper types are immutable value types whose zero value is not
// valid; use IsZero to check. RoomID, UserID, and EventID implement
// encoding.TextMarshaler/TextUnmarshaler so that JSON decoding of
// homeserver responses (including map keys in /sync room sections)
// validates automatically.
package ref
