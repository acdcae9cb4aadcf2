// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package state persists the bot's room identities and sync watermark
// across process runs.
//
// The state lives in a single JSON object on local disk with fixed
// keys: ADMIN_SPACE, CONTROL_ROOM, LOG_ROOM, and LAST_TIMESTAMP
// (optional, integer milliseconds). The file is written by full-file
// overwrite at well-defined checkpoints only (after provisioning and
// on clean shutdown), and the process is its sole writer, so no
// locking discipline is needed.
//
// Operators may hand-edit the file (for example to point the bot at a
// different control room); // and /* */ comments are tolerated on read
// and stripped before decoding.
//
// The watermark is persisted only on clean shutdown. After an unclean
// termination the next run resumes from the previous checkpoint and
// relies on its fresh handshake token to suppress replayed events.
package state

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/acheong08/matrix-bot/lib/ref"
)

// State is the durable record of provisioned rooms and the last
// processed sync watermark.
type State struct {
	// AdminSpace is the administrative container space. Its presence
	// marks provisioning as complete: a non-zero value means the
	// provisioner never runs again.
	AdminSpace ref.RoomID `json:"ADMIN_SPACE,omitempty"`

	// ControlRoom receives operator commands.
	ControlRoom ref.RoomID `json:"CONTROL_ROOM,omitempty"`

	// LogRoom receives log lines and forwarded crawl content.
	LogRoom ref.RoomID `json:"LOG_ROOM,omitempty"`

	// LastTimestamp is the replay-suppression watermark in Matrix
	// origin_server_ts milliseconds. Zero means no watermark: every
	// event passes the timestamp check.
	LastTimestamp int64 `json:"LAST_TIMESTAMP,omitempty"`
}

// Provisioned reports whether the one-time space provisioning has
// already run.
func (s *State) Provisioned() bool {
	return !s.AdminSpace.IsZero()
}

// Load reads the state file at path. A missing file is not an error:
// it yields the empty state, which triggers provisioning. Comments in
// the file are stripped before decoding.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: reading %s: %w", path, err)
	}

	var loaded State
	if err := json.Unmarshal(jsonc.ToJSON(data), &loaded); err != nil {
		return nil, fmt.Errorf("state: parsing %s: %w", path, err)
	}
	return &loaded, nil
}

// Save writes the state to path by full-file overwrite, mode 0600.
func (s *State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encoding: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("state: writing %s: %w", path, err)
	}
	return nil
}
