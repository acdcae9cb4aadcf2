// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/acheong08/matrix-bot/lib/config"
	"github.com/acheong08/matrix-bot/lib/ref"
	"github.com/acheong08/matrix-bot/lib/state"
	"github.com/acheong08/matrix-bot/messaging"
)

// provision performs the one-time administrative setup: an admin space,
// a control room parented under it, and the configured log room
// re-parented and renamed. Learned room IDs are persisted to the state
// file so subsequent runs skip this entirely.
//
// Each step gates the next. A failure leaves whatever was created on
// the homeserver but nothing in the state file, so the next run
// retries from the top; Matrix room creation is cheap and orphaned
// rooms are harmless.
func provision(ctx context.Context, session messaging.Session, cfg *config.Config, record *state.State, logger *slog.Logger) error {
	serverName := cfg.UserID.Server()

	spaceID, err := createAdminSpace(ctx, session, cfg)
	if err != nil {
		return fmt.Errorf("creating admin space: %w", err)
	}
	logger.Info("created admin space", "room_id", spaceID, "name", cfg.SpaceName)

	controlID, err := createControlRoom(ctx, session, cfg, spaceID, serverName)
	if err != nil {
		return fmt.Errorf("creating control room: %w", err)
	}
	logger.Info("created control room", "room_id", controlID, "name", cfg.ControlRoomName)

	if err := adoptLogRoom(ctx, session, cfg, spaceID, serverName); err != nil {
		return fmt.Errorf("adopting log room: %w", err)
	}
	logger.Info("adopted log room", "room_id", cfg.LogRoom, "name", cfg.LogRoomName)

	record.AdminSpace = spaceID
	record.ControlRoom = controlID
	record.LogRoom = cfg.LogRoom
	if err := record.Save(cfg.StateFile); err != nil {
		return fmt.Errorf("persisting provisioned rooms: %w", err)
	}

	// The controller invite is best-effort: a failed invite can be
	// repeated by hand, and must not wedge the bot into re-running
	// provisioning forever.
	if !cfg.Controller.IsZero() {
		if err := session.InviteUser(ctx, spaceID, cfg.Controller); err != nil {
			logger.Error("failed to invite controller to admin space",
				"user_id", cfg.Controller,
				"room_id", spaceID,
				"error", err,
			)
		} else {
			logger.Info("invited controller to admin space", "user_id", cfg.Controller)
		}
	}

	return nil
}

// createAdminSpace creates the private m.space that parents the bot's
// rooms. State writes are restricted to the bot account.
func createAdminSpace(ctx context.Context, session messaging.Session, cfg *config.Config) (ref.RoomID, error) {
	response, err := session.CreateRoom(ctx, messaging.CreateRoomRequest{
		Name:       cfg.SpaceName,
		Topic:      "Administrative space for " + cfg.UserID.String(),
		Preset:     "private_chat",
		Visibility: "private",
		CreationContent: map[string]any{
			"type": "m.space",
		},
		PowerLevelContentOverride: botOnlyPowerLevels(cfg.UserID),
	})
	if err != nil {
		return ref.RoomID{}, err
	}
	return response.RoomID, nil
}

// createControlRoom creates the command room as a child of the space.
// The m.space.parent side goes into the room's initial state; the
// m.space.child side is a follow-up write on the space itself, and the
// space relation is only considered established once that write
// returns an event ID.
func createControlRoom(ctx context.Context, session messaging.Session, cfg *config.Config, spaceID ref.RoomID, serverName string) (ref.RoomID, error) {
	response, err := session.CreateRoom(ctx, messaging.CreateRoomRequest{
		Name:       cfg.ControlRoomName,
		Topic:      "Bot command channel",
		Preset:     "private_chat",
		Visibility: "private",
		InitialState: []messaging.StateEvent{{
			Type:     ref.EventTypeSpaceParent,
			StateKey: spaceID.String(),
			Content: map[string]any{
				"via":       []string{serverName},
				"canonical": true,
			},
		}},
	})
	if err != nil {
		return ref.RoomID{}, err
	}

	eventID, err := linkChild(ctx, session, spaceID, response.RoomID, serverName)
	if err != nil {
		return ref.RoomID{}, err
	}
	if eventID.IsZero() {
		return ref.RoomID{}, fmt.Errorf("space child link for %s returned no event ID", response.RoomID)
	}
	return response.RoomID, nil
}

// adoptLogRoom re-parents the pre-existing log room under the admin
// space and renames it to the configured display name.
func adoptLogRoom(ctx context.Context, session messaging.Session, cfg *config.Config, spaceID ref.RoomID, serverName string) error {
	if _, err := linkChild(ctx, session, spaceID, cfg.LogRoom, serverName); err != nil {
		return err
	}
	_, err := session.SendStateEvent(ctx, cfg.LogRoom, ref.EventTypeRoomName, "",
		map[string]any{"name": cfg.LogRoomName})
	if err != nil {
		return fmt.Errorf("renaming log room: %w", err)
	}
	return nil
}

// linkChild writes the m.space.child state event on the space pointing
// at room.
func linkChild(ctx context.Context, session messaging.Session, spaceID, room ref.RoomID, serverName string) (ref.EventID, error) {
	eventID, err := session.SendStateEvent(ctx, spaceID, ref.EventTypeSpaceChild, room.String(),
		map[string]any{
			"via": []string{serverName},
		})
	if err != nil {
		return ref.EventID{}, fmt.Errorf("linking %s under space %s: %w", room, spaceID, err)
	}
	return eventID, nil
}

// botOnlyPowerLevels returns a power_level_content_override that
// reserves all state writes for the bot account. Members can still
// send ordinary messages.
func botOnlyPowerLevels(botUserID ref.UserID) map[string]any {
	return map[string]any{
		"ban":            100,
		"invite":         100,
		"kick":           100,
		"redact":         50,
		"events_default": 0,
		"state_default":  100,
		"users_default":  0,
		"users":          map[string]any{botUserID.String(): 100},
		"events": map[string]any{
			"m.room.name":         100,
			"m.room.power_levels": 100,
			"m.room.topic":        100,
			"m.space.child":       100,
			"m.space.parent":      100,
		},
	}
}

// describeRooms renders the provisioned room set for the startup log
// line.
func describeRooms(record *state.State) string {
	var parts []string
	parts = append(parts, "space="+record.AdminSpace.String())
	parts = append(parts, "control="+record.ControlRoom.String())
	parts = append(parts, "log="+record.LogRoom.String())
	return strings.Join(parts, " ")
}
