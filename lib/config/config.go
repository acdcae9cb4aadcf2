// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package config builds the bot's startup configuration.
//
// Configuration comes from two places, merged once at startup into a
// single Config struct that is passed by reference to every component.
// No component reads the process environment on its own.
//
//   - Required settings come from environment variables: SERVER_URL,
//     USER_ID, PASSWORD, and LOG_ROOM. A missing variable is a startup
//     validation failure that aborts before any network activity.
//     CONTROLLER is optional.
//   - Tunables (state file path, sync timeout, display names) come
//     from an optional YAML file named by the --config flag. A missing
//     file yields the defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/acheong08/matrix-bot/lib/ref"
	"github.com/acheong08/matrix-bot/lib/secret"
)

// Environment variable names for the required settings.
const (
	EnvServerURL  = "SERVER_URL"
	EnvUserID     = "USER_ID"
	EnvPassword   = "PASSWORD"
	EnvLogRoom    = "LOG_ROOM"
	EnvController = "CONTROLLER"
)

// Config is the complete startup configuration. Built once by Load and
// never mutated afterwards.
type Config struct {
	// HomeserverURL is the base URL of the Matrix homeserver.
	HomeserverURL string

	// UserID is the bot account's fully-qualified Matrix user ID.
	UserID ref.UserID

	// Password is the bot account password, held in protected memory.
	// Owned by the caller of Load; close it after login.
	Password *secret.Buffer

	// LogRoom is the pre-existing room that receives log lines. During
	// provisioning it is re-parented under the admin space.
	LogRoom ref.RoomID

	// Controller is an optional external operator identity invited to
	// the admin space after provisioning. Zero when unset.
	Controller ref.UserID

	Tunables
}

// Tunables are the optional YAML-file settings.
type Tunables struct {
	// StateFile is the path of the persisted room/watermark record.
	StateFile string `yaml:"state_file"`

	// SyncTimeout is the server-side long-poll hold per /sync call.
	SyncTimeout time.Duration `yaml:"sync_timeout"`

	// SpaceName is the display name of the administrative space.
	SpaceName string `yaml:"space_name"`

	// ControlRoomName is the display name of the control room.
	ControlRoomName string `yaml:"control_room_name"`

	// LogRoomName is the display name applied to the log room when it
	// is re-parented under the space.
	LogRoomName string `yaml:"log_room_name"`
}

// DefaultTunables returns the tunable defaults used when no YAML file
// is present.
func DefaultTunables() Tunables {
	return Tunables{
		StateFile:       "config.json",
		SyncTimeout:     30 * time.Second,
		SpaceName:       "Bot Admin",
		ControlRoomName: "Control",
		LogRoomName:     "Logs",
	}
}

// Load builds the Config: YAML tunables first (path may be empty or
// name a missing file, both yielding defaults), then the required
// environment variables. The returned Config owns the Password buffer.
func Load(tunablesPath string) (*Config, error) {
	tunables, err := loadTunables(tunablesPath)
	if err != nil {
		return nil, err
	}

	loaded := &Config{Tunables: tunables}

	loaded.HomeserverURL = os.Getenv(EnvServerURL)
	if loaded.HomeserverURL == "" {
		return nil, fmt.Errorf("config: %s is required", EnvServerURL)
	}

	rawUserID := os.Getenv(EnvUserID)
	if rawUserID == "" {
		return nil, fmt.Errorf("config: %s is required", EnvUserID)
	}
	loaded.UserID, err = ref.ParseUserID(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", EnvUserID, err)
	}

	rawLogRoom := os.Getenv(EnvLogRoom)
	if rawLogRoom == "" {
		return nil, fmt.Errorf("config: %s is required", EnvLogRoom)
	}
	loaded.LogRoom, err = ref.ParseRoomID(rawLogRoom)
	if err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", EnvLogRoom, err)
	}

	if rawController := os.Getenv(EnvController); rawController != "" {
		loaded.Controller, err = ref.ParseUserID(rawController)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s: %w", EnvController, err)
		}
	}

	// Password last: moving it into protected memory unsets the
	// variable, and a failed Load should not half-consume the
	// environment.
	loaded.Password, err = secret.FromEnv(EnvPassword)
	if err != nil {
		return nil, fmt.Errorf("config: %s is required: %w", EnvPassword, err)
	}

	return loaded, nil
}

// loadTunables reads the YAML tunables file, applying defaults for the
// file itself (absent is fine) and for any field left unset.
func loadTunables(path string) (Tunables, error) {
	tunables := DefaultTunables()
	if path == "" {
		return tunables, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return tunables, nil
	}
	if err != nil {
		return Tunables{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var fromFile Tunables
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return Tunables{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if fromFile.StateFile != "" {
		tunables.StateFile = fromFile.StateFile
	}
	if fromFile.SyncTimeout > 0 {
		tunables.SyncTimeout = fromFile.SyncTimeout
	}
	if fromFile.SpaceName != "" {
		tunables.SpaceName = fromFile.SpaceName
	}
	if fromFile.ControlRoomName != "" {
		tunables.ControlRoomName = fromFile.ControlRoomName
	}
	if fromFile.LogRoomName != "" {
		tunables.LogRoomName = fromFile.LogRoomName
	}
	return tunables, nil
}
