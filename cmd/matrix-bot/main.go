// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/acheong08/matrix-bot/lib/clock"
	"github.com/acheong08/matrix-bot/lib/config"
	"github.com/acheong08/matrix-bot/lib/state"
	"github.com/acheong08/matrix-bot/messaging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		tunablesPath string
		logLevel     string
	)
	pflag.StringVar(&tunablesPath, "tunables", "", "optional YAML tunables file (state file path, sync timeout, room display names)")
	pflag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pflag.Parse()

	logger := newLogger(logLevel)
	slog.SetDefault(logger)

	cfg, err := config.Load(tunablesPath)
	if err != nil {
		return err
	}
	defer cfg.Password.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.HomeserverURL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	session, err := client.Login(ctx, cfg.UserID.String(), cfg.Password)
	if err != nil {
		return fmt.Errorf("login as %s: %w", cfg.UserID, err)
	}
	defer session.Close()
	cfg.Password.Close()

	logger.Info("logged in",
		"user_id", session.UserID(),
		"device_id", session.DeviceID(),
		"homeserver", cfg.HomeserverURL,
	)

	record, err := state.Load(cfg.StateFile)
	if err != nil {
		return err
	}

	if !record.Provisioned() {
		logger.Info("no provisioned rooms in state file, provisioning")
		if err := provision(ctx, session, cfg, record, logger); err != nil {
			return fmt.Errorf("provisioning failed: %w", err)
		}
	}
	logger.Info("rooms ready", "rooms", describeRooms(record))

	botClock := clock.Real()
	token := uuid.NewString()
	bot := newBot(session, cfg, record, botClock, token, logger)

	// The handshake marker goes out before the first sync pull. It
	// must be a real delivered event: the bot stays gated until the
	// marker comes back through /sync, which proves the stream has
	// caught up past all replayed history.
	if _, err := session.SendMessage(ctx, record.LogRoom, messaging.NewTextMessage(handshakePrefix+token)); err != nil {
		return fmt.Errorf("sending handshake marker: %w", err)
	}
	logger.Info("handshake marker sent", "room_id", record.LogRoom)

	stream := messaging.NewStream(session, messaging.StreamOptions{
		Timeout:       cfg.SyncTimeout,
		TimelineTypes: []string{"m.room.message"},
		Clock:         botClock,
		Logger:        logger,
	})

	for {
		response, err := stream.Next(ctx)
		if err != nil {
			// Only context cancellation reaches here; transient sync
			// errors are retried inside the stream.
			logger.Info("shutting down", "reason", ctx.Err())
			return nil
		}
		if terminate := bot.processSync(ctx, response); terminate {
			logger.Info("exit command received, terminating")
			return nil
		}
	}
}

// newLogger builds the process-wide structured logger. JSON on stderr,
// level from the flag (unknown values fall back to info).
func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel,
	}))
}
