// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Matrix-bot is a chat-room automation agent. It logs into a Matrix
// homeserver as a bot account, provisions an administrative space on
// first run (a control room for commands and the configured log room
// re-parented under the space), and then serves a small command
// language typed into the control room:
//
//	!ping                    liveness check, replies "Pong!"
//	!crawl <roomId> <count>  forwards the last <count> messages of a
//	                         joined room into the log room
//	!exit                    persists the replay watermark and shuts
//	                         down cleanly
//
// Configuration arrives through environment variables (SERVER_URL,
// USER_ID, PASSWORD, LOG_ROOM, optionally CONTROLLER) plus an optional
// YAML tunables file; provisioned room IDs and the exit watermark live
// in a JSON state file next to the binary.
//
// Because the initial /sync replays recent timeline history, the bot
// gates command dispatch behind a per-run handshake: it posts a random
// marker to the log room at startup and executes nothing until that
// marker comes back through the sync stream.
package main
