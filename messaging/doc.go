// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the Matrix client-server API for the bot's
// communication needs.
//
// The package provides two core types. [Client] is an unauthenticated
// Matrix client that handles password login, returning an
// authenticated [DirectSession]. Client holds the homeserver URL and
// HTTP transport.
//
// [DirectSession] wraps a Client with an access token for the
// authenticated operations the bot uses: room creation, invites,
// message and state event sending, joined-room listing, paginated
// message history, and incremental /sync. [Session] is the interface
// over those operations consumed by the bot and mocked in tests. The
// access token lives in mmap-backed secret.Buffer memory; callers must
// Close the session to release it.
//
// [Stream] turns the /sync endpoint into a pull-based sequence of
// event batches: the consumer calls Next in a loop, the homeserver
// long-polls, and transient failures are retried internally with
// exponential backoff. The first batch is the initial-sync snapshot
// and may replay recent history; replay suppression is the consumer's
// responsibility.
//
// All API errors are returned as [*MatrixError] with the standard
// Matrix error code (M_FORBIDDEN, M_NOT_FOUND, etc.) and HTTP status
// code; [IsMatrixError] tests for a specific code. Request URLs are
// built by string concatenation rather than url.URL to avoid
// double-encoding of escaped path segments such as room IDs.
package messaging
