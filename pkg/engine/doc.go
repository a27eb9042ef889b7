// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package engine is the core of a Matrix client: session management,
// long-poll synchronization, room history pagination, message sending, and
// public-room directory search, driven through a command/response channel
// pair.
//
// # Core Types
//
// [Engine] owns the dispatch loop: callers Submit commands and drain the
// Responses channel. Each command runs on its own worker goroutine, so
// multiple protocol operations execute in parallel while the loop stays
// responsive. Completions may arrive out of order.
//
// [Session] is the single mutable store of authentication and pagination
// state, shared by the workers behind a mutex.
//
// [Client] maps each logical protocol operation onto one HTTP
// request/response cycle against the homeserver's client-server API and
// decodes the payload into typed results.
//
// # Error Handling
//
// Operations fail with one of the sentinel errors in this package (or
// media.ErrInvalidReference); the dispatch loop converts failures into
// error-carrying responses and keeps running. Nothing is retried
// automatically: the sync long-poll loop only re-arms itself on success, and
// the consumer decides whether to resume after a failure.
package engine
