// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"fmt"
	"net/url"
	"sync"

	"go.mau.fi/util/random"
	"maunium.net/go/mautrix/id"
)

// DefaultServer is the homeserver used when none is configured.
const DefaultServer = "https://matrix.org"

// Session holds the mutable authentication and pagination state shared by
// all request workers. Every accessor takes the mutex; there are no
// transactions spanning multiple fields, so concurrent workers may interleave
// between calls. A fresh login resets every cursor, which also heals any
// inconsistency left by a failed mid-update worker.
type Session struct {
	mu sync.Mutex

	userID      id.UserID
	accessToken string
	server      *url.URL

	since     string // sync cursor, empty means initial sync
	msgStart  string // newest-edge cursor of the message window
	msgEnd    string // oldest-edge cursor of the message window
	dirCursor string // directory search continuation
	room      id.RoomID

	txnPrefix string
	txnSeq    uint64
}

// NewSession creates an anonymous session pointed at the default server.
func NewSession() *Session {
	s := &Session{txnPrefix: "chime" + random.String(8)}
	s.server, _ = url.Parse(DefaultServer)
	return s
}

// SetServer parses and stores the homeserver origin.
func (s *Session) SetServer(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: invalid server URL %q", ErrBackend, raw)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server = u
	return nil
}

// Server returns the homeserver origin.
func (s *Session) Server() *url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server
}

// SetCredentials stores a fresh user id and access token and resets all
// pagination cursors, as every successful authentication does.
func (s *Session) SetCredentials(userID id.UserID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.accessToken = token
	s.since = ""
	s.msgStart = ""
	s.msgEnd = ""
	s.dirCursor = ""
	s.room = ""
}

// Credentials returns the current user id and access token.
func (s *Session) Credentials() (id.UserID, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.accessToken
}

// LoggedIn reports whether the session holds an access token.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != ""
}

// Since returns the sync cursor.
func (s *Session) Since() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.since
}

// SetSince advances the sync cursor.
func (s *Session) SetSince(since string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.since = since
}

// MessageWindow returns the current room's message pagination cursors.
func (s *Session) MessageWindow() (start, end string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgStart, s.msgEnd
}

// SetMessageWindow stores both message pagination cursors.
func (s *Session) SetMessageWindow(start, end string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgStart = start
	s.msgEnd = end
}

// SetOlderCursor advances only the oldest-edge cursor after an older-page
// fetch; the newest edge stays where the initial fetch put it.
func (s *Session) SetOlderCursor(end string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgEnd = end
}

// DirectoryCursor returns the directory search continuation token.
func (s *Session) DirectoryCursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirCursor
}

// SetDirectoryCursor stores the directory search continuation token.
func (s *Session) SetDirectoryCursor(cursor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirCursor = cursor
}

// Room returns the currently selected room.
func (s *Session) Room() id.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// SetRoom selects a room and resets the message window cursors.
func (s *Session) SetRoom(roomID id.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = roomID
	s.msgStart = ""
	s.msgEnd = ""
}

// NextTxnID returns a transaction id that is strictly increasing for the
// lifetime of the session, so the server can deduplicate retried sends.
func (s *Session) NextTxnID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txnSeq++
	return fmt.Sprintf("%s-%d", s.txnPrefix, s.txnSeq)
}
