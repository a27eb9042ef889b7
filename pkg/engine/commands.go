// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"maunium.net/go/mautrix/id"

	"github.com/aiku/chime/pkg/room"
)

// Command is a request submitted to the engine's dispatch loop. Commands are
// dispatched in submission order, but their completions may arrive out of
// order; each completion surfaces as exactly one Response.
type Command interface{ isCommand() }

// Login authenticates with username and password.
type Login struct{ User, Password, Server string }

// Register creates a new account.
type Register struct{ User, Password, Server string }

// Guest registers an anonymous guest account.
type Guest struct{ Server string }

// GetUsername looks up the session user's display name.
type GetUsername struct{}

// GetAvatar resolves the session user's avatar into the media cache.
type GetAvatar struct{}

// Sync runs one synchronization cycle (initial or incremental depending on
// the sync cursor). The caller re-issues Sync on each SyncResponse to keep
// the long-poll loop running. Only one sync runs at a time; submitting
// another while one is in flight is answered with an error response.
type Sync struct{}

// SetRoom selects the active room, resets its message window, and resolves
// its full presentation (name, topic, avatar, members).
type SetRoom struct{ Room id.RoomID }

// GetRoomMessages fetches the most recent page of the active room's history.
type GetRoomMessages struct{}

// GetRoomMessagesOlder continues backward pagination from the oldest edge of
// the current message window.
type GetRoomMessagesOlder struct{}

// SendMsg sends a text message to the active room.
type SendMsg struct{ Body string }

// GetAvatarAsync resolves a member's avatar (or identicon fallback) off the
// command path.
type GetAvatarAsync struct{ Member room.Member }

// GetThumbAsync downloads a thumbnail for an mxc:// reference.
type GetThumbAsync struct{ MXC string }

// DirectoryProtocols lists third-party protocols for directory filtering.
type DirectoryProtocols struct{}

// DirectorySearch runs one page of a public-room directory search. More
// continues from the previous page's cursor instead of starting over.
type DirectorySearch struct {
	Search       string
	ThirdPartyID string
	More         bool
}

// ShutDown terminates the dispatch loop. This is the only clean exit; the
// response channel closes once in-flight workers have drained.
type ShutDown struct{}

func (Login) isCommand()                {}
func (Register) isCommand()             {}
func (Guest) isCommand()                {}
func (GetUsername) isCommand()          {}
func (GetAvatar) isCommand()            {}
func (Sync) isCommand()                 {}
func (SetRoom) isCommand()              {}
func (GetRoomMessages) isCommand()      {}
func (GetRoomMessagesOlder) isCommand() {}
func (SendMsg) isCommand()              {}
func (GetAvatarAsync) isCommand()       {}
func (GetThumbAsync) isCommand()        {}
func (DirectoryProtocols) isCommand()   {}
func (DirectorySearch) isCommand()      {}
func (ShutDown) isCommand()             {}

// Response is the typed result of one command. A failed operation carries
// its error in the response rather than stopping the loop; Err returns nil
// on success.
type Response interface{ Err() error }

// AuthResponse answers Login, Register, and Guest.
type AuthResponse struct {
	Command Command // the originating auth command
	UserID  id.UserID
	Token   string
	Error   error
}

// UsernameResponse answers GetUsername.
type UsernameResponse struct {
	Name  string
	Error error
}

// AvatarResponse answers GetAvatar with a local cache path.
type AvatarResponse struct {
	Path  string
	Error error
}

// SyncResponse answers Sync. Initial carries the joined-room list; otherwise
// Messages carries new timeline activity.
type SyncResponse struct {
	Initial  bool
	Rooms    []room.Room
	Messages []room.Message
	Error    error
}

// SetRoomResponse answers SetRoom with the room's resolved presentation.
type SetRoomResponse struct {
	Room    room.Room
	Members []room.Member
	Error   error
}

// MessagesResponse answers GetRoomMessages in chronological order.
type MessagesResponse struct {
	Messages []room.Message
	Error    error
}

// OlderMessagesResponse answers GetRoomMessagesOlder. The page arrives
// newest-first so consumers can prepend entries one by one and end up in
// chronological order.
type OlderMessagesResponse struct {
	Messages []room.Message
	Error    error
}

// SendResponse answers SendMsg.
type SendResponse struct {
	EventID id.EventID
	Error   error
}

// MemberAvatarResponse answers GetAvatarAsync.
type MemberAvatarResponse struct {
	UserID id.UserID
	Path   string
	Error  error
}

// ThumbResponse answers GetThumbAsync.
type ThumbResponse struct {
	MXC   string
	Path  string
	Error error
}

// ProtocolsResponse answers DirectoryProtocols.
type ProtocolsResponse struct {
	Protocols []room.Protocol
	Error     error
}

// DirectoryResponse answers DirectorySearch.
type DirectoryResponse struct {
	Rooms []room.Room
	Error error
}

func (r AuthResponse) Err() error          { return r.Error }
func (r UsernameResponse) Err() error      { return r.Error }
func (r AvatarResponse) Err() error        { return r.Error }
func (r SyncResponse) Err() error          { return r.Error }
func (r SetRoomResponse) Err() error       { return r.Error }
func (r MessagesResponse) Err() error      { return r.Error }
func (r OlderMessagesResponse) Err() error { return r.Error }
func (r SendResponse) Err() error          { return r.Error }
func (r MemberAvatarResponse) Err() error  { return r.Error }
func (r ThumbResponse) Err() error         { return r.Error }
func (r ProtocolsResponse) Err() error     { return r.Error }
func (r DirectoryResponse) Err() error     { return r.Error }
