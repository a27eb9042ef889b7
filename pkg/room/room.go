// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package room holds the room-level data model and the pure derivation
// logic that turns a raw Matrix state-event set into display metadata:
// room names, avatar sources, and the current member roster.
//
// Nothing in this package performs I/O. Media references returned here are
// mxc:// URIs; downloading and caching them is the media package's job.
package room

import (
	"time"

	"maunium.net/go/mautrix/id"
)

// Room is a single room as presented to consumers of the engine. Instances
// are constructed when a sync or directory response is decoded and are not
// mutated afterwards; callers own their copy.
type Room struct {
	ID            id.RoomID
	Name          string
	Topic         string
	Avatar        string // local cache path, empty until resolved
	Alias         string
	Members       int
	WorldReadable bool
	GuestCanJoin  bool
}

// Member is a joined room member.
type Member struct {
	UserID      id.UserID
	Displayname string
	AvatarURL   string // mxc:// URI, may be empty
}

// Alias returns the member's display name, falling back to the user id when
// the display name is unset. It never returns an empty string for a member
// with a valid user id.
func (m Member) Alias() string {
	if m.Displayname == "" {
		return string(m.UserID)
	}
	return m.Displayname
}

// Message is a single timeline message.
type Message struct {
	Sender    id.UserID
	Type      string
	Body      string
	Timestamp time.Time
	RoomID    id.RoomID
	URL       string // mxc:// URI for media messages
	Thumb     string // local cache path of the thumbnail, if downloaded
	ID        id.EventID
}

// Protocol is a third-party protocol instance advertised by the homeserver
// directory, or the synthetic homeserver entry itself (empty ID).
type Protocol struct {
	ID   string
	Desc string
}
