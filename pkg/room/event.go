// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package room

import (
	"time"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Event is a single state or timeline event as delivered on the wire.
// All content fields are optional; absent fields decode to their zero value
// and the resolution code treats zero values as "not present".
type Event struct {
	Type     event.Type  `json:"type"`
	Sender   id.UserID   `json:"sender"`
	StateKey *string     `json:"state_key,omitempty"`
	ID       id.EventID  `json:"event_id,omitempty"`
	Content  Content     `json:"content"`
	Age      int64       `json:"age,omitempty"` // r0-era top-level age, milliseconds
	Unsigned EventExtras `json:"unsigned,omitempty"`
}

// EventExtras is the unsigned metadata block attached by the server.
type EventExtras struct {
	Age int64 `json:"age,omitempty"`
}

// Content is the union of the content fields this engine reads. Matrix event
// content is schemaless on the wire; decoding into one flat struct with
// omitted-field defaults replaces the dynamic key lookups a loosely typed
// client would do.
type Content struct {
	// m.room.name
	Name string `json:"name,omitempty"`
	// m.room.canonical_alias
	Alias string `json:"alias,omitempty"`
	// m.room.topic
	Topic string `json:"topic,omitempty"`
	// m.room.avatar
	URL string `json:"url,omitempty"`
	// m.room.member
	Membership  event.Membership `json:"membership,omitempty"`
	Displayname string           `json:"displayname,omitempty"`
	AvatarURL   string           `json:"avatar_url,omitempty"`
	// m.room.message
	MsgType string       `json:"msgtype,omitempty"`
	Body    string       `json:"body,omitempty"`
	Info    *ContentInfo `json:"info,omitempty"`
}

// ContentInfo is the nested info block of media messages.
type ContentInfo struct {
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// ageDelta returns the event's relative age in milliseconds, preferring the
// unsigned block over the historic top-level field.
func (ev Event) ageDelta() int64 {
	if ev.Unsigned.Age != 0 {
		return ev.Unsigned.Age
	}
	return ev.Age
}

// ParseMessage converts a timeline event into a Message. The timestamp is
// derived from the event's relative age delta against the local clock; an
// event with no age information gets the current time.
func ParseMessage(roomID id.RoomID, ev Event) Message {
	return Message{
		Sender:    ev.Sender,
		Type:      ev.Content.MsgType,
		Body:      ev.Content.Body,
		Timestamp: time.Now().Add(-time.Duration(ev.ageDelta()) * time.Millisecond),
		RoomID:    roomID,
		URL:       ev.Content.URL,
		ID:        ev.ID,
	}
}
