// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"context"
	"errors"

	"maunium.net/go/mautrix/id"

	"github.com/aiku/chime/pkg/room"
)

// RoomState fetches a room's complete state-event set.
func (c *Client) RoomState(ctx context.Context, roomID id.RoomID) ([]room.Event, error) {
	var events []room.Event
	u := c.apiURL(nil, "rooms", string(roomID), "state")
	if err := c.jsonReq(ctx, "GET", u, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// RoomTopic looks up the single m.room.topic state value. A room with no
// topic set returns an empty string, not an error.
func (c *Client) RoomTopic(ctx context.Context, roomID id.RoomID) (string, error) {
	var res struct {
		Topic string `json:"topic"`
	}
	u := c.apiURL(nil, "rooms", string(roomID), "state", "m.room.topic")
	if err := c.jsonReq(ctx, "GET", u, nil, &res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return res.Topic, nil
}

type membersResponse struct {
	Chunk []room.Event `json:"chunk"`
}

// RoomMembers fetches the joined members of a room. Membership states other
// than join (invite, leave, ban) are dropped.
func (c *Client) RoomMembers(ctx context.Context, roomID id.RoomID) ([]room.Member, error) {
	var res membersResponse
	u := c.apiURL(nil, "rooms", string(roomID), "members")
	if err := c.jsonReq(ctx, "GET", u, nil, &res); err != nil {
		return nil, err
	}
	return room.Members(res.Chunk), nil
}

// RoomDetail assembles the full presentation of a room from its state-event
// set: derived name, topic, avatar path, and member roster. The avatar
// follows the fallback chain of explicit avatar event, then the single other
// member's avatar, then a generated identicon keyed by the room id and name.
func (c *Client) RoomDetail(ctx context.Context, roomID id.RoomID) (room.Room, []room.Member, error) {
	self, _ := c.session.Credentials()
	events, err := c.RoomState(ctx, roomID)
	if err != nil {
		return room.Room{}, nil, err
	}

	name := room.Name(events, self)
	r := room.Room{
		ID:      roomID,
		Name:    name,
		Topic:   room.Topic(events),
		Members: len(room.Members(events)),
	}

	if mxc := room.AvatarMXC(events, self); mxc != "" {
		path, err := c.media.Resolve(ctx, c.session.Server(), mxc, true, 64, 64)
		if err != nil {
			c.log.Debug().Err(err).Str("room_id", string(roomID)).Msg("Room avatar download failed")
		} else {
			r.Avatar = path
		}
	}
	if r.Avatar == "" {
		path, err := c.media.Identicon(string(roomID), name)
		if err != nil {
			return room.Room{}, nil, err
		}
		r.Avatar = path
	}

	return r, room.Others(events, self), nil
}
