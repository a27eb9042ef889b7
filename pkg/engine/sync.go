// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"go.mau.fi/util/ptr"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/chime/pkg/room"
)

// syncLongPollMS is the server-side wait on incremental sync requests.
const syncLongPollMS = 30000

type syncResponse struct {
	NextBatch string `json:"next_batch"`
	Rooms     struct {
		Join map[id.RoomID]joinedRoom `json:"join"`
	} `json:"rooms"`
}

type joinedRoom struct {
	State struct {
		Events []room.Event `json:"events"`
	} `json:"state"`
	Timeline struct {
		Events    []room.Event `json:"events"`
		PrevBatch string       `json:"prev_batch"`
	} `json:"timeline"`
}

// syncFilter is the inline filter sent with the initial sync: no timeline,
// room-level state events only.
type syncFilter struct {
	Room struct {
		Timeline struct {
			Limit *int `json:"limit,omitempty"`
		} `json:"timeline"`
		State struct {
			Types []string `json:"types,omitempty"`
		} `json:"state"`
	} `json:"room"`
}

// SyncResult is one sync cycle's payload. Initial syncs carry the full
// joined-room list; incremental syncs carry only new timeline messages.
type SyncResult struct {
	Initial  bool
	Rooms    []room.Room
	Messages []room.Message
}

// Sync performs one synchronization cycle and advances the session's sync
// cursor to the response's continuation token. With an empty cursor it
// fetches the joined-room list (zero timeline depth, room state only) and
// derives each room's display name; with a non-empty cursor it long-polls up
// to 30s and returns new messages for rooms with activity.
func (c *Client) Sync(ctx context.Context) (SyncResult, error) {
	self, _ := c.session.Credentials()
	since := c.session.Since()

	query := url.Values{}
	if since == "" {
		var filter syncFilter
		filter.Room.Timeline.Limit = ptr.Ptr(0)
		filter.Room.State.Types = []string{"m.room.*"}
		raw, err := json.Marshal(&filter)
		if err != nil {
			return SyncResult{}, fmt.Errorf("%w: failed to encode sync filter: %v", ErrBackend, err)
		}
		query.Set("filter", string(raw))
	} else {
		query.Set("since", since)
		query.Set("timeout", strconv.Itoa(syncLongPollMS))
	}

	var res syncResponse
	if err := c.jsonReq(ctx, "GET", c.apiURL(query, "sync"), nil, &res); err != nil {
		return SyncResult{}, err
	}
	if res.NextBatch == "" {
		return SyncResult{}, fmt.Errorf("%w: sync response missing next_batch", ErrMalformedResponse)
	}
	c.session.SetSince(res.NextBatch)

	if since == "" {
		return SyncResult{Initial: true, Rooms: c.roomsFromSync(res, self)}, nil
	}
	return SyncResult{Messages: c.messagesFromSync(ctx, res)}, nil
}

// roomsFromSync builds the joined-room list with names derived from each
// room's state-event set. Avatars stay empty here; they are resolved lazily
// when a room is selected.
func (c *Client) roomsFromSync(res syncResponse, self id.UserID) []room.Room {
	rooms := make([]room.Room, 0, len(res.Rooms.Join))
	for roomID, joined := range res.Rooms.Join {
		rooms = append(rooms, room.Room{
			ID:      roomID,
			Name:    room.Name(joined.State.Events, self),
			Members: len(room.Members(joined.State.Events)),
		})
	}
	return rooms
}

// messagesFromSync collects new timeline messages across all rooms with
// activity, resolving image thumbnails as it goes.
func (c *Client) messagesFromSync(ctx context.Context, res syncResponse) []room.Message {
	var msgs []room.Message
	for roomID, joined := range res.Rooms.Join {
		for _, ev := range joined.Timeline.Events {
			if ev.Type != event.EventMessage {
				continue
			}
			msgs = append(msgs, c.parseMessage(ctx, roomID, ev))
		}
	}
	return msgs
}

// parseMessage converts one timeline event, downloading the thumbnail of
// image messages into the media cache. A failed thumbnail download leaves
// the field empty rather than failing the message.
func (c *Client) parseMessage(ctx context.Context, roomID id.RoomID, ev room.Event) room.Message {
	msg := room.ParseMessage(roomID, ev)
	if msg.Type == "m.image" && ev.Content.Info != nil && ev.Content.Info.ThumbnailURL != "" {
		path, err := c.media.Resolve(ctx, c.session.Server(), ev.Content.Info.ThumbnailURL, false, 0, 0)
		if err != nil {
			c.log.Debug().Err(err).Str("event_id", string(ev.ID)).Msg("Thumbnail download failed")
		} else {
			msg.Thumb = path
		}
	}
	return msg
}
