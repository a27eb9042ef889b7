// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"context"
	"net/url"
	"sort"

	"maunium.net/go/mautrix/id"

	"github.com/aiku/chime/pkg/room"
)

// DirectoryQuery selects one of the public-room search variants: unfiltered,
// text-filtered, or scoped to a third-party protocol instance. Continue
// reuses the cursor from the previous search instead of starting over.
type DirectoryQuery struct {
	Search       string
	ThirdPartyID string
	Continue     bool
}

type publicRoomsRequest struct {
	Limit                int                `json:"limit"`
	Filter               *publicRoomsFilter `json:"filter,omitempty"`
	ThirdPartyInstanceID string             `json:"third_party_instance_id,omitempty"`
	Since                string             `json:"since,omitempty"`
}

type publicRoomsFilter struct {
	SearchTerm string `json:"generic_search_term"`
}

type publicRoomsResponse struct {
	Chunk     []publicRoom `json:"chunk"`
	NextBatch string       `json:"next_batch"`
}

type publicRoom struct {
	RoomID         id.RoomID `json:"room_id"`
	Name           string    `json:"name"`
	Topic          string    `json:"topic"`
	CanonicalAlias string    `json:"canonical_alias"`
	JoinedMembers  int       `json:"num_joined_members"`
	WorldReadable  bool      `json:"world_readable"`
	GuestCanJoin   bool      `json:"guest_can_join"`
	AvatarURL      string    `json:"avatar_url"`
}

// SearchDirectory runs one page of a public-room directory search and
// stores the response's continuation token for the next Continue query.
// Directory rooms are built from the server's summary fields: unjoined rooms
// have no visible state-event set to derive from. Avatars are thumbnailed
// into the cache when advertised; failures leave the path empty.
func (c *Client) SearchDirectory(ctx context.Context, q DirectoryQuery) ([]room.Room, error) {
	body := publicRoomsRequest{Limit: 20}
	if q.Search != "" {
		body.Filter = &publicRoomsFilter{SearchTerm: q.Search}
	}
	body.ThirdPartyInstanceID = q.ThirdPartyID
	if q.Continue {
		body.Since = c.session.DirectoryCursor()
	}

	var res publicRoomsResponse
	if err := c.jsonReq(ctx, "POST", c.apiURL(nil, "publicRooms"), body, &res); err != nil {
		return nil, err
	}
	c.session.SetDirectoryCursor(res.NextBatch)

	rooms := make([]room.Room, 0, len(res.Chunk))
	for _, pr := range res.Chunk {
		name := pr.Name
		if name == "" {
			name = pr.CanonicalAlias
		}
		r := room.Room{
			ID:            pr.RoomID,
			Name:          name,
			Topic:         pr.Topic,
			Alias:         pr.CanonicalAlias,
			Members:       pr.JoinedMembers,
			WorldReadable: pr.WorldReadable,
			GuestCanJoin:  pr.GuestCanJoin,
		}
		if pr.AvatarURL != "" {
			if path, err := c.media.Resolve(ctx, c.session.Server(), pr.AvatarURL, true, 64, 64); err == nil {
				r.Avatar = path
			}
		}
		rooms = append(rooms, r)
	}
	return rooms, nil
}

type protocolsResponse map[string]struct {
	Instances []struct {
		Desc       string `json:"desc"`
		InstanceID string `json:"instance_id"`
	} `json:"instances"`
}

// Protocols lists the third-party protocol instances the server bridges to.
// The list always starts with a synthetic entry for the homeserver itself,
// identified by an empty instance id and labelled with the server host.
func (c *Client) Protocols(ctx context.Context) ([]room.Protocol, error) {
	u := c.session.Server().JoinPath("/_matrix/client/unstable/thirdparty/protocols")
	if _, token := c.session.Credentials(); token != "" {
		u.RawQuery = url.Values{"access_token": []string{token}}.Encode()
	}

	var res protocolsResponse
	if err := c.jsonReq(ctx, "GET", u, nil, &res); err != nil {
		return nil, err
	}

	protocols := []room.Protocol{{ID: "", Desc: c.session.Server().Host}}
	var rest []room.Protocol
	for _, p := range res {
		for _, inst := range p.Instances {
			rest = append(rest, room.Protocol{ID: inst.InstanceID, Desc: inst.Desc})
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Desc < rest[j].Desc })
	return append(protocols, rest...), nil
}
