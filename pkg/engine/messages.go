// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"context"
	"net/url"
	"strconv"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/chime/pkg/room"
)

// messagePageLimit is the page size for history fetches.
const messagePageLimit = 40

type messagesResponse struct {
	Start string       `json:"start"`
	End   string       `json:"end"`
	Chunk []room.Event `json:"chunk"`
}

// MessagePage is one page of room history in chronological order, with the
// cursors needed to continue pagination.
type MessagePage struct {
	Start    string // cursor at the newest edge of the page
	End      string // cursor at the oldest edge, feed into the next fetch
	Messages []room.Message
}

// RoomMessages fetches one backward page of room history starting at the
// given cursor (empty means the live edge). The wire delivers the page
// newest-first; it is reversed here so messages come back oldest-first.
func (c *Client) RoomMessages(ctx context.Context, roomID id.RoomID, from string) (MessagePage, error) {
	query := url.Values{}
	query.Set("dir", "b")
	query.Set("limit", strconv.Itoa(messagePageLimit))
	if from != "" {
		query.Set("from", from)
	}

	var res messagesResponse
	u := c.apiURL(query, "rooms", string(roomID), "messages")
	if err := c.jsonReq(ctx, "GET", u, nil, &res); err != nil {
		return MessagePage{}, err
	}

	var msgs []room.Message
	for _, ev := range res.Chunk {
		if ev.Type != event.EventMessage {
			continue
		}
		msgs = append(msgs, c.parseMessage(ctx, roomID, ev))
	}
	reverseMessages(msgs)

	return MessagePage{Start: res.Start, End: res.End, Messages: msgs}, nil
}

type sendRequest struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

type sendResponse struct {
	EventID id.EventID `json:"event_id"`
}

// SendMessage sends a text message to a room. Each send gets a strictly
// increasing per-session transaction id so the server can deduplicate a
// retried request.
func (c *Client) SendMessage(ctx context.Context, roomID id.RoomID, body string) (id.EventID, error) {
	txn := c.session.NextTxnID()
	u := c.apiURL(nil, "rooms", string(roomID), "send", "m.room.message", txn)
	var res sendResponse
	if err := c.jsonReq(ctx, "PUT", u, sendRequest{MsgType: "m.text", Body: body}, &res); err != nil {
		return "", err
	}
	return res.EventID, nil
}

func reverseMessages(msgs []room.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
