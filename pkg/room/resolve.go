// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package room

import (
	"fmt"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// EmptyRoomName is the display name of a room with no other joined members
// and no explicit name or alias.
const EmptyRoomName = "EMPTY ROOM"

// Name computes a room's display name from its state-event set.
// Precedence: explicit m.room.name event, then m.room.canonical_alias, then
// a name derived from the joined members excluding self.
func Name(events []Event, self id.UserID) string {
	for _, ev := range events {
		if ev.Type == event.StateRoomName && ev.Content.Name != "" {
			return ev.Content.Name
		}
	}
	for _, ev := range events {
		if ev.Type == event.StateCanonicalAlias && ev.Content.Alias != "" {
			return ev.Content.Alias
		}
	}

	others := Others(events, self)
	switch len(others) {
	case 0:
		return EmptyRoomName
	case 1:
		return others[0].Alias()
	case 2:
		return fmt.Sprintf("%s and %s", others[0].Alias(), others[1].Alias())
	default:
		return fmt.Sprintf("%s and Others", others[0].Alias())
	}
}

// AvatarMXC returns the mxc:// URI to thumbnail for the room's avatar, or an
// empty string when the caller should fall back to a generated identicon.
// An explicit m.room.avatar event wins; otherwise a room with exactly one
// other joined member borrows that member's avatar.
func AvatarMXC(events []Event, self id.UserID) string {
	for _, ev := range events {
		if ev.Type == event.StateRoomAvatar && ev.Content.URL != "" {
			return ev.Content.URL
		}
	}
	if others := Others(events, self); len(others) == 1 {
		return others[0].AvatarURL
	}
	return ""
}

// Topic returns the room topic from the state-event set, or an empty string.
func Topic(events []Event) string {
	for _, ev := range events {
		if ev.Type == event.StateTopic && ev.Content.Topic != "" {
			return ev.Content.Topic
		}
	}
	return ""
}

// Members extracts the current joined members from a membership event set.
// Membership events are applied in event order: only entries whose target is
// currently in the join state count, and a later event for the same user
// supersedes an earlier one. The wire feed already encodes ordering, so no
// timestamp comparison is needed.
func Members(events []Event) []Member {
	state := make(map[id.UserID]Member)
	// seen survives a leave so a rejoin keeps the user's original position
	// instead of appending a second order entry.
	seen := make(map[id.UserID]bool)
	var order []id.UserID
	for _, ev := range events {
		if ev.Type != event.StateMember {
			continue
		}
		uid := ev.Sender
		if ev.StateKey != nil && *ev.StateKey != "" {
			uid = id.UserID(*ev.StateKey)
		}
		if ev.Content.Membership != event.MembershipJoin {
			delete(state, uid)
			continue
		}
		if !seen[uid] {
			seen[uid] = true
			order = append(order, uid)
		}
		state[uid] = Member{
			UserID:      uid,
			Displayname: ev.Content.Displayname,
			AvatarURL:   ev.Content.AvatarURL,
		}
	}

	members := make([]Member, 0, len(state))
	for _, uid := range order {
		if m, ok := state[uid]; ok {
			members = append(members, m)
		}
	}
	return members
}

// Others returns the joined members excluding the given user.
func Others(events []Event, self id.UserID) []Member {
	var others []Member
	for _, m := range Members(events) {
		if m.UserID != self {
			others = append(others, m)
		}
	}
	return others
}
