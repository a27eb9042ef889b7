// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"context"
)

type profileResponse struct {
	Displayname string `json:"displayname"`
	AvatarURL   string `json:"avatar_url"`
}

// DisplayName looks up the session user's profile display name.
func (c *Client) DisplayName(ctx context.Context) (string, error) {
	uid, _ := c.session.Credentials()
	var res profileResponse
	u := c.apiURL(nil, "profile", string(uid), "displayname")
	if err := c.jsonReq(ctx, "GET", u, nil, &res); err != nil {
		return "", err
	}
	return res.Displayname, nil
}

// Avatar resolves the session user's avatar to a local cache path. When the
// profile has no avatar_url set, or the profile lookup itself fails, a
// deterministic identicon keyed by the user id stands in.
func (c *Client) Avatar(ctx context.Context) (string, error) {
	uid, _ := c.session.Credentials()
	seed := string(uid)

	var res profileResponse
	u := c.apiURL(nil, "profile", string(uid))
	if err := c.jsonReq(ctx, "GET", u, nil, &res); err != nil {
		c.log.Debug().Err(err).Msg("Profile lookup failed, using identicon")
		return c.media.Identicon(seed, fallbackInitial(seed))
	}
	if res.AvatarURL == "" {
		label := res.Displayname
		if label == "" {
			label = "@"
		}
		return c.media.Identicon(seed, label)
	}
	return c.media.Resolve(ctx, c.session.Server(), res.AvatarURL, true, 64, 64)
}

// fallbackInitial is the identicon label for a user with no known display
// name: the first character after the @ sigil.
func fallbackInitial(uid string) string {
	if len(uid) >= 2 {
		return uid[1:2]
	}
	return uid
}
