// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"maunium.net/go/mautrix/id"
)

type loginRequest struct {
	Type     string `json:"type"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
}

type registerRequest struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Auth     *struct {
		Type string `json:"type"`
	} `json:"auth,omitempty"`
}

type tokenResponse struct {
	UserID      id.UserID `json:"user_id"`
	AccessToken string    `json:"access_token"`
}

// Login authenticates with a username and password against the given server.
// On success the session adopts the new credentials and all pagination
// cursors reset. A 4xx from the server surfaces as ErrAuthRejected.
func (c *Client) Login(ctx context.Context, user, password, server string) (id.UserID, string, error) {
	if err := c.session.SetServer(server); err != nil {
		return "", "", err
	}
	body := loginRequest{Type: "m.login.password", User: user, Password: password}
	return c.finishAuth(ctx, c.apiURL(nil, "login"), body)
}

// RegisterGuest registers an anonymous guest account on the given server.
func (c *Client) RegisterGuest(ctx context.Context, server string) (id.UserID, string, error) {
	if err := c.session.SetServer(server); err != nil {
		return "", "", err
	}
	u := c.apiURL(url.Values{"kind": []string{"guest"}}, "register")
	return c.finishAuth(ctx, u, struct{}{})
}

// RegisterUser creates a new account with the given username and password.
func (c *Client) RegisterUser(ctx context.Context, user, password, server string) (id.UserID, string, error) {
	if err := c.session.SetServer(server); err != nil {
		return "", "", err
	}
	body := registerRequest{Username: user, Password: password}
	body.Auth = &struct {
		Type string `json:"type"`
	}{Type: "m.login.dummy"}
	u := c.apiURL(url.Values{"kind": []string{"user"}}, "register")
	return c.finishAuth(ctx, u, body)
}

func (c *Client) finishAuth(ctx context.Context, u *url.URL, body any) (id.UserID, string, error) {
	var res tokenResponse
	if err := c.jsonReq(ctx, "POST", u, body, &res); err != nil {
		// Any 4xx on an auth endpoint is a rejection: a bad login type or
		// a username already in use comes back as a 400.
		var herr *httpError
		if errors.As(err, &herr) && herr.status >= 400 && herr.status < 500 && !errors.Is(err, ErrAuthRejected) {
			err = fmt.Errorf("%w: %v", ErrAuthRejected, err)
		}
		return "", "", err
	}
	if res.UserID == "" || res.AccessToken == "" {
		return "", "", fmt.Errorf("%w: token response missing user_id or access_token", ErrMalformedResponse)
	}
	c.session.SetCredentials(res.UserID, res.AccessToken)
	c.log.Info().Str("user_id", string(res.UserID)).Msg("Authenticated")
	return res.UserID, res.AccessToken, nil
}
