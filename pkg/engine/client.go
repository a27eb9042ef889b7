// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/chime/pkg/media"
)

// clientPrefix is the client-server API version prefix every endpoint hangs
// off of.
const clientPrefix = "/_matrix/client/r0"

// Client translates each logical protocol operation into one HTTP
// request/response cycle and decodes the JSON payload into a typed result.
// It reads and writes shared state only through the Session, so any number
// of concurrent workers may use it.
type Client struct {
	http    *http.Client
	session *Session
	media   *media.Resolver
	log     zerolog.Logger
}

// NewClient creates a protocol client bound to a session and media resolver.
// The HTTP timeout leaves headroom over the 30s sync long-poll.
func NewClient(session *Session, resolver *media.Resolver, log zerolog.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: 45 * time.Second},
		session: session,
		media:   resolver,
		log:     log.With().Str("component", "client").Logger(),
	}
}

// apiURL builds an authenticated client-API URL for the given endpoint path
// segments and query parameters. The access token rides in the query string.
func (c *Client) apiURL(query url.Values, parts ...string) *url.URL {
	u := c.session.Server().JoinPath(clientPrefix).JoinPath(parts...)
	if query == nil {
		query = url.Values{}
	}
	if _, token := c.session.Credentials(); token != "" {
		query.Set("access_token", token)
	}
	u.RawQuery = query.Encode()
	return u
}

// jsonReq performs one request cycle. A non-nil body is sent as JSON; a
// non-nil out receives the decoded 2xx payload. Non-2xx statuses are mapped
// onto the error taxonomy, decoding the standard error body for detail.
func (c *Client) jsonReq(ctx context.Context, method string, u *url.URL, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: failed to encode request: %v", ErrBackend, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %v", ErrBackend, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var werr respError
		_ = json.Unmarshal(raw, &werr)
		c.log.Debug().Int("status", res.StatusCode).Str("url", u.Redacted()).
			Str("errcode", werr.Code).Msg("Request rejected")
		return statusError(res.StatusCode, werr)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return nil
}
