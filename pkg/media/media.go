// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package media downloads and caches remote Matrix media and synthesizes
// deterministic identicon placeholders when no avatar exists.
//
// The cache is content-addressed by media id and never invalidated: once a
// file exists at the computed path, the network is not touched again for
// that id. Concurrent resolves of the same id are collapsed into a single
// download.
package media

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/c-pro/geche"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"maunium.net/go/mautrix/id"
)

// ErrInvalidReference is returned when a media reference does not match the
// mxc://origin/media_id pattern.
var ErrInvalidReference = errors.New("invalid media reference")

// Resolver downloads media into a local cache directory.
type Resolver struct {
	http  *http.Client
	dir   string
	memo  geche.Geche[string, string]
	group singleflight.Group
	log   zerolog.Logger
}

// NewResolver creates a Resolver caching into dir, creating it if needed.
func NewResolver(dir string, log zerolog.Logger) (*Resolver, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create media cache dir: %w", err)
	}
	return &Resolver{
		http: &http.Client{Timeout: 30 * time.Second},
		dir:  dir,
		memo: geche.NewMapCache[string, string](),
		log:  log.With().Str("component", "media").Logger(),
	}, nil
}

// Dir returns the cache directory backing this resolver.
func (r *Resolver) Dir() string {
	return r.dir
}

// Resolve fetches the media behind an mxc:// reference and returns the local
// cache path. With thumb set, the server-side thumbnail endpoint is used with
// the given dimensions; otherwise the full content is downloaded. Resolve is
// idempotent: an already cached media id is returned without a network call.
func (r *Resolver) Resolve(ctx context.Context, base *url.URL, mxc string, thumb bool, width, height int) (string, error) {
	uri, err := id.ParseContentURI(mxc)
	if err != nil || uri.Homeserver == "" || uri.FileID == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidReference, mxc)
	}

	fname := filepath.Join(r.dir, uri.FileID)
	if path, err := r.memo.Get(fname); err == nil {
		return path, nil
	}
	if _, err := os.Stat(fname); err == nil {
		r.memo.Set(fname, fname)
		return fname, nil
	}

	var remote *url.URL
	if thumb {
		remote = base.JoinPath("/_matrix/media/r0/thumbnail", uri.Homeserver, uri.FileID)
		q := url.Values{}
		q.Set("width", strconv.Itoa(width))
		q.Set("height", strconv.Itoa(height))
		q.Set("method", "scale")
		remote.RawQuery = q.Encode()
	} else {
		remote = base.JoinPath("/_matrix/media/r0/download", uri.Homeserver, uri.FileID)
	}

	// Collapse concurrent requests for the same cache file.
	path, err, _ := r.group.Do(fname, func() (any, error) {
		if err := r.download(ctx, remote, fname); err != nil {
			return "", err
		}
		r.memo.Set(fname, fname)
		return fname, nil
	})
	if err != nil {
		return "", err
	}
	return path.(string), nil
}

func (r *Resolver) download(ctx context.Context, remote *url.URL, fname string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build media request: %w", err)
	}
	res, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("media download failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("media download failed: status %d", res.StatusCode)
	}

	buf, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read media body: %w", err)
	}
	if err := os.WriteFile(fname, buf, 0o600); err != nil {
		return fmt.Errorf("failed to write media cache file: %w", err)
	}
	r.log.Debug().Str("url", remote.Redacted()).Str("path", fname).Msg("Cached media")
	return nil
}

// seedHash is the stable hash used for identicon color and file naming.
func seedHash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
