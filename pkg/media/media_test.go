// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"go.mau.fi/util/exerrors"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}
	return r
}

// TestResolve_Idempotent verifies two consecutive resolves of the same
// reference return the same path and the second makes no network call.
func TestResolve_Idempotent(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("image-bytes"))
	}))
	t.Cleanup(srv.Close)
	base := exerrors.Must(url.Parse(srv.URL))

	r := newTestResolver(t)
	first, err := r.Resolve(context.Background(), base, "mxc://example.org/abc123", false, 0, 0)
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	second, err := r.Resolve(context.Background(), base, "mxc://example.org/abc123", false, 0, 0)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if first != second {
		t.Fatalf("paths differ: %q vs %q", first, second)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("server saw %d calls, want 1", got)
	}
	if b, err := os.ReadFile(first); err != nil || string(b) != "image-bytes" {
		t.Fatalf("cache file content = %q, err = %v", b, err)
	}
}

// TestResolve_ThumbnailURL verifies the thumbnail endpoint and scale
// parameters are used when a thumbnail is requested.
func TestResolve_ThumbnailURL(t *testing.T) {
	t.Parallel()
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte("thumb"))
	}))
	t.Cleanup(srv.Close)
	base := exerrors.Must(url.Parse(srv.URL))

	r := newTestResolver(t)
	if _, err := r.Resolve(context.Background(), base, "mxc://example.org/pic9", true, 64, 64); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if gotPath != "/_matrix/media/r0/thumbnail/example.org/pic9" {
		t.Fatalf("path = %q", gotPath)
	}
	want := url.Values{"width": {"64"}, "height": {"64"}, "method": {"scale"}}.Encode()
	if gotQuery != want {
		t.Fatalf("query = %q, want %q", gotQuery, want)
	}
}

// TestResolve_InvalidReference verifies malformed references fail with
// ErrInvalidReference and no network traffic.
func TestResolve_InvalidReference(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for invalid references")
	}))
	t.Cleanup(srv.Close)
	base := exerrors.Must(url.Parse(srv.URL))

	r := newTestResolver(t)
	for _, ref := range []string{"", "http://example.org/x", "mxc://", "mxc://hostonly"} {
		if _, err := r.Resolve(context.Background(), base, ref, false, 0, 0); !errors.Is(err, ErrInvalidReference) {
			t.Fatalf("Resolve(%q) error = %v, want ErrInvalidReference", ref, err)
		}
	}
}

// TestIdenticon_Deterministic verifies the same seed and label always
// produce a byte-identical file.
func TestIdenticon_Deterministic(t *testing.T) {
	t.Parallel()
	r1 := newTestResolver(t)
	r2 := newTestResolver(t)

	p1, err := r1.Identicon("!room:example.org", "General")
	if err != nil {
		t.Fatalf("identicon failed: %v", err)
	}
	p2, err := r2.Identicon("!room:example.org", "General")
	if err != nil {
		t.Fatalf("identicon failed: %v", err)
	}

	b1 := exerrors.Must(os.ReadFile(p1))
	b2 := exerrors.Must(os.ReadFile(p2))
	if !bytes.Equal(b1, b2) {
		t.Fatal("identicon bytes differ for identical inputs")
	}

	// Repeat render through the cache path returns the same file.
	p3, err := r1.Identicon("!room:example.org", "General")
	if err != nil {
		t.Fatalf("identicon failed: %v", err)
	}
	if p3 != p1 {
		t.Fatalf("cache path changed: %q vs %q", p3, p1)
	}
}

// TestIdenticon_PaletteSpread verifies distinct seeds spread across the
// palette: 50 seeds should hit at least 3 distinct background colors.
func TestIdenticon_PaletteSpread(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)
	colors := make(map[uint32]bool)
	for i := 0; i < 50; i++ {
		path, err := r.Identicon(fmt.Sprintf("!room%d:example.org", i), "R")
		if err != nil {
			t.Fatalf("identicon failed: %v", err)
		}
		f := exerrors.Must(os.Open(path))
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("failed to decode identicon: %v", err)
		}
		cr, cg, cb, _ := img.At(0, 0).RGBA()
		colors[(cr>>8)<<16|(cg>>8)<<8|(cb>>8)] = true
	}
	if len(colors) < 3 {
		t.Fatalf("50 seeds produced only %d distinct colors", len(colors))
	}
}

// TestIdenticon_Labels verifies the sigil skip, uppercasing, and the empty
// label fallback all pick distinct deterministic files.
func TestIdenticon_Labels(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)

	hash, err := r.Identicon("seed", "#general")
	if err != nil {
		t.Fatalf("identicon failed: %v", err)
	}
	upper, err := r.Identicon("seed", "General")
	if err != nil {
		t.Fatalf("identicon failed: %v", err)
	}
	// "#general" and "General" both draw 'G', but the label participates in
	// the file key, so the paths differ while the pixels match.
	if hash == upper {
		t.Fatalf("distinct labels mapped to the same path %q", hash)
	}
	b1 := exerrors.Must(os.ReadFile(hash))
	b2 := exerrors.Must(os.ReadFile(upper))
	if !bytes.Equal(b1, b2) {
		t.Fatal("'#general' and 'General' should render identical glyphs")
	}

	if _, err := r.Identicon("seed", ""); err != nil {
		t.Fatalf("empty label should render the fallback glyph: %v", err)
	}
}
