// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/chime/pkg/media"
)

// endpointCall records one request the fake homeserver served.
type endpointCall struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// messagesPageDef is a canned /messages page keyed by its "from" cursor.
type messagesPageDef struct {
	Start string
	End   string
	Chunk []map[string]any
}

// fakeHS is a test helper wrapping an httptest.Server that simulates the
// slice of the Matrix client-server API this engine talks to. It records
// calls and serves canned responses configured through its public fields.
type fakeHS struct {
	Server *httptest.Server

	mu    sync.Mutex
	calls []endpointCall

	// UserID and Token are handed out by login and register.
	UserID string
	Token  string
	// RejectAuth makes login and register answer 403.
	RejectAuth bool
	// RejectAuthStatus and RejectAuthCode override the rejection shape;
	// zero values mean 403 M_FORBIDDEN.
	RejectAuthStatus int
	RejectAuthCode   string

	// NextBatch is the continuation token returned by the next sync.
	NextBatch string

	// SyncDelay holds every sync response for the duration, simulating the
	// server-side long poll.
	SyncDelay time.Duration
	// State maps room id to the state events of an initial sync.
	State map[string][]map[string]any
	// Timeline maps room id to timeline events of an incremental sync.
	Timeline map[string][]map[string]any

	// Pages maps a "from" cursor (empty for the live edge) to a canned
	// messages page.
	Pages map[string]messagesPageDef

	// Topics maps room id to its m.room.topic value.
	Topics map[string]string

	// Displayname and AvatarMXC drive the profile endpoints.
	Displayname string
	AvatarMXC   string

	// PublicChunk and PublicNext drive /publicRooms.
	PublicChunk []map[string]any
	PublicNext  string

	// Instances drives the thirdparty protocols endpoint.
	Instances map[string][]map[string]any

	// RawResponses overrides the body served for an exact path, for
	// malformed-payload tests.
	RawResponses map[string]string
}

func newFakeHS() *fakeHS {
	f := &fakeHS{
		UserID:    "@tester:example.org",
		Token:     "syt_test_token",
		NextBatch: "batch-1",
		State:     make(map[string][]map[string]any),
		Timeline:  make(map[string][]map[string]any),
		Pages:     make(map[string]messagesPageDef),
		Topics:    make(map[string]string),
		Instances: make(map[string][]map[string]any),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	return f
}

func (f *fakeHS) Close() {
	f.Server.Close()
}

// Calls returns a copy of the recorded calls.
func (f *fakeHS) Calls() []endpointCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]endpointCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

// CalledPath reports whether any recorded call matches the path suffix.
func (f *fakeHS) CalledPath(suffix string) bool {
	for _, c := range f.Calls() {
		if strings.HasSuffix(c.Path, suffix) {
			return true
		}
	}
	return false
}

func (f *fakeHS) record(r *http.Request, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpointCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeHS) handler(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	f.record(r, string(raw))
	path := r.URL.Path

	if body, ok := f.RawResponses[path]; ok {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
		return
	}

	switch {
	case path == "/_matrix/client/r0/login" || path == "/_matrix/client/r0/register":
		if f.RejectAuth {
			status := f.RejectAuthStatus
			if status == 0 {
				status = http.StatusForbidden
			}
			code := f.RejectAuthCode
			if code == "" {
				code = "M_FORBIDDEN"
			}
			w.WriteHeader(status)
			writeJSON(w, map[string]string{"errcode": code, "error": "denied"})
			return
		}
		writeJSON(w, map[string]string{"user_id": f.UserID, "access_token": f.Token})

	case path == "/_matrix/client/r0/sync":
		f.handleSync(w, r)

	case strings.HasPrefix(path, "/_matrix/client/r0/profile/"):
		if strings.HasSuffix(path, "/displayname") {
			writeJSON(w, map[string]string{"displayname": f.Displayname})
			return
		}
		writeJSON(w, map[string]string{"displayname": f.Displayname, "avatar_url": f.AvatarMXC})

	case strings.HasPrefix(path, "/_matrix/client/r0/rooms/"):
		f.handleRoom(w, r, strings.TrimPrefix(path, "/_matrix/client/r0/rooms/"))

	case path == "/_matrix/client/r0/publicRooms":
		writeJSON(w, map[string]any{"chunk": f.PublicChunk, "next_batch": f.PublicNext})

	case path == "/_matrix/client/unstable/thirdparty/protocols":
		protocols := make(map[string]any, len(f.Instances))
		for name, instances := range f.Instances {
			protocols[name] = map[string]any{"instances": instances}
		}
		writeJSON(w, protocols)

	case strings.HasPrefix(path, "/_matrix/media/r0/"):
		_, _ = io.WriteString(w, "media-bytes")

	default:
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"errcode": "M_NOT_FOUND", "error": "unknown endpoint"})
	}
}

func (f *fakeHS) handleSync(w http.ResponseWriter, r *http.Request) {
	if f.SyncDelay > 0 {
		time.Sleep(f.SyncDelay)
	}
	join := make(map[string]any)
	if r.URL.Query().Get("since") == "" {
		for roomID, events := range f.State {
			join[roomID] = map[string]any{"state": map[string]any{"events": events}}
		}
	} else {
		for roomID, events := range f.Timeline {
			join[roomID] = map[string]any{"timeline": map[string]any{"events": events}}
		}
	}
	writeJSON(w, map[string]any{
		"next_batch": f.NextBatch,
		"rooms":      map[string]any{"join": join},
	})
}

func (f *fakeHS) handleRoom(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	roomID, op := parts[0], parts[1]

	switch {
	case op == "state":
		writeJSON(w, f.State[roomID])

	case op == "state/m.room.topic":
		topic, ok := f.Topics[roomID]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"errcode": "M_NOT_FOUND", "error": "no topic"})
			return
		}
		writeJSON(w, map[string]string{"topic": topic})

	case op == "members":
		writeJSON(w, map[string]any{"chunk": f.State[roomID]})

	case op == "messages":
		page, ok := f.Pages[r.URL.Query().Get("from")]
		if !ok {
			writeJSON(w, map[string]any{"start": "s", "end": "e", "chunk": []any{}})
			return
		}
		writeJSON(w, map[string]any{"start": page.Start, "end": page.End, "chunk": page.Chunk})

	case strings.HasPrefix(op, "send/m.room.message/"):
		txn := strings.TrimPrefix(op, "send/m.room.message/")
		writeJSON(w, map[string]string{"event_id": "$sent-" + txn})

	default:
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"errcode": "M_NOT_FOUND", "error": "unknown room op"})
	}
}

// stateEvent builds a wire-shaped state event map.
func stateEvent(evType, sender string, content map[string]any) map[string]any {
	ev := map[string]any{
		"type":    evType,
		"sender":  sender,
		"content": content,
	}
	if evType == "m.room.member" {
		ev["state_key"] = sender
	}
	return ev
}

// messageEvent builds a wire-shaped m.room.message timeline event.
func messageEvent(eventID, sender, body string, ageMS int64) map[string]any {
	return map[string]any{
		"type":     "m.room.message",
		"event_id": eventID,
		"sender":   sender,
		"unsigned": map[string]any{"age": ageMS},
		"content":  map[string]any{"msgtype": "m.text", "body": body},
	}
}

// newTestClient builds a Client (and its session) pointed at the fake
// homeserver, already authenticated.
func newTestClient(t *testing.T, f *fakeHS) (*Client, *Session) {
	t.Helper()
	resolver, err := media.NewResolver(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create media resolver: %v", err)
	}
	session := NewSession()
	if err := session.SetServer(f.Server.URL); err != nil {
		t.Fatalf("failed to set server: %v", err)
	}
	session.SetCredentials("@tester:example.org", "syt_test_token")
	return NewClient(session, resolver, zerolog.Nop()), session
}

// newTestEngine builds an Engine with its dispatch loop running; the loop
// stops at test cleanup.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	go eng.Run(t.Context())
	return eng
}

// nextResponse reads one response of type T, failing the test on timeout or
// an unexpected response type.
func nextResponse[T Response](t *testing.T, eng *Engine) T {
	t.Helper()
	select {
	case resp, ok := <-eng.Responses():
		if !ok {
			t.Fatal("response channel closed")
		}
		typed, ok := resp.(T)
		if !ok {
			t.Fatalf("unexpected response type %T: %+v", resp, resp)
		}
		return typed
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for response")
	}
	panic("unreachable")
}
