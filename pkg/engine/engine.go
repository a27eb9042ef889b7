// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aiku/chime/pkg/media"
)

type state int

const (
	stateAnonymous state = iota
	stateAuthenticating
	stateAuthenticated
	stateShuttingDown
)

// Engine is the single logical owner of the session. It accepts a serialized
// stream of commands, dispatches each onto its own worker goroutine, and
// emits typed responses on the response channel. The dispatch loop itself
// never blocks on network I/O, and a failed operation becomes an error-
// carrying response rather than stopping the loop.
type Engine struct {
	session *Session
	client  *Client
	media   *media.Resolver

	cmds  chan Command
	resps chan Response

	// state and syncing are owned by the Run goroutine; workers report
	// transitions through the two notification channels.
	state    state
	syncing  bool
	authDone chan bool
	syncDone chan struct{}

	wg  sync.WaitGroup
	log zerolog.Logger
}

// New creates an engine with a fresh anonymous session, caching media into
// cacheDir.
func New(cacheDir string, log zerolog.Logger) (*Engine, error) {
	resolver, err := media.NewResolver(cacheDir, log)
	if err != nil {
		return nil, err
	}
	session := NewSession()
	return &Engine{
		session:  session,
		client:   NewClient(session, resolver, log),
		media:    resolver,
		cmds:     make(chan Command, 16),
		resps:    make(chan Response, 64),
		authDone: make(chan bool, 4),
		syncDone: make(chan struct{}, 4),
		log:      log.With().Str("component", "engine").Logger(),
	}, nil
}

// Session exposes the engine's session for read access (user id, cursors).
func (e *Engine) Session() *Session {
	return e.session
}

// Submit enqueues a command for dispatch.
func (e *Engine) Submit(cmd Command) {
	e.cmds <- cmd
}

// Responses returns the channel responses are emitted on. It closes after a
// ShutDown command once all in-flight workers have finished.
func (e *Engine) Responses() <-chan Response {
	return e.resps
}

// Run executes the dispatch loop until a ShutDown command arrives or the
// context is cancelled. Commands are dispatched in submission order; their
// completions may arrive out of order.
func (e *Engine) Run(ctx context.Context) {
	e.log.Debug().Msg("Dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case ok := <-e.authDone:
			e.applyAuthResult(ok)
		case <-e.syncDone:
			e.syncing = false
		case cmd := <-e.cmds:
			// Workers report transitions before their response is
			// emitted, so any notification already queued happened
			// before the caller submitted this command.
			e.drainNotifications()
			if _, stop := cmd.(ShutDown); stop {
				e.shutdown()
				return
			}
			e.handle(ctx, cmd)
		}
	}
}

func (e *Engine) drainNotifications() {
	for {
		select {
		case ok := <-e.authDone:
			e.applyAuthResult(ok)
		case <-e.syncDone:
			e.syncing = false
		default:
			return
		}
	}
}

// applyAuthResult settles the state machine after an auth worker reports in.
// A failed attempt only demotes to anonymous when the session holds no
// usable token: a rejected re-login leaves the existing session intact, so
// commands keep working against it.
func (e *Engine) applyAuthResult(ok bool) {
	if ok || e.session.LoggedIn() {
		e.state = stateAuthenticated
	} else {
		e.state = stateAnonymous
	}
}

func (e *Engine) shutdown() {
	e.state = stateShuttingDown
	e.log.Debug().Msg("Shutting down, draining workers")
	e.wg.Wait()
	close(e.resps)
}

// handle dispatches one command onto a worker, or answers it immediately
// with a typed error when the state machine forbids it.
func (e *Engine) handle(ctx context.Context, cmd Command) {
	switch cmd := cmd.(type) {
	case Login:
		e.state = stateAuthenticating
		e.dispatchAuth(ctx, cmd, func(ctx context.Context) AuthResponse {
			uid, token, err := e.client.Login(ctx, cmd.User, cmd.Password, cmd.Server)
			return AuthResponse{Command: cmd, UserID: uid, Token: token, Error: err}
		})
	case Register:
		e.state = stateAuthenticating
		e.dispatchAuth(ctx, cmd, func(ctx context.Context) AuthResponse {
			uid, token, err := e.client.RegisterUser(ctx, cmd.User, cmd.Password, cmd.Server)
			return AuthResponse{Command: cmd, UserID: uid, Token: token, Error: err}
		})
	case Guest:
		e.state = stateAuthenticating
		e.dispatchAuth(ctx, cmd, func(ctx context.Context) AuthResponse {
			uid, token, err := e.client.RegisterGuest(ctx, cmd.Server)
			return AuthResponse{Command: cmd, UserID: uid, Token: token, Error: err}
		})

	case Sync:
		if !e.requireAuth(cmd) {
			return
		}
		if e.syncing {
			e.log.Debug().Msg("Sync already in flight, rejecting duplicate")
			e.respond(SyncResponse{Error: fmt.Errorf("%w: sync already in flight", ErrBackend)})
			return
		}
		e.syncing = true
		e.dispatch(ctx, func(ctx context.Context) Response {
			defer func() { e.syncDone <- struct{}{} }()
			res, err := e.client.Sync(ctx)
			return SyncResponse{Initial: res.Initial, Rooms: res.Rooms, Messages: res.Messages, Error: err}
		})

	case GetUsername:
		if !e.requireAuth(cmd) {
			return
		}
		e.dispatch(ctx, func(ctx context.Context) Response {
			name, err := e.client.DisplayName(ctx)
			return UsernameResponse{Name: name, Error: err}
		})

	case GetAvatar:
		if !e.requireAuth(cmd) {
			return
		}
		e.dispatch(ctx, func(ctx context.Context) Response {
			path, err := e.client.Avatar(ctx)
			return AvatarResponse{Path: path, Error: err}
		})

	case SetRoom:
		if !e.requireAuth(cmd) {
			return
		}
		e.session.SetRoom(cmd.Room)
		e.dispatch(ctx, func(ctx context.Context) Response {
			r, members, err := e.client.RoomDetail(ctx, cmd.Room)
			return SetRoomResponse{Room: r, Members: members, Error: err}
		})

	case GetRoomMessages:
		if !e.requireAuth(cmd) {
			return
		}
		roomID := e.session.Room()
		e.dispatch(ctx, func(ctx context.Context) Response {
			page, err := e.client.RoomMessages(ctx, roomID, "")
			if err != nil {
				return MessagesResponse{Error: err}
			}
			e.session.SetMessageWindow(page.Start, page.End)
			return MessagesResponse{Messages: page.Messages}
		})

	case GetRoomMessagesOlder:
		if !e.requireAuth(cmd) {
			return
		}
		roomID := e.session.Room()
		e.dispatch(ctx, func(ctx context.Context) Response {
			_, end := e.session.MessageWindow()
			page, err := e.client.RoomMessages(ctx, roomID, end)
			if err != nil {
				return OlderMessagesResponse{Error: err}
			}
			e.session.SetOlderCursor(page.End)
			// The page is chronological at this point; reverse it once
			// more so consumers prepend entries and keep overall order.
			reverseMessages(page.Messages)
			return OlderMessagesResponse{Messages: page.Messages}
		})

	case SendMsg:
		if !e.requireAuth(cmd) {
			return
		}
		roomID := e.session.Room()
		e.dispatch(ctx, func(ctx context.Context) Response {
			eventID, err := e.client.SendMessage(ctx, roomID, cmd.Body)
			return SendResponse{EventID: eventID, Error: err}
		})

	case GetAvatarAsync:
		if !e.requireAuth(cmd) {
			return
		}
		e.dispatch(ctx, func(ctx context.Context) Response {
			member := cmd.Member
			if member.AvatarURL != "" {
				path, err := e.media.Resolve(ctx, e.session.Server(), member.AvatarURL, true, 64, 64)
				if err == nil {
					return MemberAvatarResponse{UserID: member.UserID, Path: path}
				}
			}
			path, err := e.media.Identicon(string(member.UserID), member.Alias())
			return MemberAvatarResponse{UserID: member.UserID, Path: path, Error: err}
		})

	case GetThumbAsync:
		if !e.requireAuth(cmd) {
			return
		}
		e.dispatch(ctx, func(ctx context.Context) Response {
			path, err := e.media.Resolve(ctx, e.session.Server(), cmd.MXC, true, 64, 64)
			return ThumbResponse{MXC: cmd.MXC, Path: path, Error: err}
		})

	case DirectoryProtocols:
		if !e.requireAuth(cmd) {
			return
		}
		e.dispatch(ctx, func(ctx context.Context) Response {
			protocols, err := e.client.Protocols(ctx)
			return ProtocolsResponse{Protocols: protocols, Error: err}
		})

	case DirectorySearch:
		if !e.requireAuth(cmd) {
			return
		}
		e.dispatch(ctx, func(ctx context.Context) Response {
			rooms, err := e.client.SearchDirectory(ctx, DirectoryQuery{
				Search:       cmd.Search,
				ThirdPartyID: cmd.ThirdPartyID,
				Continue:     cmd.More,
			})
			return DirectoryResponse{Rooms: rooms, Error: err}
		})

	default:
		e.log.Warn().Type("command", cmd).Msg("Unknown command dropped")
	}
}

// requireAuth rejects commands that need a session while none exists,
// answering them with the matching error-carrying response.
func (e *Engine) requireAuth(cmd Command) bool {
	if e.state == stateAuthenticated {
		return true
	}
	err := fmt.Errorf("%w: not logged in", ErrAuthRejected)
	var resp Response
	switch cmd.(type) {
	case Sync:
		resp = SyncResponse{Error: err}
	case GetUsername:
		resp = UsernameResponse{Error: err}
	case GetAvatar:
		resp = AvatarResponse{Error: err}
	case SetRoom:
		resp = SetRoomResponse{Error: err}
	case GetRoomMessages:
		resp = MessagesResponse{Error: err}
	case GetRoomMessagesOlder:
		resp = OlderMessagesResponse{Error: err}
	case SendMsg:
		resp = SendResponse{Error: err}
	case GetAvatarAsync:
		resp = MemberAvatarResponse{Error: err}
	case GetThumbAsync:
		resp = ThumbResponse{Error: err}
	case DirectoryProtocols:
		resp = ProtocolsResponse{Error: err}
	case DirectorySearch:
		resp = DirectoryResponse{Error: err}
	default:
		return false
	}
	e.respond(resp)
	return false
}

// dispatch runs op on its own worker goroutine and emits its response. Once
// dispatched, a worker runs to completion or failure; there is no
// cancellation of individual operations.
func (e *Engine) dispatch(ctx context.Context, op func(context.Context) Response) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.respond(op(ctx))
	}()
}

// dispatchAuth is dispatch for the three authentication commands, which
// additionally report the state transition back to the loop.
func (e *Engine) dispatchAuth(ctx context.Context, cmd Command, op func(context.Context) AuthResponse) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		resp := op(ctx)
		e.authDone <- resp.Error == nil
		e.respond(resp)
	}()
}

func (e *Engine) respond(resp Response) {
	if err := resp.Err(); err != nil {
		e.log.Debug().Err(err).Type("response", resp).Msg("Operation failed")
	}
	e.resps <- resp
}
