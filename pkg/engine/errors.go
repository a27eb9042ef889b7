// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"errors"
	"fmt"
)

// Error taxonomy for protocol operations. Every public operation fails with
// exactly one of these (wrapped with detail), or with
// media.ErrInvalidReference from the media package. Nothing is retried
// automatically; retry policy belongs to the caller.
var (
	// ErrNetwork covers transport, DNS, and timeout failures, plus
	// unexpected HTTP status codes outside the mapped ones.
	ErrNetwork = errors.New("network error")
	// ErrMalformedResponse covers JSON decode failures and responses
	// missing a required field.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrAuthRejected covers 4xx rejections on authenticated or
	// authentication endpoints, and commands issued without a session.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrNotFound covers 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrBackend is the catch-all for local failures: URL construction,
	// I/O, and commands the engine's own state refuses (such as a sync
	// submitted while one is already in flight).
	ErrBackend = errors.New("backend error")
)

// respError is the standard Matrix error body.
type respError struct {
	Code    string `json:"errcode"`
	Message string `json:"error"`
}

// httpError pairs the mapped taxonomy error with the HTTP status it came
// from, so endpoint-specific call sites can refine the mapping.
type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

// statusError maps an HTTP status code and decoded error body onto the
// taxonomy above.
func statusError(status int, body respError) error {
	detail := body.Code
	if body.Message != "" {
		detail = fmt.Sprintf("%s: %s", body.Code, body.Message)
	}
	var err error
	switch {
	case status == 404:
		err = fmt.Errorf("%w (%s)", ErrNotFound, detail)
	case status == 401 || status == 403:
		err = fmt.Errorf("%w (%s)", ErrAuthRejected, detail)
	default:
		err = fmt.Errorf("%w: status %d (%s)", ErrNetwork, status, detail)
	}
	return &httpError{status: status, err: err}
}
