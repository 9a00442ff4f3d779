// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package auth

import "errors"

// Verification failure taxonomy. Every value renders as the same
// generic 401; the distinction exists for logs and tests only, so the
// public response never becomes an oracle for probing token state.
var (
	// ErrMissingCredential indicates no credential header was present.
	ErrMissingCredential = errors.New("missing credential")

	// ErrMalformedCredential indicates a header was present but not in
	// a recognizable shape (or a token presented for the wrong use).
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrInvalidSignature indicates the token signature did not verify
	// against the trust anchor.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrTokenExpired indicates the token is outside its validity
	// window (past exp, or before nbf).
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidAPIKey indicates the API key did not resolve.
	ErrInvalidAPIKey = errors.New("invalid api key")

	// ErrSubjectNotFound indicates the user store has no record for
	// the subject.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrStoreUnavailable indicates the user store could not be
	// reached (or its circuit breaker is open). Renders as 500.
	ErrStoreUnavailable = errors.New("user store unavailable")
)

// IsCredentialFailure reports whether err belongs to the credential
// failure taxonomy (renders 401) as opposed to an internal failure
// (renders 500).
func IsCredentialFailure(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrInvalidAPIKey)
}
