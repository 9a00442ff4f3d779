// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package auth

import (
	"net/http"
	"strings"
)

// CredentialKind distinguishes the supported credential schemes.
type CredentialKind string

const (
	// CredentialBearer is a signed access token from the
	// Authorization: Bearer header.
	CredentialBearer CredentialKind = "bearer"

	// CredentialAPIKey is an opaque key from the X-Api-Key header.
	CredentialAPIKey CredentialKind = "api_key"
)

// Header names the gatekeeper reads credentials from.
const (
	AuthorizationHeader = "Authorization"
	APIKeyHeader        = "X-Api-Key"
)

// Credential is a read-only credential extracted from request headers.
// The gatekeeper never mutates it.
type Credential struct {
	Kind  CredentialKind
	Value string
}

// CredentialFromRequest extracts a credential from the request.
//
// Authorization: Bearer takes precedence over X-Api-Key when both are
// present. A present-but-unparseable Authorization header is
// ErrMalformedCredential, not a fallthrough to the API-key path:
// malformed input must never open an alternate route through the gate.
func CredentialFromRequest(r *http.Request) (Credential, error) {
	if authHeader := r.Header.Get(AuthorizationHeader); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return Credential{}, ErrMalformedCredential
		}
		return Credential{Kind: CredentialBearer, Value: parts[1]}, nil
	}

	if key := r.Header.Get(APIKeyHeader); key != "" {
		return Credential{Kind: CredentialAPIKey, Value: key}, nil
	}

	return Credential{}, ErrMissingCredential
}
