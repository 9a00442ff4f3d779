// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

/*
Package auth turns request credentials into Principals.

Two credential schemes are supported: signed access tokens from the
Authorization: Bearer header (HMAC-SHA256, golang-jwt/v5) and opaque
API keys from the X-Api-Key header, resolved through the external
UserStore. Bearer takes precedence; a malformed Authorization header is
a terminal failure, never a fallthrough to the API-key path.

# Identity model

The bearer token is the single source of identity truth. The UserStore
is consulted only to enrich a verified principal with subscription
attributes and to resolve API keys; a missing store record downgrades
the principal to no subscription rather than failing authentication,
while a store outage fails closed with ErrStoreUnavailable.

# Failure taxonomy

Verification failures are sentinel errors (ErrMissingCredential,
ErrMalformedCredential, ErrInvalidSignature, ErrTokenExpired,
ErrInvalidAPIKey). All of them render as the same generic 401 at the
HTTP edge; the distinction exists for logs, metrics, and tests only.
IsCredentialFailure separates this 401 class from internal failures
that render as 500.

# Concurrency

Verifier is immutable after construction and safe for concurrent use.
Principals are produced fresh per request and never shared.
*/
package auth
