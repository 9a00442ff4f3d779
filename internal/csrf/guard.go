// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

// Package csrf issues and validates anti-forgery tokens bound to a
// session.
//
// Tokens are stateless: the value is the expiry plus an HMAC-SHA256
// over the session ID and expiry, so validation needs no server-side
// table and a token issued for one session can never validate for
// another. Lifetime is bounded in minutes, independent of the
// session's own lifetime.
package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// CSRF validation errors.
var (
	// ErrTokenMissing indicates no token was presented.
	ErrTokenMissing = errors.New("csrf token missing")

	// ErrTokenInvalid indicates the token does not verify for this
	// session.
	ErrTokenInvalid = errors.New("csrf token invalid")

	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.New("csrf token expired")
)

// DefaultTokenTTL bounds token lifetime when the config omits one.
const DefaultTokenTTL = 15 * time.Minute

// expiryLen is the byte length of the big-endian expiry prefix.
const expiryLen = 8

// Token is an issued anti-forgery token.
type Token struct {
	// Value is what the client echoes back in the X-CSRF-Token header.
	Value string `json:"value"`

	// SessionID is the session the token is bound to. Never sent to
	// the client inside the token; it is an input to the MAC.
	SessionID string `json:"-"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Guard issues and validates session-bound CSRF tokens.
type Guard struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the guard's time source. For tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates a CSRF guard. The secret must be at least 32 bytes
// and distinct from the access-token secret.
func NewGuard(secret []byte, ttl time.Duration, opts ...Option) (*Guard, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("csrf: secret must be at least 32 bytes, got %d", len(secret))
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	g := &Guard{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Issue produces a token bound to the session.
func (g *Guard) Issue(sessionID string) Token {
	now := g.now()
	expiresAt := now.Add(g.ttl)

	var expiry [expiryLen]byte
	binary.BigEndian.PutUint64(expiry[:], uint64(expiresAt.Unix()))

	mac := g.mac(sessionID, expiry[:])
	value := base64.RawURLEncoding.EncodeToString(append(expiry[:], mac...))

	return Token{
		Value:     value,
		SessionID: sessionID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}
}

// Validate checks a presented token against the session. The MAC
// comparison is constant-time; expiry is checked regardless of MAC
// validity so the two failure modes take comparable time.
func (g *Guard) Validate(sessionID, presented string) error {
	if presented == "" {
		return ErrTokenMissing
	}

	raw, err := base64.RawURLEncoding.DecodeString(presented)
	if err != nil || len(raw) != expiryLen+sha256.Size {
		return ErrTokenInvalid
	}

	expiry := raw[:expiryLen]
	presentedMAC := raw[expiryLen:]

	expected := g.mac(sessionID, expiry)
	macOK := hmac.Equal(presentedMAC, expected)

	expiresAt := time.Unix(int64(binary.BigEndian.Uint64(expiry)), 0)
	expired := !g.now().Before(expiresAt)

	switch {
	case !macOK:
		return ErrTokenInvalid
	case expired:
		return ErrTokenExpired
	default:
		return nil
	}
}

// mac computes HMAC-SHA256 over sessionID || 0x00 || expiry. The
// separator keeps session IDs from bleeding into the expiry bytes.
func (g *Guard) mac(sessionID string, expiry []byte) []byte {
	h := hmac.New(sha256.New, g.secret)
	h.Write([]byte(sessionID)) //nolint:errcheck // hash writes never fail
	h.Write([]byte{0})         //nolint:errcheck
	h.Write(expiry)            //nolint:errcheck
	return h.Sum(nil)
}

// TTL returns the configured token lifetime.
func (g *Guard) TTL() time.Duration {
	return g.ttl
}
