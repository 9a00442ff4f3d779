// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package csrf

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

const testCSRFSecret = "csrf-secret-key-that-is-at-least-32-chars"

func newTestGuard(t *testing.T, opts ...Option) *Guard {
	t.Helper()
	g, err := NewGuard([]byte(testCSRFSecret), 15*time.Minute, opts...)
	if err != nil {
		t.Fatalf("Failed to create guard: %v", err)
	}
	return g
}

func TestNewGuardRejectsShortSecret(t *testing.T) {
	t.Parallel()
	if _, err := NewGuard([]byte("short"), time.Minute); err == nil {
		t.Fatal("Expected error for short secret")
	}
}

func TestIssueAndValidate(t *testing.T) {
	t.Parallel()
	g := newTestGuard(t)

	token := g.Issue("session-1")
	if token.Value == "" {
		t.Fatal("Issued empty token")
	}
	if err := g.Validate("session-1", token.Value); err != nil {
		t.Errorf("Validate failed for own session: %v", err)
	}
}

// A token issued for one session must never validate for another.
func TestTokenBoundToSession(t *testing.T) {
	t.Parallel()
	g := newTestGuard(t)

	token := g.Issue("session-1")
	err := g.Validate("session-2", token.Value)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Cross-session validation error = %v, want ErrTokenInvalid", err)
	}
}

func TestValidateMissing(t *testing.T) {
	t.Parallel()
	g := newTestGuard(t)
	if err := g.Validate("session-1", ""); !errors.Is(err, ErrTokenMissing) {
		t.Errorf("error = %v, want ErrTokenMissing", err)
	}
}

func TestValidateGarbage(t *testing.T) {
	t.Parallel()
	g := newTestGuard(t)

	for _, v := range []string{"not-base64!!!", "c2hvcnQ", strings.Repeat("A", 200)} {
		if err := g.Validate("session-1", v); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Validate(%q) = %v, want ErrTokenInvalid", v, err)
		}
	}
}

func TestValidateTamperedToken(t *testing.T) {
	t.Parallel()
	g := newTestGuard(t)

	token := g.Issue("session-1")
	raw, err := base64.RawURLEncoding.DecodeString(token.Value)
	if err != nil {
		t.Fatalf("Failed to decode token: %v", err)
	}

	// Flip a bit in the expiry prefix: the MAC no longer covers the
	// claimed expiry.
	raw[0] ^= 0x01
	tampered := base64.RawURLEncoding.EncodeToString(raw)
	if err := g.Validate("session-1", tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Tampered expiry error = %v, want ErrTokenInvalid", err)
	}

	// Flip a bit in the MAC itself.
	raw[0] ^= 0x01
	raw[len(raw)-1] ^= 0x01
	tampered = base64.RawURLEncoding.EncodeToString(raw)
	if err := g.Validate("session-1", tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Tampered MAC error = %v, want ErrTokenInvalid", err)
	}
}

func TestValidateExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := now
	g := newTestGuard(t, WithClock(func() time.Time { return current }))

	token := g.Issue("session-1")
	if err := g.Validate("session-1", token.Value); err != nil {
		t.Fatalf("Fresh token failed validation: %v", err)
	}

	current = now.Add(16 * time.Minute)
	if err := g.Validate("session-1", token.Value); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expired token error = %v, want ErrTokenExpired", err)
	}
}

func TestIssueTokensDifferAcrossSessions(t *testing.T) {
	t.Parallel()
	g := newTestGuard(t)

	a := g.Issue("session-a")
	b := g.Issue("session-b")
	if a.Value == b.Value {
		t.Error("Tokens for different sessions are identical")
	}
}

func TestGuardDefaultsTTL(t *testing.T) {
	t.Parallel()
	g, err := NewGuard([]byte(testCSRFSecret), 0)
	if err != nil {
		t.Fatalf("NewGuard failed: %v", err)
	}
	if g.TTL() != DefaultTokenTTL {
		t.Errorf("TTL = %v, want default %v", g.TTL(), DefaultTokenTTL)
	}
}
