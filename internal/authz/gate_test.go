// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package authz

import (
	"testing"

	"github.com/voxgate/voxgate/internal/auth"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	roles, err := NewRoleResolver(nil)
	if err != nil {
		t.Fatalf("Failed to create role resolver: %v", err)
	}
	return NewGate(roles)
}

func principal(role auth.Role, sub *auth.Subscription) *auth.Principal {
	return &auth.Principal{
		SubjectID:    "user-123",
		Role:         role,
		Subscription: sub,
	}
}

func activeSub(tier auth.Tier) *auth.Subscription {
	return &auth.Subscription{Tier: tier, Status: auth.SubscriptionActive}
}

func TestAuthorizeUnconstrained(t *testing.T) {
	t.Parallel()
	g := newTestGate(t)

	d, err := g.Authorize(principal(auth.RoleUser, nil), Requirement{})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !d.Permitted {
		t.Errorf("Unconstrained route denied: %+v", d)
	}
}

func TestAuthorizeRoles(t *testing.T) {
	t.Parallel()
	g := newTestGate(t)

	tests := []struct {
		name     string
		held     auth.Role
		required []auth.Role
		want     bool
	}{
		{"exact role", auth.RoleUser, []auth.Role{auth.RoleUser}, true},
		{"any-of roles", auth.RoleService, []auth.Role{auth.RoleUser, auth.RoleService}, true},
		{"admin inherits user", auth.RoleAdmin, []auth.Role{auth.RoleUser}, true},
		{"admin inherits service", auth.RoleAdmin, []auth.Role{auth.RoleService}, true},
		{"user is not admin", auth.RoleUser, []auth.Role{auth.RoleAdmin}, false},
		{"service is not user", auth.RoleService, []auth.Role{auth.RoleUser}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := g.Authorize(principal(tt.held, activeSub(auth.TierEnterprise)), Requirement{Roles: tt.required})
			if err != nil {
				t.Fatalf("Authorize failed: %v", err)
			}
			if d.Permitted != tt.want {
				t.Errorf("Permitted = %v, want %v", d.Permitted, tt.want)
			}
			if !tt.want && d.Reason != ReasonRoleDenied {
				t.Errorf("Reason = %q, want %q", d.Reason, ReasonRoleDenied)
			}
		})
	}
}

func TestAuthorizeTiers(t *testing.T) {
	t.Parallel()
	g := newTestGate(t)
	req := Requirement{Tiers: []auth.Tier{auth.TierPro, auth.TierEnterprise}}

	t.Run("matching active tier", func(t *testing.T) {
		t.Parallel()
		d, err := g.Authorize(principal(auth.RoleUser, activeSub(auth.TierPro)), req)
		if err != nil {
			t.Fatalf("Authorize failed: %v", err)
		}
		if !d.Permitted {
			t.Errorf("Pro principal denied pro route: %+v", d)
		}
	})

	t.Run("no subscription", func(t *testing.T) {
		t.Parallel()
		d, _ := g.Authorize(principal(auth.RoleUser, nil), req)
		if d.Permitted {
			t.Fatal("Principal without subscription admitted to tier-gated route")
		}
		if d.Reason != ReasonSubscriptionRequired {
			t.Errorf("Reason = %q, want %q", d.Reason, ReasonSubscriptionRequired)
		}
	})

	t.Run("inactive subscription", func(t *testing.T) {
		t.Parallel()
		sub := &auth.Subscription{Tier: auth.TierPro, Status: auth.SubscriptionPastDue}
		d, _ := g.Authorize(principal(auth.RoleUser, sub), req)
		if d.Permitted {
			t.Fatal("Past-due subscription admitted to tier-gated route")
		}
		if d.Reason != ReasonSubscriptionRequired {
			t.Errorf("Reason = %q, want %q", d.Reason, ReasonSubscriptionRequired)
		}
	})

	t.Run("insufficient tier", func(t *testing.T) {
		t.Parallel()
		d, _ := g.Authorize(principal(auth.RoleUser, activeSub(auth.TierPlus)), req)
		if d.Permitted {
			t.Fatal("Plus principal admitted to pro route")
		}
		if d.Reason != ReasonInsufficientTier {
			t.Errorf("Reason = %q, want %q", d.Reason, ReasonInsufficientTier)
		}
		if d.CurrentTier != auth.TierPlus {
			t.Errorf("CurrentTier = %q, want plus", d.CurrentTier)
		}
		if len(d.RequiredTiers) != 2 {
			t.Errorf("RequiredTiers = %v, want the full required set", d.RequiredTiers)
		}
	})
}

// Role and tier requirements are ANDed: a privileged role does not
// bypass the tier check.
func TestAuthorizeRoleDoesNotBypassTier(t *testing.T) {
	t.Parallel()
	g := newTestGate(t)
	req := Requirement{
		Roles: []auth.Role{auth.RoleUser},
		Tiers: []auth.Tier{auth.TierEnterprise},
	}

	d, err := g.Authorize(principal(auth.RoleAdmin, activeSub(auth.TierFree)), req)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if d.Permitted {
		t.Fatal("Admin with free tier admitted to enterprise route")
	}
	if d.Reason != ReasonInsufficientTier {
		t.Errorf("Reason = %q, want %q", d.Reason, ReasonInsufficientTier)
	}
}

func TestRoleResolverSatisfies(t *testing.T) {
	t.Parallel()
	roles, err := NewRoleResolver(nil)
	if err != nil {
		t.Fatalf("Failed to create role resolver: %v", err)
	}

	ok, err := roles.Satisfies(auth.RoleAdmin, auth.RoleUser)
	if err != nil {
		t.Fatalf("Satisfies failed: %v", err)
	}
	if !ok {
		t.Error("admin should satisfy user via grouping policy")
	}

	ok, err = roles.Satisfies(auth.RoleUser, auth.RoleService)
	if err != nil {
		t.Fatalf("Satisfies failed: %v", err)
	}
	if ok {
		t.Error("user should not satisfy service")
	}
}
