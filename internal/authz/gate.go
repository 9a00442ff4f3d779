// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package authz

import (
	"github.com/voxgate/voxgate/internal/auth"
)

// Requirement is a route's static authorization declaration. Empty
// sets are unconstrained; when both are set, both must pass. There is
// no OR between roles and tiers.
type Requirement struct {
	// Roles the principal's role must satisfy (any one of them).
	Roles []auth.Role

	// Tiers the principal's active subscription must be in.
	Tiers []auth.Tier
}

// Reason classifies a denial.
type Reason string

const (
	// ReasonRoleDenied: the principal's role satisfies none of the
	// required roles.
	ReasonRoleDenied Reason = "role_denied"

	// ReasonSubscriptionRequired: the route requires a tier but the
	// principal has no active subscription.
	ReasonSubscriptionRequired Reason = "subscription_required"

	// ReasonInsufficientTier: the subscription is active but its tier
	// is not in the required set.
	ReasonInsufficientTier Reason = "insufficient_tier"
)

// Decision is the outcome of an authorization check. On tier denials
// it carries the required set and the caller's current tier so the
// client can render an upgrade prompt.
type Decision struct {
	Permitted bool
	Reason    Reason

	RequiredRoles []auth.Role
	RequiredTiers []auth.Tier
	CurrentTier   auth.Tier
}

// Gate evaluates route requirements against principals.
type Gate struct {
	roles *RoleResolver
}

// NewGate creates an authorization gate over the role resolver.
func NewGate(roles *RoleResolver) *Gate {
	return &Gate{roles: roles}
}

// Authorize checks the principal against the requirement. Role and
// tier checks are ANDed; the role check runs first so a role denial is
// reported even when the tier would also fail.
func (g *Gate) Authorize(p *auth.Principal, req Requirement) (Decision, error) {
	if len(req.Roles) > 0 {
		ok, err := g.satisfiesAny(p.Role, req.Roles)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Decision{
				Reason:        ReasonRoleDenied,
				RequiredRoles: req.Roles,
			}, nil
		}
	}

	if len(req.Tiers) > 0 {
		if !p.Subscription.IsActive() {
			return Decision{
				Reason:        ReasonSubscriptionRequired,
				RequiredTiers: req.Tiers,
			}, nil
		}
		if !containsTier(req.Tiers, p.Subscription.Tier) {
			return Decision{
				Reason:        ReasonInsufficientTier,
				RequiredTiers: req.Tiers,
				CurrentTier:   p.Subscription.Tier,
			}, nil
		}
	}

	return Decision{Permitted: true}, nil
}

func (g *Gate) satisfiesAny(held auth.Role, required []auth.Role) (bool, error) {
	for _, want := range required {
		ok, err := g.roles.Satisfies(held, want)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func containsTier(tiers []auth.Tier, tier auth.Tier) bool {
	for _, t := range tiers {
		if t == tier {
			return true
		}
	}
	return false
}
