// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

// Package ratelimit implements fixed-window request admission.
//
// Counters live in an explicit CounterStore owned by the caller, not
// in package-level state, so multiple independent gatekeepers can run
// in one process and tests get clean teardown. The store is the only
// mutable state shared across concurrent requests; its increment is
// atomic per key so two requests racing at the limit can never both
// be admitted.
package ratelimit

import (
	"time"

	"github.com/voxgate/voxgate/internal/auth"
	"github.com/voxgate/voxgate/internal/config"
)

// Class groups routes sharing a quota policy.
type Class string

const (
	// ClassDefault covers the general API surface.
	ClassDefault Class = "default"

	// ClassAuth covers authentication-adjacent endpoints, which get
	// much tighter limits than the rest of the API.
	ClassAuth Class = "auth"

	// ClassRealtime covers voice/streaming session endpoints.
	ClassRealtime Class = "realtime"
)

// Unlimited is the sentinel MaxRequests value that bypasses admission
// checks entirely. Unlimited buckets never allocate counters.
const Unlimited = -1

// Policy is one fixed-window quota.
type Policy struct {
	MaxRequests int
	Window      time.Duration
}

// IsUnlimited reports whether the policy bypasses admission.
func (p Policy) IsUnlimited() bool {
	return p.MaxRequests == Unlimited
}

// PolicySet resolves the quota policy for a bucket.
type PolicySet struct {
	unauthenticated Policy
	tiers           map[auth.Tier]map[Class]Policy
}

// NewPolicySet builds a PolicySet from the rate-limit configuration.
func NewPolicySet(cfg config.RateLimitConfig) *PolicySet {
	tiers := make(map[auth.Tier]map[Class]Policy, len(cfg.Tiers))
	for tier, classes := range cfg.Tiers {
		m := make(map[Class]Policy, len(classes))
		for class, p := range classes {
			m[Class(class)] = Policy{MaxRequests: p.Requests, Window: p.Window}
		}
		tiers[auth.Tier(tier)] = m
	}
	return &PolicySet{
		unauthenticated: Policy{
			MaxRequests: cfg.Unauthenticated.Requests,
			Window:      cfg.Unauthenticated.Window,
		},
		tiers: tiers,
	}
}

// Unauthenticated returns the conservative policy for address-keyed
// buckets, applied before identity is known.
func (ps *PolicySet) Unauthenticated() Policy {
	return ps.unauthenticated
}

// ForTier resolves the policy for a subject bucket. Resolution falls
// back class -> ClassDefault within the tier, then to the free tier:
// a tier missing from the table is never treated as unlimited.
func (ps *PolicySet) ForTier(tier auth.Tier, class Class) Policy {
	if classes, ok := ps.tiers[tier]; ok {
		if p, ok := classes[class]; ok {
			return p
		}
		if p, ok := classes[ClassDefault]; ok {
			return p
		}
	}
	if tier != auth.TierFree {
		return ps.ForTier(auth.TierFree, class)
	}
	return ps.unauthenticated
}
