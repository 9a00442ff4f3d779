// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package auth

import "context"

// Role is an authorization role carried by a Principal.
type Role string

const (
	// RoleUser is the default role for bearer-token principals whose
	// token carries no role claim.
	RoleUser Role = "user"

	// RoleAdmin has access to operator endpoints. Inherits the other
	// roles through the authz grouping policy.
	RoleAdmin Role = "admin"

	// RoleService is the fixed role for API-key principals. API keys
	// carry no finer-grained scopes.
	RoleService Role = "service"
)

// Tier is a subscription level gating feature access.
type Tier string

const (
	TierFree       Tier = "free"
	TierPlus       Tier = "plus"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// SubscriptionStatus is the billing state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Subscription is the billing attachment of a Principal.
type Subscription struct {
	Tier   Tier               `json:"tier"`
	Status SubscriptionStatus `json:"status"`
}

// IsActive reports whether the subscription entitles the caller to
// tier-gated features.
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == SubscriptionActive
}

// Principal is the authenticated identity and its authorization
// attributes for one request.
//
// A Principal is produced fresh per request by the Verifier, lives in
// the request context, and is never persisted by the gatekeeper.
type Principal struct {
	// SubjectID is the stable subject identifier: the token's sub
	// claim, or the key owner's subject for API-key principals.
	SubjectID string `json:"subject_id"`

	// Email is the subject's email address, if the token carried one.
	Email string `json:"email,omitempty"`

	// Role is the single authorization role.
	Role Role `json:"role"`

	// Subscription is the billing attachment, nil when the subject has
	// none. Populated from token claims or store enrichment.
	Subscription *Subscription `json:"subscription,omitempty"`
}

// SubjectRecord is what the external user store returns for a subject.
type SubjectRecord struct {
	Role         Role
	Subscription *Subscription
}

// UserStore is the collaborator interface to the external user/session
// store. The gatekeeper never writes through it.
type UserStore interface {
	// LookupBySubject returns the subject's role and subscription.
	// Returns ErrSubjectNotFound for unknown subjects.
	LookupBySubject(ctx context.Context, subjectID string) (*SubjectRecord, error)

	// LookupByAPIKey resolves an API key to a Principal.
	// Returns ErrInvalidAPIKey for keys that do not resolve.
	LookupByAPIKey(ctx context.Context, key string) (*Principal, error)
}
