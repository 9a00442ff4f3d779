// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/voxgate/voxgate/internal/logging"
)

// accessTokenType is the required value of the typ claim. Refresh
// tokens presented as access tokens are rejected as malformed use.
const accessTokenType = "access"

// AccessClaims are the claims Voxgate reads from an access token.
type AccessClaims struct {
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// VerifierConfig holds configuration for the credential verifier.
type VerifierConfig struct {
	// Secret is the HMAC-SHA256 trust anchor for access tokens.
	// Minimum 32 bytes.
	Secret []byte

	// Issuer, when non-empty, must match the token's iss claim.
	Issuer string

	// Store resolves API keys and enriches bearer principals with
	// subscription data. Optional; without it API keys never verify
	// and bearer principals carry only token claims.
	Store UserStore
}

// Verifier validates a bearer token or API key and produces a
// Principal. It holds no mutable state: verification is a pure
// function of the credential, the trust anchor, and the store.
type Verifier struct {
	secret []byte
	issuer string
	store  UserStore
	keys   *apiKeyResolver
}

// NewVerifier creates a credential verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("verifier: secret must be at least 32 bytes, got %d", len(cfg.Secret))
	}

	v := &Verifier{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		store:  cfg.Store,
	}
	if cfg.Store != nil {
		v.keys = newAPIKeyResolver(cfg.Store)
	}
	return v, nil
}

// Verify validates the credential and returns the Principal it proves.
//
// Failures are drawn from the taxonomy in errors.go. ErrStoreUnavailable
// is the only non-credential failure; everything else renders as the
// same generic 401.
func (v *Verifier) Verify(ctx context.Context, cred Credential) (*Principal, error) {
	switch cred.Kind {
	case CredentialBearer:
		return v.verifyBearer(ctx, cred.Value)
	case CredentialAPIKey:
		return v.verifyAPIKey(ctx, cred.Value)
	default:
		return nil, ErrMalformedCredential
	}
}

// verifyBearer validates a signed access token.
func (v *Verifier) verifyBearer(ctx context.Context, token string) (*Principal, error) {
	// Structural pre-check before any cryptographic work.
	if strings.Count(token, ".") != 2 {
		return nil, ErrMalformedCredential
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, mapTokenError(err)
	}

	if claims.TokenType != accessTokenType {
		// Valid signature, wrong use. Typically a refresh token.
		return nil, ErrMalformedCredential
	}
	if claims.Subject == "" {
		return nil, ErrMalformedCredential
	}

	p := &Principal{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Role:      RoleUser,
	}
	if claims.Role != "" {
		p.Role = Role(claims.Role)
	}

	if err := v.enrich(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// enrich attaches subscription data from the user store. The token
// remains the source of identity truth; the store only contributes
// billing attributes. A store outage fails closed.
func (v *Verifier) enrich(ctx context.Context, p *Principal) error {
	if v.store == nil {
		return nil
	}

	rec, err := v.store.LookupBySubject(ctx, p.SubjectID)
	if errors.Is(err, ErrSubjectNotFound) {
		// Token verified but the subject has no profile yet (e.g.
		// provisioning lag). Authentication stands; subscription
		// gates will deny tier-restricted routes.
		return nil
	}
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("subject", p.SubjectID).Msg("Subject enrichment failed")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	p.Subscription = rec.Subscription
	return nil
}

// verifyAPIKey resolves an opaque API key through the user store.
func (v *Verifier) verifyAPIKey(ctx context.Context, key string) (*Principal, error) {
	if v.keys == nil {
		return nil, ErrInvalidAPIKey
	}
	p, err := v.keys.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	// API keys carry no finer-grained scopes.
	p.Role = RoleService
	return p, nil
}

// mapTokenError translates golang-jwt parse errors into the
// verification taxonomy. Order matters: an expired token with a valid
// signature must report ErrTokenExpired, never ErrInvalidSignature.
func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		// Before nbf: a time-window failure, same class as expired.
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedCredential
	default:
		// Unknown parse failures (bad issuer, missing exp, ...) are
		// structural problems from the gate's point of view.
		return ErrMalformedCredential
	}
}
