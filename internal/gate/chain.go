// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

// Package gate composes the gatekeeper chain: the ordered checks every
// protected request passes before its handler runs.
//
// The order is fixed: address rate limit, credential verification,
// subject rate limit, authorization, CSRF. Each stage either continues
// or terminates; a terminating stage writes the response itself and no
// later stage observes the request. The handler runs at most once, and
// only when every stage continued.
package gate

import (
	"errors"
	"net/http"
	"time"

	"github.com/voxgate/voxgate/internal/api"
	"github.com/voxgate/voxgate/internal/auth"
	"github.com/voxgate/voxgate/internal/authz"
	"github.com/voxgate/voxgate/internal/csrf"
	"github.com/voxgate/voxgate/internal/logging"
	"github.com/voxgate/voxgate/internal/ratelimit"
)

// CSRFHeader is the request header carrying the anti-forgery token.
const CSRFHeader = "X-Csrf-Token"

// Outcome is a stage's verdict on a request.
type Outcome int

const (
	// Continue hands the request to the next stage.
	Continue Outcome = iota

	// Terminate stops the chain. The stage has already written the
	// response.
	Terminate
)

// Route declares the protection profile for a route family.
type Route struct {
	// Class selects the rate-limit policy class. Defaults to
	// ClassDefault.
	Class ratelimit.Class

	// Require is the authorization requirement. The zero value admits
	// any authenticated principal.
	Require authz.Requirement

	// CSRF enables anti-forgery validation on state-changing methods.
	CSRF bool
}

// Gatekeeper runs the check chain for protected routes.
type Gatekeeper struct {
	verifier *auth.Verifier
	limiter  *ratelimit.Limiter
	policies *ratelimit.PolicySet
	authz    *authz.Gate
	csrf     *csrf.Guard
	proxies  *ProxyTrust
}

// Config wires the gatekeeper's collaborators. All fields except
// Proxies are required.
type Config struct {
	Verifier *auth.Verifier
	Limiter  *ratelimit.Limiter
	Policies *ratelimit.PolicySet
	Authz    *authz.Gate
	CSRF     *csrf.Guard

	// TrustedProxies are peer addresses whose forwarding headers are
	// honored for client-IP resolution.
	TrustedProxies []string
}

// New creates a gatekeeper.
func New(cfg Config) (*Gatekeeper, error) {
	switch {
	case cfg.Verifier == nil:
		return nil, errors.New("gate: verifier is required")
	case cfg.Limiter == nil:
		return nil, errors.New("gate: limiter is required")
	case cfg.Policies == nil:
		return nil, errors.New("gate: policy set is required")
	case cfg.Authz == nil:
		return nil, errors.New("gate: authz gate is required")
	case cfg.CSRF == nil:
		return nil, errors.New("gate: csrf guard is required")
	}

	return &Gatekeeper{
		verifier: cfg.Verifier,
		limiter:  cfg.Limiter,
		policies: cfg.Policies,
		authz:    cfg.Authz,
		csrf:     cfg.CSRF,
		proxies:  NewProxyTrust(cfg.TrustedProxies),
	}, nil
}

// requestState carries a request through the chain. Stages mutate it;
// nothing outside one request's chain ever sees it.
type requestState struct {
	w     http.ResponseWriter
	r     *http.Request
	route Route

	principal *auth.Principal
}

type stage struct {
	name string
	run  func(*requestState) Outcome
}

// Protect returns chi-compatible middleware enforcing the route's
// protection profile.
func (g *Gatekeeper) Protect(route Route) func(http.Handler) http.Handler {
	if route.Class == "" {
		route.Class = ratelimit.ClassDefault
	}

	stages := []stage{
		{"address_ratelimit", g.admitAddress},
		{"verify", g.verify},
		{"subject_ratelimit", g.admitSubject},
		{"authorize", g.authorize},
		{"csrf", g.checkCSRF},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestsInFlight.Inc()
			defer requestsInFlight.Dec()

			start := time.Now()
			st := &requestState{w: w, r: r, route: route}

			for _, s := range stages {
				if s.run(st) == Terminate {
					decisionsTotal.WithLabelValues(s.name, "terminate").Inc()
					decisionDuration.Observe(time.Since(start).Seconds())
					return
				}
			}

			decisionsTotal.WithLabelValues("handler", "continue").Inc()
			decisionDuration.Observe(time.Since(start).Seconds())
			next.ServeHTTP(w, st.r)
		})
	}
}

// admitAddress applies the conservative unauthenticated quota keyed by
// client address. It runs before verification so unauthenticated
// floods never reach the cryptographic stages.
func (g *Gatekeeper) admitAddress(st *requestState) Outcome {
	ip := g.proxies.ClientIP(st.r)
	key := ratelimit.BucketKey("addr:"+ip, st.route.Class)

	decision, err := g.limiter.Admit(st.r.Context(), key, g.policies.Unauthenticated())
	if err != nil {
		logging.Ctx(st.r.Context()).Error().Err(err).Str("client_ip", ip).Msg("Address admission failed")
		api.WriteInternalError(st.w, st.r)
		return Terminate
	}
	if !decision.Allowed {
		rateLimitDenials.WithLabelValues("address", string(st.route.Class)).Inc()
		logging.Ctx(st.r.Context()).Warn().Str("client_ip", ip).Msg("Address rate limit exceeded")
		api.WriteRateLimited(st.w, st.r, decision.RetryAfter)
		return Terminate
	}
	return Continue
}

// verify authenticates the request's credential and attaches the
// principal to the context. All credential failures render the same
// generic 401; the specific reason goes to logs and metrics only.
func (g *Gatekeeper) verify(st *requestState) Outcome {
	cred, err := auth.CredentialFromRequest(st.r)
	if err == nil {
		st.principal, err = g.verifier.Verify(st.r.Context(), cred)
	}

	if err != nil {
		if auth.IsCredentialFailure(err) {
			authFailures.WithLabelValues(failureReason(err)).Inc()
			logging.Ctx(st.r.Context()).Warn().Err(err).Msg("Credential verification failed")
			api.WriteUnauthorized(st.w, st.r)
		} else {
			logging.Ctx(st.r.Context()).Error().Err(err).Msg("Credential verification errored")
			api.WriteInternalError(st.w, st.r)
		}
		return Terminate
	}

	st.r = st.r.WithContext(ContextWithPrincipal(st.r.Context(), st.principal))
	return Continue
}

// admitSubject applies the tier quota keyed by subject. Principals
// without an active subscription get the free-tier policy.
func (g *Gatekeeper) admitSubject(st *requestState) Outcome {
	tier := auth.TierFree
	if st.principal.Subscription.IsActive() {
		tier = st.principal.Subscription.Tier
	}

	policy := g.policies.ForTier(tier, st.route.Class)
	key := ratelimit.BucketKey(st.principal.SubjectID, st.route.Class)

	decision, err := g.limiter.Admit(st.r.Context(), key, policy)
	if err != nil {
		logging.Ctx(st.r.Context()).Error().Err(err).
			Str("subject", st.principal.SubjectID).Msg("Subject admission failed")
		api.WriteInternalError(st.w, st.r)
		return Terminate
	}
	if !decision.Allowed {
		rateLimitDenials.WithLabelValues("subject", string(st.route.Class)).Inc()
		logging.Ctx(st.r.Context()).Warn().
			Str("subject", st.principal.SubjectID).
			Str("tier", string(tier)).
			Msg("Subject rate limit exceeded")
		api.WriteRateLimited(st.w, st.r, decision.RetryAfter)
		return Terminate
	}
	return Continue
}

// authorize checks the route requirement. Unlike 401s, tier denials
// are deliberately specific so the client can render an upgrade
// prompt.
func (g *Gatekeeper) authorize(st *requestState) Outcome {
	decision, err := g.authz.Authorize(st.principal, st.route.Require)
	if err != nil {
		logging.Ctx(st.r.Context()).Error().Err(err).Msg("Authorization check errored")
		api.WriteInternalError(st.w, st.r)
		return Terminate
	}
	if decision.Permitted {
		return Continue
	}

	authzDenials.WithLabelValues(string(decision.Reason)).Inc()
	logging.Ctx(st.r.Context()).Warn().
		Str("subject", st.principal.SubjectID).
		Str("reason", string(decision.Reason)).
		Msg("Authorization denied")

	details := map[string]interface{}{"reason": string(decision.Reason)}
	if len(decision.RequiredRoles) > 0 {
		details["required_roles"] = decision.RequiredRoles
	}
	if len(decision.RequiredTiers) > 0 {
		details["required_tiers"] = decision.RequiredTiers
	}
	if decision.CurrentTier != "" {
		details["current_tier"] = decision.CurrentTier
	}
	api.WriteErrorWithDetails(st.w, st.r, http.StatusForbidden, api.ErrCodeForbidden,
		"insufficient permissions", details)
	return Terminate
}

// checkCSRF validates the anti-forgery token on state-changing methods
// of opted-in routes. Safe methods pass untouched.
func (g *Gatekeeper) checkCSRF(st *requestState) Outcome {
	if !st.route.CSRF || isSafeMethod(st.r.Method) {
		return Continue
	}

	token := st.r.Header.Get(CSRFHeader)
	if err := g.csrf.Validate(st.principal.SubjectID, token); err != nil {
		csrfFailures.Inc()
		logging.Ctx(st.r.Context()).Warn().Err(err).
			Str("subject", st.principal.SubjectID).Msg("CSRF validation failed")
		api.WriteError(st.w, st.r, http.StatusForbidden, api.ErrCodeCSRFFailed,
			"CSRF token invalid")
		return Terminate
	}
	return Continue
}

// CSRFTokenHandler issues a fresh anti-forgery token bound to the
// authenticated principal. Mount it behind Protect so the principal is
// always present.
func (g *Gatekeeper) CSRFTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			api.WriteUnauthorized(w, r)
			return
		}
		token := g.csrf.Issue(p.SubjectID)
		api.WriteSuccess(w, r, token)
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// failureReason maps a credential failure to its metrics label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return "missing"
	case errors.Is(err, auth.ErrMalformedCredential):
		return "malformed"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "signature"
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrInvalidAPIKey):
		return "api_key"
	default:
		return "other"
	}
}
