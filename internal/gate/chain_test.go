// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/voxgate/voxgate/internal/api"
	"github.com/voxgate/voxgate/internal/auth"
	"github.com/voxgate/voxgate/internal/authz"
	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/csrf"
	"github.com/voxgate/voxgate/internal/ratelimit"
)

const (
	testJWTSecret  = "test-secret-key-that-is-at-least-32-characters-long"
	testCSRFSecret = "csrf-secret-key-that-is-at-least-32-chars"
)

// countingStore is an auth.UserStore that records how often it is
// consulted, so tests can prove a stage never ran.
type countingStore struct {
	subjects     map[string]*auth.SubjectRecord
	subjectCalls atomic.Int64
}

func (c *countingStore) LookupBySubject(_ context.Context, subjectID string) (*auth.SubjectRecord, error) {
	c.subjectCalls.Add(1)
	rec, ok := c.subjects[subjectID]
	if !ok {
		return nil, auth.ErrSubjectNotFound
	}
	return rec, nil
}

func (c *countingStore) LookupByAPIKey(context.Context, string) (*auth.Principal, error) {
	return nil, auth.ErrInvalidAPIKey
}

// testEnv bundles a gatekeeper with the collaborators tests poke at.
type testEnv struct {
	keeper *Gatekeeper
	guard  *csrf.Guard
	store  *countingStore
}

// rateLimits: generous defaults so individual tests only hit the limit
// they mean to exercise.
func defaultRateLimits() config.RateLimitConfig {
	return config.RateLimitConfig{
		Unauthenticated: config.PolicyConfig{Requests: 1000, Window: time.Minute},
		Tiers: map[string]map[string]config.PolicyConfig{
			"free":       {"default": {Requests: 1000, Window: time.Minute}},
			"plus":       {"default": {Requests: 1000, Window: time.Minute}},
			"pro":        {"default": {Requests: 1000, Window: time.Minute}},
			"enterprise": {"default": {Requests: -1, Window: time.Minute}},
		},
	}
}

func newTestEnv(t *testing.T, limits config.RateLimitConfig) *testEnv {
	t.Helper()

	store := &countingStore{subjects: map[string]*auth.SubjectRecord{
		"user-free": {Subscription: &auth.Subscription{Tier: auth.TierFree, Status: auth.SubscriptionActive}},
		"user-plus": {Subscription: &auth.Subscription{Tier: auth.TierPlus, Status: auth.SubscriptionActive}},
		"user-ent":  {Subscription: &auth.Subscription{Tier: auth.TierEnterprise, Status: auth.SubscriptionActive}},
	}}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret: []byte(testJWTSecret),
		Store:  store,
	})
	if err != nil {
		t.Fatalf("Failed to create verifier: %v", err)
	}

	roles, err := authz.NewRoleResolver(nil)
	if err != nil {
		t.Fatalf("Failed to create role resolver: %v", err)
	}

	guard, err := csrf.NewGuard([]byte(testCSRFSecret), 15*time.Minute)
	if err != nil {
		t.Fatalf("Failed to create csrf guard: %v", err)
	}

	keeper, err := New(Config{
		Verifier: verifier,
		Limiter:  ratelimit.NewLimiter(ratelimit.NewMemoryStore()),
		Policies: ratelimit.NewPolicySet(limits),
		Authz:    authz.NewGate(roles),
		CSRF:     guard,
	})
	if err != nil {
		t.Fatalf("Failed to create gatekeeper: %v", err)
	}

	return &testEnv{keeper: keeper, guard: guard, store: store}
}

func mintToken(t *testing.T, subject string, mutate func(*auth.AccessClaims)) string {
	t.Helper()
	claims := &auth.AccessClaims{
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(claims)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

// protect wraps a counting handler with the route's middleware.
func protect(env *testEnv, route Route) (http.Handler, *atomic.Int64) {
	var handlerCalls atomic.Int64
	h := env.keeper.Protect(route)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalls.Add(1)
		api.WriteSuccess(w, r, map[string]string{"ok": "true"})
	}))
	return h, &handlerCalls
}

func doRequest(h http.Handler, method, token string, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, "/protected", nil)
	r.RemoteAddr = "203.0.113.10:4455"
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *api.Error {
	t.Helper()
	var resp api.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response body %q: %v", w.Body.String(), err)
	}
	if resp.Error == nil {
		t.Fatalf("Response has no error: %q", w.Body.String())
	}
	return resp.Error
}

func TestChainAdmitsValidRequest(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultRateLimits())
	h, calls := protect(env, Route{})

	w := doRequest(h, http.MethodGet, mintToken(t, "user-free", nil), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200; body %q", w.Code, w.Body.String())
	}
	if calls.Load() != 1 {
		t.Errorf("Handler ran %d times, want exactly once", calls.Load())
	}
}

func TestChainAttachesPrincipal(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultRateLimits())

	var seen *auth.Principal
	h := env.keeper.Protect(Route{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	doRequest(h, http.MethodGet, mintToken(t, "user-plus", nil), nil)
	if seen == nil {
		t.Fatal("Handler saw no principal")
	}
	if seen.SubjectID != "user-plus" {
		t.Errorf("SubjectID = %q, want user-plus", seen.SubjectID)
	}
	if !seen.Subscription.IsActive() || seen.Subscription.Tier != auth.TierPlus {
		t.Errorf("Subscription = %+v, want active plus", seen.Subscription)
	}
}

func TestChainGeneric401(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultRateLimits())
	h, calls := protect(env, Route{})

	expired := mintToken(t, "user-free", func(c *auth.AccessClaims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	})

	// Missing, malformed, and expired credentials must produce the
	// same status, code, and message.
	var bodies []string
	for _, token := range []string{"", "garbage", expired} {
		w := doRequest(h, http.MethodGet, token, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("Status = %d for token %q, want 401", w.Code, token)
		}
		e := decodeError(t, w)
		if e.Code != api.ErrCodeUnauthorized {
			t.Errorf("Error code = %q, want %q", e.Code, api.ErrCodeUnauthorized)
		}
		bodies = append(bodies, e.Message)
	}
	if bodies[0] != bodies[1] || bodies[1] != bodies[2] {
		t.Errorf("401 messages differ across failure causes: %v", bodies)
	}
	if calls.Load() != 0 {
		t.Errorf("Handler ran %d times on failed auth, want 0", calls.Load())
	}
}

// The address stage runs before verification: once the address quota
// is spent, the verifier (and its store) must never be consulted.
func TestChainAddressLimitShortCircuitsVerification(t *testing.T) {
	t.Parallel()

	limits := defaultRateLimits()
	limits.Unauthenticated = config.PolicyConfig{Requests: 2, Window: time.Minute}
	env := newTestEnv(t, limits)
	h, calls := protect(env, Route{})
	token := mintToken(t, "user-free", nil)

	for i := 0; i < 2; i++ {
		if w := doRequest(h, http.MethodGet, token, nil); w.Code != http.StatusOK {
			t.Fatalf("Warmup request %d: status = %d", i, w.Code)
		}
	}
	lookups := env.store.subjectCalls.Load()

	w := doRequest(h, http.MethodGet, token, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Status = %d, want 429", w.Code)
	}
	if got := env.store.subjectCalls.Load(); got != lookups {
		t.Errorf("Rate-limited request still reached the user store (%d lookups, was %d)", got, lookups)
	}
	if calls.Load() != 2 {
		t.Errorf("Handler ran %d times, want 2", calls.Load())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 missing Retry-After header")
	}
}

func TestChainSubjectLimitByTier(t *testing.T) {
	t.Parallel()

	limits := defaultRateLimits()
	limits.Tiers["free"]["default"] = config.PolicyConfig{Requests: 1, Window: time.Minute}
	env := newTestEnv(t, limits)
	h, _ := protect(env, Route{})

	freeToken := mintToken(t, "user-free", nil)
	if w := doRequest(h, http.MethodGet, freeToken, nil); w.Code != http.StatusOK {
		t.Fatalf("First free request: status = %d", w.Code)
	}

	w := doRequest(h, http.MethodGet, freeToken, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Second free request: status = %d, want 429", w.Code)
	}
	e := decodeError(t, w)
	if e.Code != api.ErrCodeTooManyRequests {
		t.Errorf("Error code = %q, want %q", e.Code, api.ErrCodeTooManyRequests)
	}

	// Another subject from the same address is unaffected.
	if w := doRequest(h, http.MethodGet, mintToken(t, "user-plus", nil), nil); w.Code != http.StatusOK {
		t.Errorf("Plus subject: status = %d, want 200 after free subject limited", w.Code)
	}
}

func TestChainUnlimitedTier(t *testing.T) {
	t.Parallel()

	limits := defaultRateLimits()
	limits.Tiers["free"]["default"] = config.PolicyConfig{Requests: 1, Window: time.Minute}
	env := newTestEnv(t, limits)
	h, _ := protect(env, Route{})
	token := mintToken(t, "user-ent", nil)

	for i := 0; i < 100; i++ {
		if w := doRequest(h, http.MethodGet, token, nil); w.Code != http.StatusOK {
			t.Fatalf("Enterprise request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestChainTierDenial(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultRateLimits())
	h, calls := protect(env, Route{
		Require: authz.Requirement{Tiers: []auth.Tier{auth.TierPro, auth.TierEnterprise}},
	})

	w := doRequest(h, http.MethodGet, mintToken(t, "user-plus", nil), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Status = %d, want 403", w.Code)
	}
	if calls.Load() != 0 {
		t.Errorf("Handler ran %d times on denial, want 0", calls.Load())
	}

	e := decodeError(t, w)
	if e.Code != api.ErrCodeForbidden {
		t.Errorf("Error code = %q, want %q", e.Code, api.ErrCodeForbidden)
	}
	details, ok := e.Details.(map[string]interface{})
	if !ok {
		t.Fatalf("Details = %T, want object", e.Details)
	}
	if details["current_tier"] != "plus" {
		t.Errorf("current_tier = %v, want plus", details["current_tier"])
	}
	if details["required_tiers"] == nil {
		t.Error("403 details missing required_tiers")
	}
}

func TestChainRoleDenial(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultRateLimits())
	h, _ := protect(env, Route{
		Require: authz.Requirement{Roles: []auth.Role{auth.RoleAdmin}},
	})

	w := doRequest(h, http.MethodGet, mintToken(t, "user-free", nil), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("User on admin route: status = %d, want 403", w.Code)
	}

	adminToken := mintToken(t, "user-free", func(c *auth.AccessClaims) { c.Role = "admin" })
	if w := doRequest(h, http.MethodGet, adminToken, nil); w.Code != http.StatusOK {
		t.Errorf("Admin on admin route: status = %d, want 200; body %q", w.Code, w.Body.String())
	}
}

func TestChainCSRF(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultRateLimits())
	h, calls := protect(env, Route{CSRF: true})
	token := mintToken(t, "user-free", nil)

	t.Run("safe method passes without token", func(t *testing.T) {
		if w := doRequest(h, http.MethodGet, token, nil); w.Code != http.StatusOK {
			t.Errorf("GET without csrf token: status = %d, want 200", w.Code)
		}
	})

	t.Run("post without token rejected", func(t *testing.T) {
		w := doRequest(h, http.MethodPost, token, nil)
		if w.Code != http.StatusForbidden {
			t.Fatalf("POST without csrf token: status = %d, want 403", w.Code)
		}
		if e := decodeError(t, w); e.Code != api.ErrCodeCSRFFailed {
			t.Errorf("Error code = %q, want %q", e.Code, api.ErrCodeCSRFFailed)
		}
	})

	t.Run("post with valid token admitted", func(t *testing.T) {
		issued := env.guard.Issue("user-free")
		w := doRequest(h, http.MethodPost, token, map[string]string{CSRFHeader: issued.Value})
		if w.Code != http.StatusOK {
			t.Errorf("POST with csrf token: status = %d, want 200; body %q", w.Code, w.Body.String())
		}
	})

	t.Run("token from another session rejected", func(t *testing.T) {
		issued := env.guard.Issue("someone-else")
		w := doRequest(h, http.MethodPost, token, map[string]string{CSRFHeader: issued.Value})
		if w.Code != http.StatusForbidden {
			t.Errorf("POST with foreign csrf token: status = %d, want 403", w.Code)
		}
	})

	if calls.Load() != 2 {
		t.Errorf("Handler ran %d times, want 2 (the GET and the valid POST)", calls.Load())
	}
}

func TestChainCSRFNotRequiredByDefault(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultRateLimits())
	h, _ := protect(env, Route{})

	w := doRequest(h, http.MethodPost, mintToken(t, "user-free", nil), nil)
	if w.Code != http.StatusOK {
		t.Errorf("POST on non-CSRF route: status = %d, want 200", w.Code)
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultRateLimits())

	mux := http.NewServeMux()
	mux.Handle("/auth/csrf", env.keeper.Protect(Route{})(env.keeper.CSRFTokenHandler()))

	r := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	r.RemoteAddr = "203.0.113.10:4455"
	r.Header.Set("Authorization", "Bearer "+mintToken(t, "user-free", nil))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200; body %q", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Value string `json:"value"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if resp.Data.Value == "" {
		t.Fatal("Handler issued empty token")
	}
	if err := env.guard.Validate("user-free", resp.Data.Value); err != nil {
		t.Errorf("Issued token failed validation: %v", err)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); err == nil {
		t.Fatal("Expected error for empty config")
	}
}
