// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/voxgate/voxgate/internal/logging"
)

// apiKeyResolver wraps user-store key lookups in a circuit breaker so
// a struggling store degrades into fast 500s instead of piling up
// slow lookups on the hot path. Invalid keys are normal outcomes and
// never count against the breaker.
type apiKeyResolver struct {
	store   UserStore
	breaker *gobreaker.CircuitBreaker[*Principal]
}

func newAPIKeyResolver(store UserStore) *apiKeyResolver {
	settings := gobreaker.Settings{
		Name:    "user-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidAPIKey)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("User store circuit breaker state change")
		},
	}
	return &apiKeyResolver{
		store:   store,
		breaker: gobreaker.NewCircuitBreaker[*Principal](settings),
	}
}

// Resolve looks up the API key, translating breaker and store failures
// into ErrStoreUnavailable.
func (r *apiKeyResolver) Resolve(ctx context.Context, key string) (*Principal, error) {
	p, err := r.breaker.Execute(func() (*Principal, error) {
		return r.store.LookupByAPIKey(ctx, key)
	})
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, ErrInvalidAPIKey):
		return nil, ErrInvalidAPIKey
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrStoreUnavailable
	default:
		logging.Ctx(ctx).Error().Err(err).Msg("API key lookup failed")
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
}
