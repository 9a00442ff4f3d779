// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// knownTiers are the subscription tiers the gatekeeper understands.
var knownTiers = map[string]bool{
	"free":       true,
	"plus":       true,
	"pro":        true,
	"enterprise": true,
}

// Validate checks the configuration for structural and semantic errors.
// It fails closed: an invalid config prevents startup rather than
// degrading into permissive behavior.
func Validate(cfg *Config) error {
	return cfg.Validate()
}

// Validate implements the checks for Config.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("config: field %s fails %q constraint", f.Namespace(), f.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	if c.Security.JWTSecret == c.Security.CSRFSecret {
		return errors.New("config: security.jwt_secret and security.csrf_secret must differ")
	}

	if c.RateLimit.Store == "badger" && c.RateLimit.BadgerPath == "" {
		return errors.New("config: rate_limit.badger_path is required for the badger store")
	}

	for tier, classes := range c.RateLimit.Tiers {
		if !knownTiers[tier] {
			return fmt.Errorf("config: unknown subscription tier %q in rate_limit.tiers", tier)
		}
		for class, p := range classes {
			if p.Window <= 0 {
				return fmt.Errorf("config: rate_limit.tiers.%s.%s window must be positive", tier, class)
			}
			if p.Requests == 0 || p.Requests < -1 {
				return fmt.Errorf("config: rate_limit.tiers.%s.%s requests must be positive or -1 (unlimited)", tier, class)
			}
		}
	}

	if c.RateLimit.Unauthenticated.Requests <= 0 {
		return errors.New("config: rate_limit.unauthenticated.requests must be positive (never unlimited)")
	}
	if c.RateLimit.Unauthenticated.Window <= 0 {
		return errors.New("config: rate_limit.unauthenticated.window must be positive")
	}

	return nil
}
