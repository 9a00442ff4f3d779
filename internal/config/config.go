// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

// Package config loads and validates Voxgate configuration.
//
// Configuration is resolved in three layers, later layers overriding
// earlier ones: struct defaults, a YAML config file, and VOXGATE_*
// environment variables (VOXGATE_SECURITY__JWT_SECRET maps to
// security.jwt_secret).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Voxgate server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists origins allowed to call the API from browsers.
	CORSOrigins []string `koanf:"cors_origins"`

	// TrustedProxies lists proxy IPs whose X-Forwarded-For is honored
	// when deriving the client address for rate limiting.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// SecurityConfig holds credential verification and CSRF settings.
type SecurityConfig struct {
	// JWTSecret is the HMAC trust anchor for access tokens.
	// Minimum 32 characters; the server refuses to start otherwise.
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=32"`

	// Issuer, when set, must match the token's iss claim.
	Issuer string `koanf:"issuer"`

	// CSRFSecret keys the stateless CSRF token MAC. Distinct from
	// JWTSecret so the two token families cannot be confused.
	CSRFSecret string `koanf:"csrf_secret" validate:"required,min=32"`

	// CSRFTokenTTL bounds CSRF token lifetime. Minutes, not hours.
	CSRFTokenTTL time.Duration `koanf:"csrf_token_ttl" validate:"gt=0"`
}

// PolicyConfig describes one rate-limit window.
// Requests of -1 means unlimited.
type PolicyConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// RateLimitConfig holds rate limiter settings.
type RateLimitConfig struct {
	// Store selects the counter backend: "memory" or "badger".
	Store string `koanf:"store" validate:"oneof=memory badger"`

	// BadgerPath is the on-disk location for the badger store.
	BadgerPath string `koanf:"badger_path"`

	// SweepInterval is how often idle counters are evicted.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// Unauthenticated is the conservative default applied to
	// address-keyed buckets before identity is known.
	Unauthenticated PolicyConfig `koanf:"unauthenticated"`

	// Tiers maps subscription tier -> route class -> policy.
	Tiers map[string]map[string]PolicyConfig `koanf:"tiers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// defaultConfig returns a Config with all default values applied.
// Defaults are overridden by the config file and then env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8470,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{},
			TrustedProxies:  []string{},
		},
		Security: SecurityConfig{
			CSRFTokenTTL: 15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Store:         "memory",
			BadgerPath:    "/data/voxgate/ratelimit",
			SweepInterval: 5 * time.Minute,
			Unauthenticated: PolicyConfig{
				Requests: 30,
				Window:   time.Minute,
			},
			Tiers: map[string]map[string]PolicyConfig{
				"free": {
					"default": {Requests: 60, Window: time.Minute},
					"auth":    {Requests: 10, Window: time.Minute},
				},
				"plus": {
					"default": {Requests: 300, Window: time.Minute},
					"auth":    {Requests: 10, Window: time.Minute},
				},
				"pro": {
					"default":  {Requests: 1000, Window: time.Minute},
					"auth":     {Requests: 10, Window: time.Minute},
					"realtime": {Requests: 600, Window: time.Minute},
				},
				"enterprise": {
					"default":  {Requests: -1, Window: time.Minute},
					"auth":     {Requests: 30, Window: time.Minute},
					"realtime": {Requests: -1, Window: time.Minute},
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Addr returns the host:port the server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
