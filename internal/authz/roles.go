// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

// Package authz decides whether an authenticated Principal may reach a
// route, combining a casbin role hierarchy with subscription-tier
// checks.
package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/voxgate/voxgate/internal/auth"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// RoleResolver answers role-satisfaction queries against a casbin
// grouping policy, so role hierarchy (admin inherits user and service)
// lives in policy rather than code.
type RoleResolver struct {
	enforcer *casbin.SyncedEnforcer
}

// RoleResolverConfig holds optional overrides for the embedded policy.
type RoleResolverConfig struct {
	// ModelPath overrides the embedded casbin model when it names an
	// existing file.
	ModelPath string

	// PolicyPath overrides the embedded grouping policy when it names
	// an existing file.
	PolicyPath string
}

// NewRoleResolver creates a resolver from the embedded model and
// policy, or from the configured override files.
func NewRoleResolver(cfg *RoleResolverConfig) (*RoleResolver, error) {
	if cfg == nil {
		cfg = &RoleResolverConfig{}
	}

	var m model.Model
	var err error
	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	policy := embeddedPolicy
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		data, err := os.ReadFile(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("read policy file: %w", err)
		}
		policy = string(data)
	}
	if err := loadGroupingPolicy(enforcer, policy); err != nil {
		return nil, err
	}

	return &RoleResolver{enforcer: enforcer}, nil
}

// loadGroupingPolicy parses g-lines from the policy CSV.
func loadGroupingPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if parts[0] != "g" || len(parts) < 3 {
			continue
		}

		if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
			return fmt.Errorf("add grouping policy %v: %w", parts[1:], err)
		}
	}
	return nil
}

// Satisfies reports whether the held role meets the required role,
// either directly or through the grouping hierarchy.
func (r *RoleResolver) Satisfies(held, required auth.Role) (bool, error) {
	if held == required {
		return true, nil
	}
	ok, err := r.enforcer.HasRoleForUser(string(held), string(required))
	if err != nil {
		return false, fmt.Errorf("role query %s->%s: %w", held, required, err)
	}
	return ok, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
