// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package gate

import (
	"context"

	"github.com/voxgate/voxgate/internal/auth"
)

type contextKey string

const principalKey contextKey = "voxgate.principal"

// ContextWithPrincipal attaches the authenticated principal to the
// request context. The chain calls this after verification; handlers
// read it back with PrincipalFromContext.
func ContextWithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal set by the chain, or nil
// for anonymous routes.
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalKey).(*auth.Principal)
	return p
}
