// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package gate

import (
	"net"
	"net/http"
	"strings"
)

// ProxyTrust resolves the real client address, honoring forwarding
// headers only when the direct peer is a configured trusted proxy.
// Forwarded headers from untrusted peers are attacker-controlled and
// must never influence rate-limit bucketing.
type ProxyTrust struct {
	trusted map[string]bool
}

// NewProxyTrust creates a resolver trusting the given proxy addresses.
func NewProxyTrust(proxies []string) *ProxyTrust {
	trusted := make(map[string]bool, len(proxies))
	for _, p := range proxies {
		trusted[p] = true
	}
	return &ProxyTrust{trusted: trusted}
}

// ClientIP extracts the client IP address from the request.
func (pt *ProxyTrust) ClientIP(r *http.Request) string {
	remoteIP := remoteIP(r)

	if !pt.isTrusted(remoteIP) {
		return remoteIP
	}

	if ip := extractFromXFF(r); ip != "" {
		return ip
	}
	if ip := extractFromXRealIP(r); ip != "" {
		return ip
	}
	return remoteIP
}

func (pt *ProxyTrust) isTrusted(remoteIP string) bool {
	return len(pt.trusted) > 0 && pt.trusted[remoteIP]
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// extractFromXFF returns the first valid IP in X-Forwarded-For, the
// address closest to the original client.
func extractFromXFF(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	for _, part := range strings.Split(xff, ",") {
		candidate := strings.TrimSpace(part)
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}
	return ""
}

func extractFromXRealIP(r *http.Request) string {
	candidate := strings.TrimSpace(r.Header.Get("X-Real-Ip"))
	if candidate != "" && net.ParseIP(candidate) != nil {
		return candidate
	}
	return ""
}
