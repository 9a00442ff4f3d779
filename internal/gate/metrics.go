// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Chain outcome metrics. The stage label names the check that
	// terminated the request; "handler" means the full chain passed.
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgate_gate_decisions_total",
			Help: "Gatekeeper chain outcomes by terminating stage",
		},
		[]string{"stage", "outcome"},
	)

	decisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voxgate_gate_decision_duration_seconds",
			Help:    "Time spent in the gatekeeper chain, excluding the handler",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	requestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxgate_requests_in_flight",
			Help: "Requests currently inside the gatekeeper or its handler",
		},
	)

	rateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgate_rate_limit_denials_total",
			Help: "Requests denied by rate limiting",
		},
		[]string{"scope", "class"}, // scope: address | subject
	)

	authFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgate_auth_failures_total",
			Help: "Credential verification failures by reason",
		},
		[]string{"reason"},
	)

	authzDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgate_authz_denials_total",
			Help: "Authorization denials by reason",
		},
		[]string{"reason"},
	)

	csrfFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voxgate_csrf_failures_total",
			Help: "Requests rejected by the CSRF guard",
		},
	)
)
