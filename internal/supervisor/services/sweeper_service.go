// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package services

import (
	"context"
	"time"

	"github.com/voxgate/voxgate/internal/logging"
)

// Sweeper is the subset of the rate limiter the sweeper service needs.
type Sweeper interface {
	Sweep() int
}

// SweeperService periodically evicts expired rate-limit counters so an
// idle deployment's counter store does not grow without bound.
type SweeperService struct {
	sweeper  Sweeper
	interval time.Duration
	name     string
}

// NewSweeperService creates a supervised counter sweeper.
func NewSweeperService(sweeper Sweeper, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweeperService{
		sweeper:  sweeper,
		interval: interval,
		name:     "ratelimit-sweeper",
	}
}

// Serve implements suture.Service.
func (s *SweeperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			evicted := s.sweeper.Sweep()
			if evicted > 0 {
				logging.Debug().Int("evicted", evicted).Msg("Swept expired rate-limit counters")
			}
		}
	}
}

// String implements fmt.Stringer for suture's event log.
func (s *SweeperService) String() string {
	return s.name
}
