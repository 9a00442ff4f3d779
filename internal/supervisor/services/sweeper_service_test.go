// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls atomic.Int64
}

func (c *countingSweeper) Sweep() int {
	c.calls.Add(1)
	return 1
}

func TestSweeperServiceRunsPeriodically(t *testing.T) {
	t.Parallel()

	sweeper := &countingSweeper{}
	svc := NewSweeperService(sweeper, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := svc.Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve returned %v, want context deadline", err)
	}
	if sweeper.calls.Load() == 0 {
		t.Error("Sweeper never ran")
	}
}

func TestSweeperServiceStopsOnCancel(t *testing.T) {
	t.Parallel()

	svc := NewSweeperService(&countingSweeper{}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestSweeperServiceString(t *testing.T) {
	t.Parallel()
	if got := NewSweeperService(&countingSweeper{}, time.Minute).String(); got == "" {
		t.Error("String() is empty")
	}
}
