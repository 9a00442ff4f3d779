// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of an admission check. Denial is a normal
// control-flow outcome, never an error.
type Decision struct {
	// Allowed reports whether the request is admitted.
	Allowed bool

	// Remaining is the number of requests left in the window.
	Remaining int

	// RetryAfter is how long until the window resets. Positive only
	// on denial.
	RetryAfter time.Duration
}

// CounterStore holds the mutable window counters. Incr must be atomic
// per key: concurrent callers for the same key must observe distinct
// counts. Contention must be scoped per key (or per shard), never
// global.
type CounterStore interface {
	// Incr increments the counter for key inside its current fixed
	// window, creating or resetting the counter when the window has
	// rolled over. Returns the count after increment and the window
	// start.
	Incr(key string, window time.Duration, now time.Time) (count int, windowStart time.Time, err error)

	// Sweep evicts counters whose window has expired, returning the
	// number evicted.
	Sweep(now time.Time) int

	// Close releases store resources.
	Close() error
}

// BucketKey builds the stable identifier for a quota bucket from the
// subject (or client address) and the route class.
func BucketKey(owner string, class Class) string {
	return owner + "|" + string(class)
}

// Limiter decides request admission using fixed-window counting.
type Limiter struct {
	store CounterStore
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the limiter's time source. For tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a limiter over the given counter store.
func NewLimiter(store CounterStore, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit performs one admission check for the key under the policy.
//
// The order is increment-then-check: the request that pushes the count
// past MaxRequests is itself denied, so exactly MaxRequests requests
// succeed per window. Once applied, the increment is never rolled
// back; a canceled request still counts.
//
// Unlimited policies bypass the store entirely so unlimited-tier keys
// never accumulate counters.
func (l *Limiter) Admit(ctx context.Context, key string, policy Policy) (Decision, error) {
	if policy.IsUnlimited() {
		return Decision{Allowed: true, Remaining: Unlimited}, nil
	}
	if policy.MaxRequests <= 0 || policy.Window <= 0 {
		return Decision{}, fmt.Errorf("ratelimit: invalid policy %+v for key %q", policy, key)
	}

	now := l.now()
	count, windowStart, err := l.store.Incr(key, policy.Window, now)
	if err != nil {
		// Fail closed: an unavailable store denies rather than
		// waving traffic through unmetered.
		return Decision{}, fmt.Errorf("ratelimit: incr %q: %w", key, err)
	}

	if count > policy.MaxRequests {
		retry := windowStart.Add(policy.Window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}

	return Decision{Allowed: true, Remaining: policy.MaxRequests - count}, nil
}

// Sweep evicts expired counters from the underlying store.
func (l *Limiter) Sweep() int {
	return l.store.Sweep(l.now())
}

// Close releases the underlying store.
func (l *Limiter) Close() error {
	return l.store.Close()
}
