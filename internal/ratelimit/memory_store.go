// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

// shardCount trades memory for lock granularity. Power of two so the
// hash maps to a shard with a mask.
const shardCount = 64

// counter is one fixed-window bucket.
type counter struct {
	count       int
	windowStart time.Time
	windowEnd   time.Time
}

// shard holds a slice of the key space under its own lock so
// contention stays scoped: requests for unrelated keys only collide
// when they hash to the same shard.
type shard struct {
	mu       sync.Mutex
	counters map[string]*counter
}

// MemoryStore is the in-process CounterStore. Counters are created
// lazily on first admission and evicted by Sweep once their window
// has expired; nothing survives a process restart.
type MemoryStore struct {
	shards [shardCount]*shard
}

// NewMemoryStore creates an empty in-process counter store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{counters: make(map[string]*counter)}
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key)) //nolint:errcheck // fnv never fails
	return s.shards[h.Sum32()&(shardCount-1)]
}

// Incr implements CounterStore. The increment and window rollover
// happen under the shard lock, so concurrent callers for the same key
// always observe distinct counts.
func (s *MemoryStore) Incr(key string, window time.Duration, now time.Time) (int, time.Time, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.counters[key]
	if !ok || !now.Before(c.windowEnd) {
		c = &counter{
			windowStart: now,
			windowEnd:   now.Add(window),
		}
		sh.counters[key] = c
	}

	c.count++
	return c.count, c.windowStart, nil
}

// Sweep implements CounterStore, evicting every counter whose window
// has expired.
func (s *MemoryStore) Sweep(now time.Time) int {
	evicted := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, c := range sh.counters {
			if !now.Before(c.windowEnd) {
				delete(sh.counters, key)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}

// Len returns the number of live counters across all shards.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.counters)
		sh.mu.Unlock()
	}
	return n
}

// Close implements CounterStore. The memory store holds no external
// resources.
func (s *MemoryStore) Close() error {
	return nil
}
