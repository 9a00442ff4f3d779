// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// counterKeyPrefix namespaces rate-limit counters in the badger keyspace.
const counterKeyPrefix = "ratelimit:"

// incrMaxRetries bounds the optimistic-transaction retry loop.
const incrMaxRetries = 8

// badgerCounter is the stored representation of one window counter.
type badgerCounter struct {
	Count       int   `json:"count"`
	WindowStart int64 `json:"window_start_ns"`
}

// BadgerStore is a CounterStore backed by BadgerDB, for deployments
// that want limiter state to survive process restarts. Entries carry
// a TTL of twice the window so badger evicts stale counters on its
// own; Sweep only triggers value-log GC.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a badger-backed counter store over an open
// database handle. The caller owns the handle's lifecycle when it is
// shared; Close closes it.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadgerStore opens the badger database at path and wraps it.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Incr implements CounterStore. Badger's SSI transactions make the
// read-modify-write atomic; on write conflict the transaction is
// retried with fresh reads.
func (s *BadgerStore) Incr(key string, window time.Duration, now time.Time) (int, time.Time, error) {
	dbKey := []byte(counterKeyPrefix + key)

	var result badgerCounter
	for attempt := 0; attempt < incrMaxRetries; attempt++ {
		err := s.db.Update(func(txn *badger.Txn) error {
			c := badgerCounter{WindowStart: now.UnixNano()}

			item, err := txn.Get(dbKey)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				// First request for this key: fresh window.
			case err != nil:
				return fmt.Errorf("get counter: %w", err)
			default:
				var stored badgerCounter
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &stored)
				}); err != nil {
					return fmt.Errorf("decode counter: %w", err)
				}
				windowEnd := time.Unix(0, stored.WindowStart).Add(window)
				if now.Before(windowEnd) {
					c = stored
				}
			}

			c.Count++
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("encode counter: %w", err)
			}

			entry := badger.NewEntry(dbKey, data).WithTTL(2 * window)
			if err := txn.SetEntry(entry); err != nil {
				return fmt.Errorf("set counter: %w", err)
			}

			result = c
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return 0, time.Time{}, err
		}
		return result.Count, time.Unix(0, result.WindowStart), nil
	}

	return 0, time.Time{}, fmt.Errorf("incr %q: %w after %d attempts", key, badger.ErrConflict, incrMaxRetries)
}

// Sweep implements CounterStore. TTLs already expire stale counters;
// this reclaims value-log space.
func (s *BadgerStore) Sweep(time.Time) int {
	// ErrNoRewrite just means there was nothing worth compacting.
	if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return 0
	}
	return 0
}

// Close implements CounterStore.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
