// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

// Package store provides the user/session store backing credential
// enrichment and API-key resolution.
//
// The in-memory implementation is the development and test backend; in
// production the same interface fronts the platform's user service.
// API keys are stored bcrypt-hashed, never in plaintext, and carry a
// random key ID in the presented value so lookup does not require
// hashing against every stored key.
package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/voxgate/voxgate/internal/auth"
)

// bcryptCost for API-key secrets. Interactive-login hardness is not
// needed here, but keys are long random strings so the cost mainly
// bounds verification latency.
const bcryptCost = 12

// keyPrefix marks Voxgate-issued API keys.
const keyPrefix = "vg"

// secretBytes of entropy per API-key secret.
const secretBytes = 24

// MemoryStore is an in-memory auth.UserStore.
type MemoryStore struct {
	mu       sync.RWMutex
	subjects map[string]*auth.SubjectRecord
	keys     map[string]*apiKeyRecord
}

type apiKeyRecord struct {
	hash      []byte
	subjectID string
	email     string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subjects: make(map[string]*auth.SubjectRecord),
		keys:     make(map[string]*apiKeyRecord),
	}
}

// UpsertSubject stores or replaces the record for a subject.
func (s *MemoryStore) UpsertSubject(subjectID string, rec auth.SubjectRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subjectID] = &rec
}

// LookupBySubject implements auth.UserStore.
func (s *MemoryStore) LookupBySubject(_ context.Context, subjectID string) (*auth.SubjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.subjects[subjectID]
	if !ok {
		return nil, auth.ErrSubjectNotFound
	}

	out := *rec
	if rec.Subscription != nil {
		sub := *rec.Subscription
		out.Subscription = &sub
	}
	return &out, nil
}

// CreateAPIKey mints a key for the subject and returns the plaintext
// value. The plaintext is shown exactly once; only the bcrypt hash is
// retained.
func (s *MemoryStore) CreateAPIKey(subjectID, email string) (string, error) {
	keyID := strings.ReplaceAll(uuid.NewString(), "-", "")

	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate api key secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash api key secret: %w", err)
	}

	s.mu.Lock()
	s.keys[keyID] = &apiKeyRecord{
		hash:      hash,
		subjectID: subjectID,
		email:     email,
	}
	s.mu.Unlock()

	return fmt.Sprintf("%s_%s_%s", keyPrefix, keyID, secret), nil
}

// LookupByAPIKey implements auth.UserStore. Unknown key IDs, bad
// secrets, and unrecognizable values all return ErrInvalidAPIKey; the
// caller cannot distinguish which part failed.
func (s *MemoryStore) LookupByAPIKey(ctx context.Context, key string) (*auth.Principal, error) {
	keyID, secret, ok := splitKey(key)
	if !ok {
		return nil, auth.ErrInvalidAPIKey
	}

	s.mu.RLock()
	rec, found := s.keys[keyID]
	s.mu.RUnlock()
	if !found {
		return nil, auth.ErrInvalidAPIKey
	}

	if err := bcrypt.CompareHashAndPassword(rec.hash, []byte(secret)); err != nil {
		return nil, auth.ErrInvalidAPIKey
	}

	p := &auth.Principal{
		SubjectID: rec.subjectID,
		Email:     rec.email,
		Role:      auth.RoleService,
	}

	// Keys inherit the owning subject's subscription when one exists.
	if sub, err := s.LookupBySubject(ctx, rec.subjectID); err == nil {
		p.Subscription = sub.Subscription
	}
	return p, nil
}

// RevokeAPIKey deletes the key with the given plaintext value's ID.
func (s *MemoryStore) RevokeAPIKey(key string) bool {
	keyID, _, ok := splitKey(key)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.keys[keyID]; !found {
		return false
	}
	delete(s.keys, keyID)
	return true
}

// splitKey parses "vg_<keyID>_<secret>".
func splitKey(key string) (keyID, secret string, ok bool) {
	parts := strings.SplitN(key, "_", 3)
	if len(parts) != 3 || parts[0] != keyPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
