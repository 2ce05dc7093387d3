// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"sync"
)

// MemoryStore implements Store with an in-memory map. This implementation is
// thread-safe and suitable for development and testing; records do not
// survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*TokenRecord
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*TokenRecord),
	}
}

// LoadAll returns a copy of every stored record.
func (s *MemoryStore) LoadAll(_ context.Context) map[string]*TokenRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make(map[string]*TokenRecord, len(s.records))
	for userID, record := range s.records {
		clone := *record
		records[userID] = &clone
	}
	return records
}

// Get returns the record for userID, or false if absent.
func (s *MemoryStore) Get(_ context.Context, userID string) (*TokenRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, false
	}
	clone := *record
	return &clone, true
}

// Save writes or overwrites the full record for userID.
func (s *MemoryStore) Save(_ context.Context, userID, accessToken, refreshToken string, expiresIn int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[userID] = &TokenRecord{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAtFromNow(expiresIn),
	}
	return nil
}

// UpdateAccessToken replaces the access token and expiry of an existing
// record. A no-op if the record is absent.
func (s *MemoryStore) UpdateAccessToken(_ context.Context, userID, accessToken string, expiresIn int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		return nil
	}
	record.AccessToken = accessToken
	record.ExpiresAt = expiresAtFromNow(expiresIn)
	return nil
}

// Delete removes the record for userID. Idempotent.
func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}
