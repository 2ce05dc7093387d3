// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"

	brokererr "github.com/stacklok/tokenbroker/pkg/errors"
	"github.com/stacklok/tokenbroker/pkg/logger"
)

// lockTimeout is the maximum time to wait for the token file lock.
const lockTimeout = 1 * time.Second

// FileStore implements Store using a single JSON document on the local
// filesystem. All records live in one document; every mutation is a locked
// read-modify-write of the whole file.
type FileStore struct {
	filePath string
}

// NewFileStore creates a file-backed token store at the given path.
// If filePath is empty, the default XDG data path is used.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		var err error
		filePath, err = xdg.DataFile("tokenbroker/tokens.json")
		if err != nil {
			return nil, fmt.Errorf("unable to resolve token file path: %w", err)
		}
	}
	return &FileStore{filePath: path.Clean(filePath)}, nil
}

// Path returns the file path backing this store.
func (s *FileStore) Path() string {
	return s.filePath
}

// LoadAll returns every stored record. A missing, unreadable, or corrupt
// token file degrades to an empty map.
func (s *FileStore) LoadAll(_ context.Context) map[string]*TokenRecord {
	records, err := s.read()
	if err != nil {
		logger.Warnw("token file read failed, treating store as empty",
			"path", s.filePath, "error", err)
		return map[string]*TokenRecord{}
	}
	return records
}

// Get returns the record for userID, or false if absent or unreadable.
func (s *FileStore) Get(ctx context.Context, userID string) (*TokenRecord, bool) {
	record, ok := s.LoadAll(ctx)[userID]
	return record, ok
}

// Save writes or overwrites the full record for userID.
func (s *FileStore) Save(ctx context.Context, userID, accessToken, refreshToken string, expiresIn int64) error {
	return s.withLock(ctx, func(records map[string]*TokenRecord) bool {
		records[userID] = &TokenRecord{
			UserID:       userID,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    expiresAtFromNow(expiresIn),
		}
		return true
	})
}

// UpdateAccessToken replaces the access token and expiry of an existing
// record, preserving the refresh token. A no-op if the record is absent.
func (s *FileStore) UpdateAccessToken(ctx context.Context, userID, accessToken string, expiresIn int64) error {
	return s.withLock(ctx, func(records map[string]*TokenRecord) bool {
		record, ok := records[userID]
		if !ok {
			return false
		}
		record.AccessToken = accessToken
		record.ExpiresAt = expiresAtFromNow(expiresIn)
		return true
	})
}

// Delete removes the record for userID. Idempotent.
func (s *FileStore) Delete(ctx context.Context, userID string) error {
	return s.withLock(ctx, func(records map[string]*TokenRecord) bool {
		if _, ok := records[userID]; !ok {
			return false
		}
		delete(records, userID)
		return true
	})
}

// read loads and parses the token document. Returns an empty map when the
// file does not exist yet.
func (s *FileStore) read() (map[string]*TokenRecord, error) {
	// #nosec G304: the path is fixed at construction time.
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]*TokenRecord{}, nil
		}
		return nil, brokererr.NewStoreReadError("failed to read token file", err)
	}

	records := map[string]*TokenRecord{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, brokererr.NewStoreReadError("failed to parse token file", err)
	}
	return records, nil
}

// withLock runs mutate under the file lock and writes the document back when
// mutate reports a change. The lock spans the read so concurrent writers on
// the same host cannot clobber each other's records.
func (s *FileStore) withLock(ctx context.Context, mutate func(map[string]*TokenRecord) bool) error {
	fileLock := flock.New(s.filePath + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return brokererr.NewStoreWriteError("failed to acquire token file lock", err)
	}
	if !locked {
		return brokererr.NewStoreWriteError(
			fmt.Sprintf("failed to acquire token file lock: timeout after %v", lockTimeout), nil)
	}
	defer fileLock.Unlock()

	// Load after acquiring the lock to avoid racing other local writers.
	// A read failure here degrades to an empty document the same way
	// read-only paths do.
	records, err := s.read()
	if err != nil {
		logger.Warnw("token file unreadable before write, starting from empty document",
			"path", s.filePath, "error", err)
		records = map[string]*TokenRecord{}
	}

	if !mutate(records) {
		return nil
	}
	return s.write(records)
}

// write persists the full token document.
func (s *FileStore) write(records map[string]*TokenRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0750); err != nil {
		return brokererr.NewStoreWriteError("failed to create token file directory", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return brokererr.NewStoreWriteError("failed to marshal token records", err)
	}

	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return brokererr.NewStoreWriteError("failed to write token file", err)
	}
	return nil
}
