// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	brokererr "github.com/stacklok/tokenbroker/pkg/errors"
	"github.com/stacklok/tokenbroker/pkg/logger"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// DefaultKeyPrefix is the default namespace for token record keys.
const DefaultKeyPrefix = "tokenbroker:tokens:"

// RedisStore implements Store with a Redis backend, one JSON entry per user
// under a namespaced key. Records carry no TTL; expired access tokens stay
// queryable and are refreshed, not purged.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisStoreOption configures a RedisStore instance.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets a custom key prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// NewRedisStore creates a Redis-backed token store from a connection URL
// (e.g. redis://localhost:6379/0). Returns an error if the URL is invalid or
// the connection cannot be established.
func NewRedisStore(ctx context.Context, redisURL, password string, opts ...RedisStoreOption) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if password != "" {
		redisOpts.Password = password
	}
	redisOpts.DialTimeout = DefaultDialTimeout
	redisOpts.ReadTimeout = DefaultReadTimeout
	redisOpts.WriteTimeout = DefaultWriteTimeout

	client := redis.NewClient(redisOpts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		// Close the client to prevent resource leak
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := &RedisStore{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewRedisStoreWithClient creates a RedisStore with a pre-configured client.
// This is useful for testing with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks Redis connectivity (health check).
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(userID string) string {
	return s.keyPrefix + userID
}

// LoadAll returns every stored record by scanning the key namespace.
// Backend failures degrade to an empty map.
func (s *RedisStore) LoadAll(ctx context.Context) map[string]*TokenRecord {
	records := map[string]*TokenRecord{}

	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		record, ok := s.getKey(ctx, key)
		if !ok {
			continue
		}
		records[strings.TrimPrefix(key, s.keyPrefix)] = record
	}
	if err := iter.Err(); err != nil {
		logger.Warnw("redis scan failed, treating store as empty", "error", err)
		return map[string]*TokenRecord{}
	}
	return records
}

// Get returns the record for userID, or false if absent or the backend
// read failed.
func (s *RedisStore) Get(ctx context.Context, userID string) (*TokenRecord, bool) {
	return s.getKey(ctx, s.key(userID))
}

func (s *RedisStore) getKey(ctx context.Context, key string) (*TokenRecord, bool) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warnw("redis read failed, treating record as absent", "key", key, "error", err)
		}
		return nil, false
	}

	var record TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		logger.Warnw("failed to unmarshal token record, treating record as absent", "key", key, "error", err)
		return nil, false
	}
	return &record, true
}

// Save writes or overwrites the full record for userID.
func (s *RedisStore) Save(ctx context.Context, userID, accessToken, refreshToken string, expiresIn int64) error {
	record := &TokenRecord{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAtFromNow(expiresIn),
	}
	return s.set(ctx, record)
}

// UpdateAccessToken replaces the access token and expiry of an existing
// record, preserving the refresh token. A no-op if the record is absent.
func (s *RedisStore) UpdateAccessToken(ctx context.Context, userID, accessToken string, expiresIn int64) error {
	record, ok := s.Get(ctx, userID)
	if !ok {
		return nil
	}
	record.AccessToken = accessToken
	record.ExpiresAt = expiresAtFromNow(expiresIn)
	return s.set(ctx, record)
}

// Delete removes the record for userID. Idempotent.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return brokererr.NewStoreWriteError("failed to delete token record", err)
	}
	return nil
}

func (s *RedisStore) set(ctx context.Context, record *TokenRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return brokererr.NewStoreWriteError("failed to marshal token record", err)
	}
	if err := s.client.Set(ctx, s.key(record.UserID), data, 0).Err(); err != nil {
		return brokererr.NewStoreWriteError("failed to write token record", err)
	}
	return nil
}
