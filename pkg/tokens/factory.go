// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"fmt"
)

// StorageType defines the type of storage backend.
type StorageType string

const (
	// StorageTypeMemory uses in-memory storage.
	StorageTypeMemory StorageType = "memory"

	// StorageTypeFile uses a single JSON document on the local filesystem (default).
	StorageTypeFile StorageType = "file"

	// StorageTypeRedis uses Redis for shared persistent storage.
	StorageTypeRedis StorageType = "redis"
)

// StorageConfig configures the storage backend.
type StorageConfig struct {
	// Type specifies the storage backend type. Defaults to file.
	Type StorageType

	// FilePath is the token document path (file storage only).
	// Defaults to the XDG data path if not set.
	FilePath string

	// RedisURL is the Redis connection URL (e.g. redis://localhost:6379/0).
	// Required when Type is StorageTypeRedis.
	RedisURL string

	// RedisPassword is the Redis password.
	RedisPassword string

	// KeyPrefix is the prefix for all Redis keys.
	// Defaults to DefaultKeyPrefix if not set.
	KeyPrefix string
}

// NewStore creates a Store implementation based on config.
// If config is nil, defaults to file storage at the default path.
func NewStore(ctx context.Context, config *StorageConfig) (Store, error) {
	if config == nil {
		config = &StorageConfig{Type: StorageTypeFile}
	}

	switch config.Type {
	case StorageTypeMemory:
		return NewMemoryStore(), nil

	case StorageTypeFile, "":
		return NewFileStore(config.FilePath)

	case StorageTypeRedis:
		if config.RedisURL == "" {
			return nil, fmt.Errorf("redis_url is required for Redis storage")
		}

		opts := []RedisStoreOption{}
		if config.KeyPrefix != "" {
			opts = append(opts, WithKeyPrefix(config.KeyPrefix))
		}
		return NewRedisStore(ctx, config.RedisURL, config.RedisPassword, opts...)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", config.Type)
	}
}
