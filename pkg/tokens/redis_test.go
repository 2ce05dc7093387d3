// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreWithClient(client, ""), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	before := time.Now().UnixMilli()
	require.NoError(t, store.Save(ctx, "alice", "AT1", "RT1", 7200))
	after := time.Now().UnixMilli()

	record, ok := store.Get(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, "alice", record.UserID)
	assert.Equal(t, "AT1", record.AccessToken)
	assert.Equal(t, "RT1", record.RefreshToken)
	assert.GreaterOrEqual(t, record.ExpiresAt, before+7200*1000)
	assert.LessOrEqual(t, record.ExpiresAt, after+7200*1000)
}

func TestRedisStoreGetAbsent(t *testing.T) {
	t.Parallel()
	store, _ := newTestRedisStore(t)

	_, ok := store.Get(context.Background(), "ghost")
	assert.False(t, ok)
}

func TestRedisStoreUsesNamespacedKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Save(ctx, "alice", "AT1", "RT1", 7200))

	assert.True(t, mr.Exists(DefaultKeyPrefix+"alice"))
}

func TestRedisStoreLoadAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Save(ctx, "alice", "AT1", "RT1", 7200))
	require.NoError(t, store.Save(ctx, "bob", "AT2", "RT2", 7200))

	// Keys outside the namespace must not leak into the listing.
	require.NoError(t, mr.Set("unrelated", "value"))

	records := store.LoadAll(ctx)
	require.Len(t, records, 2)
	assert.Equal(t, "AT1", records["alice"].AccessToken)
	assert.Equal(t, "AT2", records["bob"].AccessToken)
}

func TestRedisStoreLoadAllCorruptEntrySkipped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Save(ctx, "alice", "AT1", "RT1", 7200))
	require.NoError(t, mr.Set(DefaultKeyPrefix+"broken", "not json"))

	records := store.LoadAll(ctx)
	require.Len(t, records, 1)
	assert.Contains(t, records, "alice")
}

func TestRedisStoreUpdateAccessTokenPreservesRefreshToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	require.NoError(t, store.Save(ctx, "alice", "AT1", "RT1", 60))
	require.NoError(t, store.UpdateAccessToken(ctx, "alice", "AT2", 7200))

	record, ok := store.Get(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, "AT2", record.AccessToken)
	assert.Equal(t, "RT1", record.RefreshToken)
}

func TestRedisStoreUpdateAccessTokenNonexistentIsNoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	require.NoError(t, store.UpdateAccessToken(ctx, "ghost", "AT1", 7200))

	_, ok := store.Get(ctx, "ghost")
	assert.False(t, ok)
}

func TestRedisStoreDeleteIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	require.NoError(t, store.Save(ctx, "alice", "AT1", "RT1", 7200))

	require.NoError(t, store.Delete(ctx, "alice"))
	_, ok := store.Get(ctx, "alice")
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "alice"))
	require.NoError(t, store.Delete(ctx, "ghost"))
}

func TestRedisStoreReadFailureDegradesToAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Save(ctx, "alice", "AT1", "RT1", 7200))
	mr.SetError("backend down")

	_, ok := store.Get(ctx, "alice")
	assert.False(t, ok)
	assert.Empty(t, store.LoadAll(ctx))
}
