// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, "alice", "AT1", "RT1", 7200))

	record, ok := store.Get(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, "AT1", record.AccessToken)
	assert.Equal(t, "RT1", record.RefreshToken)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, "alice", "AT1", "RT1", 7200))

	record, ok := store.Get(ctx, "alice")
	require.True(t, ok)
	record.AccessToken = "tampered"

	fresh, ok := store.Get(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, "AT1", fresh.AccessToken)
}

func TestMemoryStoreUpdateAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.UpdateAccessToken(ctx, "ghost", "AT1", 7200))
	_, ok := store.Get(ctx, "ghost")
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "alice", "AT1", "RT1", 60))
	require.NoError(t, store.UpdateAccessToken(ctx, "alice", "AT2", 7200))

	record, ok := store.Get(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, "AT2", record.AccessToken)
	assert.Equal(t, "RT1", record.RefreshToken)

	require.NoError(t, store.Delete(ctx, "alice"))
	require.NoError(t, store.Delete(ctx, "alice"))
	assert.Empty(t, store.LoadAll(ctx))
}
