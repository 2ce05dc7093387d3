// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/tokenbroker/pkg/lifecycle"
	"github.com/stacklok/tokenbroker/pkg/provider"
	"github.com/stacklok/tokenbroker/pkg/tokens"
)

// fakeRefresher hands out a fixed replacement access token, or fails.
type fakeRefresher struct {
	err error
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string) (*provider.TokenResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.TokenResult{AccessToken: "AT2", RefreshToken: "RT1", ExpiresIn: 7200}, nil
}

func newTestRouter(t *testing.T, authSecret string) (http.Handler, tokens.Store) {
	t.Helper()
	store := tokens.NewMemoryStore()
	manager := lifecycle.NewManager(store, &fakeRefresher{})
	return Router(manager, store, authSecret), store
}

func decodeToken(t *testing.T, rec *httptest.ResponseRecorder) lifecycle.AccessToken {
	t.Helper()
	var token lifecycle.AccessToken
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&token))
	return token
}

func TestGetTokenFreshOutsideSkew(t *testing.T) {
	t.Parallel()
	router, store := newTestRouter(t, "")

	// Expires in 10 minutes, outside the 5 minute skew window.
	require.NoError(t, store.Save(t.Context(), "alice", "AT1", "RT1", 600))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens/alice", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	token := decodeToken(t, rec)
	assert.Equal(t, "alice", token.UserID)
	assert.Equal(t, "AT1", token.AccessToken)
	assert.False(t, token.Refreshed)

	record, ok := store.Get(t.Context(), "alice")
	require.True(t, ok)
	assert.Equal(t, "AT1", record.AccessToken)
}

func TestGetTokenStaleInsideSkew(t *testing.T) {
	t.Parallel()
	router, store := newTestRouter(t, "")

	// Expires in 4 minutes, inside the skew window.
	require.NoError(t, store.Save(t.Context(), "alice", "AT1", "RT1", 240))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens/alice", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	token := decodeToken(t, rec)
	assert.Equal(t, "AT2", token.AccessToken)
	assert.True(t, token.Refreshed)

	record, ok := store.Get(t.Context(), "alice")
	require.True(t, ok)
	assert.Equal(t, "AT2", record.AccessToken)
	assert.Equal(t, "RT1", record.RefreshToken)
}

func TestGetTokenUnknownUser(t *testing.T) {
	t.Parallel()
	router, store := newTestRouter(t, "")
	require.NoError(t, store.Save(t.Context(), "alice", "AT1", "RT1", 600))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens/ghost", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	// The error names the known users to aid recovery.
	assert.Contains(t, rec.Body.String(), "alice")
}

func TestGetTokenDefaultsToFirstUser(t *testing.T) {
	t.Parallel()
	router, store := newTestRouter(t, "")
	require.NoError(t, store.Save(t.Context(), "bob", "ATB", "RTB", 600))
	require.NoError(t, store.Save(t.Context(), "alice", "ATA", "RTA", 600))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	token := decodeToken(t, rec)
	assert.Equal(t, "alice", token.UserID)
	assert.Equal(t, "ATA", token.AccessToken)
}

func TestGetTokenDefaultNoUsers(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTokenRefreshFailure(t *testing.T) {
	t.Parallel()
	store := tokens.NewMemoryStore()
	manager := lifecycle.NewManager(store, &fakeRefresher{
		err: assert.AnError,
	})
	router := Router(manager, store, "")

	require.NoError(t, store.Save(t.Context(), "alice", "AT1", "RT1", 0))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens/alice", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListUsersOmitsTokenValues(t *testing.T) {
	t.Parallel()
	router, store := newTestRouter(t, "")
	require.NoError(t, store.Save(t.Context(), "bob", "ATB", "RTB", 600))
	require.NoError(t, store.Save(t.Context(), "alice", "ATA", "RTA", 600))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []userSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "alice", summaries[0].UserID)
	assert.Equal(t, "bob", summaries[1].UserID)
	assert.False(t, summaries[0].Expired)
}

func TestListRecordsMaskedInPublicVariant(t *testing.T) {
	t.Parallel()
	router, store := newTestRouter(t, "")
	require.NoError(t, store.Save(t.Context(), "alice", "secret-access-token", "secret-refresh-token", 600))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "secret-access-token")
	assert.NotContains(t, body, "secret-refresh-token")
	assert.Contains(t, body, "secr...oken")
}

func TestListRecordsUnmaskedInProtectedVariant(t *testing.T) {
	t.Parallel()
	router, store := newTestRouter(t, "s3cret")
	require.NoError(t, store.Save(t.Context(), "alice", "secret-access-token", "secret-refresh-token", 600))

	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	req.Header.Set("X-Auth-Secret", "s3cret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "secret-access-token")
}

func TestDeleteTokenIsIdempotent(t *testing.T) {
	t.Parallel()
	router, store := newTestRouter(t, "")
	require.NoError(t, store.Save(t.Context(), "alice", "AT1", "RT1", 600))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/tokens/alice", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, ok := store.Get(t.Context(), "alice")
	assert.False(t, ok)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/tokens/alice", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSharedSecretMiddleware(t *testing.T) {
	t.Parallel()
	router, store := newTestRouter(t, "s3cret")
	require.NoError(t, store.Save(t.Context(), "alice", "AT1", "RT1", 600))

	// No credential.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens/alice", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong credential.
	req := httptest.NewRequest(http.MethodGet, "/tokens/alice", nil)
	req.Header.Set("X-Auth-Secret", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Header credential.
	req = httptest.NewRequest(http.MethodGet, "/tokens/alice", nil)
	req.Header.Set("X-Auth-Secret", "s3cret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Query parameter credential.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens/alice?secret=s3cret", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
