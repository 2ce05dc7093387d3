// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package tokens provides storage interfaces and implementations for
// per-user OAuth token records.
package tokens

import (
	"context"
	"time"
)

// TokenRecord holds the token pair stored for one authorized user.
type TokenRecord struct {
	// UserID is the provider's username, or a synthetic fallback identifier
	// when the username could not be fetched during authorization.
	UserID string `json:"user_id"`

	// AccessToken is the short-lived bearer credential.
	AccessToken string `json:"access_token"`

	// RefreshToken is the long-lived credential used to mint new access tokens.
	// It is preserved across refreshes; the provider does not rotate it.
	RefreshToken string `json:"refresh_token"`

	// ExpiresAt is the absolute expiry of AccessToken in epoch milliseconds.
	// Always recomputed as now + expires_in when a token is received.
	ExpiresAt int64 `json:"expires_at"`
}

// ExpiryTime returns ExpiresAt as a time.Time.
func (r *TokenRecord) ExpiryTime() time.Time {
	return time.UnixMilli(r.ExpiresAt)
}

// IsExpired returns true if the access token has expired.
func (r *TokenRecord) IsExpired() bool {
	return time.Now().After(r.ExpiryTime())
}

// Store is the persistence contract for token records, keyed by user ID.
// All implementations are last-write-wins; there is no cross-writer locking.
type Store interface {
	// LoadAll returns every stored record keyed by user ID. A missing or
	// unreadable backing store degrades to an empty map: backend read
	// failures are logged, never propagated to read-only callers.
	LoadAll(ctx context.Context) map[string]*TokenRecord

	// Get returns the record for userID, or false if no record exists or
	// the backend read failed.
	Get(ctx context.Context, userID string) (*TokenRecord, bool)

	// Save writes or overwrites the full record for userID, computing the
	// expiry from expiresIn (seconds from now). Write failures propagate;
	// a swallowed write would lose a completed authorization.
	Save(ctx context.Context, userID, accessToken, refreshToken string, expiresIn int64) error

	// UpdateAccessToken replaces only the access token and expiry of an
	// existing record, preserving the refresh token. A no-op if no record
	// exists for userID.
	UpdateAccessToken(ctx context.Context, userID, accessToken string, expiresIn int64) error

	// Delete removes the record for userID. Absence of the record is not
	// an error.
	Delete(ctx context.Context, userID string) error
}

// expiresAtFromNow computes the absolute expiry in epoch milliseconds for a
// token valid for expiresIn seconds from now.
func expiresAtFromNow(expiresIn int64) int64 {
	return time.Now().UnixMilli() + expiresIn*1000
}
