// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle decides whether a stored access token is fit for use and
// obtains a replacement when it is not. It holds no state across calls: every
// decision re-reads the durable record, so the token store stays the single
// source of truth across processes.
package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	brokererr "github.com/stacklok/tokenbroker/pkg/errors"
	"github.com/stacklok/tokenbroker/pkg/logger"
	"github.com/stacklok/tokenbroker/pkg/provider"
	"github.com/stacklok/tokenbroker/pkg/tokens"
)

// RefreshSkew is the safety margin subtracted from a token's expiry when
// classifying it. A token inside the skew window is refreshed proactively so
// the value handed to a caller stays valid for the caller's own outbound
// request, not just at the instant of the check.
const RefreshSkew = 5 * time.Minute

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*provider.TokenResult, error)
}

// AccessToken is the result of a token retrieval.
type AccessToken struct {
	// UserID is the user the token belongs to.
	UserID string `json:"user_id"`

	// AccessToken is a bearer credential valid for at least RefreshSkew.
	AccessToken string `json:"access_token"`

	// Refreshed reports whether a refresh exchange was performed on this call.
	Refreshed bool `json:"refreshed"`
}

// Manager implements the token lifecycle: classify the stored record as fresh
// or stale, refresh and persist when stale, and hand back a usable token.
type Manager struct {
	store     tokens.Store
	refresher Refresher

	// group collapses concurrent stale-check-and-refresh sequences for the
	// same user into one provider call. In-process only; two server
	// instances sharing a store can still race, which the store's
	// last-write-wins semantics tolerate.
	group singleflight.Group

	now func() time.Time
}

// ManagerOption configures a Manager instance.
type ManagerOption func(*Manager)

// WithNowFunc overrides the clock. Used in tests.
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a lifecycle manager on top of the given store and refresher.
func NewManager(store tokens.Store, refresher Refresher, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		refresher: refresher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetValidAccessToken returns a usable access token for userID, refreshing
// and persisting it first when the stored one is stale. A missing record
// fails with a not-found error naming the known users. A failed refresh
// propagates the provider's error; the stale token is never handed out.
func (m *Manager) GetValidAccessToken(ctx context.Context, userID string) (*AccessToken, error) {
	result, err, _ := m.group.Do(userID, func() (any, error) {
		return m.getValidAccessToken(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*AccessToken), nil
}

func (m *Manager) getValidAccessToken(ctx context.Context, userID string) (*AccessToken, error) {
	record, ok := m.store.Get(ctx, userID)
	if !ok {
		return nil, m.notFound(ctx, userID)
	}

	if m.isFresh(record) {
		return &AccessToken{
			UserID:      userID,
			AccessToken: record.AccessToken,
			Refreshed:   false,
		}, nil
	}

	logger.Infow("access token stale, refreshing",
		"user_id", userID, "expires_at", record.ExpiryTime())

	refreshed, err := m.refresher.Refresh(ctx, record.RefreshToken)
	if err != nil {
		return nil, err
	}

	if err := m.store.UpdateAccessToken(ctx, userID, refreshed.AccessToken, refreshed.ExpiresIn); err != nil {
		return nil, err
	}

	return &AccessToken{
		UserID:      userID,
		AccessToken: refreshed.AccessToken,
		Refreshed:   true,
	}, nil
}

// isFresh classifies the record: fresh while now < expiry - RefreshSkew.
func (m *Manager) isFresh(record *tokens.TokenRecord) bool {
	return m.now().Before(record.ExpiryTime().Add(-RefreshSkew))
}

func (m *Manager) notFound(ctx context.Context, userID string) error {
	known := m.KnownUsers(ctx)

	msg := fmt.Sprintf("no tokens stored for user %q", userID)
	if len(known) > 0 {
		msg = fmt.Sprintf("%s (known users: %s)", msg, strings.Join(known, ", "))
	}
	return brokererr.NewNotFoundError(msg, nil)
}

// KnownUsers returns the IDs of every user with a stored record, sorted.
func (m *Manager) KnownUsers(ctx context.Context) []string {
	known := make([]string, 0)
	for id := range m.store.LoadAll(ctx) {
		known = append(known, id)
	}
	slices.Sort(known)
	return known
}
