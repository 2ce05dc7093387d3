// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package v1 implements the token retrieval and administrative API.
package v1

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	brokererr "github.com/stacklok/tokenbroker/pkg/errors"
	"github.com/stacklok/tokenbroker/pkg/lifecycle"
	"github.com/stacklok/tokenbroker/pkg/logger"
	"github.com/stacklok/tokenbroker/pkg/tokens"
)

// TokenRoutes defines the routes for the token API.
type TokenRoutes struct {
	manager *lifecycle.Manager
	store   tokens.Store

	// protected reports whether the deployment requires the shared secret.
	// In the public variant raw token listings are always masked.
	protected bool
}

// Router creates a new router for the token API. When authSecret is non-empty
// every route requires it via the X-Auth-Secret header or the secret query
// parameter.
func Router(manager *lifecycle.Manager, store tokens.Store, authSecret string) http.Handler {
	routes := TokenRoutes{
		manager:   manager,
		store:     store,
		protected: authSecret != "",
	}

	r := chi.NewRouter()
	r.Use(sharedSecretMiddleware(authSecret))
	r.Get("/tokens", routes.getDefaultToken)
	r.Get("/tokens/{userID}", routes.getToken)
	r.Delete("/tokens/{userID}", routes.deleteToken)
	r.Get("/users", routes.listUsers)
	r.Get("/records", routes.listRecords)
	return r
}

// getToken returns a usable access token for the user in the path,
// refreshing it first when stale.
func (t *TokenRoutes) getToken(w http.ResponseWriter, r *http.Request) {
	t.serveToken(w, r, chi.URLParam(r, "userID"))
}

// getDefaultToken returns a token for the first stored user. This shortcut
// exists for single-user deployments where the caller does not know the
// provider-side username.
func (t *TokenRoutes) getDefaultToken(w http.ResponseWriter, r *http.Request) {
	users := t.manager.KnownUsers(r.Context())
	if len(users) == 0 {
		http.Error(w, "no users authorized yet", http.StatusNotFound)
		return
	}
	t.serveToken(w, r, users[0])
}

func (t *TokenRoutes) serveToken(w http.ResponseWriter, r *http.Request, userID string) {
	if userID == "" {
		http.Error(w, "user ID is required", http.StatusBadRequest)
		return
	}

	token, err := t.manager.GetValidAccessToken(r.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case brokererr.IsNotFound(err):
			status = http.StatusNotFound
		case brokererr.IsProviderExchange(err):
			status = http.StatusBadGateway
		}
		logger.Errorf("failed to get access token for %s: %v", userID, err)
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(token); err != nil {
		http.Error(w, "failed to encode token response", http.StatusInternalServerError)
		return
	}
}

// userSummary describes a stored user without exposing token values.
type userSummary struct {
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
	Expired   bool   `json:"expired"`
}

// listUsers returns the stored user IDs with expiry metadata, never raw
// token values.
func (t *TokenRoutes) listUsers(w http.ResponseWriter, r *http.Request) {
	records := t.store.LoadAll(r.Context())

	summaries := make([]userSummary, 0, len(records))
	for userID, record := range records {
		summaries = append(summaries, userSummary{
			UserID:    userID,
			ExpiresAt: record.ExpiresAt,
			Expired:   record.IsExpired(),
		})
	}
	slices.SortFunc(summaries, func(a, b userSummary) int {
		return strings.Compare(a.UserID, b.UserID)
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		http.Error(w, "failed to encode user list", http.StatusInternalServerError)
		return
	}
}

// listRecords returns full token records. In the public deployment variant
// the token values are masked; in the protected variant the shared-secret
// middleware has already authenticated the caller.
func (t *TokenRoutes) listRecords(w http.ResponseWriter, r *http.Request) {
	records := t.store.LoadAll(r.Context())

	out := make([]*tokens.TokenRecord, 0, len(records))
	for _, record := range records {
		if !t.protected {
			record = &tokens.TokenRecord{
				UserID:       record.UserID,
				AccessToken:  maskToken(record.AccessToken),
				RefreshToken: maskToken(record.RefreshToken),
				ExpiresAt:    record.ExpiresAt,
			}
		}
		out = append(out, record)
	}
	slices.SortFunc(out, func(a, b *tokens.TokenRecord) int {
		return strings.Compare(a.UserID, b.UserID)
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		http.Error(w, "failed to encode record list", http.StatusInternalServerError)
		return
	}
}

// deleteToken removes the stored record for the user in the path. Idempotent.
func (t *TokenRoutes) deleteToken(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "user ID is required", http.StatusBadRequest)
		return
	}

	if err := t.store.Delete(r.Context(), userID); err != nil {
		logger.Errorf("failed to delete tokens for %s: %v", userID, err)
		http.Error(w, "failed to delete tokens", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// maskToken hides the middle of a token value, keeping just enough of the
// edges to correlate against provider dashboards.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
