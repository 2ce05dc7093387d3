// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/tokenbroker/pkg/logger"
	"github.com/stacklok/tokenbroker/pkg/provider"
	"github.com/stacklok/tokenbroker/pkg/tokens"
)

const (
	stateCookieName = "tokenbroker_oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

// flowRoutes drives the browser-facing legs of the authorization code grant.
type flowRoutes struct {
	prov  *provider.Client
	store tokens.Store
}

// FlowRouter creates the router for the OAuth login and callback endpoints.
func FlowRouter(prov *provider.Client, store tokens.Store) http.Handler {
	routes := flowRoutes{
		prov:  prov,
		store: store,
	}

	r := chi.NewRouter()
	r.Get("/login", routes.handleLogin)
	r.Get("/callback", routes.handleCallback)
	return r
}

// handleLogin redirects the browser to the provider's consent URL with a
// fresh CSRF state, remembered in a short-lived cookie.
func (f *flowRoutes) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		logger.Errorf("failed to generate state parameter: %v", err)
		http.Error(w, "failed to start authorization", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, f.prov.AuthCodeURL(state), http.StatusFound)
}

// handleCallback consumes the provider's redirect: a declined consent renders
// a denial page without contacting the provider, a missing code renders a
// failure page, and a successful exchange stores the token pair and renders a
// result page naming the user. Token values never appear in any page.
func (f *flowRoutes) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		logger.Infow("provider declined authorization", "error", errParam,
			"description", query.Get("error_description"))
		writeDeniedPage(w, errParam)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeFailurePage(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	// The state cookie is only present when the flow started at /auth/login
	// in the same browser. When it exists it must match.
	if cookie, err := r.Cookie(stateCookieName); err == nil {
		if cookie.Value != query.Get("state") {
			writeFailurePage(w, http.StatusBadRequest, "invalid state parameter")
			return
		}
	}

	result, err := f.prov.ExchangeCode(r.Context(), code)
	if err != nil {
		logger.Errorf("code exchange failed: %v", err)
		writeFailurePage(w, http.StatusBadGateway, err.Error())
		return
	}

	userID := f.resolveUserID(r.Context(), result.AccessToken)

	if err := f.store.Save(r.Context(), userID, result.AccessToken, result.RefreshToken, result.ExpiresIn); err != nil {
		logger.Errorf("failed to store tokens for %s: %v", userID, err)
		writeFailurePage(w, http.StatusInternalServerError, "authorization succeeded but tokens could not be stored")
		return
	}

	logger.Infow("authorization complete", "user_id", userID)
	writeSuccessPage(w, userID)
}

// resolveUserID determines the user identifier for a fresh token pair: the
// provider's identity endpoint first, then a subject claim if the access
// token is a JWT, then a synthetic identifier. The synthetic fallback trades
// identity for availability and can create duplicate records for the same
// real user across repeated authorizations.
func (f *flowRoutes) resolveUserID(ctx context.Context, accessToken string) string {
	userID, err := f.prov.ResolveIdentity(ctx, accessToken)
	if err == nil {
		return userID
	}
	logger.Warnf("identity lookup failed: %v", err)

	if subject, err := provider.SubjectFromToken(accessToken); err == nil {
		return subject
	}

	synthetic := generateSyntheticUserID()
	logger.Warnw("falling back to synthetic user identifier", "user_id", synthetic)
	return synthetic
}

func generateSyntheticUserID() string {
	return fmt.Sprintf("user_%d", time.Now().UnixMilli())
}

func generateState() (string, error) {
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(stateBytes), nil
}
