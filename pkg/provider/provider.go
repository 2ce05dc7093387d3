// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package provider drives the OAuth 2.0 authorization code grant against the
// configured identity provider: consent URL construction, code-for-token
// exchange, refresh-token exchange, and identity lookup.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	brokererr "github.com/stacklok/tokenbroker/pkg/errors"
)

// Environment selects which set of provider base URLs is used.
type Environment string

const (
	// EnvironmentProduction targets the provider's production endpoints.
	EnvironmentProduction Environment = "production"

	// EnvironmentSandbox targets the provider's sandbox endpoints.
	EnvironmentSandbox Environment = "sandbox"
)

// Endpoints holds the provider URLs for one environment.
type Endpoints struct {
	// AuthURL is the authorization (consent) endpoint.
	AuthURL string

	// TokenURL is the token exchange endpoint.
	TokenURL string

	// IdentityURL is the endpoint returning the authenticated user's identity.
	IdentityURL string
}

var environmentEndpoints = map[Environment]Endpoints{
	EnvironmentProduction: {
		AuthURL:     "https://auth.provider.example.com/oauth2/authorize",
		TokenURL:    "https://auth.provider.example.com/oauth2/token",
		IdentityURL: "https://api.provider.example.com/v1/me",
	},
	EnvironmentSandbox: {
		AuthURL:     "https://auth.sandbox.provider.example.com/oauth2/authorize",
		TokenURL:    "https://auth.sandbox.provider.example.com/oauth2/token",
		IdentityURL: "https://api.sandbox.provider.example.com/v1/me",
	},
}

// identityTimeout bounds the optional identity lookup so a slow provider
// cannot stall the callback path.
const identityTimeout = 10 * time.Second

// Config contains the provider client configuration. It is constructed once
// at process start and passed by reference; there is no mutable global state.
type Config struct {
	// Environment selects production or sandbox endpoints. Defaults to production.
	Environment Environment

	// ClientID is the OAuth client ID.
	ClientID string

	// ClientSecret is the OAuth client secret.
	ClientSecret string

	// RedirectURL is the registered callback URL for the OAuth flow.
	RedirectURL string

	// Scopes are the OAuth scopes to request.
	Scopes []string

	// Endpoints overrides the environment endpoint set. Used in tests.
	Endpoints *Endpoints
}

// TokenResult is the outcome of a code or refresh exchange.
type TokenResult struct {
	AccessToken  string
	RefreshToken string

	// ExpiresIn is the access token lifetime in seconds, as reported by
	// the provider at the moment of the exchange.
	ExpiresIn int64
}

// Client performs the provider's protocol exchanges.
type Client struct {
	oauth2Config *oauth2.Config
	identityURL  string
	httpClient   *http.Client
}

// New creates a provider client, validating that the required credentials and
// redirect URL are present.
func New(config *Config) (*Client, error) {
	if config == nil {
		return nil, brokererr.NewInvalidConfigError("provider config cannot be nil", nil)
	}
	if config.ClientID == "" {
		return nil, brokererr.NewInvalidConfigError("client ID is required", nil)
	}
	if config.ClientSecret == "" {
		return nil, brokererr.NewInvalidConfigError("client secret is required", nil)
	}
	if config.RedirectURL == "" {
		return nil, brokererr.NewInvalidConfigError("redirect URL is required", nil)
	}

	endpoints := config.Endpoints
	if endpoints == nil {
		environment := config.Environment
		if environment == "" {
			environment = EnvironmentProduction
		}
		eps, ok := environmentEndpoints[environment]
		if !ok {
			return nil, brokererr.NewInvalidConfigError(
				fmt.Sprintf("unknown provider environment: %s", environment), nil)
		}
		endpoints = &eps
	}

	oauth2Config := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  endpoints.AuthURL,
			TokenURL: endpoints.TokenURL,
		},
	}

	return &Client{
		oauth2Config: oauth2Config,
		identityURL:  endpoints.IdentityURL,
		httpClient:   &http.Client{Timeout: identityTimeout},
	}, nil
}

// AuthCodeURL builds the provider consent URL for the given CSRF state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeCode performs the code-for-token exchange. Authorization codes are
// single-use and expire within seconds, so a rejected exchange is never
// retried.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResult, error) {
	token, err := c.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, brokererr.NewProviderExchangeError("authorization code exchange failed", err)
	}
	return tokenResult(token), nil
}

// Refresh exchanges a refresh token for a new access token. The provider does
// not rotate refresh tokens, so the result's RefreshToken usually echoes the
// input.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResult, error) {
	// Seed the token source with only the refresh token; the empty access
	// token forces an immediate refresh-token grant.
	seed := &oauth2.Token{
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}
	token, err := c.oauth2Config.TokenSource(ctx, seed).Token()
	if err != nil {
		return nil, brokererr.NewProviderExchangeError("refresh token exchange failed", err)
	}

	result := tokenResult(token)
	if result.RefreshToken == "" {
		// The provider omits the refresh token from refresh responses;
		// the one we already hold stays valid.
		result.RefreshToken = refreshToken
	}
	return result, nil
}

// identityResponse covers the field names the supported provider
// environments use for the authenticated user.
type identityResponse struct {
	Username string `json:"username"`
	Login    string `json:"login"`
	Sub      string `json:"sub"`
}

// ResolveIdentity calls the provider's identity endpoint with the given
// access token and returns the username. Callers fall back to a synthetic
// identifier on failure rather than aborting the flow.
func (c *Client) ResolveIdentity(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.identityURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("identity endpoint returned %d: %s", resp.StatusCode, body)
	}

	var identity identityResponse
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return "", fmt.Errorf("failed to decode identity response: %w", err)
	}

	for _, candidate := range []string{identity.Username, identity.Login, identity.Sub} {
		if candidate != "" {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("identity response contains no usable identifier")
}

// tokenResult converts an oauth2.Token into a TokenResult, deriving the
// expires-in seconds from the token expiry when the provider did not report
// it directly.
func tokenResult(token *oauth2.Token) *TokenResult {
	expiresIn := token.ExpiresIn
	if expiresIn == 0 && !token.Expiry.IsZero() {
		expiresIn = int64(time.Until(token.Expiry).Seconds())
	}
	return &TokenResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    expiresIn,
	}
}
