// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// SubjectFromToken attempts to extract a user identifier from an access token
// by parsing it as a JWT without validation. Used as a fallback when the
// identity endpoint is unavailable; opaque tokens return an error.
func SubjectFromToken(tokenString string) (string, error) {
	// Parse without verification to extract claims; the token was just
	// issued to us by the provider over TLS.
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("failed to extract claims")
	}

	for _, key := range []string{"preferred_username", "username", "sub"} {
		if value, ok := claims[key].(string); ok && value != "" {
			return value, nil
		}
	}
	return "", errors.New("no subject claim present")
}
