// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"crypto/subtle"
	"net/http"
)

// sharedSecretMiddleware requires the configured shared secret on every
// request, via the X-Auth-Secret header or the secret query parameter.
// An empty secret disables the check (public deployment variant).
func sharedSecretMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-Auth-Secret")
			if presented == "" {
				presented = r.URL.Query().Get("secret")
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
