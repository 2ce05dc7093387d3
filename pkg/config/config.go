// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config builds the immutable process configuration. The Config value
// is constructed once at startup from flags and environment variables and
// passed by reference into the components that need it.
package config

import (
	"strings"
	"unicode"

	"github.com/spf13/viper"

	"github.com/stacklok/tokenbroker/pkg/provider"
	"github.com/stacklok/tokenbroker/pkg/tokens"
)

// Config holds the full process configuration.
type Config struct {
	// ListenAddress is the HTTP listen address, e.g. ":8080".
	ListenAddress string

	// AuthSecret protects the retrieval and administrative endpoints when
	// set. Empty means the public deployment variant: endpoints are open
	// and raw token listings are always masked.
	AuthSecret string

	// Provider is the identity provider client configuration.
	Provider provider.Config

	// Storage selects and configures the token store backend.
	Storage tokens.StorageConfig
}

// Load builds a Config from the current viper state. Flag and environment
// binding happens in the serve command; this only reads the resolved values.
func Load() *Config {
	return &Config{
		ListenAddress: viper.GetString("listen-address"),
		AuthSecret:    viper.GetString("auth-secret"),
		Provider: provider.Config{
			Environment:  provider.Environment(viper.GetString("provider-env")),
			ClientID:     viper.GetString("client-id"),
			ClientSecret: viper.GetString("client-secret"),
			RedirectURL:  viper.GetString("redirect-url"),
			Scopes:       ParseScopes(viper.GetString("scopes")),
		},
		Storage: tokens.StorageConfig{
			Type:          tokens.StorageType(viper.GetString("storage")),
			FilePath:      viper.GetString("token-file"),
			RedisURL:      viper.GetString("redis-url"),
			RedisPassword: viper.GetString("redis-password"),
			KeyPrefix:     viper.GetString("redis-key-prefix"),
		},
	}
}

// ParseScopes splits a whitespace or comma separated scope list.
func ParseScopes(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
