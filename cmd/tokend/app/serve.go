// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/tokenbroker/pkg/api"
	"github.com/stacklok/tokenbroker/pkg/config"
	"github.com/stacklok/tokenbroker/pkg/lifecycle"
	"github.com/stacklok/tokenbroker/pkg/logger"
	"github.com/stacklok/tokenbroker/pkg/provider"
	"github.com/stacklok/tokenbroker/pkg/tokens"
)

// envPrefix is the prefix for environment variable overrides,
// e.g. TOKENBROKER_CLIENT_ID for --client-id.
const envPrefix = "TOKENBROKER"

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the token broker HTTP server",
		RunE:  serveCmdFunc,
	}

	flags := cmd.Flags()
	flags.String("listen-address", ":8080", "HTTP listen address")
	flags.String("auth-secret", "", "Shared secret protecting the token API (empty disables the check)")
	flags.String("provider-env", string(provider.EnvironmentProduction),
		"Provider environment (production or sandbox)")
	flags.String("client-id", "", "OAuth client ID")
	flags.String("client-secret", "", "OAuth client secret")
	flags.String("redirect-url", "", "Registered OAuth redirect URL")
	flags.String("scopes", "", "Requested OAuth scopes (comma or whitespace separated)")
	flags.String("storage", string(tokens.StorageTypeFile), "Token storage backend (file, redis, memory)")
	flags.String("token-file", "", "Token file path (file storage; defaults to the XDG data path)")
	flags.String("redis-url", "", "Redis connection URL (redis storage)")
	flags.String("redis-password", "", "Redis password (redis storage)")
	flags.String("redis-key-prefix", "", "Redis key prefix (redis storage)")

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		logger.Errorf("Error binding serve flags: %v", err)
	}

	return cmd
}

func serveCmdFunc(cmd *cobra.Command, _ []string) error {
	// Re-initialize with the resolved debug flag.
	logger.Initialize()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	prov, err := provider.New(&cfg.Provider)
	if err != nil {
		return fmt.Errorf("invalid provider configuration: %w", err)
	}

	store, err := tokens.NewStore(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create token store: %w", err)
	}

	manager := lifecycle.NewManager(store, prov)

	return api.Serve(ctx, cfg, manager, store, prov)
}
