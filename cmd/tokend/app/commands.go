// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the tokend command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/tokenbroker/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "tokend",
	DisableAutoGenTag: true,
	Short:             "tokend brokers OAuth access tokens for backend services",
	Long: `tokend performs the OAuth 2.0 authorization code grant against the configured
identity provider, stores the resulting token pair per user, and serves a valid
access token to backend callers, transparently refreshing it when expired.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the tokend CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}
