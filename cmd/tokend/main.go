// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the tokenbroker daemon.
package main

import (
	"os"

	"github.com/stacklok/tokenbroker/cmd/tokend/app"
	"github.com/stacklok/tokenbroker/pkg/logger"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
