// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api contains the HTTP surface of tokenbroker: the OAuth login and
// callback pages, and the token retrieval and administrative API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/stacklok/tokenbroker/pkg/api/v1"
	"github.com/stacklok/tokenbroker/pkg/config"
	"github.com/stacklok/tokenbroker/pkg/lifecycle"
	"github.com/stacklok/tokenbroker/pkg/logger"
	"github.com/stacklok/tokenbroker/pkg/provider"
	"github.com/stacklok/tokenbroker/pkg/tokens"
)

// Not sure if these values need to be configurable.
const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter assembles the full route tree. Split out of Serve so tests can
// drive it through httptest without a listener.
func NewRouter(
	cfg *config.Config,
	manager *lifecycle.Manager,
	store tokens.Store,
	prov *provider.Client,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
		headersMiddleware,
	)

	routers := map[string]http.Handler{
		"/health": healthRouter(),
		"/auth":   FlowRouter(prov, store),
		"/api/v1": v1.Router(manager, store, cfg.AuthSecret),
	}
	for prefix, router := range routers {
		r.Mount(prefix, router)
	}

	return r
}

func healthRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// Serve starts the server on the given address and serves the API until ctx
// is done. It is assumed that the caller sets up appropriate signal handling.
func Serve(
	ctx context.Context,
	cfg *config.Config,
	manager *lifecycle.Manager,
	store tokens.Store,
	prov *provider.Client,
) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              cfg.ListenAddress,
		Handler:           NewRouter(cfg, manager, store, prov),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return err
	}

	logger.Infof("starting HTTP server on %s", cfg.ListenAddress)

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server stopped with error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("HTTP server stopped")
	return nil
}
