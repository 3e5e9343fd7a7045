// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/qcatschema/pkg/telemetry"
	"github.com/AleutianAI/qcatschema/services/schema/api"
	"github.com/AleutianAI/qcatschema/services/schema/cache"
	"github.com/AleutianAI/qcatschema/services/schema/materialize"
	"github.com/AleutianAI/qcatschema/services/schema/render"
	"github.com/AleutianAI/qcatschema/services/schema/source"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve configurations, forms and details over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	return cmd
}

// server is a fully wired HTTP service.
type server struct {
	router  *gin.Engine
	cache   *cache.Cache
	watcher *source.Watcher
	closers []func(context.Context) error
}

// Close stops the watcher and releases the cache, stores and telemetry.
func (s *server) Close(ctx context.Context) error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newServer wires telemetry, stores, the document source and its watcher,
// the tree cache, the materializer and the router from a.cfg.
func (a *app) newServer(ctx context.Context) (srv *server, err error) {
	cfg := a.cfg
	logger := a.logger.Slog()
	srv = &server{}
	defer func() {
		if err != nil {
			_ = srv.Close(context.Background())
		}
	}()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    api.ServiceName,
		ServiceVersion: api.ServiceVersion,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.OTLPInsecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	srv.closers = append(srv.closers, shutdownTelemetry)

	rt, err := a.openRuntime(ctx)
	if err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, func(context.Context) error { return rt.Close() })

	opts := []cache.Option{
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithErrorTTL(cfg.Cache.ErrorTTL),
		cache.WithBuildTimeout(cfg.Cache.BuildTimeout),
		cache.WithLogger(logger),
	}
	for _, b := range rt.brokers {
		opts = append(opts, cache.WithEvents(b))
	}
	srv.cache = cache.New(rt.Builder(a), rt.docs, opts...)
	srv.closers = append(srv.closers, func(context.Context) error { return srv.cache.Close() })

	if rt.dir != nil && cfg.Documents.Watch {
		w, err := source.NewWatcher(rt.dir, &source.WatcherOptions{
			DebounceWindow: cfg.Documents.Debounce,
			Logger:         logger,
			Handler: func(changes []source.Change) {
				for _, c := range changes {
					logger.Info("configuration changed",
						"configuration_code", c.Code,
						"edition", c.Edition,
						"op", c.Op.String())
				}
			},
		})
		if err != nil {
			return nil, fmt.Errorf("document watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return nil, fmt.Errorf("document watcher: %w", err)
		}
		srv.watcher = w
	}

	m := materialize.New(
		materialize.WithRenderer(render.Default(render.WithLogger(logger))),
		materialize.WithLogger(logger),
	)
	h, err := api.NewHandlers(srv.cache, rt.docs, m,
		api.WithLocales(cfg.Locales.Default, cfg.Locales.Supported),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	gin.SetMode(cfg.Server.Mode)
	srv.router = api.NewRouter(h)
	return srv, nil
}

func (a *app) runServe(ctx context.Context) error {
	srv, err := a.newServer(ctx)
	if err != nil {
		return a.fail(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Close(shutdownCtx); err != nil {
			a.logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	watching := "off"
	if srv.watcher != nil {
		watching = "on"
	}
	a.printer.Box("qcat "+api.ServiceVersion, fmt.Sprintf(
		"listening on http://%s/v1\ntelemetry: %s\nwatch: %s",
		a.cfg.Server.Addr, a.cfg.Telemetry.Exporter, watching))

	start := time.Now()
	err = api.Serve(ctx, a.cfg.Server.Addr, srv.router, a.cfg.Server.ShutdownTimeout, a.logger.Slog())
	a.logger.Info("server stopped", "uptime", time.Since(start).Round(time.Second).String())
	if err != nil {
		return a.fail(err)
	}
	return nil
}
