// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry initializes the OpenTelemetry tracer and meter
// providers of qcat.
//
// One exporter setting selects the backend:
//
//   - none: the global no-op providers stay in place
//   - stdout: spans and metrics are printed as JSON
//   - prometheus: metrics are exposed through the Prometheus registry, and
//     therefore on the /metrics endpoint; spans are not exported
//   - otlp: spans are pushed to an OTLP gRPC collector, metrics go to
//     Prometheus as above
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.Config{
//	    ServiceName: "qcat",
//	    Exporter:    "otlp",
//	    Endpoint:    "collector:4317",
//	})
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
package telemetry

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Exporter names accepted by Config.Exporter.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
)

var (
	// ErrUnknownExporter is returned for an unsupported exporter name.
	ErrUnknownExporter = errors.New("unknown exporter")

	// ErrMissingEndpoint is returned for the otlp exporter without an
	// endpoint.
	ErrMissingEndpoint = errors.New("otlp exporter requires an endpoint")
)

// Config configures Init.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Exporter is one of none, stdout, prometheus or otlp.
	Exporter string

	// Endpoint is the OTLP collector address (host:port).
	Endpoint string

	// Insecure disables TLS towards the collector.
	Insecure bool

	// SampleRatio is the fraction of root spans sampled. 0 means 1.
	SampleRatio float64

	// Writer receives stdout exports. Default: os.Stdout
	Writer io.Writer

	// Registerer receives the Prometheus exporter's collector.
	// Default: prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

// Init installs global tracer and meter providers for cfg.Exporter and
// returns a function that flushes and shuts them down.
//
// Thread Safety: call once at startup, before any span is started.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error
	cleanup := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdownFuncs) - 1; i >= 0; i-- {
			if err := shutdownFuncs[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	defer func() {
		if err != nil {
			_ = cleanup(ctx)
		}
	}()

	if cfg.Exporter == "" {
		cfg.Exporter = ExporterNone
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	switch cfg.Exporter {
	case ExporterNone:
		return cleanup, nil
	case ExporterStdout, ExporterPrometheus, ExporterOTLP:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}

	if cfg.Exporter != ExporterPrometheus {
		tp, closers, err := initTracer(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		shutdownFuncs = append(shutdownFuncs, closers...)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))
	}

	mp, err := initMeter(cfg, res)
	if err != nil {
		return nil, fmt.Errorf("init meter: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	otel.SetMeterProvider(mp)
	return cleanup, nil
}

// initTracer returns the tracer provider and the closers of anything it
// opened besides the provider.
func initTracer(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, []func(context.Context) error, error) {
	var exporter trace.SpanExporter
	var closers []func(context.Context) error

	switch cfg.Exporter {
	case ExporterOTLP:
		if cfg.Endpoint == "" {
			return nil, nil, ErrMissingEndpoint
		}
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
		if cfg.Insecure {
			creds = insecure.NewCredentials()
		}
		conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(creds))
		if err != nil {
			return nil, nil, fmt.Errorf("create grpc client: %w", err)
		}
		closers = append(closers, func(context.Context) error { return conn.Close() })
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("create exporter: %w", err)
		}
	case ExporterStdout:
		var err error
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(cfg.Writer))
		if err != nil {
			return nil, nil, fmt.Errorf("create exporter: %w", err)
		}
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(ratio))),
	)
	return tp, closers, nil
}

func initMeter(cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Writer))
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		), nil
	default:
		exporter, err := promexporter.New(promexporter.WithRegisterer(cfg.Registerer))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		), nil
	}
}
