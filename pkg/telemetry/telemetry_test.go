// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_None(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "qcat-test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"unknown exporter", Config{Exporter: "zipkin"}, ErrUnknownExporter},
		{"otlp without endpoint", Config{Exporter: ExporterOTLP}, ErrMissingEndpoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Init(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, shutdown)
		})
	}
}

func TestInit_Stdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "qcat-test",
		Exporter:    ExporterStdout,
		Writer:      &buf,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "stdout-span")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "stdout-span")
}

func TestInit_Prometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "qcat-test",
		Exporter:    ExporterPrometheus,
		Registerer:  reg,
	})
	require.NoError(t, err)
	defer shutdown(context.Background())

	counter, err := otel.Meter("telemetry-test").Int64Counter("qcat_test_events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "qcat_test_events") {
			found = true
		}
	}
	assert.True(t, found, "counter not exported to the registry")
}

func TestInit_OTLP(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "qcat-test",
		Exporter:    ExporterOTLP,
		Endpoint:    "127.0.0.1:4317",
		Insecure:    true,
		Registerer:  prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, shutdown(ctx))
}

func TestSpanIDs(t *testing.T) {
	_, _, ok := SpanIDs(context.Background())
	assert.False(t, ok)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("telemetry-test").Start(context.Background(), "ids")
	defer span.End()

	traceID, spanID, ok := SpanIDs(ctx)
	require.True(t, ok)
	assert.Len(t, traceID, 32)
	assert.Len(t, spanID, 16)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	LoggerWithTrace(ctx, logger).Info("traced")
	assert.Contains(t, buf.String(), `"trace_id":"`+traceID+`"`)
	assert.Contains(t, buf.String(), `"span_id":"`+spanID+`"`)

	buf.Reset()
	LoggerWithTrace(context.Background(), logger).Info("untraced")
	assert.NotContains(t, buf.String(), "trace_id")
}
