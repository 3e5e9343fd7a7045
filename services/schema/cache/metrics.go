// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("qcat.cache")
	meter  = otel.Meter("qcat.cache")
)

var (
	cacheHits          metric.Int64Counter
	cacheMisses        metric.Int64Counter
	cacheBuilds        metric.Int64Counter
	cacheBuildDuration metric.Float64Histogram
	cacheEvictions     metric.Int64Counter
	cacheInvalidations metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments once. Recording is skipped when the
// meter rejects an instrument.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"qcat_cache_hits_total",
			metric.WithDescription("Configuration lookups served from the cache"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"qcat_cache_misses_total",
			metric.WithDescription("Configuration lookups that required a build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheBuilds, err = meter.Int64Counter(
			"qcat_cache_builds_total",
			metric.WithDescription("Configuration tree builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheBuildDuration, err = meter.Float64Histogram(
			"qcat_cache_build_duration_seconds",
			metric.WithDescription("Duration of configuration tree builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheEvictions, err = meter.Int64Counter(
			"qcat_cache_evictions_total",
			metric.WithDescription("Entries evicted by the size limit"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheInvalidations, err = meter.Int64Counter(
			"qcat_cache_invalidations_total",
			metric.WithDescription("Entries removed by invalidation"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordHit(ctx context.Context, code string) {
	if initMetrics() != nil {
		return
	}
	cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("configuration_code", code)))
}

func recordMiss(ctx context.Context, code string) {
	if initMetrics() != nil {
		return
	}
	cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("configuration_code", code)))
}

// recordBuild records one build and whether it succeeded.
func recordBuild(ctx context.Context, code string, d time.Duration, ok bool) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("configuration_code", code),
		attribute.Bool("success", ok),
	)
	cacheBuilds.Add(ctx, 1, attrs)
	cacheBuildDuration.Record(ctx, d.Seconds(), attrs)
}

func recordEviction(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	cacheEvictions.Add(ctx, 1)
}

// recordInvalidations records n removed entries with their cause.
func recordInvalidations(ctx context.Context, n int, reason string) {
	if n == 0 || initMetrics() != nil {
		return
	}
	cacheInvalidations.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
}
