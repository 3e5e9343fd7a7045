// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestTotal counts requests by route and status
	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qcat_api_requests_total",
		Help: "Total API requests by route and status",
	}, []string{"route", "method", "status"})

	// requestDuration tracks request latency
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qcat_api_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"route", "method"})

	// materializedFields tracks the size of materialized forms and details
	materializedFields = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qcat_api_materialized_fields",
		Help:    "Number of fields per materialized form or detail view",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500},
	}, []string{"kind"})
)

// metricsMiddleware records request counts and latency per route
// template, so path parameters do not explode label cardinality.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		requestTotal.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}
