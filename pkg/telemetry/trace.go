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
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// SpanIDs returns the hex trace and span IDs of the span in ctx. ok is
// false when ctx carries no valid span.
func SpanIDs(ctx context.Context) (traceID, spanID string, ok bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}

// LoggerWithTrace adds trace_id and span_id to logger when ctx carries a
// span.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	traceID, spanID, ok := SpanIDs(ctx)
	if !ok {
		return logger
	}
	return logger.With(slog.String("trace_id", traceID), slog.String("span_id", spanID))
}
