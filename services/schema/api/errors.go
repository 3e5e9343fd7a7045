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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/qcatschema/pkg/telemetry"
	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/cache"
	"github.com/AleutianAI/qcatschema/services/schema/materialize"
	"github.com/AleutianAI/qcatschema/services/schema/source"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeConfigurationNotFound = "CONFIGURATION_NOT_FOUND"
	CodeInvalidConfiguration  = "INVALID_CONFIGURATION"
	CodeUnknownCategory       = "UNKNOWN_CATEGORY"
	CodeUnavailable           = "UNAVAILABLE"
	CodeTimeout               = "TIMEOUT"
	CodeInternal              = "INTERNAL_ERROR"
)

// classify maps an error to a status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, schema.ErrNoConfigurationFound):
		return http.StatusNotFound, CodeConfigurationNotFound
	case errors.Is(err, materialize.ErrUnknownCategory):
		return http.StatusBadRequest, CodeUnknownCategory
	case schema.IsConfigurationError(err),
		errors.Is(err, schema.ErrMissingDefinitionMapping),
		errors.Is(err, schema.ErrUnknownFieldType),
		errors.Is(err, source.ErrInvalidDocument):
		return http.StatusUnprocessableEntity, CodeInvalidConfiguration
	case errors.Is(err, cache.ErrCacheClosed):
		return http.StatusServiceUnavailable, CodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	}
	return http.StatusInternalServerError, CodeInternal
}

// writeError logs err and writes it as an ErrorResponse.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := classify(err)
	resp := newErrorResponse(c, err.Error(), code)
	var be *schema.BuildError
	if errors.As(err, &be) {
		resp.Error = be.Err.Error()
		resp.Details = be.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()), slog.String("code", code))
	} else {
		logger.Warn("request rejected", slog.String("error", err.Error()), slog.String("code", code))
	}
	c.AbortWithStatusJSON(status, resp)
}

func newErrorResponse(c *gin.Context, message, code string) ErrorResponse {
	resp := ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(c),
	}
	if traceID, _, ok := telemetry.SpanIDs(c.Request.Context()); ok {
		resp.TraceID = traceID
	}
	return resp
}

// badRequest writes a 400 with CodeInvalidRequest.
func badRequest(c *gin.Context, logger *slog.Logger, message string, err error) {
	resp := newErrorResponse(c, message, CodeInvalidRequest)
	if err != nil {
		resp.Details = err.Error()
	}
	logger.Warn(message, slog.String("details", resp.Details))
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}
