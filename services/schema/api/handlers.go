// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes configuration trees over HTTP for admin tooling and
// integration consumers: validation reports, filter keys, forms, detail
// views, list data and cache control.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleutianAI/qcatschema/pkg/telemetry"
	"github.com/AleutianAI/qcatschema/pkg/validation"
	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/cache"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
	"github.com/AleutianAI/qcatschema/services/schema/materialize"
)

// ServiceVersion is the API version reported by the health endpoint.
const ServiceVersion = "0.1.0"

// latestEdition in a path selects the most recent edition.
const latestEdition = "latest"

const requestIDKey = "request_id"

// Handlers contains the HTTP handlers.
type Handlers struct {
	cache        *cache.Cache
	docs         lookup.DocumentStore
	materializer *materialize.Materializer
	files        schema.FileResolver
	validate     *validator.Validate
	locales      *localeMatcher
	logger       *slog.Logger

	defaultLocale    string
	supportedLocales []string
}

// Option configures Handlers.
type Option func(*Handlers)

// WithFiles sets the resolver for file and image values in list data.
func WithFiles(f schema.FileResolver) Option {
	return func(h *Handlers) { h.files = f }
}

// WithLocales sets the default locale and the supported locales. Requests
// for other locales are served in the closest supported one. Without
// supported locales every valid locale is accepted.
func WithLocales(defaultLocale string, supported []string) Option {
	return func(h *Handlers) {
		h.defaultLocale = defaultLocale
		h.supportedLocales = supported
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handlers) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandlers creates handlers serving trees from c. docs lists codes and
// editions; it should be the store c loads from.
func NewHandlers(c *cache.Cache, docs lookup.DocumentStore, m *materialize.Materializer, opts ...Option) (*Handlers, error) {
	h := &Handlers{
		cache:        c,
		docs:         docs,
		materializer: m,
		validate:     validator.New(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if err := validation.RegisterTags(h.validate); err != nil {
		return nil, err
	}
	locales, err := newLocaleMatcher(h.defaultLocale, h.supportedLocales)
	if err != nil {
		return nil, err
	}
	h.locales = locales
	return h, nil
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDKey, id)
	c.Header("X-Request-ID", id)
	return id
}

func requestID(c *gin.Context) string { return getOrCreateRequestID(c) }

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	logger := h.logger.With(
		slog.String("request_id", getOrCreateRequestID(c)),
		slog.String("handler", handler))
	return telemetry.LoggerWithTrace(c.Request.Context(), logger)
}

// params reads and validates :code and :edition. The edition "latest"
// becomes empty.
func (h *Handlers) params(c *gin.Context, logger *slog.Logger) (code, edition string, ok bool) {
	code = c.Param("code")
	if err := validation.ValidateCode(code); err != nil {
		badRequest(c, logger, "Invalid configuration code", err)
		return "", "", false
	}
	edition = c.Param("edition")
	if edition == latestEdition {
		return code, "", true
	}
	if err := validation.ValidateEdition(edition); err != nil {
		badRequest(c, logger, "Invalid edition", err)
		return "", "", false
	}
	return code, edition, true
}

// configuration resolves the tree named by the path. A missing or invalid
// configuration has already been written as an error when ok is false.
func (h *Handlers) configuration(c *gin.Context, logger *slog.Logger) (*schema.Configuration, bool) {
	code, edition, ok := h.params(c, logger)
	if !ok {
		return nil, false
	}
	cfg, err := h.cache.GetOrBuild(c.Request.Context(), code, edition)
	if err != nil {
		writeError(c, logger, err)
		return nil, false
	}
	if err := cfg.Error(); err != nil {
		writeError(c, logger, err)
		return nil, false
	}
	return cfg, true
}

// locale resolves the ?locale= query parameter.
func (h *Handlers) locale(c *gin.Context, logger *slog.Logger, raw string) (string, bool) {
	locale, err := h.locales.resolve(raw)
	if err != nil {
		badRequest(c, logger, "Invalid locale", err)
		return "", false
	}
	return locale, true
}

// bind decodes and validates a JSON body.
func (h *Handlers) bind(c *gin.Context, logger *slog.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, logger, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(c, logger, "Invalid request body", err)
		return false
	}
	return true
}

// HandleHealth handles GET /v1/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Cache:   h.cache.Stats(),
	})
}

// HandleListConfigurations handles GET /v1/configurations.
//
// Every edition of every code is built (or served from the cache) so that
// its configuration_error can be reported.
func (h *Handlers) HandleListConfigurations(c *gin.Context) {
	logger := h.requestLogger(c, "HandleListConfigurations")
	ctx := c.Request.Context()

	codes, err := h.docs.Codes(ctx)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	out := make([]ConfigurationSummary, 0, len(codes))
	for _, code := range codes {
		editions, err := h.docs.Editions(ctx, code)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		summary := ConfigurationSummary{Code: code, Editions: make([]EditionSummary, 0, len(editions))}
		for _, edition := range editions {
			doc, err := h.docs.Document(ctx, code, edition)
			if err != nil {
				writeError(c, logger, err)
				return
			}
			es := EditionSummary{Edition: edition, Created: doc.Created}
			cfg, err := h.cache.GetOrBuild(ctx, code, edition)
			switch {
			case err != nil && schema.IsConfigurationError(err):
				es.ConfigurationError = err.Error()
			case err != nil:
				writeError(c, logger, err)
				return
			case cfg.Error() != nil:
				es.ConfigurationError = cfg.Error().Error()
			}
			summary.Editions = append(summary.Editions, es)
		}
		out = append(out, summary)
	}
	c.JSON(http.StatusOK, ListConfigurationsResponse{Configurations: out, Count: len(out)})
}

// HandleReport handles GET /v1/configurations/:code/:edition.
//
// Response:
//
//	200 OK: ReportResponse, valid or not
//	400 Bad Request: invalid code or edition
//	404 Not Found: no such configuration
func (h *Handlers) HandleReport(c *gin.Context) {
	logger := h.requestLogger(c, "HandleReport")
	code, edition, ok := h.params(c, logger)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	cfg, err := h.cache.GetOrBuild(ctx, code, edition)
	if err != nil && !errors.Is(err, schema.ErrNoConfigurationFound) && schema.IsConfigurationError(err) {
		if edition == "" {
			if editions, lerr := h.docs.Editions(ctx, code); lerr == nil && len(editions) > 0 {
				edition = editions[len(editions)-1]
			}
		}
		report := ReportResponse{Code: code, Edition: edition, Error: err.Error()}
		var be *schema.BuildError
		if errors.As(err, &be) {
			report.Error = be.Err.Error()
			report.Path = be.Path
		}
		logger.Info("configuration report",
			slog.String("configuration_code", code),
			slog.String("edition", edition),
			slog.Bool("valid", false))
		c.JSON(http.StatusOK, report)
		return
	}
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if err := cfg.Error(); err != nil {
		writeError(c, logger, err)
		return
	}

	report := ReportResponse{
		Code:           cfg.Code(),
		Edition:        cfg.Edition(),
		Valid:          true,
		Modules:        cfg.Modules(),
		Sections:       len(cfg.Sections()),
		Questiongroups: len(cfg.Questiongroups()),
		Translations:   len(cfg.TranslationIDs()),
	}
	if prev, err := lookup.PreviousEdition(ctx, h.docs, cfg.Code(), cfg.Edition()); err == nil {
		report.PreviousEdition = prev
	}
	if next, err := lookup.NextEdition(ctx, h.docs, cfg.Code(), cfg.Edition()); err == nil {
		report.NextEdition = next
	}
	c.JSON(http.StatusOK, report)
}

// HandleFilterKeys handles GET /v1/configurations/:code/:edition/filter-keys.
func (h *Handlers) HandleFilterKeys(c *gin.Context) {
	logger := h.requestLogger(c, "HandleFilterKeys")
	locale, ok := h.locale(c, logger, c.Query("locale"))
	if !ok {
		return
	}
	cfg, ok := h.configuration(c, logger)
	if !ok {
		return
	}
	keys := cfg.FilterKeys(locale)
	if keys == nil {
		keys = []schema.FilterKey{}
	}
	c.JSON(http.StatusOK, FilterKeysResponse{Locale: locale, FilterKeys: keys})
}

// HandleTOC handles GET /v1/configurations/:code/:edition/toc.
func (h *Handlers) HandleTOC(c *gin.Context) {
	logger := h.requestLogger(c, "HandleTOC")
	locale, ok := h.locale(c, logger, c.Query("locale"))
	if !ok {
		return
	}
	cfg, ok := h.configuration(c, logger)
	if !ok {
		return
	}
	entries := cfg.TOC(locale)
	if entries == nil {
		entries = []schema.TOCEntry{}
	}
	c.JSON(http.StatusOK, TOCResponse{Locale: locale, Categories: entries})
}

// HandleTranslationIDs handles GET /v1/configurations/:code/:edition/translation-ids.
func (h *Handlers) HandleTranslationIDs(c *gin.Context) {
	logger := h.requestLogger(c, "HandleTranslationIDs")
	cfg, ok := h.configuration(c, logger)
	if !ok {
		return
	}
	ids := cfg.TranslationIDs()
	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, TranslationIDsResponse{TranslationIDs: ids})
}

// HandleForm handles POST /v1/configurations/:code/:edition/form.
//
// Request Body:
//
//	FormRequest
//
// Response:
//
//	200 OK: FormResponse
//	400 Bad Request: invalid body, locale or category
//	404 Not Found: no such configuration
//	422 Unprocessable Entity: the configuration does not build
func (h *Handlers) HandleForm(c *gin.Context) {
	logger := h.requestLogger(c, "HandleForm")

	var req FormRequest
	if !h.bind(c, logger, &req) {
		return
	}
	locale, ok := h.locale(c, logger, req.Locale)
	if !ok {
		return
	}
	original := ""
	if req.OriginalLocale != "" {
		if original, ok = h.locale(c, logger, req.OriginalLocale); !ok {
			return
		}
	}
	cfg, ok := h.configuration(c, logger)
	if !ok {
		return
	}
	data := req.Data
	if data == nil {
		data = schema.QuestionnaireData{}
	}

	form, err := h.materializer.Form(c.Request.Context(), cfg, materialize.FormRequest{
		Data:            data,
		Locale:          locale,
		OriginalLocale:  original,
		Mode:            materialize.Mode(req.Mode),
		ShowTranslation: req.ShowTranslation,
		InitialLinks:    req.InitialLinks,
		Category:        req.Category,
	})
	if err != nil {
		writeError(c, logger, err)
		return
	}
	n := form.FieldCount()
	materializedFields.WithLabelValues("form").Observe(float64(n))
	logger.Info("form materialized",
		slog.String("configuration_code", cfg.Code()),
		slog.String("edition", cfg.Edition()),
		slog.Int("fields", n))
	c.JSON(http.StatusOK, FormResponse{Form: form, FieldCount: n})
}

// HandleDetails handles POST /v1/configurations/:code/:edition/details.
func (h *Handlers) HandleDetails(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDetails")

	var req DetailsRequest
	if !h.bind(c, logger, &req) {
		return
	}
	locale, ok := h.locale(c, logger, req.Locale)
	if !ok {
		return
	}
	cfg, ok := h.configuration(c, logger)
	if !ok {
		return
	}
	data := req.Data
	if data == nil {
		data = schema.QuestionnaireData{}
	}

	details, err := h.materializer.Details(c.Request.Context(), cfg, materialize.DetailsRequest{
		Data:       data,
		Locale:     locale,
		Identifier: req.Identifier,
		Links:      req.Links,
		Metadata:   req.Metadata,
		Category:   req.Category,
	})
	if err != nil {
		writeError(c, logger, err)
		return
	}
	n := details.FieldCount()
	materializedFields.WithLabelValues("details").Observe(float64(n))
	c.JSON(http.StatusOK, DetailsResponse{Details: details, FieldCount: n})
}

// HandleListData handles POST /v1/configurations/:code/:edition/list-data.
func (h *Handlers) HandleListData(c *gin.Context) {
	logger := h.requestLogger(c, "HandleListData")

	var req ListDataRequest
	if !h.bind(c, logger, &req) {
		return
	}
	locale, ok := h.locale(c, logger, req.Locale)
	if !ok {
		return
	}
	cfg, ok := h.configuration(c, logger)
	if !ok {
		return
	}
	items, err := cfg.ListData(c.Request.Context(), locale, req.Questionnaires, h.files)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if items == nil {
		items = []map[string]any{}
	}
	c.JSON(http.StatusOK, ListDataResponse{Items: items, Count: len(items)})
}

// HandleInvalidate handles DELETE /v1/cache/:code/:edition. The edition
// "latest" removes every edition of the code.
func (h *Handlers) HandleInvalidate(c *gin.Context) {
	logger := h.requestLogger(c, "HandleInvalidate")
	code, edition, ok := h.params(c, logger)
	if !ok {
		return
	}
	n := h.cache.Invalidate(c.Request.Context(), code, edition)
	c.JSON(http.StatusOK, InvalidateResponse{Removed: n})
}

// HandleCacheStats handles GET /v1/cache/stats.
func (h *Handlers) HandleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}
