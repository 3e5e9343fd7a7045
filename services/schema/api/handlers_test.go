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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/cache"
	"github.com/AleutianAI/qcatschema/services/schema/internal/fixtures"
	"github.com/AleutianAI/qcatschema/services/schema/materialize"
)

type (
	M = fixtures.M
	L = fixtures.L
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T, opts ...Option) (*gin.Engine, *cache.Cache) {
	t.Helper()
	f := fixtures.Sample()
	f.Document("broken", "2015", M{"sections": L{
		M{"keyword": "section_1", "categories": L{M{"keyword": "no_such_cat"}}},
	}})

	c := cache.New(schema.NewBuilder(f.Store, f.Store), f.Store, cache.WithEvents(f.Store.Events()))
	t.Cleanup(func() { c.Close() })

	h, err := NewHandlers(c, f.Store, materialize.New(), opts...)
	require.NoError(t, err)
	return NewRouter(h), c
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHandlers_HandleHealth(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandlers_HandleListConfigurations(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/configurations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ListConfigurationsResponse](t, w)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "broken", resp.Configurations[0].Code)
	assert.Equal(t, fixtures.SampleCode, resp.Configurations[1].Code)

	require.Len(t, resp.Configurations[0].Editions, 1)
	assert.Contains(t, resp.Configurations[0].Editions[0].ConfigurationError, "no_such_cat")
	require.Len(t, resp.Configurations[1].Editions, 1)
	assert.Equal(t, fixtures.SampleEdition, resp.Configurations[1].Editions[0].Edition)
	assert.Empty(t, resp.Configurations[1].Editions[0].ConfigurationError)
}

func TestHandlers_HandleReport(t *testing.T) {
	router, _ := setupTestRouter(t)

	t.Run("valid", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/v1/configurations/sample/2015", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[ReportResponse](t, w)
		assert.True(t, resp.Valid)
		assert.Equal(t, "2015", resp.Edition)
		assert.Equal(t, 2, resp.Sections)
		assert.Positive(t, resp.Questiongroups)
		assert.Positive(t, resp.Translations)
		assert.Empty(t, resp.PreviousEdition)
		assert.Empty(t, resp.NextEdition)
	})

	t.Run("invalid", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/v1/configurations/broken/latest", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[ReportResponse](t, w)
		assert.False(t, resp.Valid)
		assert.Equal(t, "2015", resp.Edition)
		assert.Equal(t, []string{"section[section_1]", "category[no_such_cat]"}, resp.Path)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("missing", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/v1/configurations/unknown/2015", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		resp := decode[ErrorResponse](t, w)
		assert.Equal(t, CodeConfigurationNotFound, resp.Code)
		assert.NotEmpty(t, resp.RequestID)
	})
}

func TestHandlers_InvalidPathParameters(t *testing.T) {
	router, _ := setupTestRouter(t)

	for _, path := range []string{
		"/v1/configurations/Bad-Code/2015/toc",
		"/v1/configurations/sample/bad%20edition/toc",
	} {
		w := do(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, w).Code)
	}
}

func TestHandlers_HandleFilterKeys(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/configurations/sample/latest/filter-keys?locale=en", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[FilterKeysResponse](t, w)
	assert.Equal(t, "en", resp.Locale)
	require.Len(t, resp.FilterKeys, 2)
	assert.Equal(t, "qg_2__key_3", resp.FilterKeys[0].Path)
	assert.Equal(t, "qg_1__key_1", resp.FilterKeys[1].Path)
}

func TestHandlers_InvalidConfiguration(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/configurations/broken/2015/filter-keys", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, CodeInvalidConfiguration, resp.Code)
	assert.Contains(t, resp.Details, "section[section_1] > category[no_such_cat]")
}

func TestHandlers_InvalidLocale(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/configurations/sample/2015/toc?locale=%3F%3F", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_HandleTOC(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/configurations/sample/2015/toc", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[TOCResponse](t, w)
	assert.Equal(t, []schema.TOCEntry{
		{Keyword: "cat_1", Label: "Category 1", Numbering: "1"},
		{Keyword: "cat_2", Label: "Category 2", Numbering: "2"},
		{Keyword: "cat_3", Label: "Category 3", Numbering: "3"},
	}, resp.Categories)
}

func TestHandlers_HandleTranslationIDs(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/configurations/sample/2015/translation-ids", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[TranslationIDsResponse](t, w).TranslationIDs)
}

type formResponse struct {
	Form struct {
		Code       string `json:"code"`
		Edition    string `json:"edition"`
		Locale     string `json:"locale"`
		Categories []struct {
			Keyword string `json:"keyword"`
		} `json:"categories"`
	} `json:"form"`
	FieldCount int `json:"field_count"`
}

func TestHandlers_HandleForm(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodPost, "/v1/configurations/sample/2015/form", M{
		"locale":   "en",
		"category": "cat_1",
		"data":     M{"qg_1": L{M{"key_1": M{"en": "Terraces"}}}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[formResponse](t, w)
	assert.Equal(t, "sample", resp.Form.Code)
	assert.Equal(t, "en", resp.Form.Locale)
	require.Len(t, resp.Form.Categories, 1)
	assert.Equal(t, "cat_1", resp.Form.Categories[0].Keyword)
	assert.Positive(t, resp.FieldCount)
}

func TestHandlers_HandleFormRejects(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name     string
		body     any
		wantCode string
	}{
		{"malformed json", "{", CodeInvalidRequest},
		{"unknown mode", M{"mode": "delete"}, CodeInvalidRequest},
		{"invalid locale", M{"locale": "??"}, CodeInvalidRequest},
		{"invalid category keyword", M{"category": "bad keyword"}, CodeInvalidRequest},
		{"unknown category", M{"category": "cat_9"}, CodeUnknownCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/v1/configurations/sample/2015/form", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestHandlers_HandleDetails(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodPost, "/v1/configurations/sample/2015/details", M{
		"identifier": "abc-123",
		"data":       M{"qg_1": L{M{"key_1": M{"en": "Terraces"}}}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Details struct {
			HasContent bool `json:"has_content"`
			Sections   []struct {
				Keyword string `json:"keyword"`
			} `json:"sections"`
		} `json:"details"`
		FieldCount int `json:"field_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Details.HasContent)
	require.Len(t, resp.Details.Sections, 1)
	assert.Equal(t, "section_1", resp.Details.Sections[0].Keyword)
	assert.Positive(t, resp.FieldCount)
}

func TestHandlers_HandleListData(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodPost, "/v1/configurations/sample/2015/list-data", M{
		"questionnaires": L{M{"qg_1": L{M{"key_1": M{"en": "Terraces"}}}}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[ListDataResponse](t, w)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, map[string]any{"en": "Terraces"}, resp.Items[0]["name"])

	w = do(t, router, http.MethodPost, "/v1/configurations/sample/2015/list-data", M{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_HandleInvalidate(t *testing.T) {
	router, c := setupTestRouter(t)

	require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/v1/configurations/sample/2015/toc", nil).Code)
	require.Equal(t, 1, c.Len())

	w := do(t, router, http.MethodDelete, "/v1/cache/sample/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[InvalidateResponse](t, w).Removed)
	assert.Equal(t, 0, c.Len())

	w = do(t, router, http.MethodGet, "/v1/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[cache.Stats](t, w)
	assert.Equal(t, int64(1), stats.Invalidations)
}

func TestHandlers_RequestIDPropagates(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/configurations/unknown/2015/toc", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", decode[ErrorResponse](t, w).RequestID)
}

func TestHandlers_SupportedLocales(t *testing.T) {
	router, _ := setupTestRouter(t, WithLocales("en", []string{"en", "fr", "pt"}))

	w := do(t, router, http.MethodGet, "/v1/configurations/sample/2015/toc?locale=pt-BR", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pt", decode[TOCResponse](t, w).Locale)
}

func TestErrorResponse_TraceID(t *testing.T) {
	prev := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	router, _ := setupTestRouter(t)
	w := do(t, router, http.MethodGet, "/v1/configurations/unknown/2015", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Len(t, decode[ErrorResponse](t, w).TraceID, 32)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	do(t, router, http.MethodGet, "/v1/health", nil)

	w := do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "qcat_api_requests_total"))
}

func TestLocaleMatcher(t *testing.T) {
	supported, err := newLocaleMatcher("en", []string{"fr", "pt", "en"})
	require.NoError(t, err)
	open, err := newLocaleMatcher("", nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		m       *localeMatcher
		raw     string
		want    string
		wantErr bool
	}{
		{"empty is default", supported, "", "en", false},
		{"exact", supported, "fr", "fr", false},
		{"regional variant", supported, "pt-BR", "pt", false},
		{"unsupported falls back", supported, "de", "en", false},
		{"underscore", open, "es_ES", "es-ES", false},
		{"any valid locale", open, "de", "de", false},
		{"invalid", open, "??", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.m.resolve(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = newLocaleMatcher("??", nil)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{&schema.NoConfigurationFoundError{Code: "x"}, http.StatusNotFound, CodeConfigurationNotFound},
		{fmt.Errorf("form: %w", materialize.ErrUnknownCategory), http.StatusBadRequest, CodeUnknownCategory},
		{&schema.InvalidOptionError{Value: "x", Field: "option", Context: "section"}, http.StatusUnprocessableEntity, CodeInvalidConfiguration},
		{&schema.MissingDefinitionMappingError{Code: "x"}, http.StatusUnprocessableEntity, CodeInvalidConfiguration},
		{cache.ErrCacheClosed, http.StatusServiceUnavailable, CodeUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout},
		{errors.New("disk on fire"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}
