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
	"time"

	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/cache"
	"github.com/AleutianAI/qcatschema/services/schema/materialize"
)

// HealthResponse is the response for GET /v1/health.
type HealthResponse struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Cache   cache.Stats `json:"cache"`
}

// EditionSummary is one edition in GET /v1/configurations.
type EditionSummary struct {
	Edition string    `json:"edition"`
	Created time.Time `json:"created"`

	// ConfigurationError is empty when the edition builds.
	ConfigurationError string `json:"configuration_error"`
}

// ConfigurationSummary lists the editions of one code.
type ConfigurationSummary struct {
	Code     string           `json:"code"`
	Editions []EditionSummary `json:"editions"`
}

// ListConfigurationsResponse is the response for GET /v1/configurations.
type ListConfigurationsResponse struct {
	Configurations []ConfigurationSummary `json:"configurations"`
	Count          int                    `json:"count"`
}

// ReportResponse is the validation report of one edition.
type ReportResponse struct {
	Code    string `json:"code"`
	Edition string `json:"edition"`
	Valid   bool   `json:"valid"`

	// Error and Path describe why the edition does not build. Path locates
	// the failing node, outermost first.
	Error string   `json:"error,omitempty"`
	Path  []string `json:"path,omitempty"`

	Modules         []string `json:"modules,omitempty"`
	Sections        int      `json:"sections"`
	Questiongroups  int      `json:"questiongroups"`
	Translations    int      `json:"translations"`
	PreviousEdition string   `json:"previous_edition,omitempty"`
	NextEdition     string   `json:"next_edition,omitempty"`
}

// FilterKeysResponse is the response for GET .../filter-keys.
type FilterKeysResponse struct {
	Locale     string             `json:"locale"`
	FilterKeys []schema.FilterKey `json:"filter_keys"`
}

// TOCResponse is the response for GET .../toc.
type TOCResponse struct {
	Locale     string            `json:"locale"`
	Categories []schema.TOCEntry `json:"categories"`
}

// TranslationIDsResponse is the response for GET .../translation-ids.
type TranslationIDsResponse struct {
	TranslationIDs []int64 `json:"translation_ids"`
}

// FormRequest is the body of POST .../form.
type FormRequest struct {
	Locale          string                      `json:"locale" validate:"omitempty,qcat_locale"`
	OriginalLocale  string                      `json:"original_locale" validate:"omitempty,qcat_locale"`
	Mode            string                      `json:"mode" validate:"omitempty,oneof=edit view"`
	ShowTranslation bool                        `json:"show_translation"`
	Category        string                      `json:"category" validate:"omitempty,qcat_keyword"`
	Data            schema.QuestionnaireData    `json:"data"`
	InitialLinks    map[string][]map[string]any `json:"initial_links"`
}

// FormResponse is the response for POST .../form.
type FormResponse struct {
	Form       *materialize.Form `json:"form"`
	FieldCount int               `json:"field_count"`
}

// DetailsRequest is the body of POST .../details.
type DetailsRequest struct {
	Locale     string                      `json:"locale" validate:"omitempty,qcat_locale"`
	Identifier string                      `json:"identifier" validate:"omitempty,max=64"`
	Category   string                      `json:"category" validate:"omitempty,qcat_keyword"`
	Data       schema.QuestionnaireData    `json:"data"`
	Links      map[string][]map[string]any `json:"links"`
	Metadata   map[string]any              `json:"metadata"`
}

// DetailsResponse is the response for POST .../details.
type DetailsResponse struct {
	Details    *materialize.Details `json:"details"`
	FieldCount int                  `json:"field_count"`
}

// ListDataRequest is the body of POST .../list-data.
type ListDataRequest struct {
	Locale         string                     `json:"locale" validate:"omitempty,qcat_locale"`
	Questionnaires []schema.QuestionnaireData `json:"questionnaires" validate:"required,max=500"`
}

// ListDataResponse is the response for POST .../list-data.
type ListDataResponse struct {
	Items []map[string]any `json:"items"`
	Count int              `json:"count"`
}

// InvalidateResponse is the response for DELETE /v1/cache/:code/:edition.
type InvalidateResponse struct {
	Removed int `json:"removed"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the machine readable error code.
	Code string `json:"code"`

	RequestID string `json:"request_id"`

	// TraceID is set when the request is traced.
	TraceID string `json:"trace_id,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
