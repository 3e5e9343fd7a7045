// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lookup is the read side of the persisted schema entities: Keys
// (question definitions), Values (predefined answers), Questiongroups,
// Categories, Translations and the configuration documents themselves.
//
// The schema builder only ever reads from a Store. Writers (fixture import,
// admin tooling) go through Writer, and every write is published on a
// Broker so that caches holding built trees can invalidate themselves.
package lookup

import (
	"encoding/json"
	"time"
)

// Kind names an entity table.
type Kind string

const (
	KindKey           Kind = "key"
	KindValue         Kind = "value"
	KindQuestiongroup Kind = "questiongroup"
	KindCategory      Kind = "category"
	KindTranslation   Kind = "translation"
	KindConfiguration Kind = "configuration"
)

// Key is the persisted definition of a Question.
type Key struct {
	Keyword string `json:"keyword"`

	// Configuration holds the field "type" plus default view_options,
	// form_options, filter_options and summary dictionaries.
	Configuration map[string]any `json:"configuration,omitempty"`

	// Values lists the keywords of the predefined Values, in association
	// order.
	Values []string `json:"values,omitempty"`

	TranslationID int64 `json:"translation_id,omitempty"`
}

// Type returns the configured field type, or "" when unset.
func (k *Key) Type() string {
	if k == nil || k.Configuration == nil {
		return ""
	}
	t, _ := k.Configuration["type"].(string)
	return t
}

// Value is a predefined answer option.
type Value struct {
	Keyword       string         `json:"keyword"`
	OrderValue    *int           `json:"order_value,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
	TranslationID int64          `json:"translation_id,omitempty"`
}

// Questiongroup is the persisted definition of a question group. Its
// configuration may carry view/form option defaults and the
// inherited_configuration / inherited_questiongroup markers.
type Questiongroup struct {
	Keyword       string         `json:"keyword"`
	Configuration map[string]any `json:"configuration,omitempty"`

	// TranslationID is zero for question groups without a translation.
	TranslationID int64 `json:"translation_id,omitempty"`
}

// Category backs Sections, Categories and Subcategories alike.
type Category struct {
	Keyword       string `json:"keyword"`
	TranslationID int64  `json:"translation_id,omitempty"`
}

// Document is one edition of a configuration document.
type Document struct {
	Code    string          `json:"code"`
	Edition string          `json:"edition"`
	Data    json.RawMessage `json:"data"`
	Created time.Time       `json:"created"`
}
