// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lookup

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLocale is used when a translation has no text for the requested
// locale.
const DefaultLocale = "en"

// FallbackScope is the shared translation scope consulted when neither the
// configuration-and-edition scope nor the configuration scope exists.
const FallbackScope = "wocat"

// Translation keywords used by the schema builder.
const (
	TranslationLabel       = "label"
	TranslationHelptext    = "helptext"
	TranslationLabelView   = "label_view"
	TranslationLabelFilter = "label_filter"
	TranslationLabelLeft   = "label_left"
	TranslationLabelRight  = "label_right"
)

// Translation holds localized texts, keyed by scope, then translation
// keyword, then locale:
//
//	{"technologies_2018": {"label": {"en": "Name", "fr": "Nom"}}}
type Translation struct {
	ID   int64                                   `json:"id"`
	Type string                                  `json:"translation_type,omitempty"`
	Data map[string]map[string]map[string]string `json:"data"`
}

// Scope selects which part of a Translation applies.
type Scope struct {
	Code    string
	Edition string
}

func (s Scope) candidates() []string {
	out := make([]string, 0, 3)
	if s.Edition != "" {
		out = append(out, s.Code+"_"+s.Edition)
	}
	if s.Code != "" {
		out = append(out, s.Code)
	}
	return append(out, FallbackScope)
}

// Text resolves keyword for scope and locale. The first existing scope among
// "{code}_{edition}", "{code}" and "wocat" is used, without falling through
// to the next one when the keyword is missing there. Within the keyword the
// locale, its base language and DefaultLocale are tried in order. The
// second return value is false when no non-empty text exists.
func (t *Translation) Text(keyword string, scope Scope, locale string) (string, bool) {
	if t == nil || t.Data == nil {
		return "", false
	}
	var texts map[string]string
	for _, name := range scope.candidates() {
		if blob, ok := t.Data[name]; ok {
			texts = blob[keyword]
			break
		}
	}
	if len(texts) == 0 {
		return "", false
	}
	for _, loc := range localeChain(locale) {
		if text := texts[loc]; text != "" {
			return text, true
		}
	}
	return "", false
}

// localeChain returns the lookup order for locale, always ending with
// DefaultLocale.
func localeChain(locale string) []string {
	chain := make([]string, 0, 3)
	add := func(l string) {
		for _, existing := range chain {
			if existing == l {
				return
			}
		}
		chain = append(chain, l)
	}
	locale = strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if locale != "" {
		add(locale)
		if tag, err := language.Parse(locale); err == nil {
			add(tag.String())
			if base, conf := tag.Base(); conf != language.No {
				add(base.String())
			}
		}
	}
	add(DefaultLocale)
	return chain
}
