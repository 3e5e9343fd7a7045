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
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/AleutianAI/qcatschema/pkg/validation"
)

// localeMatcher resolves requested locales against the supported set.
type localeMatcher struct {
	def       string
	supported []string
	matcher   language.Matcher
}

func newLocaleMatcher(def string, supported []string) (*localeMatcher, error) {
	if def == "" {
		def = "en"
	}
	def, err := validation.NormalizeLocale(def)
	if err != nil {
		return nil, fmt.Errorf("default locale: %w", err)
	}
	l := &localeMatcher{def: def}
	if len(supported) == 0 {
		return l, nil
	}
	// The default goes first so that it is the matcher's fallback.
	tags := []language.Tag{language.Make(def)}
	l.supported = []string{def}
	for _, s := range supported {
		n, err := validation.NormalizeLocale(s)
		if err != nil {
			return nil, fmt.Errorf("supported locale: %w", err)
		}
		if n == def {
			continue
		}
		tags = append(tags, language.Make(n))
		l.supported = append(l.supported, n)
	}
	l.matcher = language.NewMatcher(tags)
	return l, nil
}

// resolve returns the locale to render for raw. An empty raw means the
// default; an unsupported locale falls back to the closest supported one,
// or the default.
func (l *localeMatcher) resolve(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return l.def, nil
	}
	n, err := validation.NormalizeLocale(raw)
	if err != nil {
		return "", err
	}
	if l.matcher == nil {
		return n, nil
	}
	_, idx, conf := l.matcher.Match(language.Make(n))
	if conf == language.No {
		return l.def, nil
	}
	return l.supported[idx], nil
}
