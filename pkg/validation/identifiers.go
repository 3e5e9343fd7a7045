// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks the identifiers that address configuration
// documents and lookup entities before they reach a store or a cache key.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
)

var (
	// Lookup keywords are at most 63 characters.
	keywordPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{0,62}$`)

	// Configuration codes are at most 20 characters, lower case.
	codePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,19}$`)

	// Editions are at most 10 characters ("2015", "2018", "v2").
	editionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,9}$`)
)

// ValidateKeyword checks a Key, Value, Questiongroup or Category keyword.
func ValidateKeyword(keyword string) error {
	if keyword == "" {
		return fmt.Errorf("keyword cannot be empty")
	}
	if !keywordPattern.MatchString(keyword) {
		return fmt.Errorf("invalid keyword %q (1-63 letters, digits, underscores or hyphens)", keyword)
	}
	return nil
}

// ValidateCode checks a configuration code such as "technologies".
func ValidateCode(code string) error {
	if code == "" {
		return fmt.Errorf("configuration code cannot be empty")
	}
	if !codePattern.MatchString(code) {
		return fmt.Errorf("invalid configuration code %q (1-20 lower case letters, digits or underscores)", code)
	}
	return nil
}

// ValidateEdition checks an edition label such as "2018".
func ValidateEdition(edition string) error {
	if edition == "" {
		return fmt.Errorf("edition cannot be empty")
	}
	if !editionPattern.MatchString(edition) {
		return fmt.Errorf("invalid edition %q (1-10 letters, digits, dots or hyphens)", edition)
	}
	return nil
}

// NormalizeLocale parses a BCP 47 locale ("en", "pt-BR", "es_ES") and
// returns its canonical form.
func NormalizeLocale(locale string) (string, error) {
	locale = strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if locale == "" {
		return "", fmt.Errorf("locale cannot be empty")
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "", fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return tag.String(), nil
}

// RegisterTags adds the qcat_keyword, qcat_code, qcat_edition and
// qcat_locale struct tags to v.
func RegisterTags(v *validator.Validate) error {
	tags := map[string]func(string) error{
		"qcat_keyword": ValidateKeyword,
		"qcat_code":    ValidateCode,
		"qcat_edition": ValidateEdition,
		"qcat_locale": func(s string) error {
			_, err := NormalizeLocale(s)
			return err
		},
	}
	for tag, check := range tags {
		check := check
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				// Emptiness is the job of "required".
				return true
			}
			return check(s) == nil
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}
