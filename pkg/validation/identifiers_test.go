// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKeyword(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		wantErr bool
	}{
		{"simple", "key_1", false},
		{"questiongroup", "qg_location", false},
		{"link questiongroup", "qg_links__technologies", false},
		{"upper case allowed", "TECH_qg_1", false},
		{"max length", "a23456789012345678901234567890123456789012345678901234567890123", false},

		{"empty", "", true},
		{"too long", "a234567890123456789012345678901234567890123456789012345678901234", true},
		{"space", "key 1", true},
		{"leading underscore", "_key", true},
		{"path traversal", "../key", true},
		{"injection", `key"; drop`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKeyword(tt.keyword)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKeyword(%q) error = %v, wantErr %v", tt.keyword, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCode(t *testing.T) {
	assert.NoError(t, ValidateCode("technologies"))
	assert.NoError(t, ValidateCode("sample_multi"))
	assert.Error(t, ValidateCode(""))
	assert.Error(t, ValidateCode("Technologies"))
	assert.Error(t, ValidateCode("1sample"))
	assert.Error(t, ValidateCode("a_code_that_is_far_too_long"))
}

func TestValidateEdition(t *testing.T) {
	assert.NoError(t, ValidateEdition("2018"))
	assert.NoError(t, ValidateEdition("v1.2"))
	assert.Error(t, ValidateEdition(""))
	assert.Error(t, ValidateEdition("edition-2018-final"))
	assert.Error(t, ValidateEdition("20/18"))
}

func TestNormalizeLocale(t *testing.T) {
	got, err := NormalizeLocale("pt_BR")
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", got)

	got, err = NormalizeLocale("en")
	require.NoError(t, err)
	assert.Equal(t, "en", got)

	_, err = NormalizeLocale("")
	assert.Error(t, err)
	_, err = NormalizeLocale("not a locale!")
	assert.Error(t, err)
}

func TestRegisterTags(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterTags(v))

	type request struct {
		Code    string `validate:"required,qcat_code"`
		Edition string `validate:"omitempty,qcat_edition"`
		Locale  string `validate:"omitempty,qcat_locale"`
		Keyword string `validate:"omitempty,qcat_keyword"`
	}

	assert.NoError(t, v.Struct(request{Code: "sample", Edition: "2015", Locale: "fr", Keyword: "qg_1"}))
	assert.NoError(t, v.Struct(request{Code: "sample"}))
	assert.Error(t, v.Struct(request{Code: "Sample"}))
	assert.Error(t, v.Struct(request{Code: "sample", Edition: "a/b"}))
	assert.Error(t, v.Struct(request{Code: "sample", Keyword: "bad keyword"}))
}
