// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schema

import (
	"encoding/json"
	"fmt"
)

// Reserved field name prefixes used by translation mode.
const (
	PrefixOriginal    = "original_"
	PrefixTranslation = "translation_"
	PrefixOld         = "old_"
)

// OrderField holds the position of a numbered questiongroup instance.
const OrderField = "__order"

// QuestionnaireData maps questiongroup keywords to their instances. Each
// instance maps question keywords to a scalar, a list, or a locale-to-text
// map.
type QuestionnaireData map[string][]map[string]any

// ParseQuestionnaireData decodes questionnaire data JSON.
func ParseQuestionnaireData(raw []byte) (QuestionnaireData, error) {
	if len(raw) == 0 {
		return QuestionnaireData{}, nil
	}
	var data QuestionnaireData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode questionnaire data: %w", err)
	}
	if data == nil {
		data = QuestionnaireData{}
	}
	return data, nil
}

// Instances returns the instances of a questiongroup. It never returns a
// shared slice.
func (d QuestionnaireData) Instances(questiongroup string) []map[string]any {
	return append([]map[string]any(nil), d[questiongroup]...)
}

// HasContent reports whether the questiongroup has at least one non-empty
// value.
func (d QuestionnaireData) HasContent(questiongroup string) bool {
	list := d[questiongroup]
	if len(list) == 0 {
		return false
	}
	items := make([]any, len(list))
	for i, m := range list {
		items[i] = m
	}
	return !IsEmptyListOfDicts(items)
}

// IsEmptyListOfDicts reports whether v holds no value other than nil, "",
// empty lists and empty objects, recursively.
func IsEmptyListOfDicts(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		for _, item := range t {
			if !IsEmptyListOfDicts(item) {
				return false
			}
		}
		return true
	case []map[string]any:
		for _, item := range t {
			if !IsEmptyListOfDicts(item) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, item := range t {
			if !IsEmptyListOfDicts(item) {
				return false
			}
		}
		return true
	case []string:
		for _, item := range t {
			if item != "" {
				return false
			}
		}
		return true
	case map[string]string:
		for _, item := range t {
			if item != "" {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsPlaceholderInstances reports the [{}] shape that stands for "no data".
func IsPlaceholderInstances(list []map[string]any) bool {
	return len(list) == 1 && len(list[0]) == 0
}
