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

import "bytes"

// DeepCopy copies the JSON-shaped value v (maps, slices, scalars).
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = DeepCopy(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	default:
		return v
	}
}

// CloneMap deep-copies a JSON object. A nil map stays nil.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = DeepCopy(v)
	}
	return out
}

func CloneKey(k *Key) *Key {
	return &Key{
		Keyword:       k.Keyword,
		Configuration: CloneMap(k.Configuration),
		Values:        append([]string(nil), k.Values...),
		TranslationID: k.TranslationID,
	}
}

func CloneValue(v *Value) *Value {
	cp := &Value{
		Keyword:       v.Keyword,
		Configuration: CloneMap(v.Configuration),
		TranslationID: v.TranslationID,
	}
	if v.OrderValue != nil {
		order := *v.OrderValue
		cp.OrderValue = &order
	}
	return cp
}

func CloneTranslation(t *Translation) *Translation {
	cp := &Translation{ID: t.ID, Type: t.Type}
	if t.Data == nil {
		return cp
	}
	cp.Data = make(map[string]map[string]map[string]string, len(t.Data))
	for scope, keywords := range t.Data {
		kws := make(map[string]map[string]string, len(keywords))
		for kw, locales := range keywords {
			locs := make(map[string]string, len(locales))
			for loc, text := range locales {
				locs[loc] = text
			}
			kws[kw] = locs
		}
		cp.Data[scope] = kws
	}
	return cp
}

func cloneDocument(d *Document) *Document {
	return &Document{
		Code:    d.Code,
		Edition: d.Edition,
		Data:    bytes.Clone(d.Data),
		Created: d.Created,
	}
}
