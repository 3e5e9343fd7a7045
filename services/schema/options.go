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
	"math"
	"sort"
	"strconv"

	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// Options is an immutable option dictionary (view_options, form_options,
// filter_options, summary). Accessors never expose the underlying map.
type Options struct {
	m map[string]any
}

// NewOptions deep-copies m.
func NewOptions(m map[string]any) Options {
	return Options{m: lookup.CloneMap(m)}
}

// mergeOptions overlays overrides on defaults key by key. Both must be JSON
// objects or absent.
func mergeOptions(field, context string, defaults, overrides any) (Options, error) {
	base, err := asObject(field, context, defaults)
	if err != nil {
		return Options{}, err
	}
	over, err := asObject(field, context, overrides)
	if err != nil {
		return Options{}, err
	}
	merged := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		merged[k] = lookup.DeepCopy(v)
	}
	for k, v := range over {
		merged[k] = lookup.DeepCopy(v)
	}
	return Options{m: merged}, nil
}

func asObject(field, context string, v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &InvalidConfigurationError{Field: field, ExpectedType: "dict", Context: context}
	}
	return m, nil
}

func (o Options) Len() int { return len(o.m) }

func (o Options) Has(key string) bool {
	_, ok := o.m[key]
	return ok
}

// Get returns a copy of the value at key.
func (o Options) Get(key string) (any, bool) {
	v, ok := o.m[key]
	if !ok {
		return nil, false
	}
	return lookup.DeepCopy(v), true
}

// String returns the string at key, or "".
func (o Options) String(key string) string {
	s, _ := o.m[key].(string)
	return s
}

// StringOr returns the string at key, or def when it is absent or not a
// string.
func (o Options) StringOr(key, def string) string {
	if s, ok := o.m[key].(string); ok {
		return s
	}
	return def
}

// Bool is true only for a literal JSON true.
func (o Options) Bool(key string) bool {
	b, ok := o.m[key].(bool)
	return ok && b
}

// Int returns the value at key when it is an integral number.
func (o Options) Int(key string) (int, bool) {
	return toInt(o.m[key])
}

// Number returns the value at key when it is any JSON number.
func (o Options) Number(key string) (float64, bool) {
	return toFloat(o.m[key])
}

// Map returns the object at key as Options.
func (o Options) Map(key string) Options {
	m, _ := o.m[key].(map[string]any)
	return NewOptions(m)
}

// Strings returns the list of strings at key. The second value is false
// when the key is absent or holds anything else.
func (o Options) Strings(key string) ([]string, bool) {
	return toStrings(o.m[key])
}

// Keys returns the keys in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o.m))
	for k := range o.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Raw returns a deep copy of the dictionary. It is never nil.
func (o Options) Raw() map[string]any {
	if o.m == nil {
		return map[string]any{}
	}
	return lookup.CloneMap(o.m)
}

func (o Options) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Raw())
}

// =============================================================================
// Scalar helpers
// =============================================================================

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toStrings(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// choiceKey converts a stored answer to the string form of a choice key.
// Booleans map to "1" and "0" the way bool choices are keyed.
func choiceKey(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		if t {
			return "1", true
		}
		return "0", true
	case json.Number:
		return t.String(), true
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}
