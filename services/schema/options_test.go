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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeOptions(t *testing.T) {
	defaults := map[string]any{"in_list": true, "nested": map[string]any{"a": 1}}
	overrides := map[string]any{"in_list": false, "is_name": true}

	opts, err := mergeOptions("view_options", "questions", defaults, overrides)
	require.NoError(t, err)
	assert.Equal(t, []string{"in_list", "is_name", "nested"}, opts.Keys())
	assert.False(t, opts.Bool("in_list"))
	assert.True(t, opts.Bool("is_name"))

	defaults["nested"].(map[string]any)["a"] = 2
	assert.Equal(t, 1, opts.Map("nested").Raw()["a"])

	_, err = mergeOptions("view_options", "questions", []any{}, nil)
	var ice *InvalidConfigurationError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, "view_options", ice.Field)
	assert.Equal(t, "questions", ice.Context)

	_, err = mergeOptions("form_options", "questions", nil, "x")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	empty, err := mergeOptions("summary", "questions", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.NotNil(t, empty.Raw())
}

func TestOptions_Accessors(t *testing.T) {
	opts := NewOptions(map[string]any{
		"flag":     true,
		"truthy":   "yes",
		"name":     "x",
		"int":      json.Number("3"),
		"float":    json.Number("1.5"),
		"whole":    float64(4),
		"list":     []any{"a", "b"},
		"mixed":    []any{"a", 1},
		"nested":   map[string]any{"k": "v"},
		"explicit": nil,
	})

	assert.True(t, opts.Bool("flag"))
	assert.False(t, opts.Bool("truthy"))
	assert.False(t, opts.Bool("missing"))

	assert.Equal(t, "x", opts.String("name"))
	assert.Equal(t, "", opts.String("flag"))
	assert.Equal(t, "def", opts.StringOr("missing", "def"))
	assert.Equal(t, "x", opts.StringOr("name", "def"))

	n, ok := opts.Int("int")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	_, ok = opts.Int("float")
	assert.False(t, ok)
	n, ok = opts.Int("whole")
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	f, ok := opts.Number("float")
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)

	list, ok := opts.Strings("list")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, list)
	_, ok = opts.Strings("mixed")
	assert.False(t, ok)

	assert.Equal(t, "v", opts.Map("nested").String("k"))
	assert.Equal(t, 0, opts.Map("name").Len())

	assert.True(t, opts.Has("explicit"))
	v, ok := opts.Get("explicit")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestOptions_Immutable(t *testing.T) {
	src := map[string]any{"list": []any{"a"}}
	opts := NewOptions(src)
	src["list"].([]any)[0] = "changed"

	got, _ := opts.Get("list")
	got.([]any)[0] = "mutated"
	raw := opts.Raw()
	raw["list"] = nil

	list, ok := opts.Strings("list")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, list)
}

func TestOptions_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(NewOptions(map[string]any{"b": 1, "a": "x"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": "x", "b": 1}`, string(b))

	b, err = json.Marshal(Options{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}

func TestChoiceKey(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{"A", "A", true},
		{true, "1", true},
		{false, "0", true},
		{json.Number("2"), "2", true},
		{float64(2), "2", true},
		{2.5, "2.5", true},
		{3, "3", true},
		{nil, "", false},
		{[]any{"a"}, "", false},
	}
	for _, tt := range tests {
		got, ok := choiceKey(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}
