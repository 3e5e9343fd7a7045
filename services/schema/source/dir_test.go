// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/internal/fixtures"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

var base = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// writeDoc writes root/code/edition.json with the given modification time.
func writeDoc(t *testing.T, root, code, edition string, doc any, mtime time.Time) string {
	t.Helper()
	dir := filepath.Join(root, code)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, edition+".json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func newDirSource(t *testing.T) (*DirSource, string) {
	t.Helper()
	root := t.TempDir()
	src, err := NewDirSource(root)
	require.NoError(t, err)
	return src, root
}

func TestNewDirSource(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := NewDirSource(filepath.Join(t.TempDir(), "absent"))
		require.Error(t, err)
	})

	t.Run("file instead of directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		_, err := NewDirSource(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})
}

func TestDirSource_Document(t *testing.T) {
	src, root := newDirSource(t)
	ctx := context.Background()
	writeDoc(t, root, "sample", "2015", map[string]any{"sections": []any{}}, base)
	writeDoc(t, root, "sample", "2018", map[string]any{"sections": []any{"new"}}, base.Add(time.Hour))

	doc, err := src.Document(ctx, "sample", "2015")
	require.NoError(t, err)
	assert.Equal(t, "sample", doc.Code)
	assert.Equal(t, "2015", doc.Edition)
	assert.JSONEq(t, `{"sections":[]}`, string(doc.Data))
	assert.True(t, doc.Created.Equal(base))

	latest, err := src.Document(ctx, "sample", "")
	require.NoError(t, err)
	assert.Equal(t, "2018", latest.Edition)
}

func TestDirSource_DocumentNotFound(t *testing.T) {
	src, root := newDirSource(t)
	ctx := context.Background()
	writeDoc(t, root, "sample", "2015", map[string]any{}, base)

	tests := []struct {
		name    string
		code    string
		edition string
	}{
		{"unknown code", "other", ""},
		{"unknown edition", "sample", "2099"},
		{"invalid code", "../etc", "2015"},
		{"invalid edition", "sample", "../2015"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := src.Document(ctx, tt.code, tt.edition)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNoConfiguration))
			assert.True(t, lookup.IsNotFound(err))
		})
	}
}

func TestDirSource_InvalidDocument(t *testing.T) {
	src, root := newDirSource(t)
	dir := filepath.Join(root, "sample")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	for edition, body := range map[string]string{
		"2015": "not json",
		"2016": "[1, 2]",
		"2017": "",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, edition+".json"), []byte(body), 0o644))
		_, err := src.Document(context.Background(), "sample", edition)
		assert.ErrorIs(t, err, ErrInvalidDocument, edition)
	}
}

func TestDirSource_EditionsAndCodes(t *testing.T) {
	src, root := newDirSource(t)
	ctx := context.Background()

	writeDoc(t, root, "technologies", "2018", map[string]any{}, base.Add(2*time.Hour))
	writeDoc(t, root, "technologies", "2015", map[string]any{}, base)
	writeDoc(t, root, "approaches", "2015", map[string]any{}, base)
	// Same timestamp: ordered by label.
	writeDoc(t, root, "approaches", "b", map[string]any{}, base.Add(time.Hour))
	writeDoc(t, root, "approaches", "a", map[string]any{}, base.Add(time.Hour))

	// Not documents.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Not-A-Code"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "technologies", "notes.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "technologies", ".2019.json.swp"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.json"), []byte("{}"), 0o644))

	editions, err := src.Editions(ctx, "technologies")
	require.NoError(t, err)
	assert.Equal(t, []string{"2015", "2018"}, editions)

	editions, err = src.Editions(ctx, "approaches")
	require.NoError(t, err)
	assert.Equal(t, []string{"2015", "a", "b"}, editions)

	editions, err = src.Editions(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, editions)

	codes, err := src.Codes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"approaches", "technologies"}, codes)

	next, err := lookup.NextEdition(ctx, src, "technologies", "2015")
	require.NoError(t, err)
	assert.Equal(t, "2018", next)
}

func TestDirSource_CancelledContext(t *testing.T) {
	src, _ := newDirSource(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Document(ctx, "sample", "2015")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = src.Codes(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirSource_BacksBuilder(t *testing.T) {
	f := fixtures.Scenario()
	src, root := newDirSource(t)
	writeDoc(t, root, fixtures.ScenarioCode, fixtures.ScenarioEdition, fixtures.ScenarioDocument(), base)

	b := schema.NewBuilder(f.Store, src)
	cfg, err := b.Build(context.Background(), fixtures.ScenarioCode, "")
	require.NoError(t, err)
	require.NoError(t, cfg.Error())
	assert.Equal(t, fixtures.ScenarioEdition, cfg.Edition())
	require.Len(t, cfg.Questiongroups(), 1)
	assert.Equal(t, "qg_1", cfg.Questiongroups()[0].Keyword())
}

func TestCopy(t *testing.T) {
	src, root := newDirSource(t)
	writeDoc(t, root, "sample", "2015", map[string]any{"sections": []any{}}, base)
	writeDoc(t, root, "sample", "2018", map[string]any{"sections": []any{}}, base.Add(time.Hour))
	writeDoc(t, root, "unccd", "2015", map[string]any{"sections": []any{}}, base)

	dst := lookup.NewMemoryStore()
	var events []lookup.Event
	dst.Events().Subscribe(func(e lookup.Event) { events = append(events, e) })

	n, err := Copy(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, events, 3)

	codes, err := dst.Codes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sample", "unccd"}, codes)

	doc, err := dst.Document(context.Background(), "sample", "")
	require.NoError(t, err)
	assert.Equal(t, "2018", doc.Edition)
}

func TestCopy_StopsAtInvalidDocument(t *testing.T) {
	src, root := newDirSource(t)
	writeDoc(t, root, "sample", "2015", map[string]any{}, base)
	require.NoError(t, os.WriteFile(filepath.Join(root, "sample", "2018.json"), []byte("[]"), 0o644))

	_, err := Copy(context.Background(), src, lookup.NewMemoryStore())
	assert.ErrorIs(t, err, ErrInvalidDocument)
}
