// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a qcat.yaml loading testdata/snapshot.json into an
// in-memory store. extra is appended verbatim.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	snapshot, err := filepath.Abs(filepath.Join("testdata", "snapshot.json"))
	require.NoError(t, err)

	yaml := `server:
  mode: test
storage:
  in_memory: true
  snapshot: ` + snapshot + `
logging:
  level: error
` + extra
	path := filepath.Join(t.TempDir(), "qcat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

// documentsConfig points documents.dir at dir.
func documentsConfig(dir string, watch bool) string {
	w := "false"
	if watch {
		w = "true"
	}
	return "documents:\n  dir: " + dir + "\n  watch: " + w + "\n  debounce: 20ms\n"
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("QCAT_CONFIG", "")
	t.Setenv("QCAT_LOG_LEVEL", "")

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestValidate_One(t *testing.T) {
	cfg := writeConfig(t, "documents:\n  dir: \"\"\n")

	out, _, err := execute(t, "", "--config", cfg, "-o", "machine", "validate", "sample", "2015")
	require.NoError(t, err)
	assert.Contains(t, out, "✓\tsample/2015\t")
	assert.Contains(t, out, "SUMMARY: valid=1 invalid=0 total=1")
}

func TestValidate_Latest(t *testing.T) {
	cfg := writeConfig(t, "documents:\n  dir: \"\"\n")

	out, _, err := execute(t, "", "--config", cfg, "-o", "machine", "validate", "sample")
	require.NoError(t, err)
	assert.Contains(t, out, "✓\tsample\t")
}

func TestValidate_All(t *testing.T) {
	cfg := writeConfig(t, "documents:\n  dir: \"\"\n")

	out, _, err := execute(t, "", "--config", cfg, "-o", "machine", "validate", "--all", "-j", "2")
	require.ErrorIs(t, err, errInvalidConfigurations)
	assert.Contains(t, out, "✓\tsample/2015\t")
	assert.Contains(t, out, "✗\tbroken/2015\t")
	assert.Contains(t, out, "SUMMARY: valid=1 invalid=1 total=2")
}

func TestValidate_Missing(t *testing.T) {
	cfg := writeConfig(t, "documents:\n  dir: \"\"\n")

	out, _, err := execute(t, "", "--config", cfg, "-o", "machine", "validate", "nothing", "2015")
	require.ErrorIs(t, err, errInvalidConfigurations)
	assert.Contains(t, out, "✗\tnothing/2015\t")
}

func TestValidate_Arguments(t *testing.T) {
	cfg := writeConfig(t, "")

	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", []string{"validate"}},
		{"all with code", []string{"validate", "--all", "sample"}},
		{"too many", []string{"validate", "a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, "", append([]string{"--config", cfg}, tt.args...)...)
			assert.Error(t, err)
		})
	}

	_, errOut, err := execute(t, "", "--config", cfg, "-o", "machine", "validate", "Bad!")
	require.Error(t, err)
	assert.Contains(t, errOut, "ERROR: invalid configuration code")
}

func TestRoot_MissingExplicitConfig(t *testing.T) {
	_, errOut, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "-o", "machine", "version")
	require.Error(t, err)
	assert.Contains(t, errOut, "failed to read the config file")
}

func TestFilterKeys(t *testing.T) {
	cfg := writeConfig(t, "documents:\n  dir: \"\"\n")

	out, _, err := execute(t, "", "--config", cfg, "filter-keys", "sample", "2015", "--json")
	require.NoError(t, err)

	var keys []schema.FilterKey
	require.NoError(t, json.Unmarshal([]byte(out), &keys), out)
	require.Len(t, keys, 1)
	assert.Equal(t, "qg_1__key_5", keys[0].Path)
	assert.Equal(t, "Short definition", keys[0].Label)
	assert.Equal(t, "char", keys[0].FilterType)
	assert.Equal(t, "Section 1", keys[0].SectionLabel)

	out, _, err = execute(t, "", "--config", cfg, "-o", "machine", "filter-keys", "sample")
	require.NoError(t, err)
	assert.Equal(t, "PATH\tLABEL\tTYPE\tORDER\tSECTION\nqg_1__key_5\tShort definition\tchar\t1\tSection 1\n", out)
}

func TestFilterKeys_InvalidConfiguration(t *testing.T) {
	cfg := writeConfig(t, "documents:\n  dir: \"\"\n")

	_, errOut, err := execute(t, "", "--config", cfg, "-o", "machine", "filter-keys", "broken", "2015")
	require.Error(t, err)
	assert.True(t, schema.IsConfigurationError(err), err)
	assert.Contains(t, errOut, "ERROR: ")
}

func TestFilterKeys_InvalidLocale(t *testing.T) {
	cfg := writeConfig(t, "documents:\n  dir: \"\"\n")

	_, _, err := execute(t, "", "--config", cfg, "filter-keys", "sample", "--locale", "??")
	assert.Error(t, err)
}

func TestTranslations(t *testing.T) {
	cfg := writeConfig(t, "documents:\n  dir: \"\"\n")

	out, _, err := execute(t, "", "--config", cfg, "translations", "sample", "2015", "--json")
	require.NoError(t, err)

	var ids []int64
	require.NoError(t, json.Unmarshal([]byte(out), &ids), out)
	assert.Subset(t, ids, []int64{4, 5, 6, 7})
}

func TestListData(t *testing.T) {
	cfg := writeConfig(t, "documents:\n  dir: \"\"\n")
	stdin := `[{"qg_1": [{"key_1": "high", "key_5": "Terraces"}]}, {}]`

	out, _, err := execute(t, stdin, "--config", cfg, "list-data", "sample", "2015")
	require.NoError(t, err)

	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &items), out)
	require.Len(t, items, 2)
	assert.Equal(t, "High", items[0]["key_1"])
	assert.Equal(t, "Terraces", items[0]["definition"])
	assert.NotContains(t, items[1], "definition")
}

func TestListData_FromFile(t *testing.T) {
	cfg := writeConfig(t, "documents:\n  dir: \"\"\n")
	file := filepath.Join(t.TempDir(), "questionnaires.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"qg_1": [{"key_1": "low"}]}]`), 0o644))

	out, _, err := execute(t, "", "--config", cfg, "list-data", "sample", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, `"key_1": "Low"`)
}

func TestListData_RejectsNonArray(t *testing.T) {
	cfg := writeConfig(t, "documents:\n  dir: \"\"\n")

	_, _, err := execute(t, `{"qg_1": []}`, "--config", cfg, "list-data", "sample")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON array")
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "qcat.yaml")

	out, _, err := execute(t, "", "-o", "machine", "config", "init", path)
	require.NoError(t, err)
	assert.Equal(t, "OK: wrote "+path+"\n", out)
	require.FileExists(t, path)

	_, _, err = execute(t, "", "config", "init", path)
	assert.Error(t, err)

	_, _, err = execute(t, "", "config", "init", path, "--force")
	assert.NoError(t, err)

	out, _, err = execute(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "127.0.0.1:8080")
	assert.Contains(t, out, "exporter: none")
}

func TestVersion(t *testing.T) {
	cfg := writeConfig(t, "")

	out, _, err := execute(t, "", "--config", cfg, "-o", "machine", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "qcat "+api.ServiceVersion)
	assert.Contains(t, out, "field types:")
}

func TestImport_DryRun(t *testing.T) {
	cfg := writeConfig(t, "")

	out, _, err := execute(t, "", "--config", cfg, "-o", "machine", "import", "--dry-run",
		"--snapshot", filepath.Join("testdata", "snapshot.json"))
	require.ErrorIs(t, err, errInvalidConfigurations)
	assert.Contains(t, out, "configurations\t2")
	assert.Contains(t, out, "SUMMARY: valid=1 invalid=1 total=2")
}

func TestImport_NothingToImport(t *testing.T) {
	cfg := writeConfig(t, "")

	_, _, err := execute(t, "", "--config", cfg, "import", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to import")
}

// writeDocument writes <dir>/<code>/<edition>.json with the given mtime.
func writeDocument(t *testing.T, dir, code, edition, data string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, code, edition+".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

const sampleDocument = `{"sections": [{"keyword": "section_1", "categories": [
  {"keyword": "cat_1", "subcategories": [{"keyword": "subcat_1", "questiongroups": [
    {"keyword": "qg_1", "questions": [{"keyword": "key_1"}, {"keyword": "key_5"}]}
  ]}]}
]}]}`

func TestImport_BadgerThenValidate(t *testing.T) {
	docs := t.TempDir()
	writeDocument(t, docs, "sample", "2020", sampleDocument, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	badgerDir := filepath.Join(t.TempDir(), "badger")

	cfg := writeConfig(t, "")
	out, _, err := execute(t, "", "--config", cfg, "-o", "machine", "import",
		"--path", badgerDir,
		"--snapshot", filepath.Join("testdata", "snapshot.json"),
		"--documents", docs,
		"--validate=false")
	require.NoError(t, err)
	assert.Contains(t, out, "OK: copied 1 documents from ")

	persistent := filepath.Join(t.TempDir(), "qcat.yaml")
	require.NoError(t, os.WriteFile(persistent, []byte(
		"storage:\n  in_memory: false\n  path: "+badgerDir+"\ndocuments:\n  dir: \"\"\nlogging:\n  level: error\n"), 0o644))

	out, _, err = execute(t, "", "--config", persistent, "-o", "machine", "validate", "sample", "2020")
	require.NoError(t, err)
	assert.Contains(t, out, "✓\tsample/2020\t")
}

func TestServe_Router(t *testing.T) {
	docs := t.TempDir()
	writeDocument(t, docs, "sample", "2015", sampleDocument, time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC))
	cfgPath := writeConfig(t, documentsConfig(docs, true))

	a := &app{configPath: cfgPath, outputMode: "machine"}
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	require.NoError(t, a.setup(root, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv, err := a.newServer(ctx)
	require.NoError(t, err)
	defer srv.Close(context.Background())
	require.NotNil(t, srv.watcher)
	assert.True(t, srv.watcher.IsWatching())

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/v1/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get("/v1/configurations/sample/2015")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report api.ReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.Valid, report.Error)

	writeDocument(t, docs, "sample", "2016", `{"sections": [{"keyword": "section_1", "categories": [
	  {"keyword": "no_such_cat", "subcategories": [{"keyword": "subcat_1", "questiongroups": [
	    {"keyword": "qg_1", "questions": [{"keyword": "key_1"}]}]}]}]}]}`,
		time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC))

	require.Eventually(t, func() bool {
		w := get("/v1/configurations/sample/latest")
		if w.Code != http.StatusOK {
			return false
		}
		var r api.ReportResponse
		if err := json.Unmarshal(w.Body.Bytes(), &r); err != nil {
			return false
		}
		return r.Edition == "2016" && !r.Valid
	}, 5*time.Second, 25*time.Millisecond)
}
