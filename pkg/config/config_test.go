// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qcat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvLogLevel, "")
	path := writeConfig(t, `
server:
  addr: ":9090"
  shutdown_timeout: 3s
documents:
  dir: /srv/qcat/configurations
  watch: true
cache:
  max_entries: 16
  error_ttl: 1m
telemetry:
  exporter: otlp
  otlp_endpoint: collector:4317
locales:
  default: es
  supported: [es, en]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/srv/qcat/configurations", cfg.Documents.Dir)
	assert.True(t, cfg.Documents.Watch)
	assert.Equal(t, 100*time.Millisecond, cfg.Documents.Debounce)
	assert.Equal(t, 16, cfg.Cache.MaxEntries)
	assert.Equal(t, time.Minute, cfg.Cache.ErrorTTL)
	assert.Equal(t, 30*time.Second, cfg.Cache.BuildTimeout)
	assert.Equal(t, "otlp", cfg.Telemetry.Exporter)
	assert.Equal(t, "es", cfg.Locales.Default)
	assert.Equal(t, []string{"es", "en"}, cfg.Locales.Supported)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv(EnvLogLevel, "")

	t.Run("implicit path falls back to defaults", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(t.TempDir()))
		defer os.Chdir(wd)

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("explicit path must exist", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("environment path must exist", func(t *testing.T) {
		t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := Load("")
		require.Error(t, err)
	})
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvLogLevel, "")

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed yaml", "server: [", "parse"},
		{"unknown exporter", "telemetry:\n  exporter: zipkin\n", "Exporter"},
		{"otlp without endpoint", "telemetry:\n  exporter: otlp\n", "OTLPEndpoint"},
		{"sample ratio above one", "telemetry:\n  sample_ratio: 2\n", "SampleRatio"},
		{"zero cache", "cache:\n  max_entries: 0\n", "MaxEntries"},
		{"invalid default locale", "locales:\n  default: '??'\n", "Default"},
		{"invalid supported locale", "locales:\n  supported: [en, '??']\n", "Supported"},
		{"bad log level", "logging:\n  level: verbose\n", "Level"},
		{"bad gin mode", "server:\n  mode: turbo\n", "Mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/qcat.yaml")
	assert.Equal(t, "given.yaml", ResolvePath("given.yaml"))
	assert.Equal(t, "/etc/qcat.yaml", ResolvePath(""))

	t.Setenv(EnvConfig, "")
	assert.Equal(t, DefaultPath, ResolvePath(""))
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "qcat.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, Default(), cfg)
}
