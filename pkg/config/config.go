// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the service configuration of qcat from YAML.
//
// Every section has defaults, so an empty file (or no file) is a valid
// configuration that serves documents from ./configurations with an
// in-memory lookup store.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/qcatschema/pkg/validation"
)

// Environment variables read by Load.
const (
	// EnvConfig selects the configuration file.
	EnvConfig = "QCAT_CONFIG"

	// EnvLogLevel overrides logging.level.
	EnvLogLevel = "QCAT_LOG_LEVEL"
)

// DefaultPath is used when neither a path nor QCAT_CONFIG is given.
const DefaultPath = "qcat.yaml"

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Documents DocumentsConfig `yaml:"documents"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Locales   LocalesConfig   `yaml:"locales"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required,hostname_port"`
	Mode            string        `yaml:"mode" validate:"oneof=debug release test"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// StorageConfig selects the lookup store. With InMemory set, or without a
// Path, lookup tables live in memory and are loaded from Snapshot.
type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`

	// Snapshot is a JSON lookup snapshot applied at startup. Optional.
	Snapshot string `yaml:"snapshot"`
}

// DocumentsConfig selects where configuration documents come from. A GCS
// bucket takes precedence over the directory; with neither, documents are
// read from the lookup store.
type DocumentsConfig struct {
	Dir      string        `yaml:"dir"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
	GCS      GCSConfig     `yaml:"gcs"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

type CacheConfig struct {
	MaxEntries   int           `yaml:"max_entries" validate:"gte=1"`
	ErrorTTL     time.Duration `yaml:"error_ttl" validate:"gte=0"`
	BuildTimeout time.Duration `yaml:"build_timeout" validate:"gt=0"`
}

type TelemetryConfig struct {
	Exporter     string  `yaml:"exporter" validate:"oneof=none stdout prometheus otlp"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" validate:"required_if=Exporter otlp"`
	OTLPInsecure bool    `yaml:"otlp_insecure"`
	SampleRatio  float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

type LocalesConfig struct {
	Default   string   `yaml:"default" validate:"required,qcat_locale"`
	Supported []string `yaml:"supported" validate:"dive,qcat_locale"`
}

// Default returns the configuration used for absent keys.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			Mode:            "release",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{InMemory: true},
		Documents: DocumentsConfig{
			Dir:      "configurations",
			Debounce: 100 * time.Millisecond,
		},
		Cache: CacheConfig{
			MaxEntries:   256,
			ErrorTTL:     30 * time.Second,
			BuildTimeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:    "none",
			SampleRatio: 1,
		},
		Logging: LoggingConfig{Level: "info"},
		Locales: LocalesConfig{
			Default:   "en",
			Supported: []string{"en", "es", "fr", "ru", "zh", "ar", "pt"},
		},
	}
}

// ResolvePath returns path, else $QCAT_CONFIG, else DefaultPath.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads the file at ResolvePath(path) over the defaults, applies
// environment overrides and validates the result. A missing file is not
// an error unless the path was given explicitly.
func Load(path string) (Config, error) {
	explicit := path != "" || os.Getenv(EnvConfig) != ""
	path = ResolvePath(path)

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return Config{}, fmt.Errorf("failed to read the config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags of every section.
func (c Config) Validate() error {
	v := validator.New()
	if err := validation.RegisterTags(v); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to path, creating its
// directory.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
