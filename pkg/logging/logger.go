// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the *slog.Logger shared by the qcat CLI and the
// schema service.
//
// Records go to a console writer (stderr unless Config.Output is set), as
// text or JSON, and optionally to a dated JSON file under a log directory:
//
//	logger := logging.New(logging.Config{
//	    Level:   slog.LevelInfo,
//	    Service: "qcat",
//	    LogDir:  "~/.qcat/logs",
//	})
//	defer logger.Close()
//	logger.Info("configuration built", "configuration_code", "technologies")
//
// Library packages accept a *slog.Logger, obtained from Logger.Slog, and
// never import this package.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultService names the log file when Config.Service is empty.
const DefaultService = "qcat"

// ParseLevel accepts debug, info, warn (or warning) and error in any case,
// plus slog offsets such as "info+2". The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Config controls where a Logger writes.
type Config struct {
	Level slog.Level

	// Service is attached to every record as "service" and names the log
	// file.
	Service string

	// LogDir enables file logging when set. A leading "~" is the home
	// directory.
	LogDir string

	// JSON switches the console from text to JSON.
	JSON bool

	// Quiet disables the console. The file still receives records.
	Quiet bool

	// Output replaces stderr as the console.
	Output io.Writer
}

// Logger is a *slog.Logger that owns its log file.
//
// Thread Safety: safe for concurrent use. Loggers derived with With share
// the root's file; only the root should be closed.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New builds a Logger from cfg. A log file that cannot be opened is
// reported on the console and otherwise ignored.
func New(cfg Config) *Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var sinks fanout
	if !cfg.Quiet {
		if cfg.JSON {
			sinks = append(sinks, slog.NewJSONHandler(out, opts))
		} else {
			sinks = append(sinks, slog.NewTextHandler(out, opts))
		}
	}

	l := &Logger{}
	var fileErr error
	if cfg.LogDir != "" {
		l.file, fileErr = openLogFile(cfg.LogDir, cfg.Service, time.Now())
		if fileErr == nil {
			sinks = append(sinks, slog.NewJSONHandler(l.file, opts))
		}
	}

	var handler slog.Handler = sinks
	if len(sinks) == 1 {
		handler = sinks[0]
	}
	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}
	l.Logger = slog.New(handler)

	if fileErr != nil {
		l.Warn("file logging disabled", "dir", cfg.LogDir, "error", fileErr)
	}
	return l
}

// Default returns an info-level console logger.
func Default() *Logger {
	return New(Config{Level: slog.LevelInfo, Service: DefaultService})
}

// With returns a Logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Slog returns the underlying *slog.Logger for library packages.
func (l *Logger) Slog() *slog.Logger {
	return l.Logger
}

// Close syncs and closes the log file, if any. It is safe to call twice.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := errors.Join(l.file.Sync(), l.file.Close())
	l.file = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// openLogFile opens <dir>/<service>_<date>.log for appending.
func openLogFile(dir, service string, now time.Time) (*os.File, error) {
	if rest, ok := strings.CutPrefix(dir, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, rest)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	if service == "" {
		service = DefaultService
	}
	name := service + "_" + now.Format("2006-01-02") + ".log"
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) derive(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}
