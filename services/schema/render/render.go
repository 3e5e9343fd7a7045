// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package render implements the template collaborator of the materializers
// on html/template.
//
// Templates are addressed by slash-separated names relative to the root of
// an fs.FS, e.g. "details/field/textarea.html". Each template is parsed on
// first use and kept for the lifetime of the Renderer.
package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

//go:embed templates
var embedded embed.FS

// ErrTemplateNotFound is returned for names the file system does not hold.
var ErrTemplateNotFound = errors.New("template not found")

// Renderer renders templates from a file system. It is safe for concurrent
// use.
type Renderer struct {
	fsys    fs.FS
	funcs   template.FuncMap
	logger  *slog.Logger
	mu      sync.RWMutex
	parsed  map[string]*template.Template
	missing map[string]bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFuncs adds template functions. Later entries override the defaults.
func WithFuncs(funcs template.FuncMap) Option {
	return func(r *Renderer) {
		for k, v := range funcs {
			r.funcs[k] = v
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Renderer over fsys.
func New(fsys fs.FS, opts ...Option) *Renderer {
	r := &Renderer{
		fsys:    fsys,
		funcs:   defaultFuncs(),
		logger:  slog.Default(),
		parsed:  map[string]*template.Template{},
		missing: map[string]bool{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default returns a Renderer over the built-in detail templates.
func Default(opts ...Option) *Renderer {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(fmt.Sprintf("render: embedded templates: %v", err))
	}
	return New(sub, opts...)
}

// Render executes the template name with data.
func (r *Renderer) Render(_ context.Context, name string, data any) (string, error) {
	tmpl, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}
	return buf.String(), nil
}

// Has reports whether name resolves to a template.
func (r *Renderer) Has(name string) bool {
	_, err := r.lookup(name)
	return err == nil
}

func (r *Renderer) lookup(name string) (*template.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.parsed[name]
	missing := r.missing[name]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}
	if missing {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	src, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.mu.Lock()
			r.missing[name] = true
			r.mu.Unlock()
			r.logger.Warn("template not found", "template", name)
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	tmpl, err = template.New(name).Funcs(r.funcs).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	r.mu.Lock()
	r.parsed[name] = tmpl
	r.mu.Unlock()
	r.logger.Debug("template parsed", "template", name)
	return tmpl, nil
}

// defaultFuncs are available to every template. safe marks markup
// produced by nested renders.
func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"safe":     func(s string) template.HTML { return template.HTML(s) },
		"join":     join,
		"decimals": decimals,
	}
}

// join formats every element of a list and joins them with sep.
func join(v any, sep string) string {
	switch list := v.(type) {
	case []string:
		return strings.Join(list, sep)
	case []any:
		parts := make([]string, len(list))
		for i, e := range list {
			parts[i] = fmt.Sprint(e)
		}
		return strings.Join(parts, sep)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// decimals formats a number with n digits after the point. Values that are
// not numbers pass through.
func decimals(v, n any) string {
	var f float64
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return t
		}
		f = parsed
	case fmt.Stringer:
		parsed, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return t.String()
		}
		f = parsed
	default:
		return fmt.Sprint(v)
	}
	digits := -1
	switch d := n.(type) {
	case int:
		digits = d
	case float64:
		digits = int(d)
	case fmt.Stringer:
		if i, err := strconv.Atoi(d.String()); err == nil {
			digits = i
		}
	}
	return strconv.FormatFloat(f, 'f', digits, 64)
}
