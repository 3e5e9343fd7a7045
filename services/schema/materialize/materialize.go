// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package materialize turns a built schema tree plus questionnaire data into
// form descriptors (Form) and read-only detail output (Details).
//
// The tree is never mutated; every request-scoped input (data, locale, edit
// mode, translation pass) travels through the request structs, so one
// Configuration can serve concurrent materializations.
package materialize

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/qcatschema/services/schema"
)

var tracer = otel.Tracer("qcat.materialize")

var (
	// ErrUserNotFound is returned by a UserResolver for an unknown id.
	ErrUserNotFound = errors.New("user not found")

	// ErrUnknownCategory is returned when a request names a category the
	// configuration does not have.
	ErrUnknownCategory = errors.New("unknown category")
)

// UnknownUser is displayed for user ids that no longer resolve.
const UnknownUser = "Unknown User"

// Renderer renders a named template with a context into markup.
type Renderer interface {
	Render(ctx context.Context, name string, data any) (string, error)
}

// User is the display information of a referenced user.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// UserResolver resolves user ids stored by user_id questions.
type UserResolver interface {
	User(ctx context.Context, id string) (*User, error)
}

// MapLinker reverses questionnaire routes of a configuration. Both methods
// report false when the configuration has no such route.
type MapLinker interface {
	MapURL(configuration, identifier string) (string, bool)
	LinkSearchURL(configuration string) (string, bool)
}

// ModelChoices lists the instances of an external model offered by
// select_model questions.
type ModelChoices interface {
	Choices(ctx context.Context, model string) ([]schema.Choice, error)
}

// Mode is the edit mode of a form.
type Mode string

const (
	ModeEdit Mode = "edit"
	ModeView Mode = "view"
)

// Materializer renders forms and details. The zero collaborators are
// valid: without a Renderer no markup is produced, without resolvers the
// corresponding values degrade to empty output.
type Materializer struct {
	renderer Renderer
	files    schema.FileResolver
	users    UserResolver
	links    MapLinker
	models   ModelChoices
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Materializer.
type Option func(*Materializer)

func WithRenderer(r Renderer) Option         { return func(m *Materializer) { m.renderer = r } }
func WithFiles(f schema.FileResolver) Option { return func(m *Materializer) { m.files = f } }
func WithUsers(u UserResolver) Option        { return func(m *Materializer) { m.users = u } }
func WithMapLinker(l MapLinker) Option       { return func(m *Materializer) { m.links = l } }
func WithModelChoices(c ModelChoices) Option { return func(m *Materializer) { m.models = c } }
func WithClock(now func() time.Time) Option  { return func(m *Materializer) { m.now = now } }

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Materializer) {
		if l != nil {
			m.logger = l
		}
	}
}

func New(opts ...Option) *Materializer {
	m := &Materializer{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// render renders name when a Renderer is configured.
func (m *Materializer) render(ctx context.Context, name string, data any) (string, error) {
	if m.renderer == nil {
		return "", nil
	}
	return m.renderer.Render(ctx, name, data)
}
