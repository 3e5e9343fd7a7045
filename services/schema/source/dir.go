// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source loads configuration documents from outside the lookup
// store.
//
// A DirSource reads a directory laid out as <root>/<code>/<edition>.json
// and can be watched for edits; a GCSSource reads the same layout from a
// Cloud Storage bucket. Both implement lookup.DocumentStore, so either can
// back a schema.Builder or be copied into a persistent store with Copy.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/qcatschema/pkg/validation"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// documentExt is the file extension of configuration documents.
const documentExt = ".json"

// DirSource serves configuration documents from a directory tree. The
// creation time of a document is the modification time of its file.
//
// Thread Safety: safe for concurrent use. Every call reads the
// filesystem, nothing is cached.
type DirSource struct {
	root   string
	events *lookup.Broker
	logger *slog.Logger
}

// DirOption configures a DirSource.
type DirOption func(*DirSource)

// WithDirLogger sets the logger for skipped files.
func WithDirLogger(l *slog.Logger) DirOption {
	return func(s *DirSource) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewDirSource returns a source rooted at root, which must be an existing
// directory.
func NewDirSource(root string, opts ...DirOption) (*DirSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("document directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document directory %s is not a directory", root)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("document directory: %w", err)
	}
	s := &DirSource{
		root:   abs,
		events: lookup.NewBroker(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute directory the source reads.
func (s *DirSource) Root() string { return s.root }

// Events returns the broker document changes are published on. A Watcher
// publishes there; the source itself never does.
func (s *DirSource) Events() *lookup.Broker { return s.events }

// Path returns the file that holds code/edition.
func (s *DirSource) Path(code, edition string) string {
	return filepath.Join(s.root, code, edition+documentExt)
}

// Document reads one edition. An empty edition means the latest.
func (s *DirSource) Document(ctx context.Context, code, edition string) (*lookup.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validation.ValidateCode(code); err != nil {
		return nil, noConfiguration(code, edition)
	}
	if edition == "" {
		editions, err := s.Editions(ctx, code)
		if err != nil {
			return nil, err
		}
		if len(editions) == 0 {
			return nil, noConfiguration(code, "")
		}
		edition = editions[len(editions)-1]
	} else if err := validation.ValidateEdition(edition); err != nil {
		return nil, noConfiguration(code, edition)
	}
	return s.read(code, edition)
}

func (s *DirSource) read(code, edition string) (*lookup.Document, error) {
	path := s.Path(code, edition)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, noConfiguration(code, edition)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := checkDocument(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &lookup.Document{
		Code:    code,
		Edition: edition,
		Data:    json.RawMessage(data),
		Created: info.ModTime().UTC(),
	}, nil
}

// Editions lists the editions of code, oldest first.
func (s *DirSource) Editions(ctx context.Context, code string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if validation.ValidateCode(code) != nil {
		return nil, nil
	}
	entries, err := os.ReadDir(filepath.Join(s.root, code))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list editions of %s: %w", code, err)
	}
	docs := make([]*lookup.Document, 0, len(entries))
	for _, e := range entries {
		edition, ok := editionOf(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		docs = append(docs, &lookup.Document{Code: code, Edition: edition, Created: info.ModTime()})
	}
	lookup.SortDocuments(docs)
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Edition
	}
	return out, nil
}

// Codes lists the configuration codes with at least one document.
func (s *DirSource) Codes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list configuration codes: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if validation.ValidateCode(e.Name()) != nil {
			s.logger.Debug("skipping directory with invalid configuration code",
				slog.String("path", filepath.Join(s.root, e.Name())))
			continue
		}
		editions, err := s.Editions(ctx, e.Name())
		if err != nil {
			return nil, err
		}
		if len(editions) > 0 {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// editionOf returns the edition a file name stores, if any.
func editionOf(name string) (string, bool) {
	if !strings.HasSuffix(name, documentExt) {
		return "", false
	}
	edition := strings.TrimSuffix(name, documentExt)
	if validation.ValidateEdition(edition) != nil {
		return "", false
	}
	return edition, true
}

// checkDocument rejects anything but a JSON object.
func checkDocument(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return ErrInvalidDocument
	}
	return nil
}

var _ lookup.DocumentStore = (*DirSource)(nil)
