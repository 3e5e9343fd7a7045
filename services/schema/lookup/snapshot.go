// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/AleutianAI/qcatschema/pkg/validation"
)

// Snapshot is the interchange format for a complete set of lookup tables and
// configuration documents. The import command and test fixtures use it.
type Snapshot struct {
	Keys           []*Key           `json:"keys"`
	Values         []*Value         `json:"values"`
	Questiongroups []*Questiongroup `json:"questiongroups"`
	Categories     []*Category      `json:"categories"`
	Translations   []*Translation   `json:"translations"`
	Configurations []*Document      `json:"configurations"`
}

// ApplyStats counts what a snapshot wrote.
type ApplyStats struct {
	Keys           int `json:"keys"`
	Values         int `json:"values"`
	Questiongroups int `json:"questiongroups"`
	Categories     int `json:"categories"`
	Translations   int `json:"translations"`
	Configurations int `json:"configurations"`
}

// ReadSnapshot decodes and validates a snapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidSnapshot, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Validate checks identifiers, uniqueness and internal references.
func (s *Snapshot) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidSnapshot, fmt.Sprintf(format, args...))
	}

	translations := make(map[int64]bool, len(s.Translations))
	for _, t := range s.Translations {
		if t.ID <= 0 {
			return invalid("translation id must be positive, got %d", t.ID)
		}
		if translations[t.ID] {
			return invalid("duplicate translation id %d", t.ID)
		}
		translations[t.ID] = true
	}
	checkTranslation := func(kind Kind, keyword string, id int64) error {
		if id != 0 && !translations[id] {
			return invalid("%s %q references unknown translation %d", kind, keyword, id)
		}
		return nil
	}
	checkKeyword := func(kind Kind, keyword string, seen map[string]bool) error {
		if err := validation.ValidateKeyword(keyword); err != nil {
			return invalid("%s: %v", kind, err)
		}
		if seen[keyword] {
			return invalid("duplicate %s %q", kind, keyword)
		}
		seen[keyword] = true
		return nil
	}

	values := make(map[string]bool, len(s.Values))
	for _, v := range s.Values {
		if err := checkKeyword(KindValue, v.Keyword, values); err != nil {
			return err
		}
		if err := checkTranslation(KindValue, v.Keyword, v.TranslationID); err != nil {
			return err
		}
	}
	keys := make(map[string]bool, len(s.Keys))
	for _, k := range s.Keys {
		if err := checkKeyword(KindKey, k.Keyword, keys); err != nil {
			return err
		}
		if err := checkTranslation(KindKey, k.Keyword, k.TranslationID); err != nil {
			return err
		}
		for _, v := range k.Values {
			if !values[v] {
				return invalid("key %q references unknown value %q", k.Keyword, v)
			}
		}
	}
	qgs := make(map[string]bool, len(s.Questiongroups))
	for _, qg := range s.Questiongroups {
		if err := checkKeyword(KindQuestiongroup, qg.Keyword, qgs); err != nil {
			return err
		}
		if err := checkTranslation(KindQuestiongroup, qg.Keyword, qg.TranslationID); err != nil {
			return err
		}
	}
	categories := make(map[string]bool, len(s.Categories))
	for _, c := range s.Categories {
		if err := checkKeyword(KindCategory, c.Keyword, categories); err != nil {
			return err
		}
		if err := checkTranslation(KindCategory, c.Keyword, c.TranslationID); err != nil {
			return err
		}
	}
	docs := make(map[string]bool, len(s.Configurations))
	for _, d := range s.Configurations {
		if err := validation.ValidateCode(d.Code); err != nil {
			return invalid("configuration: %v", err)
		}
		if err := validation.ValidateEdition(d.Edition); err != nil {
			return invalid("configuration %s: %v", d.Code, err)
		}
		id := d.Code + "_" + d.Edition
		if docs[id] {
			return invalid("duplicate configuration %s", id)
		}
		docs[id] = true
		if !json.Valid(d.Data) {
			return invalid("configuration %s: data is not valid JSON", id)
		}
	}
	return nil
}

// Apply writes every entity through w. Translations and Values are written
// first so that later readers never see a dangling reference.
func (s *Snapshot) Apply(ctx context.Context, w Writer) (ApplyStats, error) {
	var stats ApplyStats
	for _, t := range s.Translations {
		if err := w.PutTranslation(ctx, t); err != nil {
			return stats, fmt.Errorf("put translation %d: %w", t.ID, err)
		}
		stats.Translations++
	}
	for _, v := range s.Values {
		if err := w.PutValue(ctx, v); err != nil {
			return stats, fmt.Errorf("put value %s: %w", v.Keyword, err)
		}
		stats.Values++
	}
	for _, k := range s.Keys {
		if err := w.PutKey(ctx, k); err != nil {
			return stats, fmt.Errorf("put key %s: %w", k.Keyword, err)
		}
		stats.Keys++
	}
	for _, qg := range s.Questiongroups {
		if err := w.PutQuestiongroup(ctx, qg); err != nil {
			return stats, fmt.Errorf("put questiongroup %s: %w", qg.Keyword, err)
		}
		stats.Questiongroups++
	}
	for _, c := range s.Categories {
		if err := w.PutCategory(ctx, c); err != nil {
			return stats, fmt.Errorf("put category %s: %w", c.Keyword, err)
		}
		stats.Categories++
	}
	for _, d := range s.Configurations {
		if err := w.PutDocument(ctx, d); err != nil {
			return stats, fmt.Errorf("put configuration %s_%s: %w", d.Code, d.Edition, err)
		}
		stats.Configurations++
	}
	return stats, nil
}

// NewMemoryStoreFromSnapshot validates snap and loads it into a fresh
// MemoryStore.
func NewMemoryStoreFromSnapshot(ctx context.Context, snap *Snapshot) (*MemoryStore, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	store := NewMemoryStore()
	if _, err := snap.Apply(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}
