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
	"sort"
	"sync"
)

// Store resolves lookup entities by keyword. Implementations return copies:
// callers may not observe later writes through a returned value, and their
// own modifications never reach the store.
type Store interface {
	Key(ctx context.Context, keyword string) (*Key, error)

	// Values returns the Values for keywords in the given order. A missing
	// keyword is an error.
	Values(ctx context.Context, keywords []string) ([]*Value, error)

	Questiongroup(ctx context.Context, keyword string) (*Questiongroup, error)
	Category(ctx context.Context, keyword string) (*Category, error)
	Translation(ctx context.Context, id int64) (*Translation, error)
}

// DocumentStore resolves configuration documents.
type DocumentStore interface {
	// Document returns one edition. An empty edition means the latest.
	Document(ctx context.Context, code, edition string) (*Document, error)

	// Editions lists the editions of code from oldest to newest.
	Editions(ctx context.Context, code string) ([]string, error)

	// Codes lists every configuration code with at least one document.
	Codes(ctx context.Context) ([]string, error)
}

// Writer persists lookup entities and documents. Every successful write
// publishes an Event.
type Writer interface {
	PutKey(ctx context.Context, k *Key) error
	PutValue(ctx context.Context, v *Value) error
	PutQuestiongroup(ctx context.Context, qg *Questiongroup) error
	PutCategory(ctx context.Context, c *Category) error
	PutTranslation(ctx context.Context, t *Translation) error
	PutDocument(ctx context.Context, d *Document) error
}

// =============================================================================
// In-memory store
// =============================================================================

// MemoryStore keeps every table in maps. It backs tests, the CLI when no
// database is configured, and fixtures loaded at startup.
//
// Thread Safety: safe for concurrent use.
type MemoryStore struct {
	mu             sync.RWMutex
	keys           map[string]*Key
	values         map[string]*Value
	questiongroups map[string]*Questiongroup
	categories     map[string]*Category
	translations   map[int64]*Translation
	documents      map[string]map[string]*Document
	events         *Broker
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:           make(map[string]*Key),
		values:         make(map[string]*Value),
		questiongroups: make(map[string]*Questiongroup),
		categories:     make(map[string]*Category),
		translations:   make(map[int64]*Translation),
		documents:      make(map[string]map[string]*Document),
		events:         NewBroker(),
	}
}

// Events returns the broker mutations are published on.
func (s *MemoryStore) Events() *Broker {
	return s.events
}

func (s *MemoryStore) Key(ctx context.Context, keyword string) (*Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[keyword]
	if !ok {
		return nil, notFound(KindKey, keyword)
	}
	return CloneKey(k), nil
}

func (s *MemoryStore) Values(ctx context.Context, keywords []string) ([]*Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Value, 0, len(keywords))
	for _, kw := range keywords {
		v, ok := s.values[kw]
		if !ok {
			return nil, notFound(KindValue, kw)
		}
		out = append(out, CloneValue(v))
	}
	return out, nil
}

func (s *MemoryStore) Questiongroup(ctx context.Context, keyword string) (*Questiongroup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	qg, ok := s.questiongroups[keyword]
	if !ok {
		return nil, notFound(KindQuestiongroup, keyword)
	}
	return &Questiongroup{
		Keyword:       qg.Keyword,
		Configuration: CloneMap(qg.Configuration),
		TranslationID: qg.TranslationID,
	}, nil
}

func (s *MemoryStore) Category(ctx context.Context, keyword string) (*Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[keyword]
	if !ok {
		return nil, notFound(KindCategory, keyword)
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) Translation(ctx context.Context, id int64) (*Translation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.translations[id]
	if !ok {
		return nil, &NotFoundError{Kind: KindTranslation, Keyword: formatID(id)}
	}
	return CloneTranslation(t), nil
}

func (s *MemoryStore) Document(ctx context.Context, code, edition string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	editions := s.documents[code]
	if len(editions) == 0 {
		return nil, notFound(KindConfiguration, code)
	}
	if edition == "" {
		ordered := orderDocuments(editions)
		return cloneDocument(ordered[len(ordered)-1]), nil
	}
	d, ok := editions[edition]
	if !ok {
		return nil, notFound(KindConfiguration, code+"_"+edition)
	}
	return cloneDocument(d), nil
}

func (s *MemoryStore) Editions(ctx context.Context, code string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ordered := orderDocuments(s.documents[code])
	out := make([]string, len(ordered))
	for i, d := range ordered {
		out[i] = d.Edition
	}
	return out, nil
}

func (s *MemoryStore) Codes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.documents))
	for code, editions := range s.documents {
		if len(editions) > 0 {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) PutKey(ctx context.Context, k *Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.keys[k.Keyword] = CloneKey(k)
	s.mu.Unlock()
	s.events.Publish(Event{Kind: KindKey, Keyword: k.Keyword})
	return nil
}

func (s *MemoryStore) PutValue(ctx context.Context, v *Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.values[v.Keyword] = CloneValue(v)
	s.mu.Unlock()
	s.events.Publish(Event{Kind: KindValue, Keyword: v.Keyword})
	return nil
}

func (s *MemoryStore) PutQuestiongroup(ctx context.Context, qg *Questiongroup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.questiongroups[qg.Keyword] = &Questiongroup{
		Keyword:       qg.Keyword,
		Configuration: CloneMap(qg.Configuration),
		TranslationID: qg.TranslationID,
	}
	s.mu.Unlock()
	s.events.Publish(Event{Kind: KindQuestiongroup, Keyword: qg.Keyword})
	return nil
}

func (s *MemoryStore) PutCategory(ctx context.Context, c *Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *c
	s.mu.Lock()
	s.categories[c.Keyword] = &cp
	s.mu.Unlock()
	s.events.Publish(Event{Kind: KindCategory, Keyword: c.Keyword})
	return nil
}

func (s *MemoryStore) PutTranslation(ctx context.Context, t *Translation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.translations[t.ID] = CloneTranslation(t)
	s.mu.Unlock()
	s.events.Publish(Event{Kind: KindTranslation, TranslationID: t.ID})
	return nil
}

func (s *MemoryStore) PutDocument(ctx context.Context, d *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	editions, ok := s.documents[d.Code]
	if !ok {
		editions = make(map[string]*Document)
		s.documents[d.Code] = editions
	}
	editions[d.Edition] = cloneDocument(d)
	s.mu.Unlock()
	s.events.Publish(Event{Kind: KindConfiguration, Code: d.Code, Edition: d.Edition})
	return nil
}

// orderDocuments sorts editions oldest first: by creation time, then by
// edition label.
func orderDocuments(editions map[string]*Document) []*Document {
	out := make([]*Document, 0, len(editions))
	for _, d := range editions {
		out = append(out, d)
	}
	SortDocuments(out)
	return out
}

// SortDocuments orders documents oldest first: by creation time, then by
// edition label.
func SortDocuments(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].Created.Equal(docs[j].Created) {
			return docs[i].Created.Before(docs[j].Created)
		}
		return docs[i].Edition < docs[j].Edition
	})
}

var (
	_ Store         = (*MemoryStore)(nil)
	_ DocumentStore = (*MemoryStore)(nil)
	_ Writer        = (*MemoryStore)(nil)
)
