// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

var tracer = otel.Tracer("qcat.lookup.badgerstore")

const (
	prefixKey           = "k/"
	prefixValue         = "v/"
	prefixQuestiongroup = "q/"
	prefixCategory      = "c/"
	prefixTranslation   = "t/"
	prefixDocument      = "d/"
)

// Store implements lookup.Store, lookup.DocumentStore and lookup.Writer
// over a DB.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	db     *DB
	events *lookup.Broker
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for write diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithBroker publishes mutations on b instead of a private broker.
func WithBroker(b *lookup.Broker) Option {
	return func(s *Store) { s.events = b }
}

// New wraps db. The caller keeps ownership of db.
func New(db *DB, opts ...Option) *Store {
	s := &Store{db: db, events: lookup.NewBroker(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns the broker mutations are published on.
func (s *Store) Events() *lookup.Broker {
	return s.events
}

func translationKey(id int64) string {
	return fmt.Sprintf("%s%020d", prefixTranslation, id)
}

func documentKey(code, edition string) string {
	return prefixDocument + code + "/" + edition
}

func (s *Store) startSpan(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "badgerstore."+op, trace.WithAttributes(attribute.String("badger.key", key)))
}

// get decodes the value stored at key into dst. A missing key yields a
// lookup.NotFoundError for kind/name.
func (s *Store) get(ctx context.Context, op, key string, kind lookup.Kind, name string, dst any) error {
	ctx, span := s.startSpan(ctx, op, key)
	defer span.End()

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &lookup.NotFoundError{Kind: kind, Keyword: name}
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dst)
		})
	})
	if err != nil && !lookup.IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("read %s: %w", key, err)
	}
	return err
}

func (s *Store) put(ctx context.Context, op, key string, v any, event lookup.Event) error {
	ctx, span := s.startSpan(ctx, op, key)
	defer span.End()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("write %s: %w", key, err)
	}
	s.logger.Debug("lookup entity written", slog.String("key", key))
	s.events.Publish(event)
	return nil
}

func (s *Store) Key(ctx context.Context, keyword string) (*lookup.Key, error) {
	var k lookup.Key
	if err := s.get(ctx, "Key", prefixKey+keyword, lookup.KindKey, keyword, &k); err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *Store) Values(ctx context.Context, keywords []string) ([]*lookup.Value, error) {
	ctx, span := s.startSpan(ctx, "Values", strings.Join(keywords, ","))
	defer span.End()

	out := make([]*lookup.Value, 0, len(keywords))
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		for _, kw := range keywords {
			item, err := txn.Get([]byte(prefixValue + kw))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &lookup.NotFoundError{Kind: lookup.KindValue, Keyword: kw}
			}
			if err != nil {
				return fmt.Errorf("read value %s: %w", kw, err)
			}
			var v lookup.Value
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &v) }); err != nil {
				return fmt.Errorf("decode value %s: %w", kw, err)
			}
			out = append(out, &v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Questiongroup(ctx context.Context, keyword string) (*lookup.Questiongroup, error) {
	var qg lookup.Questiongroup
	if err := s.get(ctx, "Questiongroup", prefixQuestiongroup+keyword, lookup.KindQuestiongroup, keyword, &qg); err != nil {
		return nil, err
	}
	return &qg, nil
}

func (s *Store) Category(ctx context.Context, keyword string) (*lookup.Category, error) {
	var c lookup.Category
	if err := s.get(ctx, "Category", prefixCategory+keyword, lookup.KindCategory, keyword, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) Translation(ctx context.Context, id int64) (*lookup.Translation, error) {
	var t lookup.Translation
	if err := s.get(ctx, "Translation", translationKey(id), lookup.KindTranslation, fmt.Sprint(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) Document(ctx context.Context, code, edition string) (*lookup.Document, error) {
	if edition != "" {
		var d lookup.Document
		if err := s.get(ctx, "Document", documentKey(code, edition), lookup.KindConfiguration, code+"_"+edition, &d); err != nil {
			return nil, err
		}
		return &d, nil
	}
	docs, err := s.documents(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, &lookup.NotFoundError{Kind: lookup.KindConfiguration, Keyword: code}
	}
	return docs[len(docs)-1], nil
}

func (s *Store) Editions(ctx context.Context, code string) ([]string, error) {
	docs, err := s.documents(ctx, code)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Edition
	}
	return out, nil
}

// documents loads every edition of code, oldest first.
func (s *Store) documents(ctx context.Context, code string) ([]*lookup.Document, error) {
	ctx, span := s.startSpan(ctx, "documents", code)
	defer span.End()

	prefix := []byte(prefixDocument + code + "/")
	var docs []*lookup.Document
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var d lookup.Document
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &d) }); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			docs = append(docs, &d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	lookup.SortDocuments(docs)
	return docs, nil
}

func (s *Store) Codes(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefixDocument)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			rest := bytes.TrimPrefix(it.Item().Key(), []byte(prefixDocument))
			if i := bytes.IndexByte(rest, '/'); i > 0 {
				seen[string(rest[:i])] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) PutKey(ctx context.Context, k *lookup.Key) error {
	return s.put(ctx, "PutKey", prefixKey+k.Keyword, k, lookup.Event{Kind: lookup.KindKey, Keyword: k.Keyword})
}

func (s *Store) PutValue(ctx context.Context, v *lookup.Value) error {
	return s.put(ctx, "PutValue", prefixValue+v.Keyword, v, lookup.Event{Kind: lookup.KindValue, Keyword: v.Keyword})
}

func (s *Store) PutQuestiongroup(ctx context.Context, qg *lookup.Questiongroup) error {
	return s.put(ctx, "PutQuestiongroup", prefixQuestiongroup+qg.Keyword, qg, lookup.Event{Kind: lookup.KindQuestiongroup, Keyword: qg.Keyword})
}

func (s *Store) PutCategory(ctx context.Context, c *lookup.Category) error {
	return s.put(ctx, "PutCategory", prefixCategory+c.Keyword, c, lookup.Event{Kind: lookup.KindCategory, Keyword: c.Keyword})
}

func (s *Store) PutTranslation(ctx context.Context, t *lookup.Translation) error {
	return s.put(ctx, "PutTranslation", translationKey(t.ID), t, lookup.Event{Kind: lookup.KindTranslation, TranslationID: t.ID})
}

func (s *Store) PutDocument(ctx context.Context, d *lookup.Document) error {
	if strings.Contains(d.Code, "/") || strings.Contains(d.Edition, "/") {
		return fmt.Errorf("invalid document id %s_%s", d.Code, d.Edition)
	}
	return s.put(ctx, "PutDocument", documentKey(d.Code, d.Edition), d,
		lookup.Event{Kind: lookup.KindConfiguration, Code: d.Code, Edition: d.Edition})
}

var (
	_ lookup.Store         = (*Store)(nil)
	_ lookup.DocumentStore = (*Store)(nil)
	_ lookup.Writer        = (*Store)(nil)
)
