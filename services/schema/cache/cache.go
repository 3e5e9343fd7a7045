// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache keeps built configuration trees process-wide.
//
// Entries are content-addressed: the key is the SHA-256 of the
// configuration code, edition and document bytes, so an edited document
// lands on a fresh key and the stale tree ages out of the LRU. Concurrent
// requests for the same key share one build.
//
// A missing configuration is cached too, as a negative entry that expires
// after ErrorTTL, so that unknown codes do not hit the document store on
// every request.
//
// # Invalidation
//
// Subscribe the cache to a lookup.Broker with WithEvents and every mutation
// of a Key, Value, Questiongroup, Category, Translation or document removes
// the trees built from it. Invalidate removes trees explicitly.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the number of cached trees.
	// Default: 256
	MaxEntries int

	// ErrorTTL is how long a missing configuration stays cached.
	// Default: 30 seconds
	ErrorTTL time.Duration

	// BuildTimeout bounds a single build.
	// Default: 30 seconds
	BuildTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxEntries:   256,
		ErrorTTL:     30 * time.Second,
		BuildTimeout: 30 * time.Second,
	}
}

// Option is a functional option for configuring a Cache.
type Option func(*Cache)

// WithMaxEntries sets the maximum number of cached trees.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.options.MaxEntries = n
		}
	}
}

// WithErrorTTL sets how long a missing configuration stays cached.
func WithErrorTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.options.ErrorTTL = d
		}
	}
}

func WithBuildTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.options.BuildTimeout = d
		}
	}
}

// WithEvents subscribes the cache to lookup mutations. It may be given
// more than once, for example for a lookup store and a document source.
func WithEvents(b *lookup.Broker) Option {
	return func(c *Cache) {
		if b != nil {
			c.brokers = append(c.brokers, b)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests of the error TTL.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// entry is one cached tree or negative result.
type entry struct {
	key     string
	code    string
	edition string
	cfg     *schema.Configuration
	builtAt time.Time
	missing bool

	lruElement *list.Element
}

// Cache is a size-bounded LRU of configuration trees.
//
// Thread Safety: safe for concurrent use. Builds run outside the lock and
// are deduplicated per key with singleflight.
type Cache struct {
	builder *schema.Builder
	docs    lookup.DocumentStore
	brokers []*lookup.Broker
	options Options
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.RWMutex
	entries     map[string]*entry
	lru         *list.List
	flight      singleflight.Group
	closed      bool
	unsubscribe []func()

	hits          int64
	misses        int64
	builds        int64
	buildErrors   int64
	evictions     int64
	invalidations int64
}

// New creates a Cache that loads documents from docs and builds them with
// builder.
func New(builder *schema.Builder, docs lookup.DocumentStore, opts ...Option) *Cache {
	c := &Cache{
		builder: builder,
		docs:    docs,
		options: DefaultOptions(),
		logger:  slog.Default(),
		now:     time.Now,
		entries: make(map[string]*entry),
		lru:     list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, b := range c.brokers {
		c.unsubscribe = append(c.unsubscribe, b.Subscribe(c.onEvent))
	}
	return c
}

// contentKey addresses a tree by what it was built from.
func contentKey(doc *lookup.Document) string {
	h := sha256.New()
	h.Write([]byte(doc.Code))
	h.Write([]byte{0})
	h.Write([]byte(doc.Edition))
	h.Write([]byte{0})
	h.Write(doc.Data)
	return hex.EncodeToString(h.Sum(nil))
}

func missingKey(code, edition string) string {
	return "missing:" + code + "/" + edition
}

// GetOrBuild returns the tree of code and edition (the latest edition when
// empty), building it on a miss.
//
// A missing document yields a Configuration whose Error reports
// schema.NoConfigurationFoundError, like schema.Builder.Build. Build
// failures are returned and not cached.
func (c *Cache) GetOrBuild(ctx context.Context, code, edition string) (cfg *schema.Configuration, err error) {
	ctx, span := tracer.Start(ctx, "cache.GetOrBuild", trace.WithAttributes(
		attribute.String("configuration_code", code),
		attribute.String("edition", edition),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.isClosed() {
		return nil, ErrCacheClosed
	}

	if cfg, ok := c.get(missingKey(code, edition)); ok {
		c.hit(ctx, span, code)
		return cfg, nil
	}

	doc, err := c.docs.Document(ctx, code, edition)
	if lookup.IsNotFound(err) {
		c.miss(ctx, span, code)
		key := missingKey(code, edition)
		cfg, shared, err := c.share(ctx, key, func(buildCtx context.Context) (*schema.Configuration, error) {
			cfg, err := c.builder.Build(buildCtx, code, edition)
			if err != nil {
				return nil, err
			}
			if errors.Is(cfg.Error(), schema.ErrNoConfigurationFound) {
				c.put(&entry{key: key, code: code, edition: edition, cfg: cfg, missing: true})
			}
			return cfg, nil
		})
		span.SetAttributes(attribute.Bool("cache.shared", shared))
		return cfg, err
	}
	if err != nil {
		return nil, fmt.Errorf("load configuration %s/%s: %w", code, edition, err)
	}

	key := contentKey(doc)
	if cfg, ok := c.get(key); ok {
		c.hit(ctx, span, code)
		return cfg, nil
	}
	c.miss(ctx, span, code)

	cfg, shared, err := c.share(ctx, key, func(buildCtx context.Context) (*schema.Configuration, error) {
		start := c.now()
		cfg, err := c.builder.BuildDocument(buildCtx, doc)
		recordBuild(buildCtx, doc.Code, c.now().Sub(start), err == nil)
		atomic.AddInt64(&c.builds, 1)
		if err != nil {
			atomic.AddInt64(&c.buildErrors, 1)
			return nil, err
		}
		c.put(&entry{key: key, code: doc.Code, edition: doc.Edition, cfg: cfg})
		return cfg, nil
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))
	return cfg, err
}

// share runs build at most once per key among concurrent callers. The build
// is detached from the caller that started it and bounded by BuildTimeout;
// each caller stops waiting when its own context is done.
func (c *Cache) share(ctx context.Context, key string, build func(context.Context) (*schema.Configuration, error)) (*schema.Configuration, bool, error) {
	ch := c.flight.DoChan(key, func() (any, error) {
		if cfg, ok := c.get(key); ok {
			return cfg, nil
		}
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.options.BuildTimeout)
		defer cancel()
		cfg, err := build(buildCtx)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		return res.Val.(*schema.Configuration), res.Shared, nil
	}
}

func (c *Cache) hit(ctx context.Context, span trace.Span, code string) {
	atomic.AddInt64(&c.hits, 1)
	recordHit(ctx, code)
	span.SetAttributes(attribute.Bool("cache.hit", true))
}

func (c *Cache) miss(ctx context.Context, span trace.Span, code string) {
	atomic.AddInt64(&c.misses, 1)
	recordMiss(ctx, code)
	span.SetAttributes(attribute.Bool("cache.hit", false))
}

func (c *Cache) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// get returns a live entry and marks it recently used. Expired negative
// entries are dropped.
func (c *Cache) get(key string) (*schema.Configuration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.missing && c.now().Sub(e.builtAt) > c.options.ErrorTTL {
		c.removeLocked(e)
		return nil, false
	}
	c.lru.MoveToFront(e.lruElement)
	return e.cfg, true
}

func (c *Cache) put(e *entry) {
	e.builtAt = c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if old, exists := c.entries[e.key]; exists {
		c.removeLocked(old)
	}
	for len(c.entries) >= c.options.MaxEntries {
		back := c.lru.Back()
		if back == nil {
			break
		}
		c.removeLocked(c.entries[back.Value.(string)])
		atomic.AddInt64(&c.evictions, 1)
		recordEviction(context.Background())
	}
	e.lruElement = c.lru.PushFront(e.key)
	c.entries[e.key] = e
}

// removeLocked drops e. Callers hold c.mu.
func (c *Cache) removeLocked(e *entry) {
	if e.lruElement != nil {
		c.lru.Remove(e.lruElement)
	}
	delete(c.entries, e.key)
}

// removeWhere drops every entry matching pred and returns their number.
func (c *Cache) removeWhere(pred func(*entry) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var doomed []*entry
	for _, e := range c.entries {
		if pred(e) {
			doomed = append(doomed, e)
		}
	}
	for _, e := range doomed {
		c.removeLocked(e)
	}
	atomic.AddInt64(&c.invalidations, int64(len(doomed)))
	return len(doomed)
}

// Invalidate removes the trees of code. An empty edition removes every
// edition. It returns the number of removed entries.
func (c *Cache) Invalidate(ctx context.Context, code, edition string) int {
	n := c.removeWhere(func(e *entry) bool {
		return e.code == code && (edition == "" || e.edition == edition)
	})
	recordInvalidations(ctx, n, "explicit")
	c.logger.Info("configuration cache invalidated",
		slog.String("configuration_code", code),
		slog.String("edition", edition),
		slog.Int("entries", n))
	return n
}

// onEvent removes the trees affected by a lookup mutation.
func (c *Cache) onEvent(e lookup.Event) {
	n := c.removeWhere(func(en *entry) bool {
		if en.missing {
			return e.Kind == lookup.KindConfiguration && e.Code == en.code
		}
		return en.cfg.Dependencies().Affected(e)
	})
	if n == 0 {
		return
	}
	recordInvalidations(context.Background(), n, string(e.Kind))
	c.logger.Debug("configuration cache entries invalidated by lookup change",
		slog.String("kind", string(e.Kind)),
		slog.String("keyword", e.Keyword),
		slog.String("configuration_code", e.Code),
		slog.Int("entries", n))
}

// Stats contains statistics about the cache.
type Stats struct {
	Entries       int           `json:"entries"`
	Missing       int           `json:"missing"`
	Hits          int64         `json:"hits"`
	Misses        int64         `json:"misses"`
	Builds        int64         `json:"builds"`
	BuildErrors   int64         `json:"build_errors"`
	Evictions     int64         `json:"evictions"`
	Invalidations int64         `json:"invalidations"`
	MaxEntries    int           `json:"max_entries"`
	ErrorTTL      time.Duration `json:"error_ttl"`
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	missing := 0
	for _, e := range c.entries {
		if e.missing {
			missing++
		}
	}
	return Stats{
		Entries:       len(c.entries),
		Missing:       missing,
		Hits:          atomic.LoadInt64(&c.hits),
		Misses:        atomic.LoadInt64(&c.misses),
		Builds:        atomic.LoadInt64(&c.builds),
		BuildErrors:   atomic.LoadInt64(&c.buildErrors),
		Evictions:     atomic.LoadInt64(&c.evictions),
		Invalidations: atomic.LoadInt64(&c.invalidations),
		MaxEntries:    c.options.MaxEntries,
		ErrorTTL:      c.options.ErrorTTL,
	}
}

// Len returns the number of entries, negative ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close unsubscribes from lookup events and drops every entry. Further
// calls to GetOrBuild fail with ErrCacheClosed.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for _, cancel := range c.unsubscribe {
		cancel()
	}
	c.entries = make(map[string]*entry)
	c.lru.Init()
	return nil
}
