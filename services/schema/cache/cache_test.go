// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/internal/fixtures"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// gate blocks the first call until released. Later calls pass once the
// gate is open.
type gate struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) wait(ctx context.Context) error {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// slowStore holds Category lookups at a gate.
type slowStore struct {
	lookup.Store
	gate *gate
}

func (s *slowStore) Category(ctx context.Context, keyword string) (*lookup.Category, error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	return s.Store.Category(ctx, keyword)
}

// countingDocs holds Document lookups at a gate and counts them.
type countingDocs struct {
	lookup.DocumentStore
	gate  *gate
	calls atomic.Int64
}

func (d *countingDocs) Document(ctx context.Context, code, edition string) (*lookup.Document, error) {
	d.calls.Add(1)
	if err := d.gate.wait(ctx); err != nil {
		return nil, err
	}
	return d.DocumentStore.Document(ctx, code, edition)
}

func newCache(f *fixtures.Fixture, opts ...Option) *Cache {
	opts = append([]Option{WithEvents(f.Store.Events())}, opts...)
	return New(schema.NewBuilder(f.Store, f.Store), f.Store, opts...)
}

func TestCache_GetOrBuild(t *testing.T) {
	f := fixtures.Scenario()
	c := newCache(f)
	defer c.Close()
	ctx := context.Background()

	first, err := c.GetOrBuild(ctx, fixtures.ScenarioCode, fixtures.ScenarioEdition)
	require.NoError(t, err)
	require.NoError(t, first.Error())

	second, err := c.GetOrBuild(ctx, fixtures.ScenarioCode, fixtures.ScenarioEdition)
	require.NoError(t, err)
	assert.Same(t, first, second)

	latest, err := c.GetOrBuild(ctx, fixtures.ScenarioCode, "")
	require.NoError(t, err)
	assert.Same(t, first, latest, "the latest edition resolves to the same content")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Builds)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.InDelta(t, 66.6, stats.HitRate(), 0.1)
}

func TestCache_ConcurrentBuildsShareOneBuild(t *testing.T) {
	c := newCache(fixtures.Sample())
	defer c.Close()

	var wg sync.WaitGroup
	results := make([]*schema.Configuration, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg, err := c.GetOrBuild(context.Background(), fixtures.SampleCode, fixtures.SampleEdition)
			assert.NoError(t, err)
			results[i] = cfg
		}(i)
	}
	wg.Wait()

	for _, cfg := range results {
		assert.Same(t, results[0], cfg)
	}
	assert.Equal(t, int64(1), c.Stats().Builds)
}

func TestCache_CancelledCallerDoesNotFailSharedBuild(t *testing.T) {
	f := fixtures.Scenario()
	g := newGate()
	c := New(schema.NewBuilder(&slowStore{Store: f.Store, gate: g}, f.Store), f.Store)
	defer c.Close()

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrBuild(leaderCtx, fixtures.ScenarioCode, fixtures.ScenarioEdition)
		leaderErr <- err
	}()

	<-g.entered
	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	type result struct {
		cfg *schema.Configuration
		err error
	}
	follower := make(chan result, 1)
	go func() {
		cfg, err := c.GetOrBuild(context.Background(), fixtures.ScenarioCode, fixtures.ScenarioEdition)
		follower <- result{cfg, err}
	}()
	close(g.release)

	res := <-follower
	require.NoError(t, res.err)
	require.NotNil(t, res.cfg)
	assert.NoError(t, res.cfg.Error())
	assert.Equal(t, int64(1), c.Stats().Builds)
}

func TestCache_ConcurrentMissesShareOneBuild(t *testing.T) {
	f := fixtures.Scenario()
	docs := &countingDocs{DocumentStore: f.Store, gate: newGate()}
	c := New(schema.NewBuilder(f.Store, docs), f.Store, WithErrorTTL(time.Minute))
	defer c.Close()

	var wg sync.WaitGroup
	results := make([]*schema.Configuration, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg, err := c.GetOrBuild(context.Background(), "unknown", "2015")
			assert.NoError(t, err)
			results[i] = cfg
		}(i)
	}
	<-docs.gate.entered
	time.Sleep(10 * time.Millisecond)
	close(docs.gate.release)
	wg.Wait()

	for _, cfg := range results {
		require.NotNil(t, cfg)
		assert.Same(t, results[0], cfg)
		assert.ErrorIs(t, cfg.Error(), schema.ErrNoConfigurationFound)
	}
	assert.Equal(t, int64(1), docs.calls.Load())
	assert.Equal(t, 1, c.Stats().Missing)
}

func TestCache_EditedDocumentGetsFreshKey(t *testing.T) {
	f := fixtures.Scenario()
	c := New(schema.NewBuilder(f.Store, f.Store), f.Store)
	defer c.Close()
	ctx := context.Background()

	before, err := c.GetOrBuild(ctx, fixtures.ScenarioCode, fixtures.ScenarioEdition)
	require.NoError(t, err)

	doc := fixtures.ScenarioDocument()
	doc["modules"] = fixtures.L{"cca"}
	f.Document(fixtures.ScenarioCode, fixtures.ScenarioEdition, doc)

	after, err := c.GetOrBuild(ctx, fixtures.ScenarioCode, fixtures.ScenarioEdition)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Equal(t, []string{"cca"}, after.Modules())
	assert.Equal(t, 2, c.Len(), "without events the stale tree ages out of the LRU")
}

func TestCache_LookupEventsInvalidate(t *testing.T) {
	f := fixtures.Scenario()
	c := newCache(f)
	defer c.Close()
	ctx := context.Background()

	before, err := c.GetOrBuild(ctx, fixtures.ScenarioCode, fixtures.ScenarioEdition)
	require.NoError(t, err)

	f.Value("unrelated", "Unrelated", nil, nil)
	assert.Equal(t, 1, c.Len())

	f.Value("A", "Value A (renamed)", fixtures.Ptr(2), nil)
	assert.Equal(t, 0, c.Len())

	after, err := c.GetOrBuild(ctx, fixtures.ScenarioCode, fixtures.ScenarioEdition)
	require.NoError(t, err)
	assert.NotSame(t, before, after)

	q := after.QuestionByKeyword("qg_1", "key_1")
	require.NotNil(t, q)
	assert.Equal(t, "Value A (renamed)", q.Choices("en")[1].Label)
	assert.Equal(t, int64(1), c.Stats().Invalidations)
}

func TestCache_MissingConfiguration(t *testing.T) {
	f := fixtures.Scenario()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newCache(f, WithErrorTTL(time.Minute), WithClock(func() time.Time { return now }))
	defer c.Close()
	ctx := context.Background()

	cfg, err := c.GetOrBuild(ctx, "unknown", "")
	require.NoError(t, err)
	assert.True(t, errors.Is(cfg.Error(), schema.ErrNoConfigurationFound))
	assert.Equal(t, 1, c.Stats().Missing)

	again, err := c.GetOrBuild(ctx, "unknown", "")
	require.NoError(t, err)
	assert.Same(t, cfg, again)

	now = now.Add(2 * time.Minute)
	expired, err := c.GetOrBuild(ctx, "unknown", "")
	require.NoError(t, err)
	assert.NotSame(t, cfg, expired)

	f.Document("unknown", "2024", fixtures.ScenarioDocument())
	found, err := c.GetOrBuild(ctx, "unknown", "")
	require.NoError(t, err)
	assert.NoError(t, found.Error())
}

func TestCache_Invalidate(t *testing.T) {
	f := fixtures.Scenario()
	f.Document(fixtures.ScenarioCode, "2019", fixtures.ScenarioDocument())
	c := newCache(f)
	defer c.Close()
	ctx := context.Background()

	for _, edition := range []string{fixtures.ScenarioEdition, "2019"} {
		_, err := c.GetOrBuild(ctx, fixtures.ScenarioCode, edition)
		require.NoError(t, err)
	}
	require.Equal(t, 2, c.Len())

	assert.Equal(t, 1, c.Invalidate(ctx, fixtures.ScenarioCode, "2019"))
	assert.Equal(t, 0, c.Invalidate(ctx, "other", ""))
	assert.Equal(t, 1, c.Invalidate(ctx, fixtures.ScenarioCode, ""))
	assert.Equal(t, 0, c.Len())
}

func TestCache_Eviction(t *testing.T) {
	f := fixtures.Scenario()
	f.Document(fixtures.ScenarioCode, "2019", fixtures.ScenarioDocument())
	c := newCache(f, WithMaxEntries(1))
	defer c.Close()
	ctx := context.Background()

	for _, edition := range []string{fixtures.ScenarioEdition, "2019"} {
		_, err := c.GetOrBuild(ctx, fixtures.ScenarioCode, edition)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_BuildErrorsAreNotCached(t *testing.T) {
	f := fixtures.New()
	f.Document("broken", "1", fixtures.M{"sections": fixtures.L{}})
	c := newCache(f)
	defer c.Close()

	for i := 0; i < 2; i++ {
		_, err := c.GetOrBuild(context.Background(), "broken", "1")
		require.Error(t, err)
		assert.True(t, schema.IsConfigurationError(err))
	}
	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Builds)
	assert.Equal(t, int64(2), stats.BuildErrors)
	assert.Equal(t, 0, stats.Entries)
}

func TestCache_Close(t *testing.T) {
	f := fixtures.Scenario()
	c := newCache(f)
	_, err := c.GetOrBuild(context.Background(), fixtures.ScenarioCode, "")
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())

	_, err = c.GetOrBuild(context.Background(), fixtures.ScenarioCode, "")
	assert.True(t, errors.Is(err, ErrCacheClosed))

	// Events after Close are ignored.
	f.Value("A", "Value A", fixtures.Ptr(2), nil)
}
