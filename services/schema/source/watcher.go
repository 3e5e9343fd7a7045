// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/qcatschema/pkg/validation"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// Change is one debounced document change. Edition is empty when a whole
// code directory changed.
type Change struct {
	Code    string
	Edition string
	Op      Op
	Time    time.Time
}

// Op is the kind of filesystem operation behind a Change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeHandler receives each debounced batch, after the batch has been
// published as lookup events.
type ChangeHandler func(changes []Change)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait after the last event before
	// publishing a batch.
	// Default: 100ms
	DebounceWindow time.Duration

	// BufferSize is the capacity of the pending change queue. Changes
	// arriving while it is full are dropped.
	// Default: 1000
	BufferSize int

	// Handler is called with every batch. Optional.
	Handler ChangeHandler

	Logger *slog.Logger
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow: 100 * time.Millisecond,
		BufferSize:     1000,
	}
}

// Watcher turns file edits under a DirSource into lookup.KindConfiguration
// events on the source's broker. A cache subscribed to that broker drops
// the trees built from the edited code.
//
// Thread Safety: safe for concurrent use.
type Watcher struct {
	src      *DirSource
	watcher  *fsnotify.Watcher
	handler  ChangeHandler
	debounce time.Duration
	logger   *slog.Logger

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
	stopped  bool
}

// NewWatcher creates a watcher for src. Call Start to begin watching.
func NewWatcher(src *DirSource, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}
	debounce := opts.DebounceWindow
	if debounce <= 0 {
		debounce = DefaultWatcherOptions().DebounceWindow
	}
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultWatcherOptions().BufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		src:      src,
		watcher:  fw,
		handler:  opts.Handler,
		debounce: debounce,
		logger:   logger,
		changes:  make(chan Change, size),
		done:     make(chan struct{}),
	}, nil
}

// Start watches the root and every code directory below it. It returns
// once the watches are in place; events are processed until ctx is done or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrWatcherStopped
	}
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addDirs(); err != nil {
		w.Stop()
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	w.logger.Info("watching configuration documents",
		slog.String("path", w.src.Root()),
		slog.Duration("debounce", w.debounce))
	return nil
}

// Stop ends watching. Pending changes are flushed first.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.stopped = true
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// addDirs watches the root and its code directories. Documents live
// exactly one level down, so deeper directories are not watched.
func (w *Watcher) addDirs() error {
	if err := w.watcher.Add(w.src.Root()); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.src.Root())
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && validation.ValidateCode(e.Name()) == nil {
			if err := w.watcher.Add(filepath.Join(w.src.Root(), e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// classify maps a path to the document it concerns. ok is false for
// paths that hold no document: editor swap files, hidden files, deeper
// directories.
func (w *Watcher) classify(path string) (code, edition string, ok bool) {
	rel, err := filepath.Rel(w.src.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch len(parts) {
	case 1:
		if validation.ValidateCode(parts[0]) != nil {
			return "", "", false
		}
		return parts[0], "", true
	case 2:
		if validation.ValidateCode(parts[0]) != nil {
			return "", "", false
		}
		edition, ok := editionOf(parts[1])
		if !ok {
			return "", "", false
		}
		return parts[0], edition, true
	}
	return "", "", false
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			code, edition, ok := w.classify(event.Name)
			if !ok {
				continue
			}

			// A new code directory needs its own watch, and the files
			// written into it before the watch was added are picked up
			// by the directory change itself.
			if edition == "" && event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watcher.Add(event.Name); err != nil {
						w.logger.Warn("failed to watch configuration directory",
							slog.String("path", event.Name),
							slog.String("error", err.Error()))
					}
				}
			}

			change := Change{
				Code:    code,
				Edition: edition,
				Op:      convertOp(event.Op),
				Time:    time.Now(),
			}
			select {
			case w.changes <- change:
			default:
				w.logger.Warn("document change dropped, queue full",
					slog.String("configuration_code", code),
					slog.String("edition", edition))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("document watcher error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			w.publish(deduplicateChanges(batch))
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

func (w *Watcher) publish(changes []Change) {
	for _, c := range changes {
		w.logger.Debug("configuration document changed",
			slog.String("configuration_code", c.Code),
			slog.String("edition", c.Edition),
			slog.String("op", c.Op.String()))
		w.src.Events().Publish(lookup.Event{
			Kind:    lookup.KindConfiguration,
			Code:    c.Code,
			Edition: c.Edition,
		})
	}
	if w.handler != nil {
		w.handler(changes)
	}
}

// deduplicateChanges keeps the most recent change per document, in the
// order documents first changed.
func deduplicateChanges(changes []Change) []Change {
	seen := make(map[string]int)
	result := make([]Change, 0, len(changes))
	for _, c := range changes {
		key := c.Code + "/" + c.Edition
		if idx, ok := seen[key]; ok {
			result[idx] = c
			continue
		}
		seen[key] = len(result)
		result = append(result, c)
	}
	return result
}
