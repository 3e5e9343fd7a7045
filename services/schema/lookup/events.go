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
	"sort"
	"sync"
)

// Event describes one mutation of the lookup tables or of a configuration
// document.
type Event struct {
	Kind Kind `json:"kind"`

	// Keyword is set for Key, Value, Questiongroup and Category events.
	Keyword string `json:"keyword,omitempty"`

	// TranslationID is set for Translation events.
	TranslationID int64 `json:"translation_id,omitempty"`

	// Code and Edition are set for configuration document events.
	Code    string `json:"code,omitempty"`
	Edition string `json:"edition,omitempty"`
}

// Listener receives events synchronously, in publish order.
type Listener func(Event)

// Broker fans events out to subscribers.
//
// Thread Safety: safe for concurrent use. Listeners run on the publishing
// goroutine and must not call Subscribe or the returned cancel func.
type Broker struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]Listener
}

func NewBroker() *Broker {
	return &Broker{listeners: make(map[int]Listener)}
}

// Subscribe registers l and returns a function that removes it.
func (b *Broker) Subscribe(l Listener) (cancel func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers e to every listener in subscription order.
func (b *Broker) Publish(e Event) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
}
