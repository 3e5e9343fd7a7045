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
	"errors"
	"fmt"

	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

var (
	// ErrNoConfiguration is returned when a source holds no document for
	// the requested code or edition. It also matches lookup.ErrNotFound.
	ErrNoConfiguration = errors.New("no configuration document")

	// ErrInvalidDocument is returned for a document that is not a JSON
	// object.
	ErrInvalidDocument = errors.New("invalid configuration document")

	// ErrWatcherStopped is returned by Start on a stopped Watcher.
	ErrWatcherStopped = errors.New("watcher stopped")
)

func noConfiguration(code, edition string) error {
	keyword := code
	if edition != "" {
		keyword = code + "_" + edition
	}
	return fmt.Errorf("%w: %w", ErrNoConfiguration,
		&lookup.NotFoundError{Kind: lookup.KindConfiguration, Keyword: keyword})
}
