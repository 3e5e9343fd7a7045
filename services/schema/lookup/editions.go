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
	"errors"
	"fmt"
	"strconv"
)

// PreviousEdition returns the edition released before edition, or "" when
// edition is the first one.
func PreviousEdition(ctx context.Context, ds DocumentStore, code, edition string) (string, error) {
	editions, idx, err := locateEdition(ctx, ds, code, edition)
	if err != nil || idx == 0 {
		return "", err
	}
	return editions[idx-1], nil
}

// NextEdition returns the edition released after edition, or "" when
// edition is the latest one.
func NextEdition(ctx context.Context, ds DocumentStore, code, edition string) (string, error) {
	editions, idx, err := locateEdition(ctx, ds, code, edition)
	if err != nil || idx == len(editions)-1 {
		return "", err
	}
	return editions[idx+1], nil
}

// HasNewEdition reports whether a newer edition of code exists.
func HasNewEdition(ctx context.Context, ds DocumentStore, code, edition string) (bool, error) {
	next, err := NextEdition(ctx, ds, code, edition)
	if err != nil {
		return false, err
	}
	return next != "", nil
}

func locateEdition(ctx context.Context, ds DocumentStore, code, edition string) ([]string, int, error) {
	editions, err := ds.Editions(ctx, code)
	if err != nil {
		return nil, 0, fmt.Errorf("list editions of %s: %w", code, err)
	}
	for i, e := range editions {
		if e == edition {
			return editions, i, nil
		}
	}
	return nil, 0, notFound(KindConfiguration, code+"_"+edition)
}

// IsNotFound reports whether err means a missing entity or document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
