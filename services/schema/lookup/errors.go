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
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped) when an entity or document does not
// exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidSnapshot is returned when a snapshot document cannot be applied.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind    Kind
	Keyword string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Keyword)
}

// Is makes errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(kind Kind, keyword string) error {
	return &NotFoundError{Kind: kind, Keyword: keyword}
}
