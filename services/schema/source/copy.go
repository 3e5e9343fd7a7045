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
	"fmt"

	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// Copy writes every edition of every code in src to dst and returns the
// number of documents written. It stops at the first failure.
func Copy(ctx context.Context, src lookup.DocumentStore, dst lookup.Writer) (int, error) {
	codes, err := src.Codes(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, code := range codes {
		editions, err := src.Editions(ctx, code)
		if err != nil {
			return n, err
		}
		for _, edition := range editions {
			doc, err := src.Document(ctx, code, edition)
			if err != nil {
				return n, err
			}
			if err := dst.PutDocument(ctx, doc); err != nil {
				return n, fmt.Errorf("write %s_%s: %w", code, edition, err)
			}
			n++
		}
	}
	return n, nil
}
