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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/AleutianAI/qcatschema/pkg/validation"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// maxDocumentSize bounds a single document read from a bucket.
const maxDocumentSize = 32 << 20

// GCSSource serves configuration documents from a Cloud Storage bucket
// laid out as <prefix>/<code>/<edition>.json. The creation time of a
// document is the last modification time of its object.
//
// Thread Safety: safe for concurrent use.
type GCSSource struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewGCSSource connects to bucket. An empty credentialsFile uses the
// application default credentials.
func NewGCSSource(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSSource, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return NewGCSSourceFromClient(client, bucket, prefix), nil
}

// NewGCSSourceFromClient wraps an existing client. Close closes it.
func NewGCSSourceFromClient(client *storage.Client, bucket, prefix string) *GCSSource {
	return &GCSSource{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: slog.Default(),
	}
}

// Close releases the storage client.
func (s *GCSSource) Close() error {
	return s.client.Close()
}

// objectName returns the object that holds code/edition.
func (s *GCSSource) objectName(code, edition string) string {
	return path.Join(s.prefix, code, edition+documentExt)
}

// parseObjectName is the inverse of objectName.
func (s *GCSSource) parseObjectName(name string) (code, edition string, ok bool) {
	rel := name
	if s.prefix != "" {
		if !strings.HasPrefix(name, s.prefix+"/") {
			return "", "", false
		}
		rel = strings.TrimPrefix(name, s.prefix+"/")
	}
	parts := strings.Split(rel, "/")
	if len(parts) != 2 || validation.ValidateCode(parts[0]) != nil {
		return "", "", false
	}
	edition, ok = editionOf(parts[1])
	if !ok {
		return "", "", false
	}
	return parts[0], edition, true
}

// list returns the documents of code without their data. An empty code
// lists every code.
func (s *GCSSource) list(ctx context.Context, code string) ([]*lookup.Document, error) {
	prefix := s.prefix
	if code != "" {
		prefix = path.Join(prefix, code)
	}
	if prefix != "" {
		prefix += "/"
	}
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var docs []*lookup.Document
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", s.bucket, prefix, err)
		}
		c, edition, ok := s.parseObjectName(attrs.Name)
		if !ok {
			s.logger.Debug("skipping object outside the document layout",
				slog.String("object", attrs.Name))
			continue
		}
		docs = append(docs, &lookup.Document{Code: c, Edition: edition, Created: attrs.Updated})
	}
	return docs, nil
}

// Document reads one edition. An empty edition means the latest.
func (s *GCSSource) Document(ctx context.Context, code, edition string) (*lookup.Document, error) {
	if validation.ValidateCode(code) != nil {
		return nil, noConfiguration(code, edition)
	}
	if edition == "" {
		editions, err := s.Editions(ctx, code)
		if err != nil {
			return nil, err
		}
		if len(editions) == 0 {
			return nil, noConfiguration(code, "")
		}
		edition = editions[len(editions)-1]
	} else if validation.ValidateEdition(edition) != nil {
		return nil, noConfiguration(code, edition)
	}

	name := s.objectName(code, edition)
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, noConfiguration(code, edition)
	}
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", s.bucket, name, err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("gs://%s/%s: %w: larger than %d bytes", s.bucket, name, ErrInvalidDocument, maxDocumentSize)
	}
	if err := checkDocument(data); err != nil {
		return nil, fmt.Errorf("gs://%s/%s: %w", s.bucket, name, err)
	}
	return &lookup.Document{
		Code:    code,
		Edition: edition,
		Data:    json.RawMessage(data),
		Created: r.Attrs.LastModified.UTC(),
	}, nil
}

// Editions lists the editions of code, oldest first.
func (s *GCSSource) Editions(ctx context.Context, code string) ([]string, error) {
	if validation.ValidateCode(code) != nil {
		return nil, nil
	}
	docs, err := s.list(ctx, code)
	if err != nil {
		return nil, err
	}
	lookup.SortDocuments(docs)
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Edition
	}
	return out, nil
}

// Codes lists the configuration codes with at least one document.
func (s *GCSSource) Codes(ctx context.Context) ([]string, error) {
	docs, err := s.list(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, d := range docs {
		if _, ok := seen[d.Code]; ok {
			continue
		}
		seen[d.Code] = struct{}{}
		out = append(out, d.Code)
	}
	sort.Strings(out)
	return out, nil
}

var _ lookup.DocumentStore = (*GCSSource)(nil)
