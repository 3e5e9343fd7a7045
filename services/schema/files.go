// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schema

import "context"

// FileData describes a stored upload.
type FileData struct {
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
	Interchange string `json:"interchange,omitempty"`

	// InterchangeList holds (url, size) pairs, smallest first.
	InterchangeList [][]string `json:"interchange_list,omitempty"`

	AbsolutePath string `json:"absolute_path,omitempty"`
	RelativePath string `json:"relative_path,omitempty"`
}

// FileResolver resolves upload metadata by UID. It returns nil and no
// error for an unknown UID.
type FileResolver interface {
	FileData(ctx context.Context, uid string) (*FileData, error)
}

// FileResolverFunc adapts a function to FileResolver.
type FileResolverFunc func(ctx context.Context, uid string) (*FileData, error)

func (f FileResolverFunc) FileData(ctx context.Context, uid string) (*FileData, error) {
	return f(ctx, uid)
}

// interchangeURL returns entry [i][0] of the interchange list, or "".
func (f *FileData) interchangeURL(i int) string {
	if f == nil || len(f.InterchangeList) <= i || len(f.InterchangeList[i]) == 0 {
		return ""
	}
	return f.InterchangeList[i][0]
}

// ThumbnailURL is the smallest interchange image.
func (f *FileData) ThumbnailURL() string { return f.interchangeURL(0) }

// PreviewURL is the second interchange image.
func (f *FileData) PreviewURL() string { return f.interchangeURL(1) }
