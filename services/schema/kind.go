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

import (
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// NodeKind identifies a level of the schema tree.
type NodeKind int

const (
	KindConfiguration NodeKind = iota
	KindSection
	KindCategory
	KindSubcategory
	KindQuestiongroup
	KindQuestion
)

// kindSpec is the static description of a node kind.
type kindSpec struct {
	name string

	// plural is the name of the configuration array holding nodes of this
	// kind, used in error messages.
	plural string

	// childKeys are the configuration arrays holding child fragments.
	childKeys []string

	validOptions []string

	// entity is the lookup table keywords resolve against.
	entity lookup.Kind
}

var kindSpecs = map[NodeKind]kindSpec{
	KindConfiguration: {
		name:         "configuration",
		plural:       "-",
		childKeys:    []string{"sections"},
		validOptions: []string{"sections", "modules"},
		entity:       lookup.KindConfiguration,
	},
	KindSection: {
		name:         "section",
		plural:       "sections",
		childKeys:    []string{"categories"},
		validOptions: []string{"categories", "keyword", "view_options"},
		entity:       lookup.KindCategory,
	},
	KindCategory: {
		name:         "category",
		plural:       "categories",
		childKeys:    []string{"subcategories"},
		validOptions: []string{"keyword", "subcategories", "view_options", "form_options"},
		entity:       lookup.KindCategory,
	},
	KindSubcategory: {
		name:         "subcategory",
		plural:       "subcategories",
		childKeys:    []string{"subcategories", "questiongroups"},
		validOptions: []string{"keyword", "questiongroups", "subcategories", "form_options", "view_options"},
		entity:       lookup.KindCategory,
	},
	KindQuestiongroup: {
		name:         "questiongroup",
		plural:       "questiongroups",
		childKeys:    []string{"questions"},
		validOptions: []string{"keyword", "questions", "view_options", "form_options"},
		entity:       lookup.KindQuestiongroup,
	},
	KindQuestion: {
		name:         "question",
		plural:       "questions",
		validOptions: []string{"keyword", "view_options", "form_options", "filter_options", "summary"},
		entity:       lookup.KindKey,
	},
}

func (k NodeKind) String() string {
	if s, ok := kindSpecs[k]; ok {
		return s.name
	}
	return "unknown"
}

func (k NodeKind) spec() kindSpec {
	return kindSpecs[k]
}

// IsLeaf reports whether nodes of this kind have no child nodes.
func (k NodeKind) IsLeaf() bool {
	return len(kindSpecs[k].childKeys) == 0
}

// validOption reports whether key is allowed in a fragment of this kind.
func (k NodeKind) validOption(key string) bool {
	for _, opt := range kindSpecs[k].validOptions {
		if opt == key {
			return true
		}
	}
	return false
}
