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
	"time"

	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// Configuration is the root of a built schema tree. A Configuration is
// immutable once returned by the Builder and safe for concurrent readers.
type Configuration struct {
	code    string
	edition string
	created time.Time

	sections       []*Section
	modules        []string
	inheritedData  map[string]map[string]string
	questiongroups []*Questiongroup

	// err is set when no document exists; the tree is then empty.
	err  error
	deps *Dependencies
}

func (c *Configuration) Code() string       { return c.code }
func (c *Configuration) Edition() string    { return c.edition }
func (c *Configuration) Created() time.Time { return c.created }

// Error returns the captured NoConfigurationFoundError, or nil.
func (c *Configuration) Error() error { return c.err }

func (c *Configuration) Sections() []*Section {
	return append([]*Section(nil), c.sections...)
}

// Modules returns the configuration codes of enabled modules.
func (c *Configuration) Modules() []string {
	return append([]string(nil), c.modules...)
}

// InheritedData maps an inherited configuration code to its questiongroup
// keywords and the local questiongroups receiving their data.
func (c *Configuration) InheritedData() map[string]map[string]string {
	out := make(map[string]map[string]string, len(c.inheritedData))
	for code, m := range c.inheritedData {
		inner := make(map[string]string, len(m))
		for k, v := range m {
			inner[k] = v
		}
		out[code] = inner
	}
	return out
}

// Dependencies returns the lookup entities the tree was built from.
func (c *Configuration) Dependencies() *Dependencies {
	if c.deps == nil {
		return newDependencies(c.code, c.edition)
	}
	return c.deps
}

// Questiongroups returns every questiongroup in tree order.
func (c *Configuration) Questiongroups() []*Questiongroup {
	return append([]*Questiongroup(nil), c.questiongroups...)
}

// QuestiongroupByKeyword returns the first questiongroup with keyword, or
// nil.
func (c *Configuration) QuestiongroupByKeyword(keyword string) *Questiongroup {
	for _, qg := range c.questiongroups {
		if qg.keyword == keyword {
			return qg
		}
	}
	return nil
}

// QuestionByKeyword returns the question keyword of questiongroup
// questiongroupKeyword, or nil.
func (c *Configuration) QuestionByKeyword(questiongroupKeyword, keyword string) *Question {
	qg := c.QuestiongroupByKeyword(questiongroupKeyword)
	if qg == nil {
		return nil
	}
	return qg.Question(keyword)
}

// Category returns the category with keyword, or nil.
func (c *Configuration) Category(keyword string) *Category {
	for _, s := range c.sections {
		for _, cat := range s.categories {
			if cat.keyword == keyword {
				return cat
			}
		}
	}
	return nil
}

// Completeness sums the completeness of all sections.
func (c *Configuration) Completeness(data QuestionnaireData) (complete, total int) {
	for _, s := range c.sections {
		sc, st := s.Completeness(data)
		complete += sc
		total += st
	}
	return complete, total
}

// =============================================================================
// Dependencies
// =============================================================================

// Dependencies records the lookup rows and translations a tree was built
// from, so that a cache can tell whether a mutation affects it.
type Dependencies struct {
	Code           string
	Edition        string
	Keys           map[string]struct{}
	Values         map[string]struct{}
	Questiongroups map[string]struct{}
	Categories     map[string]struct{}
	Translations   map[int64]struct{}
}

func newDependencies(code, edition string) *Dependencies {
	return &Dependencies{
		Code:           code,
		Edition:        edition,
		Keys:           map[string]struct{}{},
		Values:         map[string]struct{}{},
		Questiongroups: map[string]struct{}{},
		Categories:     map[string]struct{}{},
		Translations:   map[int64]struct{}{},
	}
}

// Affected reports whether e touches anything the tree depends on. Any
// document event for the same code counts, since it may change which
// edition is the latest.
func (d *Dependencies) Affected(e lookup.Event) bool {
	has := func(set map[string]struct{}, kw string) bool {
		_, ok := set[kw]
		return ok
	}
	switch e.Kind {
	case lookup.KindKey:
		return has(d.Keys, e.Keyword)
	case lookup.KindValue:
		return has(d.Values, e.Keyword)
	case lookup.KindQuestiongroup:
		return has(d.Questiongroups, e.Keyword)
	case lookup.KindCategory:
		return has(d.Categories, e.Keyword)
	case lookup.KindTranslation:
		_, ok := d.Translations[e.TranslationID]
		return ok
	case lookup.KindConfiguration:
		return e.Code == d.Code
	}
	return false
}

// TranslationIDs returns the translation ids in ascending order.
func (d *Dependencies) TranslationIDs() []int64 {
	out := make([]int64, 0, len(d.Translations))
	for id := range d.Translations {
		out = append(out, id)
	}
	sortInt64s(out)
	return out
}
