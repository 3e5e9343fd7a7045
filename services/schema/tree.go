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

// Section is the top grouping level.
type Section struct {
	node
	configuration *Configuration
	categories    []*Category
}

func (s *Section) Configuration() *Configuration { return s.configuration }

func (s *Section) Categories() []*Category {
	return append([]*Category(nil), s.categories...)
}

// MediaGallery reports whether the section shows the image gallery.
func (s *Section) MediaGallery() bool { return s.viewOptions.Bool("media_gallery") }

// Questiongroups returns every questiongroup below the section in tree
// order.
func (s *Section) Questiongroups() []*Questiongroup {
	var out []*Questiongroup
	for _, c := range s.categories {
		out = append(out, c.Questiongroups()...)
	}
	return out
}

// Completeness sums the completeness of the categories.
func (s *Section) Completeness(data QuestionnaireData) (complete, total int) {
	for _, c := range s.categories {
		cc, ct := c.Completeness(data)
		complete += cc
		total += ct
	}
	return complete, total
}

// Category groups subcategories and is the unit of form steps.
type Category struct {
	node
	section       *Section
	subcategories []*Subcategory
}

func (c *Category) Section() *Section { return c.section }

func (c *Category) Subcategories() []*Subcategory {
	return append([]*Subcategory(nil), c.subcategories...)
}

// Numbering is the display number from form_options, e.g. "3.1".
func (c *Category) Numbering() string { return c.formOptions.String("numbering") }

// CountedSubcategories returns the subcategories that hold questiongroups
// or further subcategories.
func (c *Category) CountedSubcategories() []*Subcategory {
	var out []*Subcategory
	for _, sc := range c.subcategories {
		if len(sc.questiongroups) > 0 || len(sc.subcategories) > 0 {
			out = append(out, sc)
		}
	}
	return out
}

// Completeness counts the subcategories with data against the counted
// subcategories.
func (c *Category) Completeness(data QuestionnaireData) (complete, total int) {
	total = len(c.CountedSubcategories())
	for _, sc := range c.subcategories {
		if sc.HasOwnContent(data) {
			complete++
		}
	}
	return complete, total
}

// LinkQuestiongroups returns the keywords of link questiongroups of all
// subcategories.
func (c *Category) LinkQuestiongroups() []string {
	var out []string
	for _, sc := range c.subcategories {
		out = append(out, sc.linkQuestiongroups...)
	}
	return out
}

func (c *Category) Questiongroups() []*Questiongroup {
	var out []*Questiongroup
	for _, sc := range c.subcategories {
		out = append(out, sc.Questiongroups()...)
	}
	return out
}

// RawData flattens the data of every questiongroup directly below the
// category's subcategories.
func (c *Category) RawData(locale string, data QuestionnaireData) map[string]any {
	out := map[string]any{}
	for _, sc := range c.subcategories {
		for _, qg := range sc.questiongroups {
			for k, v := range qg.RawData(locale, data[qg.keyword]) {
				out[k] = v
			}
		}
	}
	return out
}

// Subcategory holds either further subcategories or questiongroups. Both
// lists may be configured; the subcategories drive traversal when present.
type Subcategory struct {
	node
	category *Category

	// parent is nil for subcategories directly below the category.
	parent *Subcategory

	subcategories      []*Subcategory
	questiongroups     []*Questiongroup
	linkQuestiongroups []string
	tableGrouping      [][]string
}

func (sc *Subcategory) Category() *Category { return sc.category }

// Parent returns the enclosing subcategory, or nil at the top level.
func (sc *Subcategory) Parent() *Subcategory { return sc.parent }

func (sc *Subcategory) Subcategories() []*Subcategory {
	return append([]*Subcategory(nil), sc.subcategories...)
}

// OwnQuestiongroups returns the configured questiongroups, even when
// subcategories drive traversal.
func (sc *Subcategory) OwnQuestiongroups() []*Questiongroup {
	return append([]*Questiongroup(nil), sc.questiongroups...)
}

// UsesSubcategories reports whether subcategories are the operative
// children.
func (sc *Subcategory) UsesSubcategories() bool { return len(sc.subcategories) > 0 }

// Questiongroups returns the questiongroups reached through the operative
// children.
func (sc *Subcategory) Questiongroups() []*Questiongroup {
	if !sc.UsesSubcategories() {
		return append([]*Questiongroup(nil), sc.questiongroups...)
	}
	var out []*Questiongroup
	for _, child := range sc.subcategories {
		out = append(out, child.Questiongroups()...)
	}
	return out
}

func (sc *Subcategory) LinkQuestiongroups() []string {
	return append([]string(nil), sc.linkQuestiongroups...)
}

// IsLinkQuestiongroup reports whether keyword is one of the link
// questiongroups.
func (sc *Subcategory) IsLinkQuestiongroup(keyword string) bool {
	for _, kw := range sc.linkQuestiongroups {
		if kw == keyword {
			return true
		}
	}
	return false
}

// TableGrouping returns the configured groups of questiongroup keywords.
func (sc *Subcategory) TableGrouping() [][]string {
	out := make([][]string, len(sc.tableGrouping))
	for i, g := range sc.tableGrouping {
		out[i] = append([]string(nil), g...)
	}
	return out
}

// InTableGrouping reports whether keyword appears in any group.
func (sc *Subcategory) InTableGrouping(keyword string) bool {
	for _, g := range sc.tableGrouping {
		for _, kw := range g {
			if kw == keyword {
				return true
			}
		}
	}
	return false
}

// TableHeaders returns the question labels and helptexts of the
// questiongroups leading a table group.
func (sc *Subcategory) TableHeaders(locale string) (headers, helptexts []string) {
	if len(sc.tableGrouping) == 0 {
		return nil, nil
	}
	leads := map[string]bool{}
	for _, g := range sc.tableGrouping {
		if len(g) > 0 {
			leads[g[0]] = true
		}
	}
	for _, qg := range sc.questiongroups {
		if !leads[qg.keyword] {
			continue
		}
		for _, q := range qg.questions {
			headers = append(headers, q.Label(locale))
			helptexts = append(helptexts, q.Helptext(locale))
		}
	}
	return headers, helptexts
}

// HasOwnContent reports whether any of the subcategory's own
// questiongroups has data.
func (sc *Subcategory) HasOwnContent(data QuestionnaireData) bool {
	for _, qg := range sc.questiongroups {
		if data.HasContent(qg.keyword) {
			return true
		}
	}
	return false
}
