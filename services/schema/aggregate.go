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
	"context"
	"fmt"
	"sort"
)

// FilterKey describes a question usable as a search filter.
type FilterKey struct {
	Path          string  `json:"path"`
	Label         string  `json:"label"`
	Order         float64 `json:"order"`
	Key           string  `json:"key"`
	Questiongroup string  `json:"questiongroup"`
	FilterType    string  `json:"filter_type"`
	SectionLabel  string  `json:"section_label"`
}

// FilterKeys returns every question with filter_options.order, sorted by
// order, then questiongroup keyword, then question keyword.
func (c *Configuration) FilterKeys(locale string) []FilterKey {
	var keys []FilterKey
	for _, qg := range c.questiongroups {
		sectionLabel := ""
		if s := qg.Section(); s != nil {
			sectionLabel = s.Label(locale)
		}
		for _, q := range qg.questions {
			order, ok := q.filterOptions.Number("order")
			if !ok {
				continue
			}
			keys = append(keys, FilterKey{
				Path:          qg.keyword + "__" + q.keyword,
				Label:         q.LabelFilter(locale),
				Order:         order,
				Key:           q.keyword,
				Questiongroup: qg.keyword,
				FilterType:    string(q.fieldType),
				SectionLabel:  sectionLabel,
			})
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if a.Questiongroup != b.Questiongroup {
			return a.Questiongroup < b.Questiongroup
		}
		return a.Key < b.Key
	})
	return keys
}

// TOCEntry is one category in the table of contents.
type TOCEntry struct {
	Keyword   string `json:"keyword"`
	Label     string `json:"label"`
	Numbering string `json:"numbering,omitempty"`
}

// TOC lists all categories in tree order.
func (c *Configuration) TOC(locale string) []TOCEntry {
	var out []TOCEntry
	for _, s := range c.sections {
		for _, cat := range s.categories {
			out = append(out, TOCEntry{Keyword: cat.keyword, Label: cat.Label(locale), Numbering: cat.Numbering()})
		}
	}
	return out
}

// NameKeywords returns the question flagged is_name and its questiongroup.
// With several flagged questions the last one wins.
func (c *Configuration) NameKeywords() (question, questiongroup string) {
	return c.flagged(func(q *Question) bool { return q.isName })
}

// GeometryKeywords returns the question flagged is_geometry and its
// questiongroup. With several flagged questions the last one wins.
func (c *Configuration) GeometryKeywords() (question, questiongroup string) {
	return c.flagged(func(q *Question) bool { return q.isGeometry })
}

func (c *Configuration) flagged(match func(*Question) bool) (question, questiongroup string) {
	for _, qg := range c.questiongroups {
		for _, q := range qg.questions {
			if match(q) {
				question, questiongroup = q.keyword, qg.keyword
			}
		}
	}
	return question, questiongroup
}

// QuestionnaireName returns the value of the is_name question in the first
// instance of its questiongroup, or {"en": "Unknown name"}.
func (c *Configuration) QuestionnaireName(data QuestionnaireData) any {
	q, qg := c.NameKeywords()
	if q != "" {
		if list := data[qg]; len(list) > 0 {
			return list[0][q]
		}
	}
	return map[string]any{DefaultLocale: "Unknown name"}
}

// QuestionnaireGeometry returns the value of the is_geometry question in
// the first instance of its questiongroup, or nil.
func (c *Configuration) QuestionnaireGeometry(data QuestionnaireData) any {
	q, qg := c.GeometryKeywords()
	if q != "" {
		if list := data[qg]; len(list) > 0 {
			return list[0][q]
		}
	}
	return nil
}

// DescriptionKeyword pairs a question with its questiongroup.
type DescriptionKeyword struct {
	Questiongroup string
	Question      string
}

// DescriptionKeywords returns the questions among keys in tree order.
func (c *Configuration) DescriptionKeywords(keys []string) []DescriptionKeyword {
	wanted := map[string]bool{}
	for _, k := range keys {
		wanted[k] = true
	}
	var out []DescriptionKeyword
	for _, qg := range c.questiongroups {
		for _, q := range qg.questions {
			if wanted[q.keyword] {
				out = append(out, DescriptionKeyword{Questiongroup: qg.keyword, Question: q.keyword})
			}
		}
	}
	return out
}

// QuestionnaireDescription concatenates, per locale, the translated texts
// of the questions among keys. Each text is followed by a space.
func (c *Configuration) QuestionnaireDescription(data QuestionnaireData, keys []string) map[string]string {
	out := map[string]string{}
	for _, kw := range c.DescriptionKeywords(keys) {
		for _, inst := range data[kw.Questiongroup] {
			texts, ok := inst[kw.Question].(map[string]any)
			if !ok {
				continue
			}
			locales := make([]string, 0, len(texts))
			for l := range texts {
				locales = append(locales, l)
			}
			sort.Strings(locales)
			for _, l := range locales {
				out[l] += fmt.Sprint(texts[l]) + " "
			}
		}
	}
	return out
}

// UserField describes a user reference stored in a questiongroup with a
// user role.
type UserField struct {
	Questiongroup string `json:"questiongroup"`
	Key           string `json:"key"`
	DisplayField  string `json:"display_field,omitempty"`
	Role          string `json:"role"`
}

// UserFields returns the user_id questions of questiongroups whose
// form_options carry a user_role.
func (c *Configuration) UserFields() []UserField {
	var out []UserField
	for _, qg := range c.questiongroups {
		role := qg.formOptions.String("user_role")
		if role == "" {
			continue
		}
		for _, q := range qg.questions {
			if q.fieldType != FieldUserID {
				continue
			}
			out = append(out, UserField{
				Questiongroup: qg.keyword,
				Key:           q.keyword,
				DisplayField:  q.formOptions.String("display_field"),
				Role:          role,
			})
		}
	}
	return out
}

// FormQuestiongroups returns the questiongroups whose data is edited in
// this configuration, leaving out inherited ones.
func (c *Configuration) FormQuestiongroups() []*Questiongroup {
	var out []*Questiongroup
	for _, qg := range c.questiongroups {
		if qg.inheritedConfiguration == "" {
			out = append(out, qg)
		}
	}
	return out
}

// TranslationIDs returns the ids of every translation used by the tree,
// including those of predefined values, in tree order without duplicates.
func (c *Configuration) TranslationIDs() []int64 {
	var out []int64
	seen := map[int64]bool{}
	add := func(id int64) {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	var walkSub func(sc *Subcategory)
	walkSub = func(sc *Subcategory) {
		add(sc.translation)
		for _, child := range sc.subcategories {
			walkSub(child)
		}
		for _, qg := range sc.questiongroups {
			add(qg.translation)
			for _, q := range qg.questions {
				add(q.translation)
				for _, v := range q.values {
					add(v.translation)
				}
			}
		}
	}
	for _, s := range c.sections {
		add(s.translation)
		for _, cat := range s.categories {
			add(cat.translation)
			for _, sc := range cat.subcategories {
				walkSub(sc)
			}
		}
	}
	return out
}

// =============================================================================
// Images
// =============================================================================

// ImageRemarksQuestiongroup holds remarks shown next to the gallery.
const ImageRemarksQuestiongroup = "qg_image_remarks"

// Image is one gallery entry.
type Image struct {
	Image           string     `json:"image"`
	Interchange     string     `json:"interchange"`
	InterchangeList [][]string `json:"interchange_list"`
	Caption         any        `json:"caption"`
	Date            any        `json:"date"`
	Location        any        `json:"location"`
	Photographer    any        `json:"photographer"`
	AbsolutePath    string     `json:"absolute_path"`
	RelativePath    string     `json:"relative_path"`
	Target          any        `json:"target"`
}

// ImageData is the gallery of a questionnaire.
type ImageData struct {
	Content    []Image        `json:"content"`
	Additional map[string]any `json:"additional"`
}

// ImageData collects every image stored in questiongroups that contain an
// image question. Instances without an image are skipped, as are images
// the resolver does not know.
func (c *Configuration) ImageData(ctx context.Context, locale string, data QuestionnaireData, files FileResolver) (ImageData, error) {
	out := ImageData{Content: []Image{}, Additional: map[string]any{}}
	var instances []map[string]any
	for _, qg := range c.questiongroups {
		if qg.keyword == ImageRemarksQuestiongroup {
			for k, v := range qg.RawData(locale, data[ImageRemarksQuestiongroup]) {
				out.Additional[k] = v
			}
		}
		for _, q := range qg.questions {
			if q.fieldType == FieldImage && data[qg.keyword] != nil {
				instances = append(instances, data[qg.keyword]...)
			}
		}
	}
	for _, inst := range instances {
		uid, ok := inst["image"].(string)
		if !ok || uid == "" || files == nil {
			continue
		}
		fd, err := files.FileData(ctx, uid)
		if err != nil {
			return ImageData{}, fmt.Errorf("resolve image %s: %w", uid, err)
		}
		if fd == nil {
			continue
		}
		out.Content = append(out.Content, Image{
			Image:           fd.URL,
			Interchange:     fd.Interchange,
			InterchangeList: fd.InterchangeList,
			Caption:         inst["image_caption"],
			Date:            inst["image_date"],
			Location:        inst["image_location"],
			Photographer:    inst["image_photographer"],
			AbsolutePath:    fd.AbsolutePath,
			RelativePath:    fd.RelativePath,
			Target:          inst["image_target"],
		})
	}
	return out, nil
}

// =============================================================================
// List data
// =============================================================================

// definitionKeys maps a configuration code to the question holding its
// short description.
var definitionKeys = map[string]string{
	"approaches":   "app_definition",
	"cca":          "tech_definition",
	"cbp":          "tech_definition",
	"sample":       "key_5",
	"samplemodule": "modkey_01",
	"samplemulti":  "mkey_01",
	"technologies": "tech_definition",
	"unccd":        "unccd_description",
	"watershed":    "app_definition",
}

// DefinitionKey returns the question keyword remapped to "definition" in
// list data.
func DefinitionKey(code string) (string, bool) {
	k, ok := definitionKeys[code]
	return k, ok
}

type listEntry struct {
	questiongroup string
	question      *Question
}

// ListData extracts the in_list questions of each questionnaire. Choice
// answers become labels, images become the URL of their smallest
// interchange image and the definition question is copied to
// "definition". A code without a definition mapping is an error.
func (c *Configuration) ListData(ctx context.Context, locale string, questionnaires []QuestionnaireData, files FileResolver) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(questionnaires))
	if len(questionnaires) == 0 {
		return out, nil
	}
	definitionKey, ok := DefinitionKey(c.code)
	if !ok {
		return nil, &MissingDefinitionMappingError{Code: c.code}
	}

	var entries []listEntry
	for _, qg := range c.questiongroups {
		for _, q := range qg.questions {
			if q.inList {
				entries = append(entries, listEntry{questiongroup: qg.keyword, question: q})
			}
		}
	}

	for _, data := range questionnaires {
		item := map[string]any{}
		for _, e := range entries {
			q := e.question
			for _, inst := range data[e.questiongroup] {
				key := q.keyword
				value := inst[q.keyword]
				if q.fieldType == FieldImage {
					key = "image"
					if v, ok := item[key]; ok && !IsEmptyListOfDicts(v) {
						continue
					}
					if uid, ok := value.(string); ok && uid != "" && files != nil {
						fd, err := files.FileData(ctx, uid)
						if err != nil {
							return nil, fmt.Errorf("resolve image %s: %w", uid, err)
						}
						if url := fd.ThumbnailURL(); url != "" {
							value = url
						}
					}
				}
				switch q.fieldType {
				case FieldBool, FieldMeasure, FieldCheckbox, FieldImageCheckbox, FieldSelectType:
					labels := q.LookupLabels(locale, AsList(value))
					if q.fieldType.SingleValued() {
						value = ""
						if len(labels) > 0 {
							value = labels[0]
						}
					} else {
						value = labels
					}
				}
				item[key] = value
			}
		}

		if _, ok := item["name"]; !ok {
			if nameQ, nameQG := c.NameKeywords(); nameQ != "" {
				var name any = map[string]any{}
				if list := data[nameQG]; len(list) > 0 {
					if v, ok := list[0][nameQ]; ok {
						name = v
					}
				}
				item["name"] = name
			}
		}

		if v, ok := item[definitionKey]; ok {
			item["definition"] = v
		} else {
			item["definition"] = map[string]any{DefaultLocale: ""}
		}
		out = append(out, item)
	}
	return out, nil
}

func sortInt64s(s []int64) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}
