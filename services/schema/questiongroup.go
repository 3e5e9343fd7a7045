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
	"strings"
)

// Numbering styles of a numbered questiongroup.
const (
	NumberedInline = "inline"
	NumberedPrefix = "prefix"
)

// Questiongroup is a repeatable group of questions.
type Questiongroup struct {
	node
	subcategory *Subcategory
	questions   []*Question

	minNum                 int
	maxNum                 int
	numbered               string
	questiongroupCondition string
	detailLevel            string
	inheritedConfiguration string
	inheritedQuestiongroup string
}

func (qg *Questiongroup) Subcategory() *Subcategory { return qg.subcategory }

func (qg *Questiongroup) Questions() []*Question {
	return append([]*Question(nil), qg.questions...)
}

// MinNum and MaxNum bound the number of instances.
func (qg *Questiongroup) MinNum() int { return qg.minNum }
func (qg *Questiongroup) MaxNum() int { return qg.maxNum }

// Numbered is "inline", "prefix" or "".
func (qg *Questiongroup) Numbered() string { return qg.numbered }

// QuestiongroupCondition is the name questiongroup_conditions of questions
// refer to.
func (qg *Questiongroup) QuestiongroupCondition() string { return qg.questiongroupCondition }

func (qg *Questiongroup) DetailLevel() string { return qg.detailLevel }

// InheritedConfiguration is the configuration code this questiongroup's
// data is copied from; inherited questiongroups are read-only.
func (qg *Questiongroup) InheritedConfiguration() string { return qg.inheritedConfiguration }
func (qg *Questiongroup) InheritedQuestiongroup() string { return qg.inheritedQuestiongroup }

// Link is the configuration code of linked questionnaires, or "".
func (qg *Questiongroup) Link() string { return qg.formOptions.String("link") }

// LinkCode is the part of the keyword after the last "__".
func (qg *Questiongroup) LinkCode() (string, bool) {
	i := strings.LastIndex(qg.keyword, "__")
	if i < 0 {
		return "", false
	}
	return qg.keyword[i+2:], true
}

// Question returns the question with keyword, or nil.
func (qg *Questiongroup) Question(keyword string) *Question {
	for _, q := range qg.questions {
		if q.keyword == keyword {
			return q
		}
	}
	return nil
}

// TopSubcategory returns the subcategory directly below the category.
func (qg *Questiongroup) TopSubcategory() *Subcategory {
	sc := qg.subcategory
	for sc != nil && sc.parent != nil {
		sc = sc.parent
	}
	return sc
}

// Section returns the section the questiongroup belongs to.
func (qg *Questiongroup) Section() *Section {
	top := qg.TopSubcategory()
	if top == nil || top.category == nil {
		return nil
	}
	return top.category.section
}

// RawData flattens instances into question keyword to value, adding
// "label_<keyword>" entries. Choice answers are replaced by their labels.
// With several instances the last one wins.
func (qg *Questiongroup) RawData(locale string, instances []map[string]any) map[string]any {
	out := map[string]any{}
	for _, q := range qg.questions {
		for _, inst := range instances {
			var value any = inst[q.keyword]
			if q.fieldType.LooksUpLabels() {
				labels := q.LookupLabels(locale, AsList(value))
				list := make([]any, len(labels))
				for i, l := range labels {
					list[i] = l
				}
				value = list
			}
			out[q.keyword] = value
			out["label_"+q.keyword] = q.LabelView(locale)
		}
	}
	return out
}
