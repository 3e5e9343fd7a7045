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
	"sort"
	"strconv"

	"github.com/AleutianAI/qcatschema/services/schema/condition"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// ValueImagePath prefixes the image_name of image_checkbox values.
const ValueImagePath = "assets/img/"

// Default form widths.
const (
	DefaultCharMaxLength = 2000
	DefaultTextMaxLength = 5000
	DefaultNumRows       = 3
)

// Choice is one selectable answer.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// choiceValue is a predefined Value as resolved at build time.
type choiceValue struct {
	keyword     string
	ordered     bool
	imageName   string
	translation int64
	texts       texts
}

// Question is a leaf of the tree, backed by a Key.
type Question struct {
	node
	questiongroup *Questiongroup

	fieldType     FieldType
	filterOptions Options
	summary       Options

	inList     bool
	isName     bool
	isGeometry bool
	maxLength  int
	numRows    int

	values        []choiceValue
	orderedValues bool

	conditional             bool
	questionConditions      []condition.Named
	questionCondition       string
	conditions              []condition.Value
	questiongroupConditions []condition.Named
}

func (q *Question) Questiongroup() *Questiongroup { return q.questiongroup }
func (q *Question) FieldType() FieldType          { return q.fieldType }
func (q *Question) FilterOptions() Options        { return q.filterOptions }
func (q *Question) Summary() Options              { return q.summary }
func (q *Question) InList() bool                  { return q.inList }
func (q *Question) IsName() bool                  { return q.isName }
func (q *Question) IsGeometry() bool              { return q.isGeometry }
func (q *Question) NumRows() int                  { return q.numRows }

// Conditional marks questions rendered inline by another question's value
// conditions rather than on their own.
func (q *Question) Conditional() bool { return q.conditional }

// MaxLength is the configured max_length; the second value is false when
// unset or not an integer.
func (q *Question) MaxLength() (int, bool) {
	return q.maxLength, q.maxLength > 0
}

// LabelFilter is the label used by search filters, falling back to
// LabelView.
func (q *Question) LabelFilter(locale string) string {
	if s, ok := q.texts.lookup(lookup.TranslationLabelFilter, locale); ok {
		return s
	}
	return q.LabelView(locale)
}

func (q *Question) QuestionConditions() []condition.Named {
	return append([]condition.Named(nil), q.questionConditions...)
}

// QuestionCondition is the name other questions' question_conditions
// refer to.
func (q *Question) QuestionCondition() string { return q.questionCondition }

func (q *Question) Conditions() []condition.Value {
	return append([]condition.Value(nil), q.conditions...)
}

func (q *Question) QuestiongroupConditions() []condition.Named {
	return append([]condition.Named(nil), q.questiongroupConditions...)
}

// RawQuestionConditions returns the unparsed question_conditions strings.
func (q *Question) RawQuestionConditions() []string {
	return rawNamed(q.questionConditions)
}

// RawQuestiongroupConditions returns the unparsed questiongroup_conditions
// strings.
func (q *Question) RawQuestiongroupConditions() []string {
	return rawNamed(q.questiongroupConditions)
}

func rawNamed(conds []condition.Named) []string {
	out := make([]string, len(conds))
	for i, c := range conds {
		out[i] = c.Raw
	}
	return out
}

// ValueKeywords returns the keywords of the predefined values in
// association order.
func (q *Question) ValueKeywords() []string {
	out := make([]string, len(q.values))
	for i, v := range q.values {
		out[i] = v.keyword
	}
	return out
}

// sortedValues returns the predefined values in display order for locale:
// association order when any value carries an order_value, by label
// otherwise.
func (q *Question) sortedValues(locale string) []choiceValue {
	vals := append([]choiceValue(nil), q.values...)
	if q.orderedValues {
		return vals
	}
	labels := make(map[string]string, len(vals))
	for _, v := range vals {
		labels[v.keyword] = v.texts.text(lookup.TranslationLabel, locale)
	}
	sort.SliceStable(vals, func(i, j int) bool {
		return labels[vals[i].keyword] < labels[vals[j].keyword]
	})
	return vals
}

// Choices returns the selectable answers for locale. Fields whose choices
// depend on questionnaire data (select_conditional_questiongroup) or on an
// external model (select_model) have none here.
func (q *Question) Choices(locale string) []Choice {
	switch q.fieldType {
	case FieldBool:
		return []Choice{{Value: "1", Label: "Yes"}, {Value: "0", Label: "No"}}
	case FieldCBBool:
		return []Choice{{Value: "1", Label: q.Label(locale)}}
	}
	if !q.fieldType.RequiresValues() {
		return nil
	}
	var out []Choice
	if q.fieldType.HasEmptyChoice() {
		out = append(out, Choice{Value: "", Label: "-"})
	}
	for _, v := range q.sortedValues(locale) {
		out = append(out, Choice{Value: v.keyword, Label: v.texts.text(lookup.TranslationLabel, locale)})
	}
	return out
}

// ChoiceHelptexts returns the helptexts aligned with Choices.
func (q *Question) ChoiceHelptexts(locale string) []string {
	if !q.fieldType.RequiresValues() {
		return nil
	}
	var out []string
	if q.fieldType.HasEmptyChoice() {
		out = append(out, "")
	}
	for _, v := range q.sortedValues(locale) {
		out = append(out, v.texts.text(lookup.TranslationHelptext, locale))
	}
	return out
}

// Images returns the image paths of an image_checkbox question, aligned
// with Choices.
func (q *Question) Images(locale string) []string {
	if q.fieldType != FieldImageCheckbox {
		return nil
	}
	vals := q.sortedValues(locale)
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = ValueImagePath + v.imageName
	}
	return out
}

// AdditionalTranslations returns the scale boundary labels of a measure
// question; other types have none.
func (q *Question) AdditionalTranslations(locale string) map[string]string {
	out := map[string]string{}
	if q.fieldType == FieldMeasure {
		out[lookup.TranslationLabelLeft] = q.texts.text(lookup.TranslationLabelLeft, locale)
		out[lookup.TranslationLabelRight] = q.texts.text(lookup.TranslationLabelRight, locale)
	}
	return out
}

// choiceKeys returns the string keys that value conditions may refer to.
// Measure questions also accept the legacy 1-based positions.
func (q *Question) choiceKeys() []string {
	var keys []string
	for _, c := range q.Choices(DefaultLocale) {
		keys = append(keys, c.Value)
	}
	if q.fieldType == FieldMeasure {
		for i := range q.values {
			keys = append(keys, strconv.Itoa(i+1))
		}
	}
	return keys
}

// ChoiceIndex finds the position of a stored answer in choices. Measure
// answers stored as legacy 1-based positions are resolved against the
// association order.
func (q *Question) ChoiceIndex(choices []Choice, value any) (int, bool) {
	key, ok := choiceKey(value)
	if !ok {
		return 0, false
	}
	for i, c := range choices {
		if c.Value == key {
			return i, true
		}
	}
	if q.fieldType == FieldMeasure {
		if pos, err := strconv.Atoi(key); err == nil && pos >= 1 && pos <= len(q.values) {
			kw := q.values[pos-1].keyword
			for i, c := range choices {
				if c.Value == kw {
					return i, true
				}
			}
		}
	}
	return 0, false
}

// LookupLabels maps stored answers to their choice labels. Answers that do
// not resolve yield "".
func (q *Question) LookupLabels(locale string, values []any) []string {
	choices := q.Choices(locale)
	out := make([]string, len(values))
	for i, v := range values {
		if idx, ok := q.ChoiceIndex(choices, v); ok {
			out[i] = choices[idx].Label
		}
	}
	return out
}

// AsList wraps a scalar answer in a list; lists pass through.
func AsList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}
