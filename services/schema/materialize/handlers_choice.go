// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package materialize

import (
	"fmt"
	"math"

	"github.com/AleutianAI/qcatschema/services/schema"
)

// MaxMeasureLevel is the top of the measure bar scale.
const MaxMeasureLevel = 5

// choiceField returns a field offering choices.
func (fc *fieldContext) choiceField(kind string, w Widget, choices []schema.Choice) Field {
	f := fc.field(fc.q.Keyword(), kind, w)
	f.Choices = choices
	return f
}

// lookupLabels resolves the stored answer against choices, one label per
// answer; unknown answers yield "". The labels are kept on dc for the
// stacked layout.
func (dc *detailContext) lookupLabels(choices []schema.Choice) []string {
	values := schema.AsList(dc.value())
	labels := make([]string, len(values))
	for i, v := range values {
		if idx, ok := dc.q.ChoiceIndex(choices, v); ok {
			labels[i] = choices[idx].Label
		}
	}
	dc.labels = labels
	dc.choices = choices
	return labels
}

func firstLabel(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

type boolHandler struct{}

func (boolHandler) formFields(fc *fieldContext) ([]Field, error) {
	f := fc.choiceField(ValueInt, WidgetRadio, fc.q.Choices(fc.locale))
	if fc.q.FormOptions().String("extra") == "inline" {
		f.WidgetTemplate = "form/field/radio_inline.html"
	}
	if fc.q.Keyword() == "accept_conditions" {
		f.WidgetTemplate = "form/field/accept_conditions.html"
	}
	return []Field{f}, nil
}

func (boolHandler) detail(dc *detailContext) (string, error) {
	return selectHandler{}.detail(dc)
}

type measureHandler struct{}

func (measureHandler) formFields(fc *fieldContext) ([]Field, error) {
	w := WidgetMeasure
	if fc.q.FormOptions().String("layout") == "stacked" {
		w = WidgetMeasureStacked
	}
	return []Field{fc.choiceField(ValueChoice, w, fc.q.Choices(fc.locale))}, nil
}

// detail converts the rank of the answer within the choices to a level of
// the measure bar. Halves round to even.
func (measureHandler) detail(dc *detailContext) (string, error) {
	choices := dc.q.Choices(dc.locale)
	label := firstLabel(dc.lookupLabels(choices))

	var level any
	for pos, c := range choices {
		if c.Label == label {
			level = int(math.RoundToEven(float64(pos) / float64(len(choices)) * MaxMeasureLevel))
			break
		}
	}
	key := dc.q.LabelView(dc.locale)
	if dc.measureLabel != "" {
		key = dc.measureLabel
	}
	dc.values["key"] = key
	dc.values["value"] = label
	dc.values["level"] = level
	return "measure_bar", nil
}

// selectHandler serves select, select_type and select_conditional_custom.
type selectHandler struct {
	searchable bool
	disabled   bool
}

func (h selectHandler) formFields(fc *fieldContext) ([]Field, error) {
	if h.disabled {
		fc.attrs["disabled"] = "disabled"
	}
	f := fc.choiceField(ValueChoice, WidgetSelect, fc.q.Choices(fc.locale))
	f.Searchable = h.searchable
	return []Field{f}, nil
}

func (selectHandler) detail(dc *detailContext) (string, error) {
	dc.values["key"] = dc.q.LabelView(dc.locale)
	dc.values["value"] = firstLabel(dc.lookupLabels(dc.q.Choices(dc.locale)))
	return "textinput", nil
}

// checkboxHandler serves radio, checkbox, cb_bool and multi_select.
type checkboxHandler struct {
	widget Widget
	kind   string
}

func (h checkboxHandler) formFields(fc *fieldContext) ([]Field, error) {
	w := h.widget
	if w == WidgetCheckbox && fc.q.FormOptions().String("layout") == "measure" {
		w = WidgetMeasureCheckbox
	}
	return []Field{fc.choiceField(h.kind, w, fc.q.Choices(fc.locale))}, nil
}

// detail lists the selected labels. With view_options.with_raw_values each
// entry pairs the label with its value keyword.
func (checkboxHandler) detail(dc *detailContext) (string, error) {
	choices := dc.q.Choices(dc.locale)
	labels := dc.lookupLabels(choices)
	raw := dc.q.ViewOptions().Bool("with_raw_values")

	var selected []any
	for i, v := range schema.AsList(dc.value()) {
		if labels[i] == "" {
			continue
		}
		if !raw {
			selected = append(selected, labels[i])
			continue
		}
		idx, _ := dc.q.ChoiceIndex(choices, v)
		selected = append(selected, []string{labels[i], choices[idx].Value})
	}
	dc.values["key"] = dc.q.LabelView(dc.locale)
	dc.values["values"] = selected
	return "checkbox", nil
}

type imageCheckboxHandler struct{}

func (imageCheckboxHandler) formFields(fc *fieldContext) ([]Field, error) {
	f := fc.choiceField(ValueMultiple, WidgetImageCheckbox, fc.q.Choices(fc.locale))
	f.Images = fc.q.Images(fc.locale)
	return []Field{f}, nil
}

// ImageChoice is one selected image_checkbox answer.
type ImageChoice struct {
	Label       string       `json:"label"`
	Image       string       `json:"image"`
	Conditional *FieldDetail `json:"conditional,omitempty"`
	Keyword     string       `json:"keyword"`
}

// detail lists the selected values with their images. A value named by a
// conditional question renders that question inline.
func (imageCheckboxHandler) detail(dc *detailContext) (string, error) {
	choices := dc.q.Choices(dc.locale)
	images := dc.q.Images(dc.locale)
	labels := dc.lookupLabels(choices)

	var selected []ImageChoice
	for i, v := range schema.AsList(dc.value()) {
		idx, ok := dc.q.ChoiceIndex(choices, v)
		if !ok {
			continue
		}
		entry := ImageChoice{Label: labels[i], Image: images[idx], Keyword: choices[idx].Value}
		for _, c := range dc.q.Conditions() {
			if c.Value != entry.Keyword {
				continue
			}
			target := dc.q.Questiongroup().Question(c.Key)
			if target == nil {
				continue
			}
			sub, err := dc.sub(target).materialize()
			if err != nil {
				return "", err
			}
			entry.Conditional = sub
		}
		selected = append(selected, entry)
	}
	dc.values["key"] = dc.q.LabelView(dc.locale)
	dc.values["values"] = selected
	if dc.q.Conditional() {
		return "image_checkbox_conditional", nil
	}
	return "image_checkbox", nil
}

// =============================================================================
// Dynamic choices
// =============================================================================

type selectModelHandler struct{}

func (selectModelHandler) choices(fc *fieldContext) ([]schema.Choice, error) {
	out := []schema.Choice{{Value: "", Label: "-"}}
	if fc.m.models == nil {
		return out, nil
	}
	model := fc.q.FormOptions().String("model")
	more, err := fc.m.models.Choices(fc.ctx, model)
	if err != nil {
		return nil, fmt.Errorf("load choices of model %s: %w", model, err)
	}
	return append(out, more...), nil
}

func (h selectModelHandler) formFields(fc *fieldContext) ([]Field, error) {
	fc.attrs["data-key-keyword"] = fc.q.Keyword()
	choices, err := h.choices(fc)
	if err != nil {
		return nil, err
	}
	f := fc.choiceField(ValueChoice, WidgetSelect, choices)
	f.Searchable = true
	return []Field{f}, nil
}

// detail shows the model instance name, falling back to the display value
// stored next to old answers as <keyword>_display.
func (selectModelHandler) detail(dc *detailContext) (string, error) {
	value := dc.value()
	dc.values["value"] = value
	dc.values["label"] = dc.q.LabelView(dc.locale)

	text := ""
	if dc.m.models != nil && value != nil {
		model := dc.q.FormOptions().String("model")
		choices, err := dc.m.models.Choices(dc.ctx, model)
		if err != nil {
			return "", fmt.Errorf("load choices of model %s: %w", model, err)
		}
		if idx, ok := dc.q.ChoiceIndex(choices, value); ok {
			text = choices[idx].Label
		}
	}
	if text == "" {
		if s, ok := dc.instance[dc.q.Keyword()+"_display"].(string); ok {
			text = s
		}
	}
	dc.values["text"] = text
	return "select_model", nil
}

// conditionalQuestiongroupHandler offers the questiongroups listed in
// options_by_questiongroups that hold data in the questionnaire.
type conditionalQuestiongroupHandler struct{}

// QuestiongroupChoices returns ("", "-") followed by one choice per listed
// questiongroup with data, labelled with the questiongroup label.
func QuestiongroupChoices(cfg *schema.Configuration, locale string, data schema.QuestionnaireData, keywords []string) []schema.Choice {
	out := []schema.Choice{{Value: "", Label: "-"}}
	for _, kw := range keywords {
		if !data.HasContent(kw) {
			continue
		}
		label := kw
		if qg := cfg.QuestiongroupByKeyword(kw); qg != nil {
			label = qg.Label(locale)
		}
		out = append(out, schema.Choice{Value: kw, Label: label})
	}
	return out
}

func (conditionalQuestiongroupHandler) formFields(fc *fieldContext) ([]Field, error) {
	keywords, _ := fc.q.FormOptions().Strings("options_by_questiongroups")
	fc.attrs["data-key-keyword"] = fc.q.Keyword()
	fc.options["options_order"] = keywords
	f := fc.choiceField(ValueChoice, WidgetSelect, QuestiongroupChoices(fc.cfg, fc.locale, fc.data, keywords))
	f.Searchable = true
	return []Field{f}, nil
}

func (conditionalQuestiongroupHandler) detail(dc *detailContext) (string, error) {
	keywords, _ := dc.q.FormOptions().Strings("options_by_questiongroups")
	choices := QuestiongroupChoices(dc.cfg, dc.locale, dc.data, keywords)
	dc.values["key"] = dc.q.LabelView(dc.locale)
	dc.values["value"] = firstLabel(dc.lookupLabels(choices))
	return "textinput", nil
}
