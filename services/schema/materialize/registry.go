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
	"context"
	"sort"

	"github.com/AleutianAI/qcatschema/services/schema"
)

// Widget names the input control of a form field.
type Widget string

const (
	WidgetTextInput       Widget = "text_input"
	WidgetTextarea        Widget = "textarea"
	WidgetHidden          Widget = "hidden"
	WidgetDate            Widget = "date"
	WidgetNumber          Widget = "number"
	WidgetRadio           Widget = "radio"
	WidgetSelect          Widget = "select"
	WidgetCheckbox        Widget = "checkbox"
	WidgetMeasure         Widget = "measure"
	WidgetMeasureStacked  Widget = "measure_stacked"
	WidgetMeasureCheckbox Widget = "measure_checkbox"
	WidgetMultiSelect     Widget = "multi_select"
	WidgetImageCheckbox   Widget = "image_checkbox"
	WidgetFileUpload      Widget = "file_upload"
	WidgetReadOnly        Widget = "readonly"
)

// Value kinds a field accepts on submission.
const (
	ValueString   = "string"
	ValueInt      = "int"
	ValueChoice   = "choice"
	ValueMultiple = "multiple"
	ValueFile     = "file"
)

// Field describes one backing form field. A question yields one field, or
// three in a translation pass for translatable types, or two for uploads.
type Field struct {
	Name       string           `json:"name"`
	Question   string           `json:"question"`
	Type       schema.FieldType `json:"type"`
	ValueKind  string           `json:"value_kind"`
	Widget     Widget           `json:"widget"`
	Label      string           `json:"label,omitempty"`
	Required   bool             `json:"required"`
	MaxLength  int              `json:"max_length,omitempty"`
	Choices    []schema.Choice  `json:"choices,omitempty"`
	Images     []string         `json:"images,omitempty"`
	Searchable bool             `json:"searchable,omitempty"`
	CSSClass   string           `json:"css_class,omitempty"`

	// WidgetTemplate overrides the default template of the widget.
	WidgetTemplate string `json:"widget_template,omitempty"`

	// Template renders the question, Attrs go onto the input element and
	// Options is the widget configuration bag.
	Template string         `json:"template"`
	Attrs    map[string]any `json:"attrs"`
	Options  map[string]any `json:"options"`

	// Initial is set on fields bound to an instance.
	Initial any `json:"initial,omitempty"`
}

// fieldContext carries what form handlers need for one question.
type fieldContext struct {
	ctx             context.Context
	m               *Materializer
	q               *schema.Question
	cfg             *schema.Configuration
	locale          string
	showTranslation bool
	data            schema.QuestionnaireData

	// attrs and options are fresh per question and owned by the handler.
	attrs    map[string]any
	options  map[string]any
	template string
}

// field returns a field for the question with the shared attributes set.
func (fc *fieldContext) field(name string, kind string, w Widget) Field {
	return Field{
		Name:      name,
		Question:  fc.q.Keyword(),
		Type:      fc.q.FieldType(),
		ValueKind: kind,
		Widget:    w,
		Label:     fc.q.Label(fc.locale),
		Required:  fc.q.FormOptions().Bool("required"),
		Template:  fc.template,
		Attrs:     fc.attrs,
		Options:   fc.options,
	}
}

// detailContext carries what detail handlers need for one question of one
// instance.
type detailContext struct {
	ctx          context.Context
	m            *Materializer
	q            *schema.Question
	cfg          *schema.Configuration
	locale       string
	instance     map[string]any
	data         schema.QuestionnaireData
	identifier   string
	measureLabel string

	// values is the template context, seeded with view_options.
	values map[string]any

	// labels and choices are set by handlers that look up choice labels.
	labels  []string
	choices []schema.Choice
}

// fieldHandler materializes one field type. Every schema.FieldType has
// exactly one handler.
type fieldHandler interface {
	formFields(fc *fieldContext) ([]Field, error)

	// detail returns the template name and fills dc.values. An empty name
	// means the question has no detail output.
	detail(dc *detailContext) (string, error)
}

var handlers = map[schema.FieldType]fieldHandler{
	schema.FieldChar:      textHandler{defaultMaxLength: schema.DefaultCharMaxLength},
	schema.FieldWMSLayer:  textHandler{defaultMaxLength: schema.DefaultCharMaxLength, wms: true},
	schema.FieldText:      textHandler{defaultMaxLength: schema.DefaultTextMaxLength, multiline: true},
	schema.FieldLinkVideo: plainHandler{widget: WidgetTextInput, detailTemplate: "video"},
	schema.FieldDate:      plainHandler{widget: WidgetDate, detailTemplate: "textarea"},
	schema.FieldTodo:      todoHandler{},
	schema.FieldInt:       numberHandler{},
	schema.FieldFloat:     numberHandler{float: true},

	schema.FieldUserID:      userHandler{},
	schema.FieldLinkID:      hiddenHandler{cssClass: "select-link-id is-cleared"},
	schema.FieldHidden:      hiddenHandler{detailTemplate: "hidden"},
	schema.FieldDisplayOnly: hiddenHandler{detailTemplate: "textarea"},
	schema.FieldMap:         mapHandler{},

	schema.FieldBool:                           boolHandler{},
	schema.FieldMeasure:                        measureHandler{},
	schema.FieldSelect:                         selectHandler{},
	schema.FieldSelectType:                     selectHandler{searchable: true},
	schema.FieldSelectConditionalCustom:        selectHandler{searchable: true, disabled: true},
	schema.FieldRadio:                          checkboxHandler{widget: WidgetRadio, kind: ValueChoice},
	schema.FieldCheckbox:                       checkboxHandler{widget: WidgetCheckbox, kind: ValueMultiple},
	schema.FieldCBBool:                         checkboxHandler{widget: WidgetCheckbox, kind: ValueMultiple},
	schema.FieldMultiSelect:                    checkboxHandler{widget: WidgetMultiSelect, kind: ValueMultiple},
	schema.FieldImageCheckbox:                  imageCheckboxHandler{},
	schema.FieldSelectModel:                    selectModelHandler{},
	schema.FieldSelectConditionalQuestiongroup: conditionalQuestiongroupHandler{},

	schema.FieldImage: fileHandler{},
	schema.FieldFile:  fileHandler{cssClass: "upload-file"},
}

// handlerFor returns the handler of t, or an UnknownFieldTypeError.
func handlerFor(t schema.FieldType) (fieldHandler, error) {
	h, ok := handlers[t]
	if !ok {
		return nil, &schema.UnknownFieldTypeError{Type: t}
	}
	return h, nil
}

// RegisteredFieldTypes returns the field types with a handler, sorted.
func RegisteredFieldTypes() []schema.FieldType {
	out := make([]schema.FieldType, 0, len(handlers))
	for t := range handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
