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

// FieldType is the type of a Question, taken from the "type" entry of its
// Key configuration.
type FieldType string

const (
	FieldBool                           FieldType = "bool"
	FieldCBBool                         FieldType = "cb_bool"
	FieldChar                           FieldType = "char"
	FieldCheckbox                       FieldType = "checkbox"
	FieldMultiSelect                    FieldType = "multi_select"
	FieldDate                           FieldType = "date"
	FieldFile                           FieldType = "file"
	FieldHidden                         FieldType = "hidden"
	FieldImage                          FieldType = "image"
	FieldImageCheckbox                  FieldType = "image_checkbox"
	FieldLinkVideo                      FieldType = "link_video"
	FieldMeasure                        FieldType = "measure"
	FieldRadio                          FieldType = "radio"
	FieldSelect                         FieldType = "select"
	FieldSelectType                     FieldType = "select_type"
	FieldText                           FieldType = "text"
	FieldTodo                           FieldType = "todo"
	FieldUserID                         FieldType = "user_id"
	FieldLinkID                         FieldType = "link_id"
	FieldInt                            FieldType = "int"
	FieldFloat                          FieldType = "float"
	FieldMap                            FieldType = "map"
	FieldSelectModel                    FieldType = "select_model"
	FieldSelectConditionalQuestiongroup FieldType = "select_conditional_questiongroup"
	FieldSelectConditionalCustom        FieldType = "select_conditional_custom"
	FieldDisplayOnly                    FieldType = "display_only"
	FieldWMSLayer                       FieldType = "wms_layer"
)

// DefaultFieldType applies when a Key configuration has no "type".
const DefaultFieldType = FieldChar

var fieldTypes = []FieldType{
	FieldBool, FieldCBBool, FieldChar, FieldCheckbox, FieldMultiSelect,
	FieldDate, FieldFile, FieldHidden, FieldImage, FieldImageCheckbox,
	FieldLinkVideo, FieldMeasure, FieldRadio, FieldSelect, FieldSelectType,
	FieldText, FieldTodo, FieldUserID, FieldLinkID, FieldInt, FieldFloat,
	FieldMap, FieldSelectModel, FieldSelectConditionalQuestiongroup,
	FieldSelectConditionalCustom, FieldDisplayOnly, FieldWMSLayer,
}

// FieldTypes returns every valid field type.
func FieldTypes() []FieldType {
	return append([]FieldType(nil), fieldTypes...)
}

// ParseFieldType validates s. An empty string yields DefaultFieldType.
func ParseFieldType(s string) (FieldType, bool) {
	if s == "" {
		return DefaultFieldType, true
	}
	for _, ft := range fieldTypes {
		if string(ft) == s {
			return ft, true
		}
	}
	return "", false
}

// RequiresValues reports whether the type needs at least one predefined
// Value.
func (t FieldType) RequiresValues() bool {
	switch t {
	case FieldMeasure, FieldCheckbox, FieldImageCheckbox, FieldSelectType,
		FieldSelect, FieldRadio, FieldSelectConditionalCustom, FieldMultiSelect:
		return true
	}
	return false
}

// HasEmptyChoice reports whether the choice list starts with the ("", "-")
// placeholder.
func (t FieldType) HasEmptyChoice() bool {
	switch t {
	case FieldSelectType, FieldSelect, FieldSelectConditionalCustom:
		return true
	}
	return false
}

// Translatable reports whether the field holds free text that is edited
// per locale.
func (t FieldType) Translatable() bool {
	switch t {
	case FieldChar, FieldText, FieldWMSLayer:
		return true
	}
	return false
}

// LooksUpLabels reports whether stored values of this type are choice keys
// that list and raw data views replace with their labels.
func (t FieldType) LooksUpLabels() bool {
	switch t {
	case FieldBool, FieldMeasure, FieldCheckbox, FieldImageCheckbox, FieldSelectType, FieldRadio:
		return true
	}
	return false
}

// SingleValued reports whether list data keeps only the first label.
func (t FieldType) SingleValued() bool {
	switch t {
	case FieldBool, FieldMeasure, FieldSelectType:
		return true
	}
	return false
}
