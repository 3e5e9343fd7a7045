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
	"errors"
	"fmt"

	"github.com/AleutianAI/qcatschema/services/schema"
)

// =============================================================================
// Free text
// =============================================================================

// textHandler serves char, text and wms_layer. These are the translatable
// types: a translation pass yields original_, translation_ and old_ fields.
type textHandler struct {
	defaultMaxLength int
	multiline        bool
	wms              bool
}

func (h textHandler) formFields(fc *fieldContext) ([]Field, error) {
	maxLength := h.defaultMaxLength
	if n, ok := fc.q.MaxLength(); ok {
		maxLength = n
	}
	widget := WidgetTextInput
	if h.multiline {
		widget = WidgetTextarea
		fc.attrs["rows"] = fc.q.NumRows()
	}

	kw := fc.q.Keyword()
	if !fc.showTranslation {
		f := fc.field(kw, ValueString, widget)
		f.MaxLength = maxLength
		return []Field{f}, nil
	}

	original := fc.field(schema.PrefixOriginal+kw, ValueString, WidgetHidden)
	original.MaxLength = maxLength
	translation := fc.field(schema.PrefixTranslation+kw, ValueString, widget)
	translation.MaxLength = maxLength
	old := fc.field(schema.PrefixOld+kw, ValueString, WidgetHidden)
	return []Field{original, translation, old}, nil
}

func (h textHandler) detail(dc *detailContext) (string, error) {
	if h.wms {
		dc.values["layer"] = dc.value()
		dc.values["wms_url"] = dc.q.ViewOptions().String("wms_url")
		return "wms_layer", nil
	}
	dc.keyValue()
	return "textarea", nil
}

// plainHandler serves single-input fields without extras.
type plainHandler struct {
	widget         Widget
	detailTemplate string
}

func (h plainHandler) formFields(fc *fieldContext) ([]Field, error) {
	return []Field{fc.field(fc.q.Keyword(), ValueString, h.widget)}, nil
}

func (h plainHandler) detail(dc *detailContext) (string, error) {
	dc.keyValue()
	return h.detailTemplate, nil
}

type todoHandler struct{}

func (todoHandler) formFields(fc *fieldContext) ([]Field, error) {
	f := fc.field(fc.q.Keyword(), ValueString, WidgetReadOnly)
	f.Attrs = map[string]any{"readonly": "readonly", "value": "[TODO]"}
	return []Field{f}, nil
}

func (todoHandler) detail(dc *detailContext) (string, error) {
	dc.keyValue()
	return "textarea", nil
}

// numberHandler serves int and float. The bounds min and max accept "now"
// for the current year.
type numberHandler struct {
	float bool
}

func (h numberHandler) formFields(fc *fieldContext) ([]Field, error) {
	fc.options["field_type"] = string(fc.q.FieldType())
	if h.float {
		fc.attrs["step"] = "any"
	}
	year := fc.m.now().Year()
	for _, bound := range []string{"min", "max"} {
		if fc.attrs[bound] == "now" {
			fc.attrs[bound] = year
		}
	}
	return []Field{fc.field(fc.q.Keyword(), ValueString, WidgetNumber)}, nil
}

func (h numberHandler) detail(dc *detailContext) (string, error) {
	dc.keyValue()
	if !h.float {
		return "textarea", nil
	}
	decimals, _ := dc.q.FormOptions().Map("field_options").Get("decimals")
	dc.values["decimals"] = decimals
	return "float", nil
}

// =============================================================================
// Hidden references
// =============================================================================

// hiddenHandler serves fields edited by other means (pickers, maps,
// computed values). An empty detailTemplate hides the detail output.
type hiddenHandler struct {
	cssClass       string
	detailTemplate string
}

func (h hiddenHandler) formFields(fc *fieldContext) ([]Field, error) {
	f := fc.field(fc.q.Keyword(), ValueString, WidgetHidden)
	f.Label = ""
	f.CSSClass = h.cssClass
	f.Attrs = map[string]any{}
	return []Field{f}, nil
}

func (h hiddenHandler) detail(dc *detailContext) (string, error) {
	if h.detailTemplate == "" {
		return "", nil
	}
	dc.keyValue()
	return h.detailTemplate, nil
}

type mapHandler struct{}

func (mapHandler) formFields(fc *fieldContext) ([]Field, error) {
	return hiddenHandler{}.formFields(fc)
}

// detail links to the map view when the route resolves for the configuration
// named in view_options.
func (mapHandler) detail(dc *detailContext) (string, error) {
	dc.keyValue()
	var mapURL any
	if dc.m.links != nil && dc.identifier != "" {
		if url, ok := dc.m.links.MapURL(dc.q.ViewOptions().String("configuration"), dc.identifier); ok {
			mapURL = url
		}
	}
	dc.values["map_url"] = mapURL
	dc.values["questionnaire_identifier"] = dc.identifier
	return "map", nil
}

type userHandler struct{}

func (userHandler) formFields(fc *fieldContext) ([]Field, error) {
	return hiddenHandler{cssClass: "select-user-id"}.formFields(fc)
}

func (userHandler) detail(dc *detailContext) (string, error) {
	value := dc.value()
	if value == nil {
		return "", nil
	}
	id := fmt.Sprint(value)
	display, unknown := UnknownUser, true
	if dc.m.users != nil {
		u, err := dc.m.users.User(dc.ctx, id)
		switch {
		case err == nil && u != nil:
			display, unknown = u.DisplayName, false
		case err != nil && !errors.Is(err, ErrUserNotFound):
			return "", fmt.Errorf("resolve user %s: %w", id, err)
		}
	}
	dc.values["value"] = display
	dc.values["user_id"] = value
	dc.values["unknown_user"] = unknown
	return "user_display", nil
}

// =============================================================================
// Uploads
// =============================================================================

// fileHandler serves image and file. The form carries the upload control
// as file_<keyword> next to the hidden uid field.
type fileHandler struct {
	cssClass string
}

func (h fileHandler) formFields(fc *fieldContext) ([]Field, error) {
	if h.cssClass != "" {
		fc.attrs["css_class"] = h.cssClass
	}
	upload := fc.field("file_"+fc.q.Keyword(), ValueFile, WidgetFileUpload)
	uid := fc.field(fc.q.Keyword(), ValueString, WidgetHidden)
	uid.Label = ""
	uid.Attrs = map[string]any{}
	return []Field{upload, uid}, nil
}

func (fileHandler) detail(dc *detailContext) (string, error) {
	var fd *schema.FileData
	if uid, ok := dc.value().(string); ok && uid != "" && dc.m.files != nil {
		var err error
		fd, err = dc.m.files.FileData(dc.ctx, uid)
		if err != nil {
			return "", fmt.Errorf("resolve file %s: %w", uid, err)
		}
	}
	dc.values["key"] = dc.q.LabelView(dc.locale)
	dc.values["preview_image"] = fd.PreviewURL()
	if fd == nil {
		dc.values["content_type"] = nil
		dc.values["value"] = nil
	} else {
		dc.values["content_type"] = fd.ContentType
		dc.values["value"] = fd.URL
	}
	return "file", nil
}
