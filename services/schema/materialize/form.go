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
	"fmt"
	"maps"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// unccdBooleanKeys were stored as JSON booleans by an old UNCCD import
// instead of 0 and 1.
var unccdBooleanKeys = map[string]bool{
	"unccd_partnership":                      true,
	"unccd_property_rights":                  true,
	"unccd_local_stakeholders":               true,
	"unccd_population_involved":              true,
	"unccd_impact_biodiversity_conservation": true,
	"unccd_impact_cc_mitigation":             true,
	"unccd_impact_cc_adaptation":             true,
	"unccd_cost_benefit_analysis":            true,
	"unccd_technology_disseminated":          true,
	"unccd_incentives":                       true,
	"unccd_replicability":                    true,
}

// FormRequest holds the request-scoped inputs of a form.
type FormRequest struct {
	// Data is the stored or submitted questionnaire data.
	Data   schema.QuestionnaireData
	Locale string

	// OriginalLocale is the source locale shown in a translation pass.
	// Defaults to schema.DefaultLocale.
	OriginalLocale  string
	Mode            Mode
	ShowTranslation bool

	// InitialLinks lists linked questionnaires by configuration code. Each
	// link carries at least an "id".
	InitialLinks map[string][]map[string]any

	// Category restricts the form to one category (one edit step).
	Category string
}

// Form is a materialized questionnaire form.
type Form struct {
	Code       string         `json:"code"`
	Edition    string         `json:"edition"`
	Locale     string         `json:"locale"`
	Categories []CategoryForm `json:"categories"`
}

type CategoryForm struct {
	Keyword       string            `json:"keyword"`
	Config        map[string]any    `json:"config"`
	Subcategories []SubcategoryForm `json:"subcategories"`
}

type SubcategoryForm struct {
	Keyword        string              `json:"keyword"`
	Config         map[string]any      `json:"config"`
	Questiongroups []QuestiongroupForm `json:"questiongroups,omitempty"`
	Subcategories  []SubcategoryForm   `json:"subcategories,omitempty"`
}

// QuestiongroupForm is a repeatable set of fields. Instances holds at least
// MinNum entries, each with the fields bound to their initial values.
type QuestiongroupForm struct {
	Keyword   string         `json:"keyword"`
	Config    map[string]any `json:"config"`
	Fields    []Field        `json:"fields"`
	MinNum    int            `json:"min_num"`
	MaxNum    int            `json:"max_num"`
	Instances []FormInstance `json:"instances"`
}

type FormInstance struct {
	Initial map[string]any `json:"initial,omitempty"`
	Fields  []Field        `json:"fields"`
}

// FieldCount returns the number of fields per instance across the form.
func (f *Form) FieldCount() int {
	n := 0
	var walk func(scs []SubcategoryForm)
	walk = func(scs []SubcategoryForm) {
		for _, sc := range scs {
			for _, qg := range sc.Questiongroups {
				n += len(qg.Fields)
			}
			walk(sc.Subcategories)
		}
	}
	for _, c := range f.Categories {
		walk(c.Subcategories)
	}
	return n
}

// Form materializes the form of cfg, or of one category when req.Category
// is set.
func (m *Materializer) Form(ctx context.Context, cfg *schema.Configuration, req FormRequest) (out *Form, err error) {
	ctx, span := tracer.Start(ctx, "materialize.Form", trace.WithAttributes(
		attribute.String("configuration_code", cfg.Code()),
		attribute.String("edition", cfg.Edition()),
		attribute.String("category", req.Category),
		attribute.Bool("show_translation", req.ShowTranslation),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if req.Locale == "" {
		req.Locale = schema.DefaultLocale
	}
	if req.OriginalLocale == "" {
		req.OriginalLocale = schema.DefaultLocale
	}
	if req.Mode == "" {
		req.Mode = ModeEdit
	}
	if req.Data == nil {
		req.Data = schema.QuestionnaireData{}
	}

	out = &Form{Code: cfg.Code(), Edition: cfg.Edition(), Locale: req.Locale, Categories: []CategoryForm{}}
	found := false
	for _, s := range cfg.Sections() {
		for _, cat := range s.Categories() {
			if req.Category != "" && cat.Keyword() != req.Category {
				continue
			}
			found = true
			cf, err := m.categoryForm(ctx, cfg, cat, &req)
			if err != nil {
				return nil, err
			}
			out.Categories = append(out.Categories, cf)
		}
	}
	if req.Category != "" && !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, req.Category)
	}

	span.SetAttributes(attribute.Int("fields", out.FieldCount()))
	m.logger.Debug("form materialized",
		"configuration_code", cfg.Code(),
		"edition", cfg.Edition(),
		"category", req.Category,
		"fields", out.FieldCount())
	return out, nil
}

func (m *Materializer) categoryForm(ctx context.Context, cfg *schema.Configuration, cat *schema.Category, req *FormRequest) (CategoryForm, error) {
	cf := CategoryForm{
		Keyword: cat.Keyword(),
		Config: map[string]any{
			"label":       cat.Label(req.Locale),
			"numbering":   cat.Numbering(),
			"helptext":    cat.Helptext(req.Locale),
			"has_changes": false,
		},
	}
	if c := cat.ViewOptions().String("configuration"); c != "" {
		cf.Config["configuration"] = c
	}
	for _, sc := range cat.Subcategories() {
		sf, err := m.subcategoryForm(ctx, cfg, sc, req)
		if err != nil {
			return CategoryForm{}, err
		}
		cf.Subcategories = append(cf.Subcategories, sf)
	}
	return cf, nil
}

func (m *Materializer) subcategoryForm(ctx context.Context, cfg *schema.Configuration, sc *schema.Subcategory, req *FormRequest) (SubcategoryForm, error) {
	config := sc.FormOptions().Raw()
	if t := sc.FormOptions().String("questiongroup_conditions_template"); t != "" {
		config["questiongroup_conditions_template_path"] = "form/field/" + t + ".html"
	}
	config["label"] = sc.Label(req.Locale)
	config["keyword"] = sc.Keyword()
	config["helptext"] = sc.Helptext(req.Locale)
	config["form_template"] = "form/subcategory/" + sc.FormOptions().StringOr("template", "default") + ".html"
	config["has_changes"] = false

	sf := SubcategoryForm{Keyword: sc.Keyword(), Config: config}
	for _, qg := range sc.OwnQuestiongroups() {
		qf, err := m.questiongroupForm(ctx, cfg, qg, req)
		if err != nil {
			return SubcategoryForm{}, err
		}
		sf.Questiongroups = append(sf.Questiongroups, qf)
		config["next_level"] = "questiongroups"
	}
	for _, child := range sc.Subcategories() {
		cf, err := m.subcategoryForm(ctx, cfg, child, req)
		if err != nil {
			return SubcategoryForm{}, err
		}
		sf.Subcategories = append(sf.Subcategories, cf)
		config["next_level"] = "subcategories"
	}

	if grouping := sc.TableGrouping(); len(grouping) > 0 {
		headers, helptexts := sc.TableHeaders(req.Locale)
		config["table_grouping"] = grouping
		config["table_headers"] = headers
		config["table_helptexts"] = helptexts
	}
	return sf, nil
}

func (m *Materializer) questiongroupForm(ctx context.Context, cfg *schema.Configuration, qg *schema.Questiongroup, req *FormRequest) (QuestiongroupForm, error) {
	var fields []Field
	templates := map[string]string{}
	options := map[string]map[string]any{}
	for _, q := range qg.Questions() {
		qFields, err := m.questionFields(ctx, cfg, q, req)
		if err != nil {
			return QuestiongroupForm{}, err
		}
		for _, f := range qFields {
			templates[f.Name] = f.Template
			options[f.Name] = f.Options
		}
		fields = append(fields, qFields...)
	}
	if qg.Numbered() != "" {
		fields = append(fields, Field{
			Name:      schema.OrderField,
			Type:      schema.FieldInt,
			ValueKind: ValueInt,
			Widget:    WidgetHidden,
			Label:     "order",
			Attrs:     map[string]any{},
			Options:   map[string]any{},
		})
	}

	template := "form/questiongroup/" + qg.FormOptions().StringOr("template", "default") + ".html"
	if t := qg.FormOptions().String("template"); strings.HasSuffix(t, ".html") {
		template = t
	}
	config := qg.FormOptions().Raw()
	config["keyword"] = qg.Keyword()
	config["helptext"] = qg.Helptext(req.Locale)
	config["label"] = qg.Label(req.Locale)
	config["templates"] = templates
	config["options"] = options
	config["questiongroup_condition"] = qg.QuestiongroupCondition()
	config["numbered"] = qg.Numbered()
	config["detail_level"] = qg.DetailLevel()
	config["template"] = template
	config["has_changes"] = false

	initial := initialInstances(qg, req.Data[qg.Keyword()])
	if link := qg.Link(); link != "" {
		links := req.InitialLinks[link]
		initial = make([]map[string]any, 0, len(links))
		for _, l := range links {
			initial = append(initial, map[string]any{"link_id": l["id"]})
		}
		var searchURL any
		if m.links != nil {
			if url, ok := m.links.LinkSearchURL(link); ok {
				searchURL = url
			}
		}
		config["search_url"] = searchURL
		config["initial_links"] = links
	}
	coerceLegacyBooleans(initial)

	qf := QuestiongroupForm{
		Keyword: qg.Keyword(),
		Config:  config,
		Fields:  fields,
		MinNum:  qg.MinNum(),
		MaxNum:  qg.MaxNum(),
	}
	count := len(initial)
	if count < qg.MinNum() {
		count = qg.MinNum()
	}
	for i := 0; i < count; i++ {
		var init map[string]any
		if i < len(initial) {
			init = initial[i]
		}
		qf.Instances = append(qf.Instances, bindInstance(fields, init, req))
	}
	return qf, nil
}

// questionFields builds the fields of one question through its handler.
func (m *Materializer) questionFields(ctx context.Context, cfg *schema.Configuration, q *schema.Question, req *FormRequest) ([]Field, error) {
	h, err := handlerFor(q.FieldType())
	if err != nil {
		return nil, err
	}

	template := "default"
	switch q.FieldType() {
	case schema.FieldMeasure:
		template = "inline_3"
	case schema.FieldImageCheckbox:
		template = "no_label"
	}
	template = "form/question/" + q.FormOptions().StringOr("template", template) + ".html"

	options := q.FormOptions().Raw()
	options["helptext"] = q.Helptext(req.Locale)
	options["helptext_choices"] = q.ChoiceHelptexts(req.Locale)
	options["additional_translations"] = q.AdditionalTranslations(req.Locale)
	if conds := q.RawQuestionConditions(); len(conds) > 0 {
		options["data-question-conditions"] = conds
	}
	if c := q.QuestionCondition(); c != "" {
		options["data-question-condition"] = c
	}

	attrs := map[string]any{}
	if req.Mode == ModeView {
		attrs["disabled"] = "disabled"
	}
	if q.FormOptions().String("label_position") == "placeholder" {
		attrs["placeholder"] = q.Label(req.Locale)
	}
	for k, v := range q.FormOptions().Map("field_options").Raw() {
		attrs[k] = v
	}
	attrs["conditional"] = q.Conditional()
	attrs["questiongroup_conditions"] = strings.Join(q.RawQuestiongroupConditions(), ",")
	if q.Questiongroup().InheritedConfiguration() != "" {
		attrs["disabled"] = "disabled"
	}

	return h.formFields(&fieldContext{
		ctx:             ctx,
		m:               m,
		q:               q,
		cfg:             cfg,
		locale:          req.Locale,
		showTranslation: req.ShowTranslation,
		data:            req.Data,
		attrs:           attrs,
		options:         options,
		template:        template,
	})
}

// initialInstances copies the stored instances of qg. The placeholder [{}]
// means no data; numbered questiongroups are ordered by OrderField.
func initialInstances(qg *schema.Questiongroup, stored []map[string]any) []map[string]any {
	if len(stored) == 0 || schema.IsPlaceholderInstances(stored) {
		return nil
	}
	out := make([]map[string]any, len(stored))
	for i, inst := range stored {
		out[i] = lookup.CloneMap(inst)
	}
	if qg.Numbered() != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return orderOf(out[i]) < orderOf(out[j])
		})
	}
	return out
}

func orderOf(inst map[string]any) float64 {
	switch n := inst[schema.OrderField].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		var f float64
		if _, err := fmt.Sscan(n, &f); err == nil {
			return f
		}
	}
	return 0
}

// coerceLegacyBooleans rewrites JSON booleans of the UNCCD keys to 0 and 1.
func coerceLegacyBooleans(instances []map[string]any) {
	for _, inst := range instances {
		for k, v := range inst {
			if !unccdBooleanKeys[k] {
				continue
			}
			if b, ok := v.(bool); ok {
				if b {
					inst[k] = 1
				} else {
					inst[k] = 0
				}
			}
		}
	}
}

// bindInstance copies fields with their initial values from init.
func bindInstance(fields []Field, init map[string]any, req *FormRequest) FormInstance {
	inst := FormInstance{Initial: init, Fields: make([]Field, len(fields))}
	for i, f := range fields {
		f.Attrs = maps.Clone(f.Attrs)
		f.Options = maps.Clone(f.Options)
		f.Initial = initialValue(f, init, req)
		inst.Fields[i] = f
	}
	return inst
}

func initialValue(f Field, init map[string]any, req *FormRequest) any {
	if init == nil || f.ValueKind == ValueFile {
		return nil
	}
	if !f.Type.Translatable() || f.Question == "" {
		return init[f.Name]
	}
	value := init[f.Question]
	if strings.HasPrefix(f.Name, schema.PrefixOriginal) {
		return localized(value, req.OriginalLocale)
	}
	return localized(value, req.Locale)
}

// localized picks the text of locale from a translated value. Plain
// strings pass through.
func localized(value any, locale string) any {
	switch v := value.(type) {
	case map[string]any:
		if s, ok := v[locale]; ok {
			return s
		}
		return nil
	default:
		return value
	}
}
