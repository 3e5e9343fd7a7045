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
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/qcatschema/services/schema"
)

// labelLookupTypes resolve additional_data answers to choice labels.
var labelLookupTypes = map[schema.FieldType]bool{
	schema.FieldBool:          true,
	schema.FieldMeasure:       true,
	schema.FieldCheckbox:      true,
	schema.FieldImageCheckbox: true,
	schema.FieldSelectType:    true,
	schema.FieldRadio:         true,
}

// DetailsRequest holds the request-scoped inputs of a detail view.
type DetailsRequest struct {
	Data   schema.QuestionnaireData
	Locale string

	// Identifier is the questionnaire code. Defaults to "new".
	Identifier string

	// Links lists linked questionnaires by configuration code.
	Links map[string][]map[string]any

	// Metadata is shown by categories with view_options.with_metadata.
	Metadata map[string]any

	// Category restricts the output to one category.
	Category string
}

// Details is the read-only view of a questionnaire. Nodes without content
// are omitted.
type Details struct {
	Code       string          `json:"code"`
	Edition    string          `json:"edition"`
	HasContent bool            `json:"has_content"`
	Sections   []SectionDetail `json:"sections"`
}

// FieldCount returns the number of rendered fields across every instance.
func (d *Details) FieldCount() int {
	n := 0
	var walk func(scs []SubcategoryDetail)
	walk = func(scs []SubcategoryDetail) {
		for _, sc := range scs {
			for _, qg := range sc.Questiongroups {
				for _, inst := range qg.Instances {
					n += len(inst)
				}
			}
			walk(sc.Subcategories)
		}
	}
	for _, s := range d.Sections {
		for _, c := range s.Categories {
			walk(c.Subcategories)
		}
	}
	return n
}

type SectionDetail struct {
	Keyword         string           `json:"keyword"`
	Label           string           `json:"label"`
	Categories      []CategoryDetail `json:"categories"`
	MediaContent    []schema.Image   `json:"media_content,omitempty"`
	MediaAdditional map[string]any   `json:"media_additional,omitempty"`
	HTML            string           `json:"html,omitempty"`
}

// CategoryDetail carries the completeness of the category next to its
// subcategories.
type CategoryDetail struct {
	Keyword        string              `json:"keyword"`
	Label          string              `json:"label"`
	Numbering      string              `json:"numbering"`
	Configuration  string              `json:"configuration"`
	Identifier     string              `json:"questionnaire_identifier"`
	Complete       int                 `json:"complete"`
	Total          int                 `json:"total"`
	Progress       int                 `json:"progress"`
	Subcategories  []SubcategoryDetail `json:"subcategories"`
	RawData        map[string]any      `json:"raw_data,omitempty"`
	AdditionalData map[string]any      `json:"additional_data,omitempty"`
	Metadata       map[string]any      `json:"metadata,omitempty"`
	HTML           string              `json:"html,omitempty"`
}

type SubcategoryDetail struct {
	Keyword         string                `json:"keyword"`
	Label           string                `json:"label"`
	Numbering       string                `json:"numbering"`
	Helptext        string                `json:"helptext"`
	Config          map[string]any        `json:"config"`
	Questiongroups  []QuestiongroupDetail `json:"questiongroups,omitempty"`
	TableGroups     []TableGroup          `json:"table_groups,omitempty"`
	Subcategories   []SubcategoryDetail   `json:"subcategories,omitempty"`
	MediaContent    []schema.Image        `json:"media_content,omitempty"`
	MediaAdditional map[string]any        `json:"media_additional,omitempty"`
	HTML            string                `json:"html,omitempty"`
}

// QuestiongroupDetail holds the rendered questions of every instance.
type QuestiongroupDetail struct {
	Keyword      string                      `json:"keyword"`
	Label        string                      `json:"label"`
	Config       map[string]any              `json:"config"`
	Instances    [][]*FieldDetail            `json:"instances"`
	Links        map[string][]map[string]any `json:"links,omitempty"`
	RawQuestions []map[string]any            `json:"raw_questions,omitempty"`
	Keys         []string                    `json:"keys,omitempty"`
	HTML         string                      `json:"html,omitempty"`
}

// TableGroup is a questiongroup shown as rows of a table. Every row lists
// the cells in question order.
type TableGroup struct {
	Keyword string         `json:"qg_keyword"`
	Label   string         `json:"label"`
	Config  map[string]any `json:"config"`
	Rows    [][]TableCell  `json:"rows"`
}

type TableCell struct {
	Question string `json:"question"`
	Label    string `json:"label"`
	Values   []any  `json:"values"`
}

// FieldDetail is the detail output of one question. Template "raw" skips
// rendering and leaves HTML empty.
type FieldDetail struct {
	Question string         `json:"question"`
	Template string         `json:"template"`
	Values   map[string]any `json:"values"`
	HTML     string         `json:"html,omitempty"`
}

// MeasureLevel is one bar of the stacked layout.
type MeasureLevel struct {
	Level int    `json:"level"`
	Label string `json:"label"`
}

// value returns the stored answer, localized for translatable types.
func (dc *detailContext) value() any {
	v := dc.instance[dc.q.Keyword()]
	if !dc.q.FieldType().Translatable() {
		return v
	}
	texts, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if s, ok := texts[dc.locale]; ok {
		return s
	}
	if s, ok := texts[schema.DefaultLocale]; ok {
		return s
	}
	locales := make([]string, 0, len(texts))
	for l := range texts {
		locales = append(locales, l)
	}
	if len(locales) == 0 {
		return nil
	}
	sort.Strings(locales)
	return texts[locales[0]]
}

func (dc *detailContext) keyValue() {
	dc.values["key"] = dc.q.LabelView(dc.locale)
	dc.values["value"] = dc.value()
}

// sub returns a context for another question of the same instance.
func (dc *detailContext) sub(q *schema.Question) *detailContext {
	return &detailContext{
		ctx:        dc.ctx,
		m:          dc.m,
		q:          q,
		cfg:        dc.cfg,
		locale:     dc.locale,
		instance:   dc.instance,
		data:       dc.data,
		identifier: dc.identifier,
	}
}

// materialize runs the handler of the question. It returns nil when the
// question has no detail output.
func (dc *detailContext) materialize() (*FieldDetail, error) {
	h, err := handlerFor(dc.q.FieldType())
	if err != nil {
		return nil, err
	}
	view := dc.q.ViewOptions()
	dc.values = view.Raw()
	dc.values["additional_translations"] = dc.q.AdditionalTranslations(dc.locale)

	name, err := h.detail(dc)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}

	if dc.q.FormOptions().String("layout") == "stacked" || view.String("layout") == "stacked" {
		selected := map[string]bool{}
		for _, l := range dc.labels {
			selected[l] = true
		}
		all := make([]MeasureLevel, 0, len(dc.choices))
		for _, c := range dc.choices {
			level := 1
			if selected[c.Label] {
				level = MaxMeasureLevel
			}
			all = append(all, MeasureLevel{Level: level, Label: c.Label})
		}
		dc.values["all_values"] = all
		dc.values["label_text_direction"] = view.String("label_text_direction")
	}

	if t := view.String("template"); t != "" {
		name = t
	}
	fd := &FieldDetail{Question: dc.q.Keyword(), Template: name, Values: dc.values}
	if name == "raw" {
		return fd, nil
	}
	html, err := dc.m.render(dc.ctx, "details/field/"+name+".html", dc.values)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", dc.q.Keyword(), err)
	}
	fd.HTML = html
	return fd, nil
}

// detailRun holds the state shared by one Details call.
type detailRun struct {
	ctx    context.Context
	m      *Materializer
	cfg    *schema.Configuration
	req    *DetailsRequest
	images *schema.ImageData
}

// imageData collects the gallery once per call.
func (r *detailRun) imageData() (schema.ImageData, error) {
	if r.images == nil {
		data, err := r.cfg.ImageData(r.ctx, r.req.Locale, r.req.Data, r.m.files)
		if err != nil {
			return schema.ImageData{}, fmt.Errorf("collect images: %w", err)
		}
		r.images = &data
	}
	return *r.images, nil
}

// Details materializes the read-only view of req.Data.
func (m *Materializer) Details(ctx context.Context, cfg *schema.Configuration, req DetailsRequest) (out *Details, err error) {
	ctx, span := tracer.Start(ctx, "materialize.Details", trace.WithAttributes(
		attribute.String("configuration_code", cfg.Code()),
		attribute.String("edition", cfg.Edition()),
		attribute.String("category", req.Category),
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
	if req.Identifier == "" {
		req.Identifier = "new"
	}
	if req.Data == nil {
		req.Data = schema.QuestionnaireData{}
	}
	if req.Category != "" && cfg.Category(req.Category) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, req.Category)
	}

	r := &detailRun{ctx: ctx, m: m, cfg: cfg, req: &req}
	out = &Details{Code: cfg.Code(), Edition: cfg.Edition(), Sections: []SectionDetail{}}
	for _, s := range cfg.Sections() {
		sd, ok, err := r.section(s)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Sections = append(out.Sections, sd)
			out.HasContent = true
		}
	}

	span.SetAttributes(attribute.Bool("has_content", out.HasContent))
	m.logger.Debug("details materialized",
		"configuration_code", cfg.Code(),
		"edition", cfg.Edition(),
		"identifier", req.Identifier,
		"has_content", out.HasContent)
	return out, nil
}

func (r *detailRun) section(s *schema.Section) (SectionDetail, bool, error) {
	sd := SectionDetail{Keyword: s.Keyword(), Label: s.Label(r.req.Locale), Categories: []CategoryDetail{}}
	for _, cat := range s.Categories() {
		if r.req.Category != "" && cat.Keyword() != r.req.Category {
			continue
		}
		cd, ok, err := r.category(cat)
		if err != nil {
			return SectionDetail{}, false, err
		}
		if ok {
			sd.Categories = append(sd.Categories, cd)
		}
	}
	if len(sd.Categories) == 0 {
		return SectionDetail{}, false, nil
	}

	if s.MediaGallery() {
		images, err := r.imageData()
		if err != nil {
			return SectionDetail{}, false, err
		}
		sd.MediaContent = images.Content
		sd.MediaAdditional = images.Additional
	}

	html, err := r.m.render(r.ctx, nodeTemplate("section", s.ViewOptions()), sd)
	if err != nil {
		return SectionDetail{}, false, fmt.Errorf("render section %s: %w", s.Keyword(), err)
	}
	sd.HTML = html
	return sd, true, nil
}

func (r *detailRun) category(cat *schema.Category) (CategoryDetail, bool, error) {
	locale := r.req.Locale
	cd := CategoryDetail{
		Keyword:       cat.Keyword(),
		Label:         cat.Label(locale),
		Numbering:     cat.Numbering(),
		Configuration: cat.ViewOptions().StringOr("configuration", r.cfg.Code()),
		Identifier:    r.req.Identifier,
		Total:         len(cat.CountedSubcategories()),
		Subcategories: []SubcategoryDetail{},
	}
	for _, sc := range cat.Subcategories() {
		sd, ok, err := r.subcategory(sc)
		if err != nil {
			return CategoryDetail{}, false, err
		}
		if ok {
			cd.Subcategories = append(cd.Subcategories, sd)
			cd.Complete++
		}
	}
	if cd.Complete == 0 {
		return CategoryDetail{}, false, nil
	}
	if cd.Total > 0 {
		cd.Progress = int(float64(cd.Complete) / float64(cd.Total) * 100)
	}

	view := cat.ViewOptions()
	if view.Bool("with_metadata") {
		cd.Metadata = r.req.Metadata
	}
	if view.Bool("use_raw_data") {
		cd.RawData = cat.RawData(locale, r.req.Data)
	}
	if additional := view.Map("additional_data"); additional.Len() > 0 {
		cd.AdditionalData = r.additionalData(additional)
	}

	html, err := r.m.render(r.ctx, nodeTemplate("category", view), cd)
	if err != nil {
		return CategoryDetail{}, false, fmt.Errorf("render category %s: %w", cat.Keyword(), err)
	}
	cd.HTML = html
	return cd, true, nil
}

// additionalData collects answers of questions anywhere in the
// configuration, keyed by question keyword with a label_<keyword> entry.
func (r *detailRun) additionalData(keys schema.Options) map[string]any {
	out := map[string]any{}
	for _, qg := range r.cfg.Questiongroups() {
		wanted, ok := keys.Strings(qg.Keyword())
		if !ok {
			continue
		}
		for _, key := range wanted {
			q := qg.Question(key)
			if q == nil {
				continue
			}
			entry := []any{}
			for _, inst := range r.req.Data[qg.Keyword()] {
				v, ok := inst[key]
				if !ok || v == nil {
					continue
				}
				if labelLookupTypes[q.FieldType()] {
					labels := q.LookupLabels(r.req.Locale, schema.AsList(v))
					list := make([]any, len(labels))
					for i, l := range labels {
						list[i] = l
					}
					v = list
				}
				entry = append(entry, v)
			}
			out[key] = entry
			out["label_"+key] = q.LabelView(r.req.Locale)
		}
	}
	return out
}

func (r *detailRun) subcategory(sc *schema.Subcategory) (SubcategoryDetail, bool, error) {
	locale := r.req.Locale
	sd := SubcategoryDetail{
		Keyword:   sc.Keyword(),
		Label:     sc.LabelView(locale),
		Numbering: sc.FormOptions().String("numbering"),
		Helptext:  sc.Helptext(locale),
		Config:    sc.ViewOptions().Raw(),
	}
	hasContent := false

	for _, qg := range sc.OwnQuestiongroups() {
		var links map[string][]map[string]any
		if sc.IsLinkQuestiongroup(qg.Keyword()) {
			if code, ok := qg.LinkCode(); ok && len(r.req.Links[code]) > 0 {
				links = map[string][]map[string]any{code: r.req.Links[code]}
			}
		}
		instances := r.req.Data[qg.Keyword()]
		if !r.req.Data.HasContent(qg.Keyword()) && links == nil {
			continue
		}
		hasContent = true

		if sc.InTableGrouping(qg.Keyword()) {
			sd.TableGroups = append(sd.TableGroups, tableGroup(qg, locale, instances))
			continue
		}
		qd, err := r.questiongroup(qg, instances, links)
		if err != nil {
			return SubcategoryDetail{}, false, err
		}
		sd.Questiongroups = append(sd.Questiongroups, qd)
	}

	for _, child := range sc.Subcategories() {
		cd, ok, err := r.subcategory(child)
		if err != nil {
			return SubcategoryDetail{}, false, err
		}
		if ok {
			sd.Subcategories = append(sd.Subcategories, cd)
			hasContent = true
		}
	}

	if grouping := sc.TableGrouping(); len(grouping) > 0 {
		headers, helptexts := sc.TableHeaders(locale)
		sd.Config["table_grouping"] = grouping
		sd.Config["table_headers"] = headers
		sd.Config["table_helptexts"] = helptexts
	}

	if sc.ViewOptions().Bool("media_gallery") {
		images, err := r.imageData()
		if err != nil {
			return SubcategoryDetail{}, false, err
		}
		sd.MediaContent = images.Content
		sd.MediaAdditional = images.Additional
		if len(images.Content) > 0 {
			hasContent = true
		}
	}
	if !hasContent {
		return SubcategoryDetail{}, false, nil
	}

	html, err := r.m.render(r.ctx, nodeTemplate("subcategory", sc.ViewOptions()), sd)
	if err != nil {
		return SubcategoryDetail{}, false, fmt.Errorf("render subcategory %s: %w", sc.Keyword(), err)
	}
	sd.HTML = html
	return sd, true, nil
}

func (r *detailRun) questiongroup(qg *schema.Questiongroup, instances []map[string]any, links map[string][]map[string]any) (QuestiongroupDetail, error) {
	locale := r.req.Locale
	view := qg.ViewOptions()
	config := view.Raw()
	config["numbered"] = qg.Numbered()
	config["label"] = qg.Label(locale)
	config["label_class"] = view.String("label_class")

	qd := QuestiongroupDetail{
		Keyword:   qg.Keyword(),
		Label:     qg.Label(locale),
		Config:    config,
		Instances: [][]*FieldDetail{},
		Links:     links,
	}
	for _, inst := range instances {
		fields, err := r.instanceFields(qg, inst)
		if err != nil {
			return QuestiongroupDetail{}, err
		}
		qd.Instances = append(qd.Instances, fields)
	}
	if view.Bool("raw_questions") {
		for _, inst := range instances {
			qd.RawQuestions = append(qd.RawQuestions, qg.RawData(locale, []map[string]any{inst}))
		}
	}
	if view.Bool("with_keys") {
		for _, q := range qg.Questions() {
			qd.Keys = append(qd.Keys, q.Label(locale))
		}
	}

	html, err := r.m.render(r.ctx, nodeTemplate("questiongroup", view), qd)
	if err != nil {
		return QuestiongroupDetail{}, fmt.Errorf("render questiongroup %s: %w", qg.Keyword(), err)
	}
	qd.HTML = html
	return qd, nil
}

// instanceFields renders the questions of one instance. Conditional
// questions are rendered by the question enabling them. With
// view_options.extra "measure_other" the first question names the measure
// of the second.
func (r *detailRun) instanceFields(qg *schema.Questiongroup, inst map[string]any) ([]*FieldDetail, error) {
	questions := qg.Questions()
	measureLabel := ""
	if qg.ViewOptions().String("extra") == "measure_other" && len(questions) >= 2 {
		if s, ok := inst[questions[0].Keyword()].(string); ok {
			measureLabel = s
		}
		questions = questions[1:]
	}

	fields := []*FieldDetail{}
	for i, q := range questions {
		if q.Conditional() {
			continue
		}
		dc := &detailContext{
			ctx:        r.ctx,
			m:          r.m,
			q:          q,
			cfg:        r.cfg,
			locale:     r.req.Locale,
			instance:   inst,
			data:       r.req.Data,
			identifier: r.req.Identifier,
		}
		if i == 0 {
			dc.measureLabel = measureLabel
		}
		fd, err := dc.materialize()
		if err != nil {
			return nil, err
		}
		if fd != nil {
			fields = append(fields, fd)
		}
	}
	return fields, nil
}

// tableGroup lays out the instances of qg in question order. Choice
// answers show their labels; other answers pass through.
func tableGroup(qg *schema.Questiongroup, locale string, instances []map[string]any) TableGroup {
	tg := TableGroup{
		Keyword: qg.Keyword(),
		Label:   qg.Label(locale),
		Config:  qg.ViewOptions().Raw(),
		Rows:    [][]TableCell{},
	}
	for _, inst := range instances {
		row := make([]TableCell, 0, len(qg.Questions()))
		for _, q := range qg.Questions() {
			choices := q.Choices(locale)
			raw := schema.AsList(inst[q.Keyword()])
			values := make([]any, 0, len(raw))
			for _, v := range raw {
				if idx, ok := q.ChoiceIndex(choices, v); ok {
					values = append(values, choices[idx].Label)
				} else {
					values = append(values, v)
				}
			}
			row = append(row, TableCell{Question: q.Keyword(), Label: q.Label(locale), Values: values})
		}
		tg.Rows = append(tg.Rows, row)
	}
	return tg
}

func nodeTemplate(kind string, view schema.Options) string {
	return "details/" + kind + "/" + view.StringOr("template", "default") + ".html"
}
