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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/qcatschema/services/schema/condition"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

var tracer = otel.Tracer("qcat.schema")

// Builder constructs Configuration trees from documents and lookup
// entities.
//
// Thread Safety: safe for concurrent use; every build has its own state.
type Builder struct {
	store  lookup.Store
	docs   lookup.DocumentStore
	logger *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder returns a Builder reading entities from store and documents
// from docs. docs may be nil when only BuildDocument is used.
func NewBuilder(store lookup.Store, docs lookup.DocumentStore, opts ...BuilderOption) *Builder {
	b := &Builder{store: store, docs: docs, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build loads the document for code and edition (latest when edition is
// empty) and builds its tree.
//
// A missing document is not an error: the returned Configuration is empty
// and its Error method reports a NoConfigurationFoundError. Every other
// failure aborts the build and is returned.
func (b *Builder) Build(ctx context.Context, code, edition string) (*Configuration, error) {
	if b.docs == nil {
		return b.missing(code, edition), nil
	}
	doc, err := b.docs.Document(ctx, code, edition)
	if lookup.IsNotFound(err) {
		return b.missing(code, edition), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load configuration %s/%s: %w", code, edition, err)
	}
	return b.BuildDocument(ctx, doc)
}

func (b *Builder) missing(code, edition string) *Configuration {
	b.logger.Warn("configuration not found",
		slog.String("configuration_code", code),
		slog.String("edition", edition))
	return &Configuration{
		code:    code,
		edition: edition,
		err:     &NoConfigurationFoundError{Code: code, Edition: edition},
		deps:    newDependencies(code, edition),
	}
}

// BuildDocument builds the tree of doc. The tree is either fully valid or
// not returned.
func (b *Builder) BuildDocument(ctx context.Context, doc *lookup.Document) (cfg *Configuration, err error) {
	ctx, span := tracer.Start(ctx, "schema.Build", trace.WithAttributes(
		attribute.String("configuration_code", doc.Code),
		attribute.String("edition", doc.Edition),
	))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	bs := &build{
		ctx:          ctx,
		store:        b.store,
		scope:        lookup.Scope{Code: doc.Code, Edition: doc.Edition},
		translations: map[int64]*lookup.Translation{},
		deps:         newDependencies(doc.Code, doc.Edition),
	}
	cfg, err = bs.configuration(doc)
	if err != nil {
		b.logger.Debug("configuration build failed",
			slog.String("configuration_code", doc.Code),
			slog.String("edition", doc.Edition),
			slog.String("error", err.Error()))
		return nil, err
	}

	span.SetAttributes(attribute.Int("questiongroups", len(cfg.questiongroups)))
	b.logger.Debug("configuration built",
		slog.String("configuration_code", doc.Code),
		slog.String("edition", doc.Edition),
		slog.Int("questiongroups", len(cfg.questiongroups)),
		slog.Int("translations", len(bs.deps.Translations)),
		slog.Duration("duration", time.Since(start)))
	return cfg, nil
}

// =============================================================================
// Per-build state
// =============================================================================

type build struct {
	ctx          context.Context
	store        lookup.Store
	scope        lookup.Scope
	translations map[int64]*lookup.Translation
	deps         *Dependencies

	// built holds every questiongroup, including those below a subcategory
	// whose subcategories drive traversal.
	built []*Questiongroup
}

func (b *build) configuration(doc *lookup.Document) (*Configuration, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(doc.Data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &InvalidConfigurationError{Field: "configuration", ExpectedType: "json object", Context: "-"}
	}
	frag, ok := raw.(map[string]any)
	if !ok {
		return nil, &InvalidConfigurationError{Field: "configuration", ExpectedType: "json object", Context: "-"}
	}
	if err := validateOptions(KindConfiguration, frag); err != nil {
		return nil, err
	}

	sections, ok := frag["sections"].([]any)
	if !ok || len(sections) == 0 {
		return nil, &InvalidConfigurationError{Field: "sections", ExpectedType: "list of dicts", Context: "-"}
	}

	cfg := &Configuration{
		code:          doc.Code,
		edition:       doc.Edition,
		created:       doc.Created,
		inheritedData: map[string]map[string]string{},
	}
	if v, present := frag["modules"]; present && v != nil {
		modules, ok := toStrings(v)
		if !ok {
			return nil, &InvalidConfigurationError{Field: "modules", ExpectedType: "list of str", Context: "-"}
		}
		cfg.modules = modules
	}

	for i, rawSection := range sections {
		s, err := b.section(cfg, i, rawSection)
		if err != nil {
			return nil, err
		}
		cfg.sections = append(cfg.sections, s)
	}

	for _, s := range cfg.sections {
		cfg.questiongroups = append(cfg.questiongroups, s.Questiongroups()...)
	}
	for _, qg := range cfg.questiongroups {
		if qg.inheritedConfiguration == "" {
			continue
		}
		byConfig := cfg.inheritedData[qg.inheritedConfiguration]
		if byConfig == nil {
			byConfig = map[string]string{}
			cfg.inheritedData[qg.inheritedConfiguration] = byConfig
		}
		byConfig[qg.inheritedQuestiongroup] = qg.keyword
	}

	if err := validateQuestiongroupConditions(b.built); err != nil {
		return nil, err
	}
	cfg.deps = b.deps
	return cfg, nil
}

func (b *build) section(cfg *Configuration, index int, raw any) (*Section, error) {
	frag, kw, err := fragment(KindSection, KindConfiguration, raw)
	if err != nil {
		return nil, atNode(KindSection, fmt.Sprintf("#%d", index), err)
	}
	n, err := b.categoryNode(KindSection, kw, nil, frag)
	if err != nil {
		return nil, atNode(KindSection, kw, err)
	}
	s := &Section{node: n, configuration: cfg}

	children, err := childList(frag, "categories", KindSection)
	if err != nil {
		return nil, atNode(KindSection, kw, err)
	}
	for i, rawCategory := range children {
		c, err := b.category(s, i, rawCategory)
		if err != nil {
			return nil, atNode(KindSection, kw, err)
		}
		s.categories = append(s.categories, c)
	}
	return s, nil
}

func (b *build) category(s *Section, index int, raw any) (*Category, error) {
	frag, kw, err := fragment(KindCategory, KindSection, raw)
	if err != nil {
		return nil, atNode(KindCategory, fmt.Sprintf("#%d", index), err)
	}
	n, err := b.categoryNode(KindCategory, kw, frag["form_options"], frag)
	if err != nil {
		return nil, atNode(KindCategory, kw, err)
	}
	c := &Category{node: n, section: s}

	children, err := childList(frag, "subcategories", KindCategory)
	if err != nil {
		return nil, atNode(KindCategory, kw, err)
	}
	for i, rawSub := range children {
		sc, err := b.subcategory(c, nil, i, rawSub)
		if err != nil {
			return nil, atNode(KindCategory, kw, err)
		}
		c.subcategories = append(c.subcategories, sc)
	}
	return c, nil
}

func (b *build) subcategory(c *Category, parent *Subcategory, index int, raw any) (*Subcategory, error) {
	parentKind := KindCategory
	if parent != nil {
		parentKind = KindSubcategory
	}
	frag, kw, err := fragment(KindSubcategory, parentKind, raw)
	if err != nil {
		return nil, atNode(KindSubcategory, fmt.Sprintf("#%d", index), err)
	}
	n, err := b.categoryNode(KindSubcategory, kw, frag["form_options"], frag)
	if err != nil {
		return nil, atNode(KindSubcategory, kw, err)
	}
	sc := &Subcategory{node: n, category: c, parent: parent}

	subs, err := childList(frag, "subcategories", KindSubcategory)
	if err != nil {
		return nil, atNode(KindSubcategory, kw, err)
	}
	for i, rawSub := range subs {
		child, err := b.subcategory(c, sc, i, rawSub)
		if err != nil {
			return nil, atNode(KindSubcategory, kw, err)
		}
		sc.subcategories = append(sc.subcategories, child)
	}

	qgs, err := childList(frag, "questiongroups", KindSubcategory)
	if err != nil {
		return nil, atNode(KindSubcategory, kw, err)
	}
	for i, rawQG := range qgs {
		qg, err := b.questiongroup(sc, i, rawQG)
		if err != nil {
			return nil, atNode(KindSubcategory, kw, err)
		}
		sc.questiongroups = append(sc.questiongroups, qg)
	}

	if sc.formOptions.Bool("has_links") {
		for _, qg := range sc.questiongroups {
			if qg.Link() != "" {
				sc.linkQuestiongroups = append(sc.linkQuestiongroups, qg.keyword)
			}
		}
	}

	if v, present := sc.viewOptions.Get("table_grouping"); present && v != nil {
		groups, ok := v.([]any)
		if !ok {
			return nil, atNode(KindSubcategory, kw, &InvalidConfigurationError{
				Field: "table_grouping", ExpectedType: "list of lists", Context: "view_options"})
		}
		for _, g := range groups {
			keywords, ok := toStrings(g)
			if !ok {
				return nil, atNode(KindSubcategory, kw, &InvalidConfigurationError{
					Field: "table_grouping", ExpectedType: "list of lists", Context: "view_options"})
			}
			sc.tableGrouping = append(sc.tableGrouping, keywords)
		}
	}
	return sc, nil
}

// categoryNode resolves a Category-backed node (section, category,
// subcategory).
func (b *build) categoryNode(kind NodeKind, kw string, formOptions any, frag map[string]any) (node, error) {
	ent, err := b.store.Category(b.ctx, kw)
	if err != nil {
		return node{}, notInDatabase(lookup.KindCategory, kw, err)
	}
	b.deps.Categories[kw] = struct{}{}
	tx, err := b.texts(ent.TranslationID)
	if err != nil {
		return node{}, err
	}
	plural := kind.spec().plural
	view, err := mergeOptions("view_options", plural, nil, frag["view_options"])
	if err != nil {
		return node{}, err
	}
	form, err := mergeOptions("form_options", plural, nil, formOptions)
	if err != nil {
		return node{}, err
	}
	return node{
		kind:        kind,
		keyword:     kw,
		viewOptions: view,
		formOptions: form,
		texts:       tx,
		translation: ent.TranslationID,
	}, nil
}

func (b *build) questiongroup(sc *Subcategory, index int, raw any) (*Questiongroup, error) {
	frag, kw, err := fragment(KindQuestiongroup, KindSubcategory, raw)
	if err != nil {
		return nil, atNode(KindQuestiongroup, fmt.Sprintf("#%d", index), err)
	}
	qg, err := b.questiongroupNode(sc, kw, frag)
	if err != nil {
		return nil, atNode(KindQuestiongroup, kw, err)
	}

	children, err := childList(frag, "questions", KindQuestiongroup)
	if err != nil {
		return nil, atNode(KindQuestiongroup, kw, err)
	}
	for i, rawQuestion := range children {
		q, err := b.question(qg, i, rawQuestion)
		if err != nil {
			return nil, atNode(KindQuestiongroup, kw, err)
		}
		qg.questions = append(qg.questions, q)
	}
	if err := validateSiblingConditions(qg); err != nil {
		return nil, atNode(KindQuestiongroup, kw, err)
	}
	b.built = append(b.built, qg)
	return qg, nil
}

func (b *build) questiongroupNode(sc *Subcategory, kw string, frag map[string]any) (*Questiongroup, error) {
	ent, err := b.store.Questiongroup(b.ctx, kw)
	if err != nil {
		return nil, notInDatabase(lookup.KindQuestiongroup, kw, err)
	}
	b.deps.Questiongroups[kw] = struct{}{}
	tx, err := b.texts(ent.TranslationID)
	if err != nil {
		return nil, err
	}
	view, err := mergeOptions("view_options", "questiongroups", ent.Configuration["view_options"], frag["view_options"])
	if err != nil {
		return nil, err
	}
	form, err := mergeOptions("form_options", "questiongroups", ent.Configuration["form_options"], frag["form_options"])
	if err != nil {
		return nil, err
	}

	qg := &Questiongroup{
		node: node{
			kind:        KindQuestiongroup,
			keyword:     kw,
			viewOptions: view,
			formOptions: form,
			texts:       tx,
			translation: ent.TranslationID,
		},
		subcategory: sc,
		minNum:      1,
	}

	if form.Has("min_num") {
		n, ok := form.Int("min_num")
		if !ok || n < 1 {
			return nil, &InvalidConfigurationError{Field: "min_num", ExpectedType: "integer >= 1", Context: "questiongroup"}
		}
		qg.minNum = n
	}
	qg.maxNum = qg.minNum
	if form.Has("max_num") {
		n, ok := form.Int("max_num")
		if !ok || n < 1 {
			return nil, &InvalidConfigurationError{Field: "max_num", ExpectedType: "integer >= 1", Context: "questiongroup"}
		}
		qg.maxNum = n
	}

	switch numbered := form.String("numbered"); numbered {
	case NumberedInline, NumberedPrefix:
		qg.numbered = numbered
	}
	qg.questiongroupCondition = form.String("questiongroup_condition")
	qg.detailLevel = form.String("detail_level")
	qg.inheritedConfiguration, _ = ent.Configuration["inherited_configuration"].(string)
	qg.inheritedQuestiongroup, _ = ent.Configuration["inherited_questiongroup"].(string)
	return qg, nil
}

func (b *build) question(qg *Questiongroup, index int, raw any) (*Question, error) {
	frag, kw, err := fragment(KindQuestion, KindQuestiongroup, raw)
	if err != nil {
		return nil, atNode(KindQuestion, fmt.Sprintf("#%d", index), err)
	}
	q, err := b.questionNode(qg, kw, frag)
	if err != nil {
		return nil, atNode(KindQuestion, kw, err)
	}
	return q, nil
}

func (b *build) questionNode(qg *Questiongroup, kw string, frag map[string]any) (*Question, error) {
	key, err := b.store.Key(b.ctx, kw)
	if err != nil {
		return nil, notInDatabase(lookup.KindKey, kw, err)
	}
	b.deps.Keys[kw] = struct{}{}
	tx, err := b.texts(key.TranslationID)
	if err != nil {
		return nil, err
	}

	rawType, present := key.Configuration["type"]
	typeName, isString := rawType.(string)
	if present && rawType != nil && !isString {
		return nil, &InvalidOptionError{Value: fmt.Sprint(rawType), Field: "type", Context: "Key"}
	}
	ft, ok := ParseFieldType(typeName)
	if !ok {
		return nil, &InvalidOptionError{Value: typeName, Field: "type", Context: "Key"}
	}

	q := &Question{
		node: node{
			kind:        KindQuestion,
			keyword:     kw,
			texts:       tx,
			translation: key.TranslationID,
		},
		questiongroup: qg,
		fieldType:     ft,
		numRows:       DefaultNumRows,
	}

	for _, m := range []struct {
		name string
		dst  *Options
	}{
		{"view_options", &q.viewOptions},
		{"form_options", &q.formOptions},
		{"filter_options", &q.filterOptions},
		{"summary", &q.summary},
	} {
		opts, err := mergeOptions(m.name, "questions", key.Configuration[m.name], frag[m.name])
		if err != nil {
			return nil, err
		}
		*m.dst = opts
	}

	q.inList = q.viewOptions.Bool("in_list")
	q.isName = q.viewOptions.Bool("is_name")
	q.isGeometry = q.viewOptions.Bool("is_geometry")
	if n, ok := q.formOptions.Int("max_length"); ok && n > 0 {
		q.maxLength = n
	}
	if n, ok := q.formOptions.Int("num_rows"); ok {
		q.numRows = n
	}
	if v, present := q.filterOptions.Get("order"); present && v != nil {
		if _, ok := toFloat(v); !ok {
			return nil, &InvalidConfigurationError{Field: "order", ExpectedType: "number", Context: "filter_options"}
		}
	}

	if ft.RequiresValues() {
		if err := b.questionValues(q, key); err != nil {
			return nil, err
		}
	}

	q.conditional = q.formOptions.Bool("conditional")
	q.questionCondition = q.formOptions.String("question_condition")
	if err := parseQuestionConditions(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (b *build) questionValues(q *Question, key *lookup.Key) error {
	if len(key.Values) == 0 {
		return &NotInDatabaseError{Kind: lookup.KindValue, Keyword: fmt.Sprintf("[values of key %s]", key.Keyword)}
	}
	values, err := b.store.Values(b.ctx, key.Values)
	if err != nil {
		var nf *lookup.NotFoundError
		if errors.As(err, &nf) {
			return &NotInDatabaseError{Kind: lookup.KindValue, Keyword: nf.Keyword}
		}
		return fmt.Errorf("load values of key %s: %w", key.Keyword, err)
	}
	// Values iterate by order_value, unset last.
	sort.SliceStable(values, func(i, j int) bool {
		a, b := values[i].OrderValue, values[j].OrderValue
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return *a < *b
	})
	for _, v := range values {
		b.deps.Values[v.Keyword] = struct{}{}
		tx, err := b.texts(v.TranslationID)
		if err != nil {
			return err
		}
		cv := choiceValue{
			keyword:     v.Keyword,
			ordered:     v.OrderValue != nil && *v.OrderValue != 0,
			translation: v.TranslationID,
			texts:       tx,
		}
		cv.imageName, _ = v.Configuration["image_name"].(string)
		if cv.ordered {
			q.orderedValues = true
		}
		q.values = append(q.values, cv)
	}
	return nil
}

// texts returns the translation with id, cached for the build. Id zero
// and a missing translation both yield empty texts.
func (b *build) texts(id int64) (texts, error) {
	if id == 0 {
		return texts{scope: b.scope}, nil
	}
	b.deps.Translations[id] = struct{}{}
	if tr, ok := b.translations[id]; ok {
		return texts{tr: tr, scope: b.scope}, nil
	}
	tr, err := b.store.Translation(b.ctx, id)
	if err != nil && !lookup.IsNotFound(err) {
		return texts{}, fmt.Errorf("load translation %d: %w", id, err)
	}
	b.translations[id] = tr
	return texts{tr: tr, scope: b.scope}, nil
}

// =============================================================================
// Fragment helpers
// =============================================================================

// fragment checks the shape of a node fragment and returns its keyword.
func fragment(kind, parent NodeKind, raw any) (map[string]any, string, error) {
	frag, ok := raw.(map[string]any)
	if !ok {
		return nil, "", &InvalidConfigurationError{
			Field: kind.spec().plural, ExpectedType: "list of dicts", Context: parent.spec().plural}
	}
	if err := validateOptions(kind, frag); err != nil {
		return nil, "", err
	}
	kw, ok := frag["keyword"].(string)
	if !ok {
		return nil, "", &InvalidConfigurationError{Field: "keyword", ExpectedType: "str", Context: kind.spec().plural}
	}
	return frag, kw, nil
}

// validateOptions rejects the alphabetically first unknown key.
func validateOptions(kind NodeKind, frag map[string]any) error {
	var invalid []string
	for k := range frag {
		if !kind.validOption(k) {
			invalid = append(invalid, k)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	sort.Strings(invalid)
	return &InvalidOptionError{Value: invalid[0], Field: "option", Context: kind.String()}
}

// childList returns the child fragments stored under key. An absent or null key
// means no children; a present key must hold a non-empty list.
func childList(frag map[string]any, key string, kind NodeKind) ([]any, error) {
	v, present := frag[key]
	if !present || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, &InvalidConfigurationError{Field: key, ExpectedType: "list of dicts", Context: kind.spec().plural}
	}
	return list, nil
}

func notInDatabase(kind lookup.Kind, keyword string, err error) error {
	if lookup.IsNotFound(err) {
		return &NotInDatabaseError{Kind: kind, Keyword: keyword}
	}
	return fmt.Errorf("load %s %s: %w", kind, keyword, err)
}

// =============================================================================
// Conditions
// =============================================================================

func parseQuestionConditions(q *Question) error {
	rules, err := conditionStrings(q.formOptions, "question_conditions")
	if err != nil {
		return err
	}
	for _, raw := range rules {
		c, err := condition.ParseQuestionCondition(raw)
		if err != nil {
			return err
		}
		q.questionConditions = append(q.questionConditions, c)
	}

	rules, err = conditionStrings(q.formOptions, "conditions")
	if err != nil {
		return err
	}
	keys := q.choiceKeys()
	for _, raw := range rules {
		c, err := condition.ParseValueCondition(raw, keys)
		if err != nil {
			return err
		}
		q.conditions = append(q.conditions, c)
	}

	rules, err = conditionStrings(q.formOptions, "questiongroup_conditions")
	if err != nil {
		return err
	}
	for _, raw := range rules {
		c, err := condition.ParseQuestiongroupCondition(raw)
		if err != nil {
			return err
		}
		q.questiongroupConditions = append(q.questiongroupConditions, c)
	}
	return nil
}

func conditionStrings(opts Options, key string) ([]string, error) {
	v, present := opts.Get(key)
	if !present || v == nil {
		return nil, nil
	}
	list, ok := toStrings(v)
	if !ok {
		return nil, &InvalidConfigurationError{Field: key, ExpectedType: "list of str", Context: "form_options"}
	}
	return list, nil
}

// validateSiblingConditions checks that value conditions target a question
// of the same questiongroup and that question conditions name a
// question_condition declared there.
func validateSiblingConditions(qg *Questiongroup) error {
	declared := map[string]bool{}
	for _, q := range qg.questions {
		if q.questionCondition != "" {
			declared[q.questionCondition] = true
		}
	}
	for _, q := range qg.questions {
		for _, c := range q.conditions {
			if qg.Question(c.Key) == nil {
				return atNode(KindQuestion, q.keyword, &condition.InvalidConditionError{
					Condition: c.Raw,
					Reason:    fmt.Sprintf("key %q is not in questiongroup %q", c.Key, qg.keyword),
				})
			}
		}
		for _, c := range q.questionConditions {
			if !declared[c.Name] {
				return atNode(KindQuestion, q.keyword, &condition.InvalidConditionError{
					Condition: c.Raw,
					Reason:    fmt.Sprintf("no question of questiongroup %q declares question_condition %q", qg.keyword, c.Name),
				})
			}
		}
	}
	return nil
}

// validateQuestiongroupConditions checks that every questiongroup
// condition names a questiongroup_condition declared in the tree.
func validateQuestiongroupConditions(questiongroups []*Questiongroup) error {
	declared := map[string]bool{}
	for _, qg := range questiongroups {
		if qg.questiongroupCondition != "" {
			declared[qg.questiongroupCondition] = true
		}
	}
	for _, qg := range questiongroups {
		for _, q := range qg.questions {
			for _, c := range q.questiongroupConditions {
				if declared[c.Name] {
					continue
				}
				return &BuildError{
					Path: questionPath(q),
					Err: &condition.InvalidQuestiongroupConditionError{
						Condition: c.Raw,
						Reason:    fmt.Sprintf("no questiongroup declares questiongroup_condition %q", c.Name),
					},
				}
			}
		}
	}
	return nil
}

// questionPath returns the BuildError path of a question in a built tree.
func questionPath(q *Question) []string {
	seg := func(k NodeKind, kw string) string { return fmt.Sprintf("%s[%s]", k, kw) }
	qg := q.questiongroup
	path := []string{seg(KindQuestiongroup, qg.keyword), seg(KindQuestion, q.keyword)}
	sc := qg.subcategory
	for sc != nil {
		path = append([]string{seg(KindSubcategory, sc.keyword)}, path...)
		if sc.parent == nil {
			break
		}
		sc = sc.parent
	}
	if sc != nil && sc.category != nil {
		path = append([]string{seg(KindCategory, sc.category.keyword)}, path...)
		if sc.category.section != nil {
			path = append([]string{seg(KindSection, sc.category.section.keyword)}, path...)
		}
	}
	return path
}
