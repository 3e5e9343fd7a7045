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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/qcatschema/services/schema/condition"
	"github.com/AleutianAI/qcatschema/services/schema/internal/fixtures"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

type (
	M = fixtures.M
	L = fixtures.L
)

func buildDocument(t *testing.T, f *fixtures.Fixture, doc M) (*Configuration, error) {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return NewBuilder(f.Store, f.Store).BuildDocument(context.Background(), &lookup.Document{
		Code:    fixtures.ScenarioCode,
		Edition: fixtures.ScenarioEdition,
		Data:    raw,
	})
}

func mustBuild(t *testing.T, f *fixtures.Fixture, code, edition string) *Configuration {
	t.Helper()
	cfg, err := NewBuilder(f.Store, f.Store).Build(context.Background(), code, edition)
	require.NoError(t, err)
	require.NoError(t, cfg.Error())
	return cfg
}

// scenarioParts returns the fragments of the scenario document along its
// only path.
func scenarioParts(doc M) (section, category, subcategory, qg, question M) {
	section = doc["sections"].(L)[0].(M)
	category = section["categories"].(L)[0].(M)
	subcategory = category["subcategories"].(L)[0].(M)
	qg = subcategory["questiongroups"].(L)[0].(M)
	question = qg["questions"].(L)[0].(M)
	return
}

func TestBuild_Scenario(t *testing.T) {
	cfg := mustBuild(t, fixtures.Scenario(), fixtures.ScenarioCode, fixtures.ScenarioEdition)

	require.Len(t, cfg.Sections(), 1)
	qg := cfg.QuestiongroupByKeyword("qg_1")
	require.NotNil(t, qg)
	assert.Equal(t, 1, qg.MinNum())
	assert.Equal(t, 3, qg.MaxNum())

	q := qg.Questions()[0]
	assert.Equal(t, FieldMeasure, q.FieldType())
	assert.Equal(t, []Choice{
		{Value: "B", Label: "Value B"},
		{Value: "A", Label: "Value A"},
		{Value: "C", Label: "Value C"},
	}, q.Choices(DefaultLocale))
	assert.Equal(t, "Key 1", q.Label(DefaultLocale))
	assert.Equal(t, "Section 1", cfg.Sections()[0].Label(DefaultLocale))
}

func TestBuild_LatestEdition(t *testing.T) {
	f := fixtures.Scenario()
	f.Document(fixtures.ScenarioCode, "2019", fixtures.ScenarioDocument())

	cfg := mustBuild(t, f, fixtures.ScenarioCode, "")
	assert.Equal(t, "2019", cfg.Edition())
}

func TestBuild_ChoicesSortedByLabel(t *testing.T) {
	cfg := mustBuild(t, fixtures.Sample(), fixtures.SampleCode, fixtures.SampleEdition)

	q := cfg.QuestionByKeyword("qg_2", "key_3")
	require.NotNil(t, q)
	assert.Equal(t, []Choice{
		{Value: "", Label: "-"},
		{Value: "value_1", Label: "Cropland"},
		{Value: "value_2", Label: "Forest"},
		{Value: "value_3", Label: "Grazing land"},
	}, q.Choices(DefaultLocale))

	checkbox := cfg.QuestionByKeyword("qg_2", "key_4")
	assert.Equal(t, []Choice{
		{Value: "value_5", Label: "Erosion"},
		{Value: "value_4", Label: "Wind"},
	}, checkbox.Choices(DefaultLocale))

	yesNo := cfg.QuestionByKeyword("qg_3", "key_6")
	assert.Equal(t, []Choice{{Value: "1", Label: "Yes"}, {Value: "0", Label: "No"}}, yesNo.Choices(DefaultLocale))

	cb := cfg.QuestionByKeyword("qg_misc", "key_21")
	assert.Equal(t, []Choice{{Value: "1", Label: "Confirmed"}}, cb.Choices(DefaultLocale))

	images := cfg.QuestionByKeyword("qg_4", "key_7")
	assert.Equal(t, []string{ValueImagePath + "bunds.png", ValueImagePath + "terraces.png"}, images.Images(DefaultLocale))
}

func TestBuild_UnknownOption(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(doc, section, category, subcategory, qg, question M)
		value   string
		context string
	}{
		{
			name:    "configuration",
			mutate:  func(doc, _, _, _, _, _ M) { doc["foo"] = 1 },
			value:   "foo",
			context: "configuration",
		},
		{
			name:    "section",
			mutate:  func(_, s, _, _, _, _ M) { s["form_options"] = M{} },
			value:   "form_options",
			context: "section",
		},
		{
			name:    "category",
			mutate:  func(_, _, c, _, _, _ M) { c["questiongroups"] = L{} },
			value:   "questiongroups",
			context: "category",
		},
		{
			name:    "subcategory first alphabetically",
			mutate:  func(_, _, _, sc, _, _ M) { sc["zeta"] = 1; sc["alpha"] = 1 },
			value:   "alpha",
			context: "subcategory",
		},
		{
			name:    "questiongroup",
			mutate:  func(_, _, _, _, qg, _ M) { qg["summary"] = M{} },
			value:   "summary",
			context: "questiongroup",
		},
		{
			name:    "question",
			mutate:  func(_, _, _, _, _, q M) { q["questions"] = L{} },
			value:   "questions",
			context: "question",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := fixtures.ScenarioDocument()
			s, c, sc, qg, q := scenarioParts(doc)
			tt.mutate(doc, s, c, sc, qg, q)

			cfg, err := buildDocument(t, fixtures.Scenario(), doc)
			assert.Nil(t, cfg)
			require.ErrorIs(t, err, ErrInvalidOption)
			var ioe *InvalidOptionError
			require.ErrorAs(t, err, &ioe)
			assert.Equal(t, tt.value, ioe.Value)
			assert.Equal(t, "option", ioe.Field)
			assert.Equal(t, tt.context, ioe.Context)
		})
	}
}

func TestBuild_EmptyChildren(t *testing.T) {
	t.Run("present but empty is fatal", func(t *testing.T) {
		doc := fixtures.ScenarioDocument()
		_, _, sc, _, _ := scenarioParts(doc)
		sc["questiongroups"] = L{}

		_, err := buildDocument(t, fixtures.Scenario(), doc)
		require.ErrorIs(t, err, ErrInvalidConfiguration)
		var ice *InvalidConfigurationError
		require.ErrorAs(t, err, &ice)
		assert.Equal(t, "questiongroups", ice.Field)
		assert.Equal(t, "subcategories", ice.Context)
	})

	t.Run("absent means no children", func(t *testing.T) {
		doc := fixtures.ScenarioDocument()
		_, _, sc, _, _ := scenarioParts(doc)
		delete(sc, "questiongroups")

		cfg, err := buildDocument(t, fixtures.Scenario(), doc)
		require.NoError(t, err)
		sub := cfg.Sections()[0].Categories()[0].Subcategories()[0]
		assert.Empty(t, sub.Questiongroups())
		assert.Empty(t, cfg.Questiongroups())
	})

	t.Run("null means no children", func(t *testing.T) {
		doc := fixtures.ScenarioDocument()
		_, _, sc, _, _ := scenarioParts(doc)
		sc["questiongroups"] = nil

		cfg, err := buildDocument(t, fixtures.Scenario(), doc)
		require.NoError(t, err)
		assert.Empty(t, cfg.Sections()[0].Categories()[0].Subcategories()[0].Questiongroups())
	})

	t.Run("root sections required", func(t *testing.T) {
		for _, doc := range []M{{}, {"sections": L{}}, {"sections": "x"}} {
			_, err := buildDocument(t, fixtures.Scenario(), doc)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		}
	})

	t.Run("children must be objects", func(t *testing.T) {
		doc := fixtures.ScenarioDocument()
		_, c, _, _, _ := scenarioParts(doc)
		c["subcategories"] = L{"subcat_1"}

		_, err := buildDocument(t, fixtures.Scenario(), doc)
		require.ErrorIs(t, err, ErrInvalidConfiguration)
		var be *BuildError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, []string{"section[section_1]", "category[cat_1]", "subcategory[#0]"}, be.Path)
	})
}

func TestBuild_ValuesRequired(t *testing.T) {
	f := fixtures.Scenario()
	f.Key("key_1", "select", "Key 1", nil)

	_, err := buildDocument(t, f, fixtures.ScenarioDocument())
	require.ErrorIs(t, err, ErrNotInDatabase)
	var nf *NotInDatabaseError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, lookup.KindValue, nf.Kind)
}

func TestBuild_NotInDatabase(t *testing.T) {
	doc := fixtures.ScenarioDocument()
	_, _, _, _, q := scenarioParts(doc)
	q["keyword"] = "key_missing"

	_, err := buildDocument(t, fixtures.Scenario(), doc)
	require.ErrorIs(t, err, ErrNotInDatabase)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{
		"section[section_1]",
		"category[cat_1]",
		"subcategory[subcat_1]",
		"questiongroup[qg_1]",
		"question[key_missing]",
	}, be.Path)
	assert.Contains(t, err.Error(), "section[section_1] > category[cat_1]")
	assert.True(t, IsConfigurationError(err))
}

func TestBuild_InvalidFieldType(t *testing.T) {
	f := fixtures.Scenario()
	f.Key("key_1", "slider", "Key 1", nil)

	_, err := buildDocument(t, f, fixtures.ScenarioDocument())
	require.ErrorIs(t, err, ErrInvalidOption)
	var ioe *InvalidOptionError
	require.ErrorAs(t, err, &ioe)
	assert.Equal(t, "slider", ioe.Value)
	assert.Equal(t, "type", ioe.Field)
}

func TestBuild_DefaultFieldType(t *testing.T) {
	f := fixtures.Scenario()
	f.Key("key_1", "", "Key 1", nil)

	cfg, err := buildDocument(t, f, fixtures.ScenarioDocument())
	require.NoError(t, err)
	assert.Equal(t, FieldChar, cfg.QuestionByKeyword("qg_1", "key_1").FieldType())
}

func TestBuild_QuestiongroupBounds(t *testing.T) {
	tests := []struct {
		name    string
		form    M
		wantErr bool
		min     int
		max     int
	}{
		{name: "defaults", form: M{}, min: 1, max: 1},
		{name: "max defaults to min", form: M{"min_num": 2}, min: 2, max: 2},
		{name: "explicit", form: M{"min_num": 1, "max_num": 5}, min: 1, max: 5},
		{name: "zero min", form: M{"min_num": 0}, wantErr: true},
		{name: "fractional max", form: M{"max_num": 1.5}, wantErr: true},
		{name: "string min", form: M{"min_num": "1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := fixtures.ScenarioDocument()
			_, _, _, qg, _ := scenarioParts(doc)
			qg["form_options"] = tt.form

			cfg, err := buildDocument(t, fixtures.Scenario(), doc)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			got := cfg.QuestiongroupByKeyword("qg_1")
			assert.Equal(t, tt.min, got.MinNum())
			assert.Equal(t, tt.max, got.MaxNum())
		})
	}
}

func TestBuild_OptionsMustBeObjects(t *testing.T) {
	doc := fixtures.ScenarioDocument()
	_, _, _, _, q := scenarioParts(doc)
	q["view_options"] = L{"in_list"}

	_, err := buildDocument(t, fixtures.Scenario(), doc)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	var ice *InvalidConfigurationError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, "view_options", ice.Field)
	assert.Equal(t, "dict", ice.ExpectedType)
}

func TestBuild_FilterOrderMustBeNumeric(t *testing.T) {
	doc := fixtures.ScenarioDocument()
	_, _, _, _, q := scenarioParts(doc)
	q["filter_options"] = M{"order": "first"}

	_, err := buildDocument(t, fixtures.Scenario(), doc)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestBuild_Conditions(t *testing.T) {
	newFixture := func() *fixtures.Fixture {
		f := fixtures.Scenario()
		f.Key("key_2", "char", "Key 2", nil)
		return f
	}
	withSecondQuestion := func(first, second M) M {
		doc := fixtures.ScenarioDocument()
		_, _, _, qg, q := scenarioParts(doc)
		for k, v := range first {
			q[k] = v
		}
		second["keyword"] = "key_2"
		qg["questions"] = L{q, second}
		return doc
	}

	tests := []struct {
		name    string
		doc     M
		wantErr error
	}{
		{
			name: "value condition",
			doc: withSecondQuestion(
				M{"form_options": M{"conditions": L{"A|True|key_2"}}},
				M{"form_options": M{"conditional": true}}),
		},
		{
			name: "legacy measure position",
			doc: withSecondQuestion(
				M{"form_options": M{"conditions": L{"2|True|key_2"}}},
				M{}),
		},
		{
			name: "value condition with unknown value",
			doc: withSecondQuestion(
				M{"form_options": M{"conditions": L{"Z|True|key_2"}}},
				M{}),
			wantErr: ErrInvalidCondition,
		},
		{
			name: "value condition targeting another questiongroup",
			doc: withSecondQuestion(
				M{"form_options": M{"conditions": L{"A|True|key_9"}}},
				M{}),
			wantErr: ErrInvalidCondition,
		},
		{
			name: "value condition without boolean",
			doc: withSecondQuestion(
				M{"form_options": M{"conditions": L{"A|'yes'|key_2"}}},
				M{}),
			wantErr: ErrInvalidCondition,
		},
		{
			name: "question condition",
			doc: withSecondQuestion(
				M{"form_options": M{"question_condition": "cond_a"}},
				M{"form_options": M{"question_conditions": L{"=='A'|cond_a"}}}),
		},
		{
			name: "question condition with undeclared name",
			doc: withSecondQuestion(
				M{"form_options": M{"question_condition": "cond_a"}},
				M{"form_options": M{"question_conditions": L{"=='A'|cond_b"}}}),
			wantErr: ErrInvalidCondition,
		},
		{
			name: "question condition with bad split",
			doc: withSecondQuestion(
				M{"form_options": M{"question_condition": "cond_a"}},
				M{"form_options": M{"question_conditions": L{"=='A'"}}}),
			wantErr: ErrInvalidCondition,
		},
		{
			name: "question condition with bad expression",
			doc: withSecondQuestion(
				M{"form_options": M{"question_condition": "cond_a"}},
				M{"form_options": M{"question_conditions": L{"A|cond_a"}}}),
			wantErr: ErrInvalidQuestiongroupCondition,
		},
		{
			name: "questiongroup condition with undeclared name",
			doc: withSecondQuestion(
				M{"form_options": M{"questiongroup_conditions": L{">1|qg_cond"}}},
				M{}),
			wantErr: ErrInvalidQuestiongroupCondition,
		},
		{
			name: "questiongroup condition with bad expression",
			doc: withSecondQuestion(
				M{"form_options": M{"questiongroup_conditions": L{"1|qg_cond"}}},
				M{}),
			wantErr: ErrInvalidQuestiongroupCondition,
		},
		{
			name: "conditions must be a list of strings",
			doc: withSecondQuestion(
				M{"form_options": M{"conditions": "A|True|key_2"}},
				M{}),
			wantErr: ErrInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := buildDocument(t, newFixture(), tt.doc)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				for _, other := range []error{ErrInvalidCondition, ErrInvalidQuestiongroupCondition, ErrInvalidConfiguration} {
					if other != tt.wantErr {
						assert.NotErrorIs(t, err, other)
					}
				}
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, cfg)
		})
	}
}

func TestBuild_QuestiongroupConditionPath(t *testing.T) {
	f := fixtures.Scenario()
	doc := fixtures.ScenarioDocument()
	_, _, _, _, q := scenarioParts(doc)
	q["form_options"] = M{"questiongroup_conditions": L{"=='A'|qg_cond"}}

	_, err := buildDocument(t, f, doc)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{
		"section[section_1]",
		"category[cat_1]",
		"subcategory[subcat_1]",
		"questiongroup[qg_1]",
		"question[key_1]",
	}, be.Path)
	var qce *condition.InvalidQuestiongroupConditionError
	require.ErrorAs(t, err, &qce)
	assert.Equal(t, "=='A'|qg_cond", qce.Condition)
}

func TestBuild_SubcategoryWithBothLists(t *testing.T) {
	f := fixtures.Scenario()
	f.Category("subcat_1_1", "Nested")
	f.Questiongroup("qg_2", "Second", nil)
	f.Key("key_2", "char", "Key 2", nil)

	doc := fixtures.ScenarioDocument()
	_, _, sc, qg, _ := scenarioParts(doc)
	qg["form_options"] = M{"questiongroup_condition": "qg_1_cond"}
	sc["subcategories"] = L{M{"keyword": "subcat_1_1", "questiongroups": L{
		M{"keyword": "qg_2", "questions": L{
			M{"keyword": "key_2", "form_options": M{"questiongroup_conditions": L{"=='x'|qg_1_cond"}}},
		}},
	}}}

	cfg, err := buildDocument(t, f, doc)
	require.NoError(t, err)

	sub := cfg.Sections()[0].Categories()[0].Subcategories()[0]
	assert.True(t, sub.UsesSubcategories())
	require.Len(t, sub.OwnQuestiongroups(), 1)
	assert.Equal(t, "qg_1", sub.OwnQuestiongroups()[0].Keyword())

	var operative []string
	for _, qg := range cfg.Questiongroups() {
		operative = append(operative, qg.Keyword())
	}
	assert.Equal(t, []string{"qg_2"}, operative)

	nested := sub.Subcategories()[0]
	assert.Same(t, sub, nested.Parent())
	assert.Same(t, sub, cfg.QuestiongroupByKeyword("qg_2").TopSubcategory())
}

func TestBuild_NoConfigurationFound(t *testing.T) {
	f := fixtures.Scenario()

	cfg, err := NewBuilder(f.Store, f.Store).Build(context.Background(), "missing", "2020")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.ErrorIs(t, cfg.Error(), ErrNoConfigurationFound)
	assert.Empty(t, cfg.Sections())
	assert.Empty(t, cfg.Questiongroups())
	assert.Equal(t, "missing", cfg.Code())

	var nc *NoConfigurationFoundError
	require.ErrorAs(t, cfg.Error(), &nc)
	assert.Equal(t, "2020", nc.Edition)

	cfg, err = NewBuilder(f.Store, nil).Build(context.Background(), fixtures.ScenarioCode, "")
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Error(), ErrNoConfigurationFound)
}

type failingStore struct {
	lookup.Store
}

func (failingStore) Category(context.Context, string) (*lookup.Category, error) {
	return nil, errors.New("connection reset")
}

func TestBuild_StoreFailureIsNotConfigurationError(t *testing.T) {
	f := fixtures.Scenario()
	raw, err := json.Marshal(fixtures.ScenarioDocument())
	require.NoError(t, err)

	_, err = NewBuilder(failingStore{Store: f.Store}, nil).BuildDocument(context.Background(), &lookup.Document{
		Code: "scenario", Data: raw,
	})
	require.Error(t, err)
	assert.False(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestBuild_TranslationScope(t *testing.T) {
	f := fixtures.Scenario()
	id := f.TranslateScoped(map[string]map[string]map[string]string{
		"scenario_2018": {"label": {"en": "Edition label", "fr": "Libellé"}},
		"scenario":      {"label": {"en": "Code label"}},
		"wocat":         {"label": {"en": "Shared label"}},
	})
	require.NoError(t, f.Store.PutKey(context.Background(), &lookup.Key{
		Keyword:       "key_1",
		Configuration: M{"type": "measure"},
		Values:        []string{"A", "B", "C"},
		TranslationID: id,
	}))

	cfg, err := buildDocument(t, f, fixtures.ScenarioDocument())
	require.NoError(t, err)
	q := cfg.QuestionByKeyword("qg_1", "key_1")
	assert.Equal(t, "Edition label", q.Label("en"))
	assert.Equal(t, "Libellé", q.Label("fr"))
	assert.Equal(t, "Libellé", q.Label("fr-CH"))
	assert.Equal(t, "Edition label", q.Label("de"))
	assert.Equal(t, id, q.TranslationID())
}

func TestBuild_MissingTranslation(t *testing.T) {
	f := fixtures.Scenario()
	require.NoError(t, f.Store.PutCategory(context.Background(), &lookup.Category{Keyword: "cat_1", TranslationID: 999}))

	cfg, err := buildDocument(t, f, fixtures.ScenarioDocument())
	require.NoError(t, err)
	cat := cfg.Category("cat_1")
	require.NotNil(t, cat)
	assert.Equal(t, "", cat.Label(DefaultLocale))
	assert.Equal(t, "", cfg.QuestiongroupByKeyword("qg_1").Label(DefaultLocale))
}

func TestBuild_Dependencies(t *testing.T) {
	cfg := mustBuild(t, fixtures.Scenario(), fixtures.ScenarioCode, fixtures.ScenarioEdition)
	deps := cfg.Dependencies()

	tests := []struct {
		event lookup.Event
		want  bool
	}{
		{lookup.Event{Kind: lookup.KindKey, Keyword: "key_1"}, true},
		{lookup.Event{Kind: lookup.KindKey, Keyword: "key_2"}, false},
		{lookup.Event{Kind: lookup.KindValue, Keyword: "B"}, true},
		{lookup.Event{Kind: lookup.KindQuestiongroup, Keyword: "qg_1"}, true},
		{lookup.Event{Kind: lookup.KindCategory, Keyword: "subcat_1"}, true},
		{lookup.Event{Kind: lookup.KindCategory, Keyword: "cat_9"}, false},
		{lookup.Event{Kind: lookup.KindTranslation, TranslationID: deps.TranslationIDs()[0]}, true},
		{lookup.Event{Kind: lookup.KindTranslation, TranslationID: 999}, false},
		{lookup.Event{Kind: lookup.KindConfiguration, Code: fixtures.ScenarioCode, Edition: "2030"}, true},
		{lookup.Event{Kind: lookup.KindConfiguration, Code: "other"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, deps.Affected(tt.event), "%+v", tt.event)
	}
}
