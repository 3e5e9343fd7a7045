// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fixtures builds lookup stores and configuration documents for
// tests of the schema packages.
package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// Fixture wraps a MemoryStore with shorthand writers. Writers panic on
// error; fixtures are only used from tests.
type Fixture struct {
	Store *lookup.MemoryStore
	next  int64
	clock time.Time
}

func New() *Fixture {
	return &Fixture{
		Store: lookup.NewMemoryStore(),
		clock: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("fixture: %v", err))
	}
}

// Ptr returns a pointer to i, for Value order values.
func Ptr(i int) *int { return &i }

// Texts maps translation keywords to English texts.
type Texts map[string]string

// Translate stores a translation in the shared scope and returns its id.
// Empty texts store nothing and return zero.
func (f *Fixture) Translate(texts Texts) int64 {
	if len(texts) == 0 {
		return 0
	}
	blob := map[string]map[string]string{}
	for kw, text := range texts {
		blob[kw] = map[string]string{lookup.DefaultLocale: text}
	}
	return f.TranslateScoped(map[string]map[string]map[string]string{lookup.FallbackScope: blob})
}

// TranslateScoped stores a translation with explicit scopes and locales.
func (f *Fixture) TranslateScoped(data map[string]map[string]map[string]string) int64 {
	f.next++
	must(f.Store.PutTranslation(context.Background(), &lookup.Translation{ID: f.next, Data: data}))
	return f.next
}

func (f *Fixture) Category(keyword, label string) {
	must(f.Store.PutCategory(context.Background(), &lookup.Category{
		Keyword:       keyword,
		TranslationID: f.Translate(Texts{lookup.TranslationLabel: label}),
	}))
}

func (f *Fixture) Questiongroup(keyword, label string, config map[string]any) {
	var texts Texts
	if label != "" {
		texts = Texts{lookup.TranslationLabel: label}
	}
	must(f.Store.PutQuestiongroup(context.Background(), &lookup.Questiongroup{
		Keyword:       keyword,
		Configuration: config,
		TranslationID: f.Translate(texts),
	}))
}

// Key stores a Key of fieldType labelled label. config may add view, form
// and filter option defaults.
func (f *Fixture) Key(keyword, fieldType, label string, config map[string]any, values ...string) {
	f.KeyTexts(keyword, fieldType, Texts{lookup.TranslationLabel: label}, config, values...)
}

func (f *Fixture) KeyTexts(keyword, fieldType string, texts Texts, config map[string]any, values ...string) {
	cfg := map[string]any{}
	for k, v := range config {
		cfg[k] = v
	}
	if fieldType != "" {
		cfg["type"] = fieldType
	}
	must(f.Store.PutKey(context.Background(), &lookup.Key{
		Keyword:       keyword,
		Configuration: cfg,
		Values:        values,
		TranslationID: f.Translate(texts),
	}))
}

func (f *Fixture) Value(keyword, label string, order *int, config map[string]any) {
	must(f.Store.PutValue(context.Background(), &lookup.Value{
		Keyword:       keyword,
		OrderValue:    order,
		Configuration: config,
		TranslationID: f.Translate(Texts{lookup.TranslationLabel: label}),
	}))
}

// Document stores doc as an edition of code. Later documents are newer.
func (f *Fixture) Document(code, edition string, doc any) *lookup.Document {
	raw, err := json.Marshal(doc)
	must(err)
	f.clock = f.clock.Add(time.Hour)
	d := &lookup.Document{Code: code, Edition: edition, Data: raw, Created: f.clock}
	must(f.Store.PutDocument(context.Background(), d))
	return d
}

// =============================================================================
// Canned fixtures
// =============================================================================

// M is shorthand for a JSON object.
type M = map[string]any

// L is shorthand for a JSON array.
type L = []any

const (
	ScenarioCode    = "scenario"
	ScenarioEdition = "2018"
)

// Scenario is one section, category, subcategory and questiongroup qg_1
// (1 to 3 instances) holding the measure question key_1 with values A
// (order 2), B (order 1) and C (order 3).
func Scenario() *Fixture {
	f := New()
	f.Category("section_1", "Section 1")
	f.Category("cat_1", "Category 1")
	f.Category("subcat_1", "Subcategory 1")
	f.Questiongroup("qg_1", "", nil)
	f.Value("A", "Value A", Ptr(2), nil)
	f.Value("B", "Value B", Ptr(1), nil)
	f.Value("C", "Value C", Ptr(3), nil)
	f.Key("key_1", "measure", "Key 1", nil, "A", "B", "C")
	f.Document(ScenarioCode, ScenarioEdition, ScenarioDocument())
	return f
}

func ScenarioDocument() M {
	return M{"sections": L{
		M{"keyword": "section_1", "categories": L{
			M{"keyword": "cat_1", "subcategories": L{
				M{"keyword": "subcat_1", "questiongroups": L{
					M{
						"keyword":      "qg_1",
						"form_options": M{"min_num": 1, "max_num": 3},
						"questions":    L{M{"keyword": "key_1"}},
					},
				}},
			}},
		}},
	}}
}

const (
	SampleCode    = "sample"
	SampleEdition = "2015"
)

// Sample is a configuration exercising most field types:
//
//	section_1
//	  cat_1 (1)
//	    subcat_1_1: qg_1 [key_1 char name, key_2 text], qg_2 [key_3 select, key_4 checkbox]
//	    subcat_1_2: qg_3 numbered [key_5 int, key_6 bool]
//	  cat_2 (2)
//	    subcat_2_1: qg_4 [key_7 image_checkbox, key_8 char conditional], qg_5 [key_9 date]
//	    subcat_2_2: qg_6 user_role [key_10 radio, key_11 user_id]
//	section_2 (media gallery)
//	  cat_3 (3)
//	    subcat_3_1: qg_photo [image, image_caption], qg_image_remarks [image_remarks]
//	    subcat_3_2 (has_links): qg_links__approaches [link_id]
//	    subcat_3_3: qg_inherited [key_12 float], qg_misc [key_13 measure, key_14 map,
//	                key_15 link_video, key_16 select_model, key_17 select_conditional_questiongroup,
//	                key_18 wms_layer, key_19 hidden, key_20 todo, key_21 cb_bool,
//	                key_22 multi_select, key_23 select_type, key_24 select_conditional_custom,
//	                key_25 display_only, key_26 file, key_27 link_id]
func Sample() *Fixture {
	f := New()
	for kw, label := range map[string]string{
		"section_1": "Section 1", "section_2": "Section 2",
		"cat_1": "Category 1", "cat_2": "Category 2", "cat_3": "Category 3",
		"subcat_1_1": "Subcategory 1.1", "subcat_1_2": "Subcategory 1.2",
		"subcat_2_1": "Subcategory 2.1", "subcat_2_2": "Subcategory 2.2",
		"subcat_3_1": "Subcategory 3.1", "subcat_3_2": "Subcategory 3.2",
		"subcat_3_3": "Subcategory 3.3",
	} {
		f.Category(kw, label)
	}

	f.Questiongroup("qg_1", "Name", nil)
	f.Questiongroup("qg_2", "Land use", nil)
	f.Questiongroup("qg_3", "Numbers", nil)
	f.Questiongroup("qg_4", "Pictures", nil)
	f.Questiongroup("qg_5", "Dates", nil)
	f.Questiongroup("qg_6", "People", nil)
	f.Questiongroup("qg_photo", "Photos", nil)
	f.Questiongroup("qg_image_remarks", "Remarks", nil)
	f.Questiongroup("qg_links__approaches", "Linked approaches", nil)
	f.Questiongroup("qg_inherited", "Inherited", M{
		"inherited_configuration": "technologies",
		"inherited_questiongroup": "tech_qg_1",
	})
	f.Questiongroup("qg_misc", "Miscellaneous", nil)

	f.Value("value_1", "Cropland", nil, nil)
	f.Value("value_2", "Forest", nil, nil)
	f.Value("value_3", "Grazing land", nil, nil)
	f.Value("value_4", "Wind", nil, nil)
	f.Value("value_5", "Erosion", nil, nil)
	f.Value("value_6", "Terraces", nil, M{"image_name": "terraces.png"})
	f.Value("value_7", "Bunds", nil, M{"image_name": "bunds.png"})
	f.Value("value_8", "Yes, often", nil, nil)
	f.Value("value_9", "Rarely", nil, nil)
	f.Value("low", "Low", Ptr(1), nil)
	f.Value("medium", "Medium", Ptr(2), nil)
	f.Value("high", "High", Ptr(3), nil)

	f.KeyTexts("key_1", "char", Texts{
		lookup.TranslationLabel:       "Name",
		lookup.TranslationLabelView:   "Name of the practice",
		lookup.TranslationLabelFilter: "Practice name",
		lookup.TranslationHelptext:    "The local name",
	}, M{"view_options": M{"in_list": true, "is_name": true}, "filter_options": M{"order": 2}})
	f.Key("key_2", "text", "Description", nil)
	f.Key("key_3", "select", "Land use", M{"filter_options": M{"order": 1}}, "value_2", "value_1", "value_3")
	f.Key("key_4", "checkbox", "Problems", M{"view_options": M{"in_list": true}}, "value_5", "value_4")
	f.Key("key_5", "int", "Year", M{"form_options": M{"field_options": M{"min": 1900, "max": "now"}}})
	f.Key("key_6", "bool", "Funded", M{"view_options": M{"in_list": true}})
	f.Key("key_7", "image_checkbox", "Measures", nil, "value_6", "value_7")
	f.Key("key_8", "char", "Terrace remark", nil)
	f.Key("key_9", "date", "Date", nil)
	f.Key("key_10", "radio", "Frequency", nil, "value_8", "value_9")
	f.Key("key_11", "user_id", "Compiler", nil)
	f.Key("image", "image", "Photo", nil)
	f.Key("image_caption", "char", "Caption", nil)
	f.Key("image_remarks", "text", "Remarks", nil)
	f.Key("link_id", "link_id", "Link", nil)
	f.Key("key_12", "float", "Area", M{"form_options": M{"field_options": M{"decimals": 2}}})
	f.KeyTexts("key_13", "measure", Texts{
		lookup.TranslationLabel:      "Slope",
		lookup.TranslationLabelLeft:  "flat",
		lookup.TranslationLabelRight: "steep",
	}, nil, "low", "medium", "high")
	f.Key("key_14", "map", "Map", M{"view_options": M{"is_geometry": true}})
	f.Key("key_15", "link_video", "Video", nil)
	f.Key("key_16", "select_model", "Institution", M{"form_options": M{"model": "institution"}})
	f.Key("key_17", "select_conditional_questiongroup", "Main picture group", M{
		"form_options": M{"options_by_questiongroups": L{"qg_4", "qg_5"}},
	})
	f.Key("key_18", "wms_layer", "Layer", M{"view_options": M{"wms_url": "https://maps.example.org/wms"}})
	f.Key("key_19", "hidden", "Hidden", nil)
	f.Key("key_20", "todo", "Todo", nil)
	f.Key("key_21", "cb_bool", "Confirmed", nil)
	f.Key("key_22", "multi_select", "Crops", nil, "value_1", "value_2")
	f.Key("key_23", "select_type", "Type", nil, "value_1", "value_2")
	f.Key("key_24", "select_conditional_custom", "Custom", nil, "value_1", "value_2")
	f.Key("key_25", "display_only", "Computed", nil)
	f.Key("key_26", "file", "Document", nil)
	f.Key("key_27", "link_id", "Other link", nil)

	f.Document(SampleCode, SampleEdition, SampleDocument())
	return f
}

func q(kw string, extra ...M) M {
	out := M{"keyword": kw}
	for _, e := range extra {
		for k, v := range e {
			out[k] = v
		}
	}
	return out
}

func SampleDocument() M {
	return M{
		"modules": L{"cca"},
		"sections": L{
			M{"keyword": "section_1", "categories": L{
				M{"keyword": "cat_1", "form_options": M{"numbering": "1"}, "subcategories": L{
					M{"keyword": "subcat_1_1", "questiongroups": L{
						M{"keyword": "qg_1", "questions": L{q("key_1"), q("key_2")}},
						M{"keyword": "qg_2", "questions": L{q("key_3"), q("key_4")}},
					}},
					M{"keyword": "subcat_1_2", "questiongroups": L{
						M{
							"keyword":      "qg_3",
							"form_options": M{"min_num": 1, "max_num": 3, "numbered": "inline"},
							"questions":    L{q("key_5"), q("key_6")},
						},
					}},
				}},
				M{"keyword": "cat_2", "form_options": M{"numbering": "2"}, "subcategories": L{
					M{"keyword": "subcat_2_1", "questiongroups": L{
						M{"keyword": "qg_4", "questions": L{
							q("key_7", M{"form_options": M{"conditions": L{"value_6|True|key_8"}}}),
							q("key_8", M{"form_options": M{"conditional": true}}),
						}},
						M{
							"keyword":      "qg_5",
							"form_options": M{"questiongroup_condition": "qg_5_cond"},
							"questions":    L{q("key_9")},
						},
					}},
					M{"keyword": "subcat_2_2", "questiongroups": L{
						M{
							"keyword":      "qg_6",
							"form_options": M{"user_role": "compiler"},
							"questions": L{
								q("key_10", M{"form_options": M{"questiongroup_conditions": L{"=='value_8'|qg_5_cond"}}}),
								q("key_11"),
							},
						},
					}},
				}},
			}},
			M{"keyword": "section_2", "view_options": M{"media_gallery": true}, "categories": L{
				M{"keyword": "cat_3", "form_options": M{"numbering": "3"}, "subcategories": L{
					M{"keyword": "subcat_3_1", "questiongroups": L{
						M{"keyword": "qg_photo", "form_options": M{"max_num": 5}, "questions": L{q("image"), q("image_caption")}},
						M{"keyword": "qg_image_remarks", "questions": L{q("image_remarks")}},
					}},
					M{"keyword": "subcat_3_2", "form_options": M{"has_links": true}, "questiongroups": L{
						M{
							"keyword":      "qg_links__approaches",
							"form_options": M{"link": "approaches", "max_num": 10},
							"questions":    L{q("link_id")},
						},
					}},
					M{"keyword": "subcat_3_3", "questiongroups": L{
						M{"keyword": "qg_inherited", "questions": L{q("key_12")}},
						M{"keyword": "qg_misc", "questions": L{
							q("key_13"), q("key_14"), q("key_15"), q("key_16"), q("key_17"),
							q("key_18"), q("key_19"), q("key_20"), q("key_21"), q("key_22"),
							q("key_23"), q("key_24"), q("key_25"), q("key_26"), q("key_27"),
						}},
					}},
				}},
			}},
		},
	}
}
