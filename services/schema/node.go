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
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// DefaultLocale is the locale texts fall back to.
const DefaultLocale = lookup.DefaultLocale

// texts resolves translated strings of one entity within the scope of the
// tree being built.
type texts struct {
	tr    *lookup.Translation
	scope lookup.Scope
}

func (t texts) lookup(keyword, locale string) (string, bool) {
	return t.tr.Text(keyword, t.scope, locale)
}

func (t texts) text(keyword, locale string) string {
	s, _ := t.lookup(keyword, locale)
	return s
}

// node carries what every non-root node has.
type node struct {
	kind        NodeKind
	keyword     string
	viewOptions Options
	formOptions Options
	texts       texts
	translation int64
}

func (n *node) Kind() NodeKind       { return n.kind }
func (n *node) Keyword() string      { return n.keyword }
func (n *node) ViewOptions() Options { return n.viewOptions }
func (n *node) FormOptions() Options { return n.formOptions }

// TranslationID is zero when the entity has no translation.
func (n *node) TranslationID() int64 { return n.translation }

func (n *node) Label(locale string) string {
	return n.texts.text(lookup.TranslationLabel, locale)
}

func (n *node) Helptext(locale string) string {
	return n.texts.text(lookup.TranslationHelptext, locale)
}

// LabelView is the label used in read-only views, falling back to Label.
func (n *node) LabelView(locale string) string {
	if s, ok := n.texts.lookup(lookup.TranslationLabelView, locale); ok {
		return s
	}
	return n.Label(locale)
}
