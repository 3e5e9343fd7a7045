// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/AleutianAI/qcatschema/pkg/validation"
	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/spf13/cobra"
)

type inspectOptions struct {
	locale string
	json   bool
}

func (o *inspectOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.locale, "locale", "l", "", "Locale of labels (default locales.default)")
	cmd.Flags().BoolVar(&o.json, "json", false, "Print JSON instead of a table")
}

// buildConfiguration builds code/edition and returns its tree, or the
// configuration error it carries.
func (a *app) buildConfiguration(ctx context.Context, args []string) (*schema.Configuration, func() error, error) {
	code, edition := configurationArgs(args)
	if err := validation.ValidateCode(code); err != nil {
		return nil, nil, err
	}
	if edition != "" {
		if err := validation.ValidateEdition(edition); err != nil {
			return nil, nil, err
		}
	}
	rt, err := a.openRuntime(ctx)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := rt.Builder(a).Build(ctx, code, edition)
	if err == nil {
		err = cfg.Error()
	}
	if err != nil {
		_ = rt.Close()
		return nil, nil, err
	}
	return cfg, rt.Close, nil
}

// resolveLocale returns the canonical form of raw, or the default locale.
func (a *app) resolveLocale(raw string) (string, error) {
	if raw == "" {
		return a.cfg.Locales.Default, nil
	}
	return validation.NormalizeLocale(raw)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// filter-keys
// =============================================================================

func newFilterKeysCmd(a *app) *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "filter-keys <code> [edition]",
		Short: "List the filterable questions of a configuration",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			locale, err := a.resolveLocale(opts.locale)
			if err != nil {
				return a.fail(err)
			}
			cfg, closeRuntime, err := a.buildConfiguration(cmd.Context(), args)
			if err != nil {
				return a.fail(err)
			}
			defer closeRuntime()

			keys := cfg.FilterKeys(locale)
			if opts.json {
				return writeJSON(a.printer.Out(), keys)
			}
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{
					k.Path,
					k.Label,
					k.FilterType,
					strconv.FormatFloat(k.Order, 'f', -1, 64),
					k.SectionLabel,
				})
			}
			a.printer.Table([]string{"PATH", "LABEL", "TYPE", "ORDER", "SECTION"}, rows)
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

// =============================================================================
// translations
// =============================================================================

func newTranslationsCmd(a *app) *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "translations <code> [edition]",
		Short: "List the translation ids a configuration uses",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeRuntime, err := a.buildConfiguration(cmd.Context(), args)
			if err != nil {
				return a.fail(err)
			}
			defer closeRuntime()

			ids := cfg.TranslationIDs()
			if opts.json {
				return writeJSON(a.printer.Out(), ids)
			}
			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				rows = append(rows, []string{strconv.FormatInt(id, 10)})
			}
			a.printer.Table([]string{"TRANSLATION ID"}, rows)
			a.printer.Muted(fmt.Sprintf("%d translations", len(ids)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print JSON instead of a table")
	return cmd
}

// =============================================================================
// list-data
// =============================================================================

func newListDataCmd(a *app) *cobra.Command {
	opts := &inspectOptions{}
	var file string
	cmd := &cobra.Command{
		Use:   "list-data <code> [edition]",
		Short: "Extract the list view of questionnaires",
		Long: `Reads a JSON array of questionnaire data objects from --file (or stdin
with "-") and prints the in_list questions of each as JSON.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			locale, err := a.resolveLocale(opts.locale)
			if err != nil {
				return a.fail(err)
			}
			questionnaires, err := readQuestionnaires(cmd.InOrStdin(), file)
			if err != nil {
				return a.fail(err)
			}
			cfg, closeRuntime, err := a.buildConfiguration(cmd.Context(), args)
			if err != nil {
				return a.fail(err)
			}
			defer closeRuntime()

			items, err := cfg.ListData(cmd.Context(), locale, questionnaires, nil)
			if err != nil {
				return a.fail(err)
			}
			return writeJSON(a.printer.Out(), items)
		},
	}
	cmd.Flags().StringVarP(&opts.locale, "locale", "l", "", "Locale of labels (default locales.default)")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Questionnaire data file, or - for stdin")
	return cmd
}

func readQuestionnaires(stdin io.Reader, path string) ([]schema.QuestionnaireData, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read questionnaires: %w", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("questionnaires must be a JSON array: %w", err)
	}
	out := make([]schema.QuestionnaireData, 0, len(items))
	for i, item := range items {
		data, err := schema.ParseQuestionnaireData(item)
		if err != nil {
			return nil, fmt.Errorf("questionnaire %d: %w", i, err)
		}
		out = append(out, data)
	}
	return out, nil
}
