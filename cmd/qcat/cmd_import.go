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
	"errors"
	"fmt"
	"runtime"

	"github.com/AleutianAI/qcatschema/pkg/ux"
	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/source"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type importOptions struct {
	snapshot  string
	documents string
	path      string
	dryRun    bool
	validate  bool
}

func newImportCmd(a *app) *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a lookup snapshot and configuration documents into the store",
		Long: `Writes the entities of a lookup snapshot, and optionally every document of
a configuration directory, into the badger store at storage.path. With
--dry-run the data is loaded into memory and only validated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runImport(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.snapshot, "snapshot", "s", "", "Lookup snapshot JSON file")
	cmd.Flags().StringVarP(&opts.documents, "documents", "d", "", "Configuration directory (<code>/<edition>.json)")
	cmd.Flags().StringVar(&opts.path, "path", "", "Badger directory (default storage.path)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Import into memory and discard")
	cmd.Flags().BoolVar(&opts.validate, "validate", true, "Build every imported configuration afterwards")
	return cmd
}

func (a *app) runImport(ctx context.Context, opts *importOptions) error {
	if opts.snapshot == "" && opts.documents == "" {
		return a.fail(errors.New("nothing to import: pass --snapshot and/or --documents"))
	}

	batchID := uuid.NewString()
	logger := a.logger.With("batch_id", batchID)

	storage := a.cfg.Storage
	if opts.path != "" {
		storage.Path = opts.path
		storage.InMemory = false
	}
	if opts.dryRun {
		storage.InMemory = true
	}
	if storage.InMemory || storage.Path == "" {
		if !opts.dryRun {
			a.printer.Warning("storage is in memory; imported data is discarded on exit")
		}
		storage.InMemory = true
	}
	a.cfg.Storage = storage

	store, closeStore, err := a.openStore()
	if err != nil {
		return a.fail(err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	a.printer.Title("Import " + batchID)

	if opts.snapshot != "" {
		stats, err := applySnapshot(ctx, opts.snapshot, store)
		if err != nil {
			logger.Error("snapshot import failed", "path", opts.snapshot, "error", err)
			return a.fail(err)
		}
		logger.Info("snapshot imported", "path", opts.snapshot, "configurations", stats.Configurations)
		a.printer.Table(
			[]string{"ENTITY", "COUNT"},
			[][]string{
				{"translations", fmt.Sprint(stats.Translations)},
				{"values", fmt.Sprint(stats.Values)},
				{"keys", fmt.Sprint(stats.Keys)},
				{"questiongroups", fmt.Sprint(stats.Questiongroups)},
				{"categories", fmt.Sprint(stats.Categories)},
				{"configurations", fmt.Sprint(stats.Configurations)},
			},
		)
	}

	if opts.documents != "" {
		dir, err := source.NewDirSource(opts.documents, source.WithDirLogger(logger.Slog()))
		if err != nil {
			return a.fail(err)
		}
		n, err := source.Copy(ctx, dir, store)
		if err != nil {
			logger.Error("document import failed", "dir", dir.Root(), "copied", n, "error", err)
			return a.fail(err)
		}
		logger.Info("documents imported", "dir", dir.Root(), "copied", n)
		a.printer.Success(fmt.Sprintf("copied %d documents from %s", n, dir.Root()))
	}

	if !opts.validate {
		return nil
	}
	return a.validateStore(ctx, store)
}

// validateStore builds every document held by store.
func (a *app) validateStore(ctx context.Context, store backend) error {
	targets, err := listTargets(ctx, store)
	if err != nil {
		return a.fail(err)
	}
	builder := schema.NewBuilder(store, store, schema.WithLogger(a.logger.Slog()))
	results := validateAll(ctx, builder, targets, runtime.NumCPU())
	invalid := 0
	for _, r := range results {
		if r.Err != nil {
			invalid++
			a.printer.Status(r.label(), ux.IconError, r.Err.Error())
		}
	}
	a.printer.Summary(len(results)-invalid, invalid, len(results))
	if invalid > 0 {
		return errInvalidConfigurations
	}
	return nil
}
