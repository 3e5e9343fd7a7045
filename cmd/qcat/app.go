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
	"io/fs"
	"os"
	"strings"

	"github.com/AleutianAI/qcatschema/pkg/config"
	"github.com/AleutianAI/qcatschema/pkg/logging"
	"github.com/AleutianAI/qcatschema/pkg/ux"
	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
	"github.com/AleutianAI/qcatschema/services/schema/lookup/badgerstore"
	"github.com/AleutianAI/qcatschema/services/schema/source"
	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand. It is filled in by the
// root command's PersistentPreRunE.
type app struct {
	configPath string
	outputMode string
	logLevel   string

	cfg     config.Config
	logger  *logging.Logger
	printer *ux.Printer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "qcat",
		Short: "Validate, inspect and serve questionnaire configurations",
		Long: `qcat builds questionnaire schema trees from configuration documents and
lookup tables, reports configuration errors, and serves forms and details
over HTTP.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to the configuration file (default $QCAT_CONFIG or ./qcat.yaml)")
	flags.StringVarP(&a.outputMode, "output", "o", "rich", "Output style: rich or machine")
	flags.StringVar(&a.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newValidateCmd(a),
		newFilterKeysCmd(a),
		newListDataCmd(a),
		newTranslationsCmd(a),
		newImportCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setupOutput creates the printer for cmd's writers.
func (a *app) setupOutput(cmd *cobra.Command) {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	mode := ux.ParseMode(a.outputMode)
	if out == os.Stdout {
		a.printer = ux.Stdio(mode)
	} else {
		a.printer = ux.NewPrinter(out, errOut, mode)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.setupOutput(cmd)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(a.logLevel)
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(logging.Config{
		Level:   level,
		Service: "qcat",
		LogDir:  cfg.Logging.Dir,
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	return nil
}

// fail prints err and returns it so RunE can propagate the exit status.
func (a *app) fail(err error) error {
	a.printer.Error(err.Error())
	return err
}

// =============================================================================
// Runtime wiring
// =============================================================================

// backend is a lookup store that can also hold configuration documents.
// Both the in-memory and the badger store satisfy it.
type backend interface {
	lookup.Store
	lookup.DocumentStore
	lookup.Writer
	Events() *lookup.Broker
}

// cliRuntime holds the opened stores of one command invocation.
type cliRuntime struct {
	store   backend
	docs    lookup.DocumentStore
	dir     *source.DirSource
	brokers []*lookup.Broker
	closers []func() error
}

// Close releases everything opened by openRuntime, newest first.
func (r *cliRuntime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Builder returns a schema builder over the runtime's stores.
func (r *cliRuntime) Builder(a *app) *schema.Builder {
	return schema.NewBuilder(r.store, r.docs, schema.WithLogger(a.logger.Slog()))
}

// openRuntime opens the lookup store, applies the configured snapshot and
// selects the document source.
func (a *app) openRuntime(ctx context.Context) (rt *cliRuntime, err error) {
	rt = &cliRuntime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	store, closeStore, err := a.openStore()
	if err != nil {
		return nil, err
	}
	rt.store = store
	rt.brokers = append(rt.brokers, store.Events())
	if closeStore != nil {
		rt.closers = append(rt.closers, closeStore)
	}

	if path := a.cfg.Storage.Snapshot; path != "" {
		stats, err := applySnapshot(ctx, path, store)
		if err != nil {
			return nil, err
		}
		a.logger.Info("lookup snapshot applied",
			"path", path,
			"keys", stats.Keys,
			"values", stats.Values,
			"translations", stats.Translations,
			"configurations", stats.Configurations)
	}

	docs := a.cfg.Documents
	switch {
	case docs.GCS.Bucket != "":
		gcs, err := source.NewGCSSource(ctx, docs.GCS.Bucket, docs.GCS.Prefix, docs.GCS.CredentialsFile)
		if err != nil {
			return nil, err
		}
		rt.docs = gcs
		rt.closers = append(rt.closers, gcs.Close)
		a.logger.Info("reading configurations from GCS", "bucket", docs.GCS.Bucket, "prefix", docs.GCS.Prefix)
	case docs.Dir != "":
		dir, err := source.NewDirSource(docs.Dir, source.WithDirLogger(a.logger.Slog()))
		if errors.Is(err, fs.ErrNotExist) {
			a.logger.Debug("configuration directory not found, using the lookup store", "dir", docs.Dir)
			rt.docs = store
			break
		}
		if err != nil {
			return nil, err
		}
		rt.dir = dir
		rt.docs = dir
		rt.brokers = append(rt.brokers, dir.Events())
	default:
		rt.docs = store
	}
	return rt, nil
}

// openStore opens badger at storage.path, or an in-memory store.
func (a *app) openStore() (backend, func() error, error) {
	st := a.cfg.Storage
	if st.InMemory || st.Path == "" {
		return lookup.NewMemoryStore(), nil, nil
	}
	cfg := badgerstore.DefaultConfig(st.Path)
	cfg.Logger = a.logger.Slog()
	db, err := badgerstore.OpenDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open lookup store: %w", err)
	}
	store := badgerstore.New(db, badgerstore.WithLogger(a.logger.Slog()))
	return store, db.Close, nil
}

func applySnapshot(ctx context.Context, path string, w lookup.Writer) (lookup.ApplyStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return lookup.ApplyStats{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := lookup.ReadSnapshot(f)
	if err != nil {
		return lookup.ApplyStats{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return snap.Apply(ctx, w)
}

// configurationArgs parses "<code> [edition]".
func configurationArgs(args []string) (code, edition string) {
	code = args[0]
	if len(args) > 1 {
		edition = args[1]
	}
	return code, edition
}
