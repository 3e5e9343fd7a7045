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
	"time"

	"github.com/AleutianAI/qcatschema/pkg/ux"
	"github.com/AleutianAI/qcatschema/pkg/validation"
	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// errInvalidConfigurations makes validate exit non-zero after reporting.
var errInvalidConfigurations = errors.New("one or more configurations are invalid")

type validateOptions struct {
	all  bool
	jobs int
}

func newValidateCmd(a *app) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate [code] [edition]",
		Short: "Build configurations and report configuration errors",
		Long: `Builds the schema tree of one configuration, or of every edition of every
configuration with --all, and reports the first error of each. Without an
edition the latest edition is built.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(1, 2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd.Context(), opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.all, "all", false, "Validate every edition of every configuration")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", runtime.NumCPU(), "Concurrent builds with --all")
	return cmd
}

// validationResult is the outcome of building one edition.
type validationResult struct {
	Code     string
	Edition  string
	Err      error
	Duration time.Duration
}

func (r validationResult) label() string {
	if r.Edition == "" {
		return r.Code
	}
	return r.Code + "/" + r.Edition
}

func (a *app) runValidate(ctx context.Context, opts *validateOptions, args []string) error {
	rt, err := a.openRuntime(ctx)
	if err != nil {
		return a.fail(err)
	}
	defer rt.Close()
	builder := rt.Builder(a)

	var targets []validationResult
	if opts.all {
		targets, err = listTargets(ctx, rt.docs)
		if err != nil {
			return a.fail(err)
		}
	} else {
		code, edition := configurationArgs(args)
		if err := validation.ValidateCode(code); err != nil {
			return a.fail(err)
		}
		if edition != "" {
			if err := validation.ValidateEdition(edition); err != nil {
				return a.fail(err)
			}
		}
		targets = []validationResult{{Code: code, Edition: edition}}
	}

	results := validateAll(ctx, builder, targets, opts.jobs)

	a.printer.Title("Configuration validation")
	invalid := 0
	for _, r := range results {
		if r.Err != nil {
			invalid++
			a.printer.Status(r.label(), ux.IconError, r.Err.Error())
			continue
		}
		a.printer.Status(r.label(), ux.IconSuccess, r.Duration.Round(time.Millisecond).String())
	}
	a.printer.Summary(len(results)-invalid, invalid, len(results))
	if invalid > 0 {
		return errInvalidConfigurations
	}
	return nil
}

// listTargets enumerates every (code, edition) pair of docs.
func listTargets(ctx context.Context, docs lookup.DocumentStore) ([]validationResult, error) {
	codes, err := docs.Codes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	var out []validationResult
	for _, code := range codes {
		editions, err := docs.Editions(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("list editions of %s: %w", code, err)
		}
		for _, e := range editions {
			out = append(out, validationResult{Code: code, Edition: e})
		}
	}
	return out, nil
}

// validateAll builds every target with at most jobs concurrent builds.
// Results keep the order of targets.
func validateAll(ctx context.Context, builder *schema.Builder, targets []validationResult, jobs int) []validationResult {
	if jobs < 1 {
		jobs = 1
	}
	results := make([]validationResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, t := range targets {
		g.Go(func() error {
			start := time.Now()
			cfg, err := builder.Build(gctx, t.Code, t.Edition)
			if err == nil {
				err = cfg.Error()
			}
			t.Err = err
			t.Duration = time.Since(start)
			results[i] = t
			return nil
		})
	}
	_ = g.Wait()
	return results
}
