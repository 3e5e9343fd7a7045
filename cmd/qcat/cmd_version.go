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
	"fmt"
	"runtime"

	"github.com/AleutianAI/qcatschema/services/schema"
	"github.com/AleutianAI/qcatschema/services/schema/api"
	"github.com/AleutianAI/qcatschema/services/schema/materialize"
	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			a.printer.Info(fmt.Sprintf("qcat %s (%s, %s/%s)", api.ServiceVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH))
			a.printer.Info(fmt.Sprintf("field types: %d registered of %d", len(materialize.RegisteredFieldTypes()), len(schema.FieldTypes())))
		},
	}
}
