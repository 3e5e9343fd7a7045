// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command qcat validates, inspects and serves questionnaire configurations.
//
// Usage:
//
//	qcat validate technologies 2018
//	qcat validate --all
//	qcat filter-keys technologies --locale fr
//	qcat list-data technologies --file questionnaires.json
//	qcat translations technologies 2018
//	qcat import --snapshot lookup.json --documents ./configurations
//	qcat serve --config qcat.yaml
//
// Configuration is read from --config, $QCAT_CONFIG or ./qcat.yaml, in that
// order. See pkg/config for the file format.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
