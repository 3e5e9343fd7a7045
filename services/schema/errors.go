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
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/qcatschema/services/schema/condition"
	"github.com/AleutianAI/qcatschema/services/schema/lookup"
)

// Sentinel errors. Every typed error below matches exactly one of them
// through errors.Is.
var (
	ErrInvalidConfiguration     = errors.New("invalid configuration")
	ErrInvalidOption            = errors.New("invalid option")
	ErrNotInDatabase            = errors.New("not in database")
	ErrNoConfigurationFound     = errors.New("no configuration found")
	ErrUnknownFieldType         = errors.New("unknown field type")
	ErrMissingDefinitionMapping = errors.New("missing definition mapping")

	// Condition errors are raised by the condition package and re-exported
	// so callers only need to import schema.
	ErrInvalidCondition              = condition.ErrInvalidCondition
	ErrInvalidQuestiongroupCondition = condition.ErrInvalidQuestiongroupCondition
)

// InvalidConfigurationError reports an attribute of the wrong shape.
type InvalidConfigurationError struct {
	Field        string
	ExpectedType string
	Context      string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("configuration %q of %q must be of type %q", e.Field, e.Context, e.ExpectedType)
}

func (e *InvalidConfigurationError) Is(target error) bool { return target == ErrInvalidConfiguration }

// InvalidOptionError reports a value outside its allow-list: an unknown
// configuration key or an unknown field type.
type InvalidOptionError struct {
	Value   string
	Field   string
	Context string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("option %q is not valid for %q of %q", e.Value, e.Field, e.Context)
}

func (e *InvalidOptionError) Is(target error) bool { return target == ErrInvalidOption }

// NotInDatabaseError reports a keyword that does not resolve in the lookup
// store, or a question without the predefined values its type needs.
type NotInDatabaseError struct {
	Kind    lookup.Kind
	Keyword string
}

func (e *NotInDatabaseError) Error() string {
	return fmt.Sprintf("%s %q not found in the database", e.Kind, e.Keyword)
}

func (e *NotInDatabaseError) Is(target error) bool { return target == ErrNotInDatabase }

// NoConfigurationFoundError means no document exists for the requested
// code and edition. It is the only error a Configuration captures instead
// of returning.
type NoConfigurationFoundError struct {
	Code    string
	Edition string
}

func (e *NoConfigurationFoundError) Error() string {
	if e.Edition == "" {
		return fmt.Sprintf("no configuration found for %q", e.Code)
	}
	return fmt.Sprintf("no configuration found for %q edition %q", e.Code, e.Edition)
}

func (e *NoConfigurationFoundError) Is(target error) bool { return target == ErrNoConfigurationFound }

// UnknownFieldTypeError is returned by materializers handed a field type
// they have no handler for.
type UnknownFieldTypeError struct {
	Type FieldType
}

func (e *UnknownFieldTypeError) Error() string {
	return fmt.Sprintf("no handler registered for field type %q", e.Type)
}

func (e *UnknownFieldTypeError) Is(target error) bool { return target == ErrUnknownFieldType }

// MissingDefinitionMappingError means list data was requested for a
// configuration code without an entry in the definition mapping.
type MissingDefinitionMappingError struct {
	Code string
}

func (e *MissingDefinitionMappingError) Error() string {
	return fmt.Sprintf("no definition mapping for configuration %q", e.Code)
}

func (e *MissingDefinitionMappingError) Is(target error) bool {
	return target == ErrMissingDefinitionMapping
}

// BuildError locates a construction failure in the tree.
type BuildError struct {
	Path []string
	Err  error
}

func (e *BuildError) Error() string {
	return strings.Join(e.Path, " > ") + ": " + e.Err.Error()
}

func (e *BuildError) Unwrap() error { return e.Err }

// atNode prefixes err with the node segment kind[keyword].
func atNode(kind NodeKind, keyword string, err error) error {
	if err == nil {
		return nil
	}
	segment := fmt.Sprintf("%s[%s]", kind, keyword)
	var be *BuildError
	if errors.As(err, &be) {
		return &BuildError{Path: append([]string{segment}, be.Path...), Err: be.Err}
	}
	return &BuildError{Path: []string{segment}, Err: err}
}

// IsConfigurationError reports whether err is one of the configuration
// error types, as opposed to an I/O or context failure.
func IsConfigurationError(err error) bool {
	for _, target := range []error{
		ErrInvalidConfiguration,
		ErrInvalidOption,
		ErrNotInDatabase,
		ErrNoConfigurationFound,
		ErrInvalidCondition,
		ErrInvalidQuestiongroupCondition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
