// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package condition

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCondition matches InvalidConditionError.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrInvalidQuestiongroupCondition matches
	// InvalidQuestiongroupConditionError.
	ErrInvalidQuestiongroupCondition = errors.New("invalid questiongroup condition")

	// errSyntax is wrapped by the expression parser.
	errSyntax = errors.New("syntax error")
)

// InvalidConditionError reports a malformed question or value condition.
type InvalidConditionError struct {
	Condition string
	Reason    string
}

func (e *InvalidConditionError) Error() string {
	return fmt.Sprintf("invalid condition %q: %s", e.Condition, e.Reason)
}

func (e *InvalidConditionError) Is(target error) bool {
	return target == ErrInvalidCondition
}

// InvalidQuestiongroupConditionError reports a condition whose expression is
// not a comparison, or a malformed questiongroup condition.
type InvalidQuestiongroupConditionError struct {
	Condition string
	Reason    string
}

func (e *InvalidQuestiongroupConditionError) Error() string {
	return fmt.Sprintf("invalid questiongroup condition %q: %s", e.Condition, e.Reason)
}

func (e *InvalidQuestiongroupConditionError) Is(target error) bool {
	return target == ErrInvalidQuestiongroupCondition
}
