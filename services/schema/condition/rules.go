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
	"strings"
)

// Named links a comparison to the name of a condition target. It is the
// parsed form of both question_conditions and questiongroup_conditions.
type Named struct {
	Raw        string
	Comparison Comparison
	Name       string
}

// Value toggles visibility of the question Key when the value Value of the
// owning question is selected (Enabled) or deselected.
type Value struct {
	Raw     string
	Value   string
	Enabled bool
	Key     string
}

// ParseQuestionCondition parses "<expr>|<name>". A malformed split is an
// InvalidConditionError; an expression that does not parse is an
// InvalidQuestiongroupConditionError.
func ParseQuestionCondition(raw string) (Named, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 2 {
		return Named{}, &InvalidConditionError{Condition: raw, Reason: "expected <expression>|<name>"}
	}
	cmp, err := ParseComparison(parts[0])
	if err != nil {
		return Named{}, &InvalidQuestiongroupConditionError{Condition: raw, Reason: err.Error()}
	}
	return Named{Raw: raw, Comparison: cmp, Name: parts[1]}, nil
}

// ParseQuestiongroupCondition parses "<expr>|<name>". Both failure modes are
// InvalidQuestiongroupConditionError.
func ParseQuestiongroupCondition(raw string) (Named, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 2 {
		return Named{}, &InvalidQuestiongroupConditionError{Condition: raw, Reason: "expected <expression>|<name>"}
	}
	cmp, err := ParseComparison(parts[0])
	if err != nil {
		return Named{}, &InvalidQuestiongroupConditionError{Condition: raw, Reason: err.Error()}
	}
	return Named{Raw: raw, Comparison: cmp, Name: parts[1]}, nil
}

// ParseValueCondition parses "<value>|<bool-expr>|<question-keyword>".
// choiceKeys are the string forms of the owning question's choice keys; the
// value part must be one of them.
func ParseValueCondition(raw string, choiceKeys []string) (Value, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 3 {
		return Value{}, &InvalidConditionError{Condition: raw, Reason: "expected <value>|<expression>|<key>"}
	}
	found := false
	for _, k := range choiceKeys {
		if k == parts[0] {
			found = true
			break
		}
	}
	if !found {
		return Value{}, &InvalidConditionError{Condition: raw, Reason: "value " + parts[0] + " is not a choice"}
	}
	enabled, err := EvalBool(parts[1])
	if err != nil {
		return Value{}, &InvalidConditionError{Condition: raw, Reason: err.Error()}
	}
	return Value{Raw: raw, Value: parts[0], Enabled: enabled, Key: parts[2]}, nil
}
