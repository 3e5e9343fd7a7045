// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package condition parses and evaluates the small comparison expressions
// embedded in configuration form options.
//
// An expression is a comparison operator followed by a literal ("==1",
// ">= 3", "!='cropland'"), or, for value conditions, a complete comparison
// or boolean literal ("True", "1 < 2"). Literals are numbers, single- or
// double-quoted strings, True, False and None. Nothing else is accepted:
// there are no names, calls or arithmetic.
//
// Three rule flavours are built on top of expressions:
//
//	question_conditions        "<expr>|<name>"
//	conditions                 "<value>|<bool-expr>|<question-keyword>"
//	questiongroup_conditions   "<expr>|<name>"
package condition

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// =============================================================================
// Literals
// =============================================================================

// LiteralKind tags a Literal.
type LiteralKind int

const (
	KindNone LiteralKind = iota
	KindNumber
	KindString
	KindBool
)

// Literal is a constant operand.
type Literal struct {
	Kind LiteralKind
	Num  float64
	Str  string
	Bool bool
}

func Number(f float64) Literal { return Literal{Kind: KindNumber, Num: f} }
func String(s string) Literal  { return Literal{Kind: KindString, Str: s} }
func Bool(b bool) Literal      { return Literal{Kind: KindBool, Bool: b} }

// None is the null literal.
var None = Literal{Kind: KindNone}

// LiteralOf converts a decoded JSON value into a Literal. Values that have no
// literal form (lists, objects) report false.
func LiteralOf(v any) (Literal, bool) {
	switch t := v.(type) {
	case nil:
		return None, true
	case bool:
		return Bool(t), true
	case string:
		return String(t), true
	case float64:
		return Number(t), true
	case float32:
		return Number(float64(t)), true
	case int:
		return Number(float64(t)), true
	case int64:
		return Number(float64(t)), true
	default:
		return Literal{}, false
	}
}

func (l Literal) String() string {
	switch l.Kind {
	case KindNumber:
		return strconv.FormatFloat(l.Num, 'g', -1, 64)
	case KindString:
		return strconv.Quote(l.Str)
	case KindBool:
		if l.Bool {
			return "True"
		}
		return "False"
	default:
		return "None"
	}
}

// numeric returns the numeric value of numbers and booleans.
func (l Literal) numeric() (float64, bool) {
	switch l.Kind {
	case KindNumber:
		return l.Num, true
	case KindBool:
		if l.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// =============================================================================
// Operators
// =============================================================================

// Operator is one of the six comparison operators.
type Operator string

const (
	OpEq Operator = "=="
	OpNe Operator = "!="
	OpLt Operator = "<"
	OpLe Operator = "<="
	OpGt Operator = ">"
	OpGe Operator = ">="
)

// Two-character operators come first so that "<=" is not read as "<".
var operators = []Operator{OpEq, OpNe, OpLe, OpGe, OpLt, OpGt}

// Compare applies op to left and right. Equality never fails: operands of
// different kinds are unequal. Ordering is defined between numbers (and
// booleans) and between strings only.
func Compare(left Literal, op Operator, right Literal) (bool, error) {
	switch op {
	case OpEq:
		return equal(left, right), nil
	case OpNe:
		return !equal(left, right), nil
	}

	var cmp int
	ln, lok := left.numeric()
	rn, rok := right.numeric()
	switch {
	case lok && rok:
		switch {
		case ln < rn:
			cmp = -1
		case ln > rn:
			cmp = 1
		}
	case left.Kind == KindString && right.Kind == KindString:
		cmp = strings.Compare(left.Str, right.Str)
	default:
		return false, fmt.Errorf("%w: cannot order %s and %s", errSyntax, left, right)
	}

	switch op {
	case OpLt:
		return cmp < 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGe:
		return cmp >= 0, nil
	}
	return false, fmt.Errorf("%w: unknown operator %q", errSyntax, op)
}

func equal(a, b Literal) bool {
	an, aok := a.numeric()
	bn, bok := b.numeric()
	if aok && bok {
		return an == bn
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindString:
		return a.Str == b.Str
	case KindNone:
		return true
	}
	return false
}

// =============================================================================
// Comparison
// =============================================================================

// Comparison is an operator with its right-hand operand. The left-hand
// operand is supplied at evaluation time.
type Comparison struct {
	Op      Operator
	Operand Literal
}

// ParseComparison parses "<op> <literal>".
func ParseComparison(expr string) (Comparison, error) {
	p := &parser{src: expr}
	p.skipSpace()
	op, ok := p.operator()
	if !ok {
		return Comparison{}, fmt.Errorf("%w: expected comparison operator in %q", errSyntax, expr)
	}
	lit, err := p.literal()
	if err != nil {
		return Comparison{}, err
	}
	if err := p.end(); err != nil {
		return Comparison{}, err
	}
	return Comparison{Op: op, Operand: lit}, nil
}

// Eval compares value against the operand.
func (c Comparison) Eval(value Literal) (bool, error) {
	return Compare(value, c.Op, c.Operand)
}

// Matches evaluates the comparison against a decoded JSON value. Values
// without a literal form and incomparable kinds never match.
func (c Comparison) Matches(value any) bool {
	lit, ok := LiteralOf(value)
	if !ok {
		return false
	}
	res, err := c.Eval(lit)
	return err == nil && res
}

func (c Comparison) String() string {
	return string(c.Op) + c.Operand.String()
}

// EvalBool evaluates a closed boolean expression: a boolean literal or
// "<literal> <op> <literal>". Any other literal is rejected.
func EvalBool(expr string) (bool, error) {
	p := &parser{src: expr}
	p.skipSpace()
	left, err := p.literal()
	if err != nil {
		return false, err
	}
	p.skipSpace()
	if p.done() {
		if left.Kind != KindBool {
			return false, fmt.Errorf("%w: %q is not a boolean", errSyntax, expr)
		}
		return left.Bool, nil
	}
	op, ok := p.operator()
	if !ok {
		return false, fmt.Errorf("%w: expected comparison operator in %q", errSyntax, expr)
	}
	right, err := p.literal()
	if err != nil {
		return false, err
	}
	if err := p.end(); err != nil {
		return false, err
	}
	return Compare(left, op, right)
}

// =============================================================================
// Parser
// =============================================================================

type parser struct {
	src string
	pos int
}

func (p *parser) done() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) end() error {
	p.skipSpace()
	if !p.done() {
		return fmt.Errorf("%w: unexpected %q", errSyntax, p.src[p.pos:])
	}
	return nil
}

func (p *parser) operator() (Operator, bool) {
	p.skipSpace()
	rest := p.src[p.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, string(op)) {
			p.pos += len(op)
			return op, true
		}
	}
	return "", false
}

func (p *parser) literal() (Literal, error) {
	p.skipSpace()
	if p.done() {
		return Literal{}, fmt.Errorf("%w: missing operand in %q", errSyntax, p.src)
	}
	switch c := p.src[p.pos]; {
	case c == '\'' || c == '"':
		return p.quoted(c)
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		return p.keyword()
	}
}

func (p *parser) quoted(quote byte) (Literal, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case c == quote:
			p.pos++
			return String(b.String()), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return Literal{}, fmt.Errorf("%w: unterminated string %s", errSyntax, p.src[start:])
}

func (p *parser) number() (Literal, error) {
	start := p.pos
	if c := p.src[p.pos]; c == '-' || c == '+' {
		p.pos++
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '_' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		if (c == '-' || c == '+') && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E') {
			p.pos++
			continue
		}
		break
	}
	text := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return Literal{}, fmt.Errorf("%w: invalid number %q", errSyntax, p.src[start:p.pos])
	}
	return Number(f), nil
}

func (p *parser) keyword() (Literal, error) {
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		p.pos++
	}
	switch word := p.src[start:p.pos]; word {
	case "True":
		return Bool(true), nil
	case "False":
		return Bool(false), nil
	case "None":
		return None, nil
	case "":
		return Literal{}, fmt.Errorf("%w: unexpected %q", errSyntax, p.src[start:])
	default:
		return Literal{}, fmt.Errorf("%w: %q is not a literal", errSyntax, word)
	}
}
