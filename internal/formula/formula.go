// Package formula parses and evaluates calculation rule formulas.
//
// The rule language is deliberately tiny: a formula is a single binary
// operation "Target = A OP B" over a closed operator set. Multi-operator
// expressions are rejected at parse time rather than silently mis-split.
package formula

import (
	"fmt"
	"strings"
)

// Op is a binary arithmetic operator.
type Op string

// The closed operator set.
const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
)

// ops is the operator scan order.
var ops = []Op{OpMul, OpAdd, OpSub, OpDiv}

// Formula is a parsed calculation: Target = Left Op Right.
type Formula struct {
	Target string
	Left   string
	Op     Op
	Right  string
}

// String renders the formula back to its canonical textual form.
func (f Formula) String() string {
	return fmt.Sprintf("%s = %s %s %s", f.Target, f.Left, f.Op, f.Right)
}

// Operands returns the two operand names.
func (f Formula) Operands() []string {
	return []string{f.Left, f.Right}
}

// Parse parses a formula string of the form "Target = A OP B".
//
// It fails when the string does not split on "=" into exactly two
// parts, when the right side contains no operator or more than one
// operator occurrence, or when either operand is empty.
func Parse(s string) (Formula, error) {
	parts := strings.Split(s, "=")
	if len(parts) != 2 {
		return Formula{}, fmt.Errorf("formula %q must contain exactly one %q", s, "=")
	}

	target := strings.TrimSpace(parts[0])
	expr := strings.TrimSpace(parts[1])
	if target == "" {
		return Formula{}, fmt.Errorf("formula %q has an empty target", s)
	}

	// A single binary operation only: more than one operator occurrence
	// across the whole right side is a configuration error.
	total := 0
	for _, op := range ops {
		total += strings.Count(expr, string(op))
	}
	if total == 0 {
		return Formula{}, fmt.Errorf("formula %q has no operator (expected one of + - * /)", s)
	}
	if total > 1 {
		return Formula{}, fmt.Errorf("formula %q has multiple operators; only single-operator formulas are supported", s)
	}

	for _, op := range ops {
		idx := strings.Index(expr, string(op))
		if idx < 0 {
			continue
		}
		left := strings.TrimSpace(expr[:idx])
		right := strings.TrimSpace(expr[idx+1:])
		if left == "" || right == "" {
			return Formula{}, fmt.Errorf("formula %q must have two operands around %q", s, op)
		}
		return Formula{Target: target, Left: left, Op: op, Right: right}, nil
	}

	// Unreachable given the count above.
	return Formula{}, fmt.Errorf("formula %q has no recognizable operator", s)
}

// Eval applies the operator to a pair of values. The second return is
// false when the result is undefined (division by zero), which callers
// record as a missing value, never an error.
func (f Formula) Eval(a, b float64) (float64, bool) {
	switch f.Op {
	case OpAdd:
		return a + b, true
	case OpSub:
		return a - b, true
	case OpMul:
		return a * b, true
	case OpDiv:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	}
	return 0, false
}
