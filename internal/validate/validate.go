// Package validate runs post-generation checks over a frame and
// produces the final row-oriented output. Checks are advisory: they
// report issues and normalize the data, they never fail a run.
package validate

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/leapstack-labs/epmforge/internal/frame"
	"github.com/leapstack-labs/epmforge/internal/plan"
	"github.com/leapstack-labs/epmforge/pkg/core"
)

// Relative and absolute tolerance for re-verifying calculation rules.
const (
	ruleRtol = 1e-4
	ruleAtol = 1e-2
)

// Run validates and formats a generated frame. It returns the final
// rows, the column order, and any issues found. expectedMeasures lists
// the measure columns the plan says should exist.
//
// A panic anywhere in the checks degrades to returning the raw frame
// with an internal-error issue instead of losing the generated data.
func Run(f *frame.Frame, dims []core.Dimension, derived []plan.DerivedRule, expectedMeasures []string, logger *slog.Logger) (rows []map[string]any, columns []string, issues []string) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("validation panicked, returning unvalidated data", "error", r)
			rows = f.Rows()
			columns = f.Columns()
			issues = append(issues, fmt.Sprintf("Internal validation error: %v. Data returned without validation.", r))
		}
	}()

	issues = append(issues, checkCompleteness(f, dims, expectedMeasures)...)
	issues = append(issues, coerceMeasures(f, expectedMeasures)...)
	issues = append(issues, checkNegatives(f, dims)...)
	issues = append(issues, recheckRules(f, derived)...)

	columns = format(f, dims)
	rows = f.Rows()
	return rows, columns, issues
}

// checkCompleteness reports measure columns the plan expects but the
// frame lacks, and columns the frame carries that nothing declared.
func checkCompleteness(f *frame.Frame, dims []core.Dimension, measures []string) []string {
	expected := make(map[string]bool, len(dims)+len(measures))
	for _, d := range dims {
		expected[d.Name] = true
	}
	for _, m := range measures {
		expected[m] = true
	}

	var issues []string
	for _, m := range measures {
		if !f.Has(m) {
			issues = append(issues, fmt.Sprintf("Expected column %q is missing from the generated data.", m))
		}
	}
	present := f.Columns()
	sort.Strings(present)
	for _, c := range present {
		if !expected[c] {
			issues = append(issues, fmt.Sprintf("Unexpected column %q found in the generated data.", c))
		}
	}
	return issues
}

// coerceMeasures forces expected measure columns to numeric, turning
// unparseable entries into nulls.
func coerceMeasures(f *frame.Frame, measures []string) []string {
	var issues []string
	for _, m := range measures {
		if !f.Has(m) || f.IsNumeric(m) {
			continue
		}
		if bad := f.CoerceNumeric(m); bad > 0 {
			issues = append(issues, fmt.Sprintf("Found %d non-numeric entries in %q column. They were converted to null.", bad, m))
		}
	}
	return issues
}

// checkNegatives counts negative values per numeric measure column.
// Negative measures are legal output but usually indicate a subtraction
// rule that outruns its operands, so they are surfaced.
func checkNegatives(f *frame.Frame, dims []core.Dimension) []string {
	dimSet := make(map[string]bool, len(dims))
	for _, d := range dims {
		dimSet[d.Name] = true
	}
	var issues []string
	for _, m := range f.SortedMeasures(dimSet) {
		vals, mask, ok := f.Numbers(m)
		if !ok {
			continue
		}
		neg := 0
		for i, v := range vals {
			if mask[i] && v < 0 {
				neg++
			}
		}
		if neg > 0 {
			issues = append(issues, fmt.Sprintf("Found %d negative values in %q column.", neg, m))
		}
	}
	return issues
}

// recheckRules re-evaluates each derived rule against the frame and
// counts rows where the stored target disagrees with the recomputed
// value beyond tolerance. Null targets match null expectations.
func recheckRules(f *frame.Frame, derived []plan.DerivedRule) []string {
	var issues []string
	for _, dr := range derived {
		fr := dr.Formula
		left, lmask, lok := f.Numbers(fr.Left)
		right, rmask, rok := f.Numbers(fr.Right)
		got, gmask, gok := f.Numbers(fr.Target)
		if !lok || !rok || !gok {
			continue
		}
		mismatches := 0
		for i := range got {
			var want float64
			wantValid := lmask[i] && rmask[i]
			if wantValid {
				want, wantValid = fr.Eval(left[i], right[i])
			}
			switch {
			case !wantValid && !gmask[i]:
				// both null, consistent
			case wantValid != gmask[i]:
				mismatches++
			case !isClose(got[i], want):
				mismatches++
			}
		}
		if mismatches > 0 {
			issues = append(issues, fmt.Sprintf("Validation Error: %d rows do not satisfy '%s'.", mismatches, fr.String()))
		}
	}
	return issues
}

func isClose(actual, expected float64) bool {
	return math.Abs(actual-expected) <= ruleAtol+ruleRtol*math.Abs(expected)
}

// format normalizes the frame for output: dimension columns first in
// declared order, remaining columns lexicographic, numeric nulls filled
// with zero and every numeric column rounded to two decimals. Running
// it twice changes nothing.
func format(f *frame.Frame, dims []core.Dimension) []string {
	dimSet := make(map[string]bool, len(dims))
	order := make([]string, 0, len(f.Columns()))
	for _, d := range dims {
		dimSet[d.Name] = true
		if f.Has(d.Name) {
			order = append(order, d.Name)
		}
	}
	var rest []string
	for _, c := range f.Columns() {
		if !dimSet[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)
	_ = f.Reorder(order)

	for _, c := range order {
		if f.IsNumeric(c) {
			f.FillMissing(c, 0)
			f.Round(c)
		}
	}
	return order
}
