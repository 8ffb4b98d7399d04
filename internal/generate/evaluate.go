package generate

import (
	"github.com/leapstack-labs/epmforge/internal/frame"
	"github.com/leapstack-labs/epmforge/internal/plan"
)

// applyRules evaluates derived rules in plan order, writing each target
// as a numeric column. Rules whose operands are missing or non-numeric
// are skipped with a reported warning; a zero divisor yields a null in
// that row rather than aborting the rule.
func (g *Generator) applyRules(f *frame.Frame, derived []plan.DerivedRule) []string {
	var warnings []string
	for _, dr := range derived {
		fr := dr.Formula
		left, lmask, lok := f.Numbers(fr.Left)
		right, rmask, rok := f.Numbers(fr.Right)
		if !lok || !rok {
			w := "Skipping rule '" + fr.String() + "': operand columns must be numeric and present."
			warnings = append(warnings, w)
			g.logger.Warn("rule skipped", "formula", fr.String())
			continue
		}
		vals := make([]float64, f.Len())
		mask := make([]bool, f.Len())
		for i := range vals {
			if !lmask[i] || !rmask[i] {
				continue
			}
			v, ok := fr.Eval(left[i], right[i])
			if !ok {
				continue
			}
			vals[i] = frame.Round2(v)
			mask[i] = true
		}
		_ = f.SetNumbers(fr.Target, vals, mask)
	}
	return warnings
}
