// Package plan turns declared dependency rules into an evaluation plan:
// which measures are synthesized (base), which are computed (derived),
// and in what order the derived formulas run.
//
// Invalid rules are dropped with warnings, never fatally. Derived rules
// are ordered by topological sort over the measure dependency graph, so
// chained calculations evaluate correctly regardless of the order the
// caller declared them in. Cyclic rules are dropped as a configuration
// error.
package plan

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/epmforge/internal/dag"
	"github.com/leapstack-labs/epmforge/internal/formula"
	"github.com/leapstack-labs/epmforge/pkg/core"
)

// DefaultMeasure is the implicit base measure used when no rule
// references any measure at all.
const DefaultMeasure = "Value"

// DerivedRule pairs a valid calculation rule with its parsed formula.
type DerivedRule struct {
	Rule    core.Rule
	Formula formula.Formula
}

// Plan is the resolved rule plan for one generation request.
type Plan struct {
	// Base are measure names synthesized randomly, sorted.
	Base []string
	// Derived are calculation rules in evaluation order.
	Derived []DerivedRule
	// Passthrough are valid non-calculation rules (allocation,
	// validation), carried but not numerically interpreted.
	Passthrough []core.Rule
	// Warnings records every rule dropped and why.
	Warnings []string
}

// Measures returns every measure the plan touches: base plus derived
// targets.
func (p *Plan) Measures() []string {
	names := append([]string(nil), p.Base...)
	for _, d := range p.Derived {
		names = append(names, d.Formula.Target)
	}
	sort.Strings(names)
	return names
}

// DerivedTargets returns the derived measure names in evaluation order.
func (p *Plan) DerivedTargets() []string {
	targets := make([]string, len(p.Derived))
	for i, d := range p.Derived {
		targets[i] = d.Formula.Target
	}
	return targets
}

// Build validates the rule set against the declared dimensions and
// produces the evaluation plan. A nil logger discards debug output.
func Build(rules []core.Rule, dimensionNames []string, logger *slog.Logger) Plan {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dims := make(map[string]bool, len(dimensionNames))
	for _, name := range dimensionNames {
		dims[name] = true
	}

	p := Plan{}
	var derived []DerivedRule
	targets := make(map[string]int) // target -> rule number, for duplicate detection

	for i, rule := range rules {
		num := i + 1
		if len(rule.InvolvedDimensions) == 0 {
			p.warn("Rule #%d (%s): 'involved_dimensions' must not be empty.", num, rule.Type)
			continue
		}

		switch rule.Type {
		case core.RuleCalculation:
			if rule.Formula == "" || rule.Target == "" {
				p.warn("Rule #%d (Calculation): Missing 'formula' or 'target'.", num)
				continue
			}
			f, err := formula.Parse(rule.Formula)
			if err != nil {
				p.warn("Rule #%d (Calculation): %v", num, err)
				continue
			}
			if f.Target != rule.Target {
				p.warn("Rule #%d (Calculation): formula target %q does not match declared target %q; using the formula's.", num, f.Target, rule.Target)
			}
			if dims[f.Target] {
				p.warn("Rule #%d (Calculation): target %q is a dimension and cannot be calculated.", num, f.Target)
				continue
			}
			if f.Left == f.Target || f.Right == f.Target {
				p.warn("Rule #%d (Calculation): %q references its own target.", num, rule.Formula)
				continue
			}
			if prev, dup := targets[f.Target]; dup {
				p.warn("Rule #%d (Calculation): target %q already calculated by rule #%d; dropping the later rule.", num, f.Target, prev)
				continue
			}
			targets[f.Target] = num
			derived = append(derived, DerivedRule{Rule: rule, Formula: f})

		case core.RuleAllocation:
			if rule.Target == "" || rule.Parameters == nil {
				p.warn("Rule #%d (Allocation): Missing 'target', 'involved_dimensions', or 'parameters'.", num)
				continue
			}
			p.Passthrough = append(p.Passthrough, rule)

		case core.RuleValidation:
			p.Passthrough = append(p.Passthrough, rule)

		default:
			p.warn("Rule #%d: unknown rule type %q.", num, rule.Type)
		}
	}

	// Drop cyclic calculation chains until the graph is acyclic.
	derived = p.dropCycles(derived, dims)

	// Classify measures from the surviving calculation rules.
	// Dimension names never become measures.
	measures := make(map[string]bool)
	derivedSet := make(map[string]bool, len(derived))
	for _, d := range derived {
		derivedSet[d.Formula.Target] = true
		measures[d.Formula.Target] = true
		for _, op := range d.Formula.Operands() {
			if !dims[op] {
				measures[op] = true
			}
		}
	}

	for name := range measures {
		if !derivedSet[name] {
			p.Base = append(p.Base, name)
		}
	}
	sort.Strings(p.Base)

	if len(measures) == 0 {
		p.Base = []string{DefaultMeasure}
	}

	p.Derived = topoOrder(derived, dims)

	logger.Debug("rule plan built",
		"base", len(p.Base),
		"derived", len(p.Derived),
		"warnings", len(p.Warnings))
	return p
}

func (p *Plan) warn(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// dropCycles repeatedly removes calculation rules whose targets sit on
// a dependency cycle, recording one warning per cycle found.
func (p *Plan) dropCycles(derived []DerivedRule, dims map[string]bool) []DerivedRule {
	for {
		g := buildGraph(derived, dims)
		cyclic, path := g.HasCycle()
		if !cyclic {
			return derived
		}

		onCycle := make(map[string]bool, len(path))
		for _, id := range path {
			onCycle[id] = true
		}

		var kept []DerivedRule
		var dropped []string
		for _, d := range derived {
			if onCycle[d.Formula.Target] {
				dropped = append(dropped, d.Formula.Target)
				continue
			}
			kept = append(kept, d)
		}
		p.warn("Calculation cycle detected (%s); dropping rules for: %s.",
			strings.Join(path, " -> "), strings.Join(dropped, ", "))
		derived = kept
	}
}

// buildGraph builds the measure dependency graph: operand -> target
// edges for every derived rule. Dimension-named operands are excluded.
func buildGraph(derived []DerivedRule, dims map[string]bool) *dag.Graph {
	g := dag.NewGraph()
	for _, d := range derived {
		g.AddNode(d.Formula.Target)
		for _, op := range d.Formula.Operands() {
			if dims[op] {
				continue
			}
			g.AddNode(op)
			// Self-loops were rejected during rule validation.
			_ = g.AddEdge(op, d.Formula.Target)
		}
	}
	return g
}

// topoOrder sorts derived rules so every rule runs after the rules
// producing its operands.
func topoOrder(derived []DerivedRule, dims map[string]bool) []DerivedRule {
	if len(derived) <= 1 {
		return derived
	}

	g := buildGraph(derived, dims)
	sorted, err := g.TopologicalSort()
	if err != nil {
		// dropCycles already ran; an error here cannot happen, but keep
		// the declared order rather than lose rules.
		return derived
	}

	pos := make(map[string]int, len(sorted))
	for i, id := range sorted {
		pos[id] = i
	}
	ordered := append([]DerivedRule(nil), derived...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return pos[ordered[i].Formula.Target] < pos[ordered[j].Formula.Target]
	})
	return ordered
}
