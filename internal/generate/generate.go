package generate

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/epmforge/internal/frame"
	"github.com/leapstack-labs/epmforge/internal/plan"
	"github.com/leapstack-labs/epmforge/internal/validate"
	"github.com/leapstack-labs/epmforge/pkg/core"
)

// Generate runs a full generation pass: dependency analysis, sampling
// or header synthesis, base-measure fill, rule evaluation, validation.
// Recoverable problems accumulate as issues on the result; only a
// structurally invalid config or an oversized dimension space fails.
func (g *Generator) Generate(ctx context.Context, cfg *core.GenerationConfig) (*core.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	settings := cfg.Settings
	settings.ApplyDefaults()
	r := newRand(settings.RandomSeed)

	g.emit("Analyzing rule dependencies...")
	p := plan.Build(cfg.Rules, cfg.DimensionNames(), g.logger)
	issues := append([]string(nil), p.Warnings...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		f                *frame.Frame
		expectedMeasures []string
	)
	if cfg.HeaderOnly() {
		g.emit("Synthesizing %d records from column headers...", settings.NumRecords)
		hf := g.headerFrame(r, cfg.Dimensions, settings.NumRecords)
		issues = append(issues, g.applyRules(hf, p.Derived)...)
		f = hf
		expectedMeasures = p.DerivedTargets()
	} else {
		g.emit("Sampling dimension intersections...")
		sf, warnings, err := g.sampleIntersections(r, cfg.Dimensions, settings)
		if err != nil {
			return nil, fmt.Errorf("sampling intersections: %w", err)
		}
		issues = append(issues, warnings...)

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		g.emit("Filling %d base measures...", len(p.Base))
		g.fillBaseMeasures(r, sf, p.Base, settings.DataPatterns)
		issues = append(issues, g.applyRules(sf, p.Derived)...)
		f = sf
		expectedMeasures = p.Measures()
	}

	g.emit("Generated %d records.", f.Len())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.emit("Validating generated data...")
	rows, columns, vIssues := validate.Run(f, cfg.Dimensions, p.Derived, expectedMeasures, g.logger)
	issues = append(issues, vIssues...)

	g.logger.Info("generation complete",
		"model", cfg.ModelType, "records", len(rows), "issues", len(issues))
	return &core.Result{Rows: rows, Columns: columns, Issues: issues}, nil
}
