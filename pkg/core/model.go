package core

import (
	"fmt"
	"strings"
)

// Dimension is a named axis of categorical values. The declared members
// bound the possible values a generated row may take on that axis.
//
// A dimension with an empty member list switches the whole generation
// request into header-only mode: every dimension name is treated as a
// plain output column with type-inferred synthetic values and the
// cross-product logic is bypassed.
type Dimension struct {
	Name    string   `json:"name" koanf:"name"`
	Members []string `json:"members" koanf:"members"`
}

// RuleType classifies a dependency rule.
type RuleType string

// Rule type constants. Only calculation rules are interpreted
// numerically; allocation and validation rules are accepted and carried
// but not evaluated.
const (
	RuleCalculation RuleType = "calculation"
	RuleAllocation  RuleType = "allocation"
	RuleValidation  RuleType = "validation"
)

// Rule is a declared dependency between measures, e.g. a calculation
// "Margin = Revenue - COGS".
type Rule struct {
	Type RuleType `json:"type" koanf:"type"`
	// Formula is a single-binary-operator expression of the form
	// "Target = A OP B" with OP one of + - * /.
	Formula string `json:"formula,omitempty" koanf:"formula"`
	// Target is the measure written on the calculation's left side,
	// duplicated from the formula.
	Target string `json:"target,omitempty" koanf:"target"`
	// InvolvedDimensions lists the dimension/measure names the rule
	// references. Informational, but required to be non-empty.
	InvolvedDimensions []string `json:"involved_dimensions" koanf:"involved_dimensions"`
	// Parameters carries opaque per-rule options, used only by
	// allocation rules.
	Parameters map[string]any `json:"parameters,omitempty" koanf:"parameters"`
}

// Settings controls how many records are generated and how values are
// synthesized.
type Settings struct {
	// NumRecords is the target number of rows. Defaults to 1000.
	NumRecords int `json:"num_records" koanf:"num_records"`
	// Sparsity is the fraction of the combinatorial space left
	// unpopulated, in [0,1]. 0 means fully dense.
	Sparsity float64 `json:"sparsity" koanf:"sparsity"`
	// DataPatterns maps a measure name to a pattern tag. The tag value
	// is accepted but not differentiated: a measure with any pattern is
	// sampled from [500,5000] instead of the default [100,10000].
	DataPatterns map[string]string `json:"data_patterns,omitempty" koanf:"data_patterns"`
	// RandomSeed, when set, makes the run byte-reproducible. The seed
	// is applied to a per-request random source; process-global RNG
	// state is never touched.
	RandomSeed *int64 `json:"random_seed,omitempty" koanf:"random_seed"`
}

// ApplyDefaults fills zero-valued settings with their defaults.
func (s *Settings) ApplyDefaults() {
	if s.NumRecords == 0 {
		s.NumRecords = 1000
	}
}

// GenerationConfig is the full input bundle for one generation request.
type GenerationConfig struct {
	// ModelType is an opaque label (e.g. "FinancialPlanning") used for
	// reporting and for advisory structure suggestions upstream.
	ModelType  string      `json:"model_type" koanf:"model_type"`
	Dimensions []Dimension `json:"dimensions" koanf:"dimensions"`
	Rules      []Rule      `json:"dependencies,omitempty" koanf:"dependencies"`
	Settings   Settings    `json:"settings" koanf:"settings"`
}

// Validate reports structural invalidity of the configuration. These
// are the only fatal input errors: everything else (malformed rules,
// impossible sparsity) degrades to warnings during generation.
func (c *GenerationConfig) Validate() error {
	if len(c.Dimensions) == 0 {
		return fmt.Errorf("at least one dimension is required")
	}
	seen := make(map[string]bool, len(c.Dimensions))
	for i, d := range c.Dimensions {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return fmt.Errorf("dimension #%d has no name", i+1)
		}
		if seen[name] {
			return fmt.Errorf("duplicate dimension name %q", name)
		}
		seen[name] = true
	}
	if c.Settings.NumRecords < 0 {
		return fmt.Errorf("num_records must be positive, got %d", c.Settings.NumRecords)
	}
	if c.Settings.Sparsity < 0 || c.Settings.Sparsity > 1 {
		return fmt.Errorf("sparsity must be in [0,1], got %v", c.Settings.Sparsity)
	}
	return nil
}

// DimensionNames returns the declared dimension names in order.
func (c *GenerationConfig) DimensionNames() []string {
	names := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		names[i] = d.Name
	}
	return names
}

// HeaderOnly reports whether the configuration triggers header-only
// mode: any dimension carrying no members.
func (c *GenerationConfig) HeaderOnly() bool {
	for _, d := range c.Dimensions {
		if len(d.Members) == 0 {
			return true
		}
	}
	return false
}
