package generate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/epmforge/internal/formula"
	"github.com/leapstack-labs/epmforge/internal/frame"
	"github.com/leapstack-labs/epmforge/internal/plan"
	"github.com/leapstack-labs/epmforge/pkg/core"
)

func seed(v int64) *int64 { return &v }

func members(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%02d", prefix, i+1)
	}
	return out
}

func testConfig() *core.GenerationConfig {
	return &core.GenerationConfig{
		ModelType: "Financial",
		Dimensions: []core.Dimension{
			{Name: "Region", Members: []string{"North", "South", "East", "West"}},
			{Name: "Product", Members: []string{"Widget", "Gadget"}},
		},
		Settings: core.Settings{NumRecords: 8, RandomSeed: seed(42)},
	}
}

func TestGenerateSparsityLimitsDistinctRows(t *testing.T) {
	cfg := &core.GenerationConfig{
		ModelType: "Sales",
		Dimensions: []core.Dimension{
			{Name: "Account", Members: members("A", 10)},
			{Name: "Entity", Members: members("E", 10)},
		},
		Settings: core.Settings{NumRecords: 50, Sparsity: 0.9, RandomSeed: seed(7)},
	}
	g := New(Config{})
	res, err := g.Generate(context.Background(), cfg)
	require.NoError(t, err)

	// 100 combinations at 10% density caps the request at 10 rows.
	require.Len(t, res.Rows, 10)

	seen := map[string]bool{}
	for _, row := range res.Rows {
		key := fmt.Sprint(row["Account"], "|", row["Entity"])
		assert.False(t, seen[key], "duplicate intersection %s", key)
		seen[key] = true
	}
}

func TestGenerateDensityOverrideWarns(t *testing.T) {
	cfg := &core.GenerationConfig{
		ModelType: "Sales",
		Dimensions: []core.Dimension{
			{Name: "Region", Members: []string{"North", "South"}},
			{Name: "Product", Members: []string{"Widget", "Gadget"}},
		},
		Settings: core.Settings{NumRecords: 50, Sparsity: 0.5, RandomSeed: seed(1)},
	}
	g := New(Config{})
	res, err := g.Generate(context.Background(), cfg)
	require.NoError(t, err)

	// Half density over 4 combinations caps the request at 2 rows
	// and the reduction is reported.
	assert.Len(t, res.Rows, 2)
	require.NotEmpty(t, res.Issues)
	assert.Contains(t, res.Issues[0], "density")
}

func TestGenerateDenseEnumeratesEveryCombination(t *testing.T) {
	cfg := testConfig()
	cfg.Settings.NumRecords = 8
	cfg.Settings.Sparsity = 0

	g := New(Config{})
	res, err := g.Generate(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Rows, 8)

	seen := map[string]int{}
	for _, row := range res.Rows {
		seen[fmt.Sprint(row["Region"], "|", row["Product"])]++
	}
	require.Len(t, seen, 8)
	for key, n := range seen {
		assert.Equal(t, 1, n, "combination %s", key)
	}
}

func TestGenerateSeededRunsAreIdentical(t *testing.T) {
	g := New(Config{})
	a, err := g.Generate(context.Background(), testConfig())
	require.NoError(t, err)
	b, err := g.Generate(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Rows, b.Rows)
	assert.Equal(t, a.Columns, b.Columns)
}

func TestGenerateDifferentSeedsDiffer(t *testing.T) {
	g := New(Config{})
	cfgA := testConfig()
	cfgB := testConfig()
	cfgB.Settings.RandomSeed = seed(1234)

	a, err := g.Generate(context.Background(), cfgA)
	require.NoError(t, err)
	b, err := g.Generate(context.Background(), cfgB)
	require.NoError(t, err)
	assert.NotEqual(t, a.Rows, b.Rows)
}

func TestGenerateDerivedRule(t *testing.T) {
	cfg := testConfig()
	cfg.Rules = []core.Rule{{
		Type:               core.RuleCalculation,
		Formula:            "Margin = Revenue - COGS",
		Target:             "Margin",
		InvolvedDimensions: []string{"Region"},
	}}

	g := New(Config{})
	res, err := g.Generate(context.Background(), cfg)
	require.NoError(t, err)
	require.NotEmpty(t, res.Rows)

	// Dimensions in declared order, then measures lexicographically.
	assert.Equal(t, []string{"Region", "Product", "COGS", "Margin", "Revenue"}, res.Columns)

	for _, row := range res.Rows {
		revenue := row["Revenue"].(float64)
		cogs := row["COGS"].(float64)
		margin := row["Margin"].(float64)
		assert.InDelta(t, revenue-cogs, margin, 0.011)
	}
	// Margin may dip negative; nothing else should be flagged.
	for _, issue := range res.Issues {
		assert.Contains(t, issue, "negative")
	}
}

func TestApplyRulesZeroDenominatorYieldsNull(t *testing.T) {
	f := frame.New(3)
	require.NoError(t, f.SetNumbers("Revenue", []float64{10, 20, 30}, nil))
	require.NoError(t, f.SetNumbers("Units", []float64{2, 0, 5}, nil))

	parsed, err := formula.Parse("Price = Revenue / Units")
	require.NoError(t, err)

	g := New(Config{})
	warnings := g.applyRules(f, []plan.DerivedRule{{Formula: parsed}})
	assert.Empty(t, warnings)

	vals, mask, ok := f.Numbers("Price")
	require.True(t, ok)
	assert.Equal(t, []bool{true, false, true}, mask)
	assert.InDelta(t, 5.0, vals[0], 0.001)
	assert.InDelta(t, 6.0, vals[2], 0.001)
}

func TestGenerateDivisionByZeroYieldsNullThenZero(t *testing.T) {
	// Spread is zero on every row, so Ratio divides by zero everywhere:
	// null after evaluation, zero-filled by output formatting.
	g := New(Config{})
	cfg := testConfig()
	cfg.Rules = []core.Rule{
		{
			Type:               core.RuleCalculation,
			Formula:            "Spread = Revenue - Revenue",
			Target:             "Spread",
			InvolvedDimensions: []string{"Region"},
		},
		{
			Type:               core.RuleCalculation,
			Formula:            "Ratio = COGS / Spread",
			Target:             "Ratio",
			InvolvedDimensions: []string{"Region"},
		},
	}
	res, err := g.Generate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Issues)
	for _, row := range res.Rows {
		assert.Equal(t, 0.0, row["Spread"])
		assert.Equal(t, 0.0, row["Ratio"])
	}
}

func TestGenerateHeaderOnly(t *testing.T) {
	cfg := &core.GenerationConfig{
		ModelType: "Sales",
		Dimensions: []core.Dimension{
			{Name: "Transaction Date"},
			{Name: "Region"},
			{Name: "Sales Amount"},
			{Name: "Customer Name"},
		},
		Settings: core.Settings{NumRecords: 5, RandomSeed: seed(3)},
	}
	g := New(Config{})
	res, err := g.Generate(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Rows, 5)

	for i, row := range res.Rows {
		assert.Contains(t, []any{"North", "South", "East", "West"}, row["Region"])
		assert.IsType(t, float64(0), row["Sales Amount"])
		assert.Equal(t, fmt.Sprintf("2020-01-0%d", i+1), row["Transaction Date"])
		assert.NotEmpty(t, row["Customer Name"])
	}
}

func TestGenerateInvalidConfig(t *testing.T) {
	g := New(Config{})
	_, err := g.Generate(context.Background(), &core.GenerationConfig{})
	require.Error(t, err)

	cfg := testConfig()
	cfg.Settings.Sparsity = 1.5
	_, err = g.Generate(context.Background(), cfg)
	require.Error(t, err)
}

func TestGenerateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := New(Config{})
	_, err := g.Generate(ctx, testConfig())
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerateStatusCheckpoints(t *testing.T) {
	var msgs []string
	g := New(Config{Status: func(m string) { msgs = append(msgs, m) }})
	_, err := g.Generate(context.Background(), testConfig())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(msgs), 4)
	assert.Contains(t, msgs[0], "dependencies")
}

func TestGeneratePanickingStatusSinkIsSwallowed(t *testing.T) {
	g := New(Config{Status: func(string) { panic("sink gone") }})
	res, err := g.Generate(context.Background(), testConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Rows)
}

func TestInferKindPriority(t *testing.T) {
	tests := []struct {
		header string
		want   headerKind
	}{
		{"Transaction Date", kindDate},
		{"Fiscal Year", kindDate},
		{"Sales Amount", kindAmount},
		{"Unit Price", kindAmount},
		{"Region", kindRegion},
		{"Product SKU", kindSKU},
		{"Customer Name", kindName},
		{"Invoice ID", kindTxnID},
		{"Contact Email", kindEmail},
		{"Mobile Number", kindPhone},
		{"Channel", kindDefault},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inferKind(tt.header), "header %q", tt.header)
	}
}

func TestSampleDistinct(t *testing.T) {
	g := New(Config{})
	_ = g
	r := newRand(seed(9))
	got := sampleDistinct(r, 1000, 100)
	require.Len(t, got, 100)
	seen := map[int64]bool{}
	for _, v := range got {
		require.GreaterOrEqual(t, v, int64(0))
		require.Less(t, v, int64(1000))
		require.False(t, seen[v], "duplicate index %d", v)
		seen[v] = true
	}
}

func TestTotalCombinationsOverflow(t *testing.T) {
	dims := make([]core.Dimension, 20)
	for i := range dims {
		dims[i] = core.Dimension{Name: fmt.Sprintf("D%d", i), Members: members("M", 1000)}
	}
	_, err := totalCombinations(dims)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "combinations")
}
