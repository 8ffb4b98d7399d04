package generate

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/leapstack-labs/epmforge/internal/frame"
	"github.com/leapstack-labs/epmforge/pkg/core"
)

// maxCombinations caps the cross-product size the sampler will index.
// Beyond this the linear-index arithmetic risks overflow and the
// request is rejected rather than silently truncated.
const maxCombinations = 1 << 50

// totalCombinations multiplies member counts across dimensions,
// guarding against overflow of the linear index space.
func totalCombinations(dims []core.Dimension) (int64, error) {
	total := int64(1)
	for _, d := range dims {
		n := int64(len(d.Members))
		if n == 0 {
			return 0, fmt.Errorf("dimension %q has no members", d.Name)
		}
		if total > maxCombinations/n {
			return 0, fmt.Errorf("dimension space exceeds %d combinations", int64(maxCombinations))
		}
		total *= n
	}
	return total, nil
}

// effectiveTarget applies the sparsity contract: the record count is
// capped at floor(total * density) distinct intersections. A request
// that implies a higher density than the configured sparsity allows is
// clamped to the ceiling and the reduction is reported as a warning.
func (g *Generator) effectiveTarget(total int64, s core.Settings) (int64, []string) {
	density := 1.0 - s.Sparsity
	target := int64(s.NumRecords)
	ceiling := int64(math.Floor(float64(total) * density))
	if target <= ceiling {
		return target, nil
	}

	implied := float64(target) / float64(total)
	w := fmt.Sprintf(
		"Requested %d records implies density %.2f, above the configured %.2f; reduced to %d records.",
		s.NumRecords, implied, density, ceiling)
	g.logger.Warn("record count reduced to density ceiling",
		"requested", s.NumRecords, "total", total, "density", density, "target", ceiling)
	return ceiling, []string{w}
}

// sampleIntersections draws distinct combinations from the dimensional
// cross-product and returns them as string columns in declared
// dimension order. Row order within the sample is randomized by the
// draw itself; no separate shuffle is applied.
func (g *Generator) sampleIntersections(r *rand.Rand, dims []core.Dimension, s core.Settings) (*frame.Frame, []string, error) {
	total, err := totalCombinations(dims)
	if err != nil {
		return nil, nil, err
	}
	target, warnings := g.effectiveTarget(total, s)
	if target < 0 {
		target = 0
	}

	var indices []int64
	if target >= total {
		indices = make([]int64, total)
		for i := range indices {
			indices[i] = int64(i)
		}
	} else {
		indices = sampleDistinct(r, total, target)
	}

	f := frame.New(len(indices))
	cols := make([][]string, len(dims))
	for i := range dims {
		cols[i] = make([]string, len(indices))
	}
	for row, idx := range indices {
		decodeIndex(idx, dims, func(dim int, member int) {
			cols[dim][row] = dims[dim].Members[member]
		})
	}
	for i, d := range dims {
		if err := f.SetStrings(d.Name, cols[i]); err != nil {
			return nil, nil, err
		}
	}
	return f, warnings, nil
}

// decodeIndex converts a linear index into per-dimension member
// positions, last dimension varying fastest.
func decodeIndex(idx int64, dims []core.Dimension, visit func(dim, member int)) {
	for i := len(dims) - 1; i >= 0; i-- {
		n := int64(len(dims[i].Members))
		visit(i, int(idx%n))
		idx /= n
	}
}

// sampleDistinct draws k distinct values from [0, n) using a sparse
// partial Fisher-Yates shuffle, so only O(k) memory is used even when
// n is astronomically large.
func sampleDistinct(r *rand.Rand, n, k int64) []int64 {
	swapped := make(map[int64]int64, k)
	out := make([]int64, k)
	for i := int64(0); i < k; i++ {
		j := i + r.Int63n(n-i)
		vj, ok := swapped[j]
		if !ok {
			vj = j
		}
		vi, ok := swapped[i]
		if !ok {
			vi = i
		}
		out[i] = vj
		swapped[j] = vi
	}
	return out
}

// fillBaseMeasures populates every base measure column with uniform
// random values. Measures named by a data pattern draw from [500, 5000),
// everything else from [100, 10000), both rounded to two decimals.
// Columns are filled in sorted name order so a fixed seed yields
// identical output regardless of map iteration.
func (g *Generator) fillBaseMeasures(r *rand.Rand, f *frame.Frame, base []string, patterns map[string]string) {
	sorted := append([]string(nil), base...)
	sort.Strings(sorted)
	for _, name := range sorted {
		lo, hi := 100.0, 10000.0
		if _, ok := patterns[name]; ok {
			lo, hi = 500.0, 5000.0
		}
		vals := make([]float64, f.Len())
		for i := range vals {
			vals[i] = frame.Round2(uniform(r, lo, hi))
		}
		_ = f.SetNumbers(name, vals, nil)
	}
}
