// Package frame provides the columnar working representation used by
// the generation and validation stages. A Frame holds an ordered set of
// columns over a fixed row count: string columns for dimension members
// and inferred text values, numeric columns with a null mask for
// measures.
package frame

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Frame is a fixed-length columnar table.
type Frame struct {
	length int
	order  []string
	str    map[string][]string
	num    map[string][]float64
	valid  map[string][]bool // null mask for numeric columns; true = present
}

// New creates an empty frame with the given row count.
func New(length int) *Frame {
	return &Frame{
		length: length,
		str:    make(map[string][]string),
		num:    make(map[string][]float64),
		valid:  make(map[string][]bool),
	}
}

// Len returns the row count.
func (f *Frame) Len() int {
	return f.length
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	cols := make([]string, len(f.order))
	copy(cols, f.order)
	return cols
}

// Has reports whether the column exists.
func (f *Frame) Has(name string) bool {
	_, s := f.str[name]
	_, n := f.num[name]
	return s || n
}

// IsNumeric reports whether the column exists and holds numbers.
func (f *Frame) IsNumeric(name string) bool {
	_, ok := f.num[name]
	return ok
}

// SetStrings adds or replaces a string column.
func (f *Frame) SetStrings(name string, values []string) error {
	if len(values) != f.length {
		return fmt.Errorf("column %q: %d values for %d rows", name, len(values), f.length)
	}
	if !f.Has(name) {
		f.order = append(f.order, name)
	}
	delete(f.num, name)
	delete(f.valid, name)
	f.str[name] = values
	return nil
}

// SetNumbers adds or replaces a numeric column. A nil mask means every
// value is present.
func (f *Frame) SetNumbers(name string, values []float64, mask []bool) error {
	if len(values) != f.length {
		return fmt.Errorf("column %q: %d values for %d rows", name, len(values), f.length)
	}
	if mask != nil && len(mask) != f.length {
		return fmt.Errorf("column %q: mask length %d for %d rows", name, len(mask), f.length)
	}
	if mask == nil {
		mask = make([]bool, f.length)
		for i := range mask {
			mask[i] = true
		}
	}
	if !f.Has(name) {
		f.order = append(f.order, name)
	}
	delete(f.str, name)
	f.num[name] = values
	f.valid[name] = mask
	return nil
}

// Strings returns a string column. The slice is shared, not copied.
func (f *Frame) Strings(name string) ([]string, bool) {
	vals, ok := f.str[name]
	return vals, ok
}

// Numbers returns a numeric column and its null mask. The slices are
// shared, not copied.
func (f *Frame) Numbers(name string) ([]float64, []bool, bool) {
	vals, ok := f.num[name]
	if !ok {
		return nil, nil, false
	}
	return vals, f.valid[name], true
}

// Reorder rearranges columns to the given order. Every name must be an
// existing column and every column must appear exactly once.
func (f *Frame) Reorder(cols []string) error {
	if len(cols) != len(f.order) {
		return fmt.Errorf("reorder: %d columns given, frame has %d", len(cols), len(f.order))
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if !f.Has(c) {
			return fmt.Errorf("reorder: unknown column %q", c)
		}
		if seen[c] {
			return fmt.Errorf("reorder: duplicate column %q", c)
		}
		seen[c] = true
	}
	f.order = append([]string(nil), cols...)
	return nil
}

// CoerceNumeric converts a string column to numeric, turning entries
// that do not parse as numbers into nulls. It returns how many entries
// were lost. Columns that are already numeric are left alone.
func (f *Frame) CoerceNumeric(name string) int {
	vals, ok := f.str[name]
	if !ok {
		return 0
	}
	nums := make([]float64, f.length)
	mask := make([]bool, f.length)
	bad := 0
	for i, s := range vals {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			bad++
			continue
		}
		nums[i] = v
		mask[i] = true
	}
	delete(f.str, name)
	f.num[name] = nums
	f.valid[name] = mask
	return bad
}

// FillMissing replaces nulls in a numeric column with the given value.
func (f *Frame) FillMissing(name string, value float64) {
	vals, ok := f.num[name]
	if !ok {
		return
	}
	mask := f.valid[name]
	for i := range vals {
		if !mask[i] {
			vals[i] = value
			mask[i] = true
		}
	}
}

// Round rounds a numeric column to two decimal places in place.
func (f *Frame) Round(name string) {
	vals, ok := f.num[name]
	if !ok {
		return
	}
	for i := range vals {
		vals[i] = Round2(vals[i])
	}
}

// Rows materializes the frame as ordered row maps. Numeric nulls become
// nil values.
func (f *Frame) Rows() []map[string]any {
	rows := make([]map[string]any, f.length)
	for i := range rows {
		row := make(map[string]any, len(f.order))
		for _, col := range f.order {
			if vals, ok := f.str[col]; ok {
				row[col] = vals[i]
				continue
			}
			if f.valid[col][i] {
				row[col] = f.num[col][i]
			} else {
				row[col] = nil
			}
		}
		rows[i] = row
	}
	return rows
}

// SortedMeasures returns the numeric column names in lexicographic
// order, excluding the given names (typically the declared dimensions).
func (f *Frame) SortedMeasures(exclude map[string]bool) []string {
	var measures []string
	for _, col := range f.order {
		if exclude[col] {
			continue
		}
		if f.IsNumeric(col) {
			measures = append(measures, col)
		}
	}
	sort.Strings(measures)
	return measures
}

// Round2 rounds a value to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
