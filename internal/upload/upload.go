// Package upload bootstraps dimension definitions from columnar files.
// Each column of an uploaded CSV becomes a candidate dimension with a
// sample of its distinct values and, for numeric columns, basic stats.
package upload

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/leapstack-labs/epmforge/pkg/core"
)

// maxSampleMembers caps how many distinct values a candidate dimension
// carries back to the caller.
const maxSampleMembers = 10

// Stats summarizes a numeric column.
type Stats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Column describes one analyzed file column.
type Column struct {
	Name        string   `json:"name"`
	Members     []string `json:"members"`
	Type        string   `json:"type"`
	UniqueCount int      `json:"unique_count"`
	NullCount   int      `json:"null_count"`
	Statistics  *Stats   `json:"statistics,omitempty"`
}

// Analysis is the result of inspecting an uploaded file.
type Analysis struct {
	Filename   string   `json:"filename"`
	Rows       int      `json:"rows"`
	Columns    []Column `json:"columns"`
	Commentary string   `json:"commentary"`
}

// Dimensions converts the analysis into dimension definitions usable
// as generation input.
func (a *Analysis) Dimensions() []core.Dimension {
	dims := make([]core.Dimension, len(a.Columns))
	for i, c := range a.Columns {
		dims[i] = core.Dimension{Name: c.Name, Members: c.Members}
	}
	return dims
}

// AnalyzeCSV reads a CSV stream and profiles every column.
func AnalyzeCSV(r io.Reader, filename string, logger *slog.Logger) (*Analysis, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return nil, fmt.Errorf("unsupported file type: %s (only CSV is supported)", filename)
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file %s is empty", filename)
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	cols := make([]*profile, len(header))
	for i, name := range header {
		cols[i] = &profile{name: strings.TrimSpace(name), seen: map[string]bool{}}
	}

	rows := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", rows+2, err)
		}
		rows++
		for i, cell := range record {
			if i >= len(cols) {
				break
			}
			cols[i].observe(strings.TrimSpace(cell))
		}
	}

	out := &Analysis{Filename: filename, Rows: rows}
	for _, p := range cols {
		out.Columns = append(out.Columns, p.finish())
	}
	out.Commentary = fmt.Sprintf("Successfully read CSV file %q. Found %d columns and %d rows.", filename, len(out.Columns), rows)
	logger.Info("file analyzed", "filename", filename, "columns", len(out.Columns), "rows", rows)
	return out, nil
}

// profile accumulates per-column state during the single read pass.
type profile struct {
	name    string
	seen    map[string]bool
	members []string
	nulls   int

	numeric    bool
	nonNumeric bool
	count      int
	sum        float64
	sumSq      float64
	min        float64
	max        float64
}

func (p *profile) observe(cell string) {
	if cell == "" {
		p.nulls++
		return
	}
	if !p.seen[cell] {
		p.seen[cell] = true
		if len(p.members) < maxSampleMembers {
			p.members = append(p.members, cell)
		}
	}

	if p.nonNumeric {
		return
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		p.nonNumeric = true
		return
	}
	if !p.numeric {
		p.numeric = true
		p.min, p.max = v, v
	}
	p.count++
	p.sum += v
	p.sumSq += v * v
	if v < p.min {
		p.min = v
	}
	if v > p.max {
		p.max = v
	}
}

func (p *profile) finish() Column {
	c := Column{
		Name:        p.name,
		Members:     p.members,
		Type:        "categorical",
		UniqueCount: len(p.seen),
		NullCount:   p.nulls,
	}
	if c.Members == nil {
		c.Members = []string{}
	}
	if p.numeric && !p.nonNumeric && p.count > 0 {
		mean := p.sum / float64(p.count)
		variance := p.sumSq/float64(p.count) - mean*mean
		if variance < 0 {
			variance = 0
		}
		c.Type = "numeric"
		c.Statistics = &Stats{
			Min:  p.min,
			Max:  p.max,
			Mean: mean,
			Std:  math.Sqrt(variance),
		}
	}
	return c
}
