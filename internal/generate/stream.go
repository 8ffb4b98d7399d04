package generate

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/leapstack-labs/epmforge/internal/frame"
	"github.com/leapstack-labs/epmforge/internal/plan"
	"github.com/leapstack-labs/epmforge/pkg/core"
)

const (
	defaultChunkSize = 10000
	chunkPause       = 10 * time.Millisecond
)

// streamMeasure is the single measure the streaming path fills.
const streamMeasure = "Value"

// Stream produces batches of records on a channel until the record
// target is reached or ctx is cancelled. Unlike Generate it samples
// intersections with replacement, fills only the Value measure, and
// skips rule evaluation and validation: it trades those guarantees for
// bounded memory on arbitrarily large requests. Header-only models are
// the exception: their sequential generators (dates, SKU cycle) and
// calculation rules need the whole row range, so the frame is built
// once and sliced into chunks, matching the batch output exactly.
//
// The returned channel is closed when streaming ends for any reason.
func (g *Generator) Stream(ctx context.Context, cfg *core.GenerationConfig, chunkSize int) (<-chan core.Batch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	settings := cfg.Settings
	settings.ApplyDefaults()
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	target := int64(settings.NumRecords)
	if !cfg.HeaderOnly() {
		total, err := totalCombinations(cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		density := 1.0 - settings.Sparsity
		ceiling := int64(math.Floor(float64(total) * density))
		if target > ceiling {
			target = ceiling
		}
	}
	if target < 0 {
		target = 0
	}

	r := newRand(settings.RandomSeed)

	var rows []map[string]any
	var columns []string
	if cfg.HeaderOnly() && target > 0 {
		p := plan.Build(cfg.Rules, cfg.DimensionNames(), g.logger)
		f := g.headerFrame(r, cfg.Dimensions, int(target))
		g.applyRules(f, p.Derived)
		rows = f.Rows()
		columns = f.Columns()
	}

	out := make(chan core.Batch)
	go func() {
		defer close(out)
		var sent int64
		for sent < target {
			n := chunkSize
			if remaining := target - sent; int64(n) > remaining {
				n = int(remaining)
			}

			var batch core.Batch
			if rows != nil {
				batch = core.Batch{Rows: rows[sent : sent+int64(n)], Columns: columns}
			} else {
				f := g.chunkFrame(r, cfg.Dimensions, n)
				batch = core.Batch{Rows: f.Rows(), Columns: f.Columns()}
			}

			select {
			case out <- batch:
			case <-ctx.Done():
				g.logger.Info("stream cancelled", "sent", sent, "target", target)
				return
			}
			sent += int64(n)
			g.emit("Generated %d/%d records...", sent, target)

			if sent < target {
				select {
				case <-time.After(chunkPause):
				case <-ctx.Done():
					g.logger.Info("stream cancelled", "sent", sent, "target", target)
					return
				}
			}
		}
	}()
	return out, nil
}

// chunkFrame samples n intersections with replacement and fills the
// implicit Value measure.
func (g *Generator) chunkFrame(r *rand.Rand, dims []core.Dimension, n int) *frame.Frame {
	f := frame.New(n)
	for _, d := range dims {
		vals := make([]string, n)
		for i := range vals {
			vals[i] = d.Members[r.Intn(len(d.Members))]
		}
		_ = f.SetStrings(d.Name, vals)
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = frame.Round2(uniform(r, 100, 10000))
	}
	_ = f.SetNumbers(streamMeasure, vals, nil)
	return f
}
