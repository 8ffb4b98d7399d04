// Package generate implements the data-generation engine: intersection
// sampling over the dimensional cross-product, base-measure synthesis,
// and formula evaluation in dependency order.
package generate

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/leapstack-labs/epmforge/pkg/core"
)

// Generator produces synthetic datasets from a GenerationConfig.
// It is stateless across requests: every call constructs its own frame
// and its own random source, so concurrent generations are independent.
type Generator struct {
	logger *slog.Logger
	status core.StatusFunc
}

// Config holds generator construction options.
type Config struct {
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// Status receives progress messages at checkpoints (optional).
	Status core.StatusFunc
}

// New creates a generator.
func New(cfg Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Generator{logger: logger, status: cfg.Status}
}

// emit delivers a progress message to the status sink. Sink failures
// are swallowed and logged; they never propagate into generation.
func (g *Generator) emit(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	g.logger.Debug("status", "message", msg)
	if g.status == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("status sink panicked", "error", r)
		}
	}()
	g.status(msg)
}

// newRand builds the per-request random source. A nil seed gives a
// time-seeded source; a set seed makes the run byte-reproducible.
// Process-global RNG state is never touched.
func newRand(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// uniform samples from [lo, hi).
func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}
