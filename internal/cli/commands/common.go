package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/leapstack-labs/epmforge/internal/config"
	"github.com/leapstack-labs/epmforge/pkg/core"
)

// ConfigFunc retrieves the resolved application config from a command
// context. The cli package supplies it so commands stay decoupled from
// how configuration is stored.
type ConfigFunc func(ctx context.Context) *config.Config

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// getLogger retrieves the logger from the context.
func getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// readGenerationConfig loads a generation config from a JSON file, or
// from stdin when path is "-".
func readGenerationConfig(path string, stdin io.Reader) (*core.GenerationConfig, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening model config: %w", err)
		}
		defer f.Close()
		r = f
	}

	var cfg core.GenerationConfig
	dec := json.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing model config: %w", err)
	}
	return &cfg, nil
}
