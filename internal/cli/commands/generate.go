package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/epmforge/internal/generate"
	"github.com/leapstack-labs/epmforge/internal/state"
	"github.com/leapstack-labs/epmforge/pkg/core"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	Records  int
	Sparsity float64
	Seed     int64
	Preview  int
	Out      string
	Stream   bool
	NoState  bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(getConfig ConfigFunc) *cobra.Command {
	opts := &GenerateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <model.json>",
		Short: "Generate a synthetic dataset from a model definition",
		Long: `Generate a synthetic dataset from a JSON model definition containing
dimensions, dependency rules, and generation settings. Use "-" to read
the definition from stdin.`,
		Example: `  # Generate from a model file, preview as a table
  epmforge generate model.json

  # Override record count and seed, write full output to CSV
  epmforge generate model.json --records 5000 --seed 42 --out data.csv

  # Read the model from stdin, print JSON preview
  cat model.json | epmforge generate - -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd.Context())
			logger := getLogger(cmd.Context())

			model, err := readGenerationConfig(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("records") {
				model.Settings.NumRecords = opts.Records
			}
			if cmd.Flags().Changed("sparsity") {
				model.Settings.Sparsity = opts.Sparsity
			}
			if cmd.Flags().Changed("seed") {
				model.Settings.RandomSeed = &opts.Seed
			}

			if opts.Stream {
				gen := generate.New(generate.Config{Logger: logger})
				batches, err := gen.Stream(cmd.Context(), model, 0)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for batch := range batches {
					if err := enc.Encode(batch.Rows); err != nil {
						return err
					}
				}
				return cmd.Context().Err()
			}

			var store core.Store
			if !opts.NoState {
				s := state.NewSQLiteStore()
				if err := s.Open(cfg.StatePath); err != nil {
					return err
				}
				defer s.Close()
				if err := s.InitSchema(); err != nil {
					return err
				}
				store = s
			}

			var runID string
			if store != nil {
				if run, err := store.CreateRun(model.ModelType, cfg.Environment); err == nil {
					runID = run.ID
				} else {
					logger.Error("failed to record run", "error", err)
				}
			}

			gen := generate.New(generate.Config{Logger: logger})
			res, err := gen.Generate(cmd.Context(), model)
			if err != nil {
				if store != nil && runID != "" {
					_ = store.CompleteRun(runID, core.RunStatusFailed, 0, err.Error())
				}
				return err
			}
			if store != nil && runID != "" {
				if err := store.CompleteRun(runID, core.RunStatusCompleted, len(res.Rows), ""); err != nil {
					logger.Error("failed to complete run", "error", err)
				}
				if err := store.AddIssues(runID, res.Issues); err != nil {
					logger.Error("failed to record issues", "error", err)
				}
			}

			for _, issue := range res.Issues {
				fmt.Fprintf(cmd.ErrOrStderr(), "Issue: %s\n", issue)
			}

			if opts.Out != "" {
				f, err := os.Create(opts.Out)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				if err := renderCSV(f, res.Columns, res.Rows); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", len(res.Rows), opts.Out)
				return nil
			}

			rows := res.Rows
			if opts.Preview > 0 && len(rows) > opts.Preview {
				rows = rows[:opts.Preview]
			}
			return renderRows(cmd.OutOrStdout(), res.Columns, rows, cfg.Output)
		},
	}

	cmd.Flags().IntVar(&opts.Records, "records", 0, "Override the target record count")
	cmd.Flags().Float64Var(&opts.Sparsity, "sparsity", 0, "Override the sparsity setting")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "Seed the random source for reproducible output")
	cmd.Flags().IntVar(&opts.Preview, "preview", 20, "Rows to show when printing to the terminal (0 for all)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the full dataset to a CSV file instead of printing")
	cmd.Flags().BoolVar(&opts.Stream, "stream", false, "Stream record chunks to stdout as NDJSON instead of batch output")
	cmd.Flags().BoolVar(&opts.NoState, "no-state", false, "Skip recording the run in the state database")
	return cmd
}
