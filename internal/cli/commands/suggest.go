package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/epmforge/internal/suggest"
)

// NewSuggestCommand creates the suggest command.
func NewSuggestCommand(getConfig ConfigFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <model-type>",
		Short: "Ask the configured LLM to propose a model structure",
		Long: `Ask the configured Ollama model to propose dimensions and dependency
rules for a model type, and print them as a generation config skeleton.
The output is advisory; edit it before generating.`,
		Example: `  # Propose a structure for a financial model
  epmforge suggest Financial > model.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd.Context())
			logger := getLogger(cmd.Context())

			client := suggest.NewClient(suggest.Options{
				BaseURL: cfg.OllamaURL,
				Model:   cfg.OllamaModel,
				Logger:  logger,
			})
			s, err := client.Suggest(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			skeleton := map[string]any{
				"model_type":   args[0],
				"dimensions":   s.Dimensions,
				"dependencies": s.Rules,
				"settings":     map[string]any{"num_records": 1000, "sparsity": 0.0},
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(skeleton)
		},
	}
}
