// Package cli provides the command-line interface for epmforge.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/epmforge/internal/cli/commands"
	"github.com/leapstack-labs/epmforge/internal/config"
)

// Version information (set at build time).
var (
	Version = "0.1.0"
)

var cfgFile string

// configKey is used to store config in context.
type configKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "epmforge",
		Short: "EPM Forge - Synthetic EPM Data Generator",
		Long: `EPM Forge synthesizes tabular datasets for Enterprise Performance
Management style models: dimensions, measures, and calculation rules in,
consistent populated intersections out.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = commands.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Synthetic EPM data generation engine
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./epmforge.yaml)")
	rootCmd.PersistentFlags().Int("port", config.DefaultPort, "API server port")
	rootCmd.PersistentFlags().String("state", "", "Path to run-history database")
	rootCmd.PersistentFlags().String("environment", "", "Environment name")
	rootCmd.PersistentFlags().String("ollama-url", "", "Ollama base URL for suggestions")
	rootCmd.PersistentFlags().String("ollama-model", "", "Ollama model for suggestions")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (table|json|csv)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewGenerateCommand(getConfig))
	rootCmd.AddCommand(commands.NewServeCommand(getConfig))
	rootCmd.AddCommand(commands.NewRulesCommand(getConfig))
	rootCmd.AddCommand(commands.NewSuggestCommand(getConfig))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// getConfig retrieves the config from the command context.
func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{
		Port:        config.DefaultPort,
		StatePath:   config.DefaultStateFile,
		Environment: config.DefaultEnv,
		OllamaURL:   config.DefaultOllamaURL,
		OllamaModel: config.DefaultOllamaModel,
		Output:      config.DefaultOutput,
	}
}
