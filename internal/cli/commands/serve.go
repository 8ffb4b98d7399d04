package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/epmforge/internal/server"
	"github.com/leapstack-labs/epmforge/internal/state"
	"github.com/leapstack-labs/epmforge/internal/suggest"
)

// NewServeCommand creates the serve command.
func NewServeCommand(getConfig ConfigFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server exposing generation, streaming, suggestion,
upload, and run-history endpoints. The server runs until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig(cmd.Context())
			logger := getLogger(cmd.Context())

			store := state.NewSQLiteStore()
			if err := store.Open(cfg.StatePath); err != nil {
				return err
			}
			defer store.Close()
			if err := store.InitSchema(); err != nil {
				return err
			}

			srv := server.NewServer(server.Config{
				Store: store,
				Suggester: suggest.NewClient(suggest.Options{
					BaseURL: cfg.OllamaURL,
					Model:   cfg.OllamaModel,
					Logger:  logger,
				}),
				Port:        cfg.Port,
				Environment: cfg.Environment,
				Logger:      logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx)
		},
	}
}
