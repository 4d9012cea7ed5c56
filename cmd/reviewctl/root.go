package main

import (
	"fmt"

	"github.com/reviewfolio/backend/internal/infrastructure/config"
	"github.com/reviewfolio/backend/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootOptions are the persistent flags shared by every subcommand
type rootOptions struct {
	configPath string
	logLevel   string
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "reviewctl",
		Short: "Review ingestion from the command line",
		Long: `reviewctl runs the review ingestion pipeline without the HTTP server.

Batches go to an in-memory store by default, which previews the outcome
without persisting anything. Pass --sqlite to keep reviews and run history
in a local database file.

Examples:
  reviewctl ingest reviews.xlsx --owner 7c9e6679-7425-40de-944b-e07fc1f90ae7
  reviewctl ingest reviews.csv --owner <uuid> --sqlite reviews.db --encoding euc-kr
  reviewctl text --owner <uuid> --business 행복카페 "정말 맛있어요"
  reviewctl token --owner <uuid> --ttl 24h`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(&logger.Config{
				Level:  opts.logLevel,
				Format: "console",
				Output: "stderr",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				logger.Sync(opts.log)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: ./config.toml when present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newIngestCmd(opts))
	cmd.AddCommand(newTextCmd(opts))
	cmd.AddCommand(newTokenCmd(opts))
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load()
}
