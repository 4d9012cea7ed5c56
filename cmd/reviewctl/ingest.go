package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/google/uuid"
	reviewapp "github.com/reviewfolio/backend/internal/application/review"
	csvimport "github.com/reviewfolio/backend/internal/infrastructure/import"
	"github.com/reviewfolio/backend/internal/infrastructure/logger"
	"github.com/reviewfolio/backend/internal/infrastructure/persistence"
	"github.com/reviewfolio/backend/internal/interfaces/http/dto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// storeOptions select where a CLI batch persists
type storeOptions struct {
	owner  string
	sqlite string
}

func (s *storeOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.owner, "owner", "", "Owner (portfolio) UUID")
	cmd.Flags().StringVar(&s.sqlite, "sqlite", "", "SQLite database file (default: in-memory preview)")
	_ = cmd.MarkFlagRequired("owner")
}

func (s *storeOptions) ownerID() (uuid.UUID, error) {
	id, err := uuid.Parse(s.owner)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid --owner %q: expected a UUID", s.owner)
	}
	return id, nil
}

// newService builds an ingestion service over the selected store. The
// returned func closes the database, if one was opened.
func (s *storeOptions) newService(root *rootOptions) (*reviewapp.IngestionService, func(), error) {
	cfg, err := root.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	opts, err := reviewapp.ConfigOptions(cfg.Ingestion)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, reviewapp.WithLogger(root.log))

	if s.sqlite == "" {
		root.log.Info("Using in-memory store, nothing will be saved")
		return reviewapp.NewIngestionService(persistence.NewMemoryReviewRepository(), opts...), func() {}, nil
	}

	gormLog := logger.NewGormLogger(root.log, logger.MapGormLogLevel(root.logLevel))
	db, err := persistence.OpenSQLite(s.sqlite, gormLog)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, reviewapp.WithHistory(persistence.NewGormIngestionRunRepository(db.DB)))
	closer := func() {
		if err := db.Close(); err != nil {
			root.log.Warn("Error closing database", zap.Error(err))
		}
	}
	return reviewapp.NewIngestionService(persistence.NewGormReviewRepository(db.DB), opts...), closer, nil
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	var (
		store    storeOptions
		encoding string
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a CSV or Excel review export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := store.ownerID()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			svc, closeStore, err := store.newService(root)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			report, err := svc.IngestFile(ctx, owner, reviewapp.FileUpload{
				Name:     filepath.Base(args[0]),
				Data:     data,
				Encoding: encoding,
			})
			return finish(cmd.OutOrStdout(), report, err)
		},
	}

	store.bind(cmd)
	cmd.Flags().StringVar(&encoding, "encoding", "", "CSV text encoding, e.g. euc-kr (default: detected)")
	return cmd
}

func newTextCmd(root *rootOptions) *cobra.Command {
	var (
		store    storeOptions
		defaults reviewapp.BatchDefaults
	)

	cmd := &cobra.Command{
		Use:   "text <review>...",
		Short: "Ingest pasted review texts, one per argument",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := store.ownerID()
			if err != nil {
				return err
			}
			svc, closeStore, err := store.newService(root)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			report, err := svc.IngestTexts(ctx, owner, args, defaults)
			return finish(cmd.OutOrStdout(), report, err)
		},
	}

	store.bind(cmd)
	cmd.Flags().StringVar(&defaults.Platform, "platform", "", "Platform applied to every review")
	cmd.Flags().StringVar(&defaults.Business, "business", "", "Business applied to every review")
	return cmd
}

// finish prints the batch summary and row errors. A cancelled batch still
// prints what was evaluated before the stop.
func finish(w io.Writer, report csvimport.Report, err error) error {
	if err != nil && !errors.Is(err, reviewapp.ErrIngestionCancelled) {
		return err
	}
	if err != nil {
		fmt.Fprintln(w, dto.MsgIngestionCancelled)
	}
	fmt.Fprintln(w, dto.SummaryMessage(report.Summary))
	for _, msg := range report.Errors {
		fmt.Fprintln(w, "  -", msg)
	}
	return err
}
