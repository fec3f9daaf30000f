package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mymoney/internal/backend"
	applog "mymoney/internal/log"
	"mymoney/internal/services"
	"mymoney/internal/sheets"
	gsheet "mymoney/internal/sheets/google"
	"mymoney/internal/worker"
)

func newWorkerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run scheduled generation, queued generate requests and the spreadsheet export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWorker(cmd.Context())
		},
	}
}

// runWorker runs the background worker until a shutdown signal arrives.
func (a *app) runWorker(parent context.Context) error {
	ctx, cancel := SignalContext(parent, a.logger)
	defer cancel()

	owners, err := a.cfg.Owners()
	if err != nil {
		return err
	}

	return a.withEngine(ctx, func(res *backend.BackendResult, engine *services.Engine) error {
		opts := []worker.Option{worker.WithLogger(a.logger)}

		if res.AMQP != nil {
			opts = append(opts, worker.WithConsumer(res.AMQP))
		} else {
			a.logger.Info("AMQP unavailable - queued generate requests will not be consumed")
		}

		exporter, err := a.exporter(ctx)
		if err != nil {
			return err
		}
		if exporter != nil {
			processor := services.NewExportProcessor(res.Store, exporter, services.ExportProcessorConfig{
				PollInterval: a.cfg.ExportInterval,
				BatchSize:    a.cfg.ExportBatchSize,
			})
			opts = append(opts, worker.WithExporter(processor))
		}

		a.logger.Info("Starting recurring worker",
			"owners", owners,
			"interval", a.cfg.RecurringInterval,
			"backend", a.cfg.DataBackend)

		w := worker.NewGenerationWorker(engine.Processor, worker.Config{
			Owners:   owners,
			Interval: a.cfg.RecurringInterval,
		}, opts...)
		err = w.Run(ctx)
		a.logger.Info("Recurring worker stopped")
		return err
	})
}

// exporter returns the Google Sheets exporter, or nil when export is disabled.
func (a *app) exporter(ctx context.Context) (sheets.TransactionExporter, error) {
	if !a.cfg.SheetsEnabled() {
		a.logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   a.cfg.GoogleSpreadsheetID,
		SheetName:       a.cfg.GoogleSheetName,
		CredentialsJSON: a.cfg.GoogleServiceAccountJSON,
		CredentialsFile: a.cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets exporter: %w", err)
	}
	a.logger.WithComponent(applog.ComponentSheets).Info("Google Sheets exporter initialized",
		"spreadsheet_id", a.cfg.GoogleSpreadsheetID)
	return client, nil
}
