package main

import (
	"context"
	"errors"
	"os"
	"time"

	"blockbudget/internal/amqp"
	"blockbudget/internal/cli"
	"blockbudget/internal/config"
	"blockbudget/internal/log"
	"blockbudget/internal/services"
	gsheet "blockbudget/internal/sheets/google"
	"blockbudget/internal/storage"
	"blockbudget/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting blockbudget-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	creds, err := gsheet.LoadCredentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err != nil {
		logger.Error("Failed to load Google credentials", log.FieldError, err)
		os.Exit(1)
	}
	sheets, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: creds,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	// The worker only reads through the service, it never publishes.
	analyzer := services.NewBudgetService(repo, nil)
	syncWorker := worker.NewSyncWorker(repo, sheets, analyzer, cfg.SyncBatchSize)

	logger.Info("Performing startup sync check")
	if err := syncWorker.ProcessPending(ctx); err != nil {
		logger.Error("Startup sync check failed", log.FieldError, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := amqpClient.ConsumeEvents(ctx, syncWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			cancel()
		}
	}()

	go runPendingLoop(ctx, logger, syncWorker, cfg.SyncInterval)

	<-ctx.Done()
	logger.Info("Shutting down worker")

	cli.RunCleanup(logger, func(ctx context.Context) error {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		return errors.Join(amqpClient.Close(), repo.Close())
	})
}

// runPendingLoop retries unsynced expenses every interval, covering events
// lost while the worker was down.
func runPendingLoop(ctx context.Context, logger *log.Logger, w *worker.SyncWorker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Periodic sync failed", log.FieldError, err)
			}
		}
	}
}
