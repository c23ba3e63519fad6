package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"blockbudget/internal/backend"
	"blockbudget/internal/cli"
	"blockbudget/internal/config"
	apphttp "blockbudget/internal/http"
	"blockbudget/internal/log"
	"blockbudget/internal/services"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	b, err := backend.Open(ctx, bcfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to open backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	svc := services.NewBudgetService(b.Store, b.Publisher())

	opts := apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}
	if p, ok := b.Store.(pinger); ok {
		opts.Ready = p.Ping
	}
	srv := apphttp.NewServer(":"+cfg.Port, svc, opts)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting blockbudget server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", b.AMQP != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		}
	}

	cli.RunCleanup(logger, func(ctx context.Context) error {
		return errors.Join(srv.Shutdown(ctx), b.Close())
	})
}
