// Package backend wires the store and the optional event publisher from
// configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"blockbudget/internal/amqp"
	"blockbudget/internal/config"
	"blockbudget/internal/ports"
	"blockbudget/internal/services"
	"blockbudget/internal/storage"
	"blockbudget/internal/storage/memory"
)

type Type string

const (
	SQLite Type = config.BackendSQLite
	Memory Type = config.BackendMemory
)

func (t Type) IsValid() bool {
	return t == SQLite || t == Memory
}

type Config struct {
	Type         Type
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("app config is nil")
	}
	t := Type(cfg.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", cfg.DataBackend)
	}
	return Config{
		Type:         t,
		SQLiteDBPath: cfg.SQLiteDBPath,
		AMQPURL:      cfg.AMQPURL,
		AMQPExchange: cfg.AMQPExchange,
		AMQPQueue:    cfg.AMQPQueue,
	}, nil
}

// Backend is an opened store plus the AMQP client, which is nil when events
// are disabled or the broker was unreachable at startup.
type Backend struct {
	Store ports.Store
	AMQP  *amqp.Client
}

// Publisher returns the client as a services.EventPublisher, or a nil
// interface when there is no client.
func (b *Backend) Publisher() services.EventPublisher {
	if b.AMQP == nil {
		return nil
	}
	return b.AMQP
}

// Close releases the AMQP connection and the store.
func (b *Backend) Close() error {
	var errs []error
	if b.AMQP != nil {
		if err := b.AMQP.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close AMQP client: %w", err))
		}
	}
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Open builds the backend. A broker failure is logged and leaves events
// disabled, store failures are returned.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var store ports.Store
	switch cfg.Type {
	case SQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite repository: %w", err)
		}
		store = repo
		logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	case Memory:
		store = memory.New()
		logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}

	b := &Backend{Store: store}
	if cfg.AMQPURL == "" {
		logger.InfoContext(ctx, "AMQP disabled, budget events will not be published")
		return b, nil
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		return b, nil
	}
	b.AMQP = client
	logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return b, nil
}
