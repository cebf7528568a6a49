package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/types"
)

// Storage is the interface for all product sinks.
type Storage interface {
	// Store persists a batch of products.
	Store(ctx context.Context, products []*types.Product) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New opens every sink named in cfg.Sinks. A single sink is returned as is;
// several are wrapped in a MultiStorage.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Storage, error) {
	var backends []Storage

	closeAll := func() {
		for _, b := range backends {
			b.Close()
		}
	}

	for _, name := range cfg.Sinks {
		var (
			backend Storage
			err     error
		)
		switch name {
		case "sqlfile":
			backend, err = NewSQLFileStorage(cfg.SQLPath, cfg.SQLTerminator, logger)
		case "mysql":
			backend, err = NewMySQLStorage(ctx, cfg.MySQLDSN, cfg.MySQLTable, logger)
		case "mongodb":
			backend, err = NewMongoStorage(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
		case "amqp":
			backend, err = NewAMQPStorage(cfg.AMQPURL, cfg.AMQPQueue, logger)
		default:
			err = fmt.Errorf("unsupported storage sink: %s", name)
		}
		if err != nil {
			closeAll()
			return nil, &types.StorageError{Backend: name, Err: err}
		}
		backends = append(backends, backend)
	}

	if len(backends) == 1 {
		return backends[0], nil
	}
	return NewMultiStorage(backends, logger), nil
}
