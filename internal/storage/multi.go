package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IshaanNene/SeedGoat/internal/types"
)

// MultiStorage writes every product to each of several sinks.
type MultiStorage struct {
	sinks  []Storage
	logger *slog.Logger
}

func NewMultiStorage(sinks []Storage, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{sinks: sinks, logger: logger.With("component", "multi_storage")}
}

func (s *MultiStorage) Name() string { return "multi" }

// Store tries every sink even after one fails, and joins the failures.
func (s *MultiStorage) Store(ctx context.Context, products []*types.Product) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Store(ctx, products); err != nil {
			s.logger.Error("sink failed", "sink", sink.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *MultiStorage) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}
