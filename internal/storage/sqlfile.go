package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/SeedGoat/internal/types"
)

// insertTemplate is the PRODUCT_INFO statement the catalogue loader expects.
// String values are interpolated verbatim; nothing is escaped.
const insertTemplate = `INSERT INTO PRODUCT_INFO (product_id, product_name, seller_id, stock, category, price, rate, comment, image_path) VALUES ("%s","%s","%s",%d,%d,%d,%d,"%s","%s");`

// FormatInsert renders the INSERT statement for one product.
func FormatInsert(p *types.Product) string {
	return fmt.Sprintf(insertTemplate,
		p.ProductID, p.Title, p.SellerID, p.Stock, p.Category, p.Price, p.Rate, p.Comment, p.AssetPath)
}

// SQLFileStorage appends INSERT statements to a SQL script. The file is
// opened in append mode for every write and closed right after.
type SQLFileStorage struct {
	path       string
	terminator string
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewSQLFileStorage creates a SQL script sink. Existing content is kept.
func NewSQLFileStorage(outputPath, terminator string, logger *slog.Logger) (*SQLFileStorage, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return &SQLFileStorage{
		path:       outputPath,
		terminator: terminator,
		logger:     logger.With("component", "sqlfile_storage"),
	}, nil
}

func (s *SQLFileStorage) Name() string { return "sqlfile" }

func (s *SQLFileStorage) Store(_ context.Context, products []*types.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}

	for _, p := range products {
		if _, err := f.WriteString(FormatInsert(p) + s.terminator); err != nil {
			f.Close()
			return &types.StorageError{Backend: s.Name(), Err: err}
		}
		s.count++
	}

	if err := f.Close(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	s.logger.Debug("statements appended", "count", len(products), "total", s.count)
	return nil
}

func (s *SQLFileStorage) Close() error {
	s.logger.Info("SQL script written", "path", s.path, "statements", s.count)
	return nil
}
