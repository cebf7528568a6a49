package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/IshaanNene/SeedGoat/internal/types"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// execer is the subset of *sql.DB the MySQL sink needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// MySQLStorage inserts products straight into the catalogue's PRODUCT_INFO
// table with bound parameters.
type MySQLStorage struct {
	db     execer
	closer func() error
	query  string
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewMySQLStorage opens and pings a MySQL connection.
func NewMySQLStorage(ctx context.Context, dsn, table string, logger *slog.Logger) (*MySQLStorage, error) {
	mcfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	mcfg.ParseTime = true
	if mcfg.Params == nil {
		mcfg.Params = map[string]string{}
	}
	if _, ok := mcfg.Params["charset"]; !ok {
		mcfg.Params["charset"] = "utf8mb4"
	}

	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}

	return newMySQLStorage(db, db.Close, table, logger)
}

func newMySQLStorage(db execer, closer func() error, table string, logger *slog.Logger) (*MySQLStorage, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &MySQLStorage{
		db:     db,
		closer: closer,
		query: "INSERT INTO " + table +
			" (product_id, product_name, seller_id, stock, category, price, rate, comment, image_path)" +
			" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		logger: logger.With("component", "mysql_storage"),
	}, nil
}

func (s *MySQLStorage) Name() string { return "mysql" }

func (s *MySQLStorage) Store(ctx context.Context, products []*types.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		_, err := s.db.ExecContext(ctx, s.query,
			p.ProductID, p.Title, p.SellerID, p.Stock, p.Category, p.Price, p.Rate, p.Comment, p.AssetPath)
		if err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("insert %s: %w", p.ProductID, err)}
		}
		s.count++
	}
	s.logger.Debug("products inserted", "count", len(products), "total", s.count)
	return nil
}

func (s *MySQLStorage) Close() error {
	s.logger.Info("mysql storage closing", "total_products", s.count)
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
