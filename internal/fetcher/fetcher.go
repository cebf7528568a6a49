package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/types"
)

// Fetcher retrieves listing pages.
type Fetcher interface {
	// Fetch retrieves the page at req.URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases connections or the browser.
	Close() error

	// Type is the fetcher.type value that selects this fetcher.
	Type() string
}

// New creates the fetcher selected by cfg.Fetcher.Type.
func New(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	switch cfg.Fetcher.Type {
	case "http", "":
		return NewHTTPFetcher(cfg, logger)
	case "browser":
		return NewBrowserFetcher(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrNoFetcher, cfg.Fetcher.Type)
	}
}
