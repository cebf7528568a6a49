// Package extract turns parsed listing entries into catalogue products.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/media"
	"github.com/IshaanNene/SeedGoat/internal/types"
)

// Ranges for the synthesised marketplace fields, half-open.
const (
	minStock = 10
	maxStock = 100
	minRate  = 1
	maxRate  = 6
)

var (
	errDropped   = errors.New("dropped by pipeline")
	errNoSellers = errors.New("no sellers configured")
)

// Downloader fetches an image to a local path.
type Downloader interface {
	Download(ctx context.Context, rawURL, dstPath string) (*media.DownloadResult, error)
}

// Processor normalises or rejects a product before it is stored.
type Processor interface {
	Process(p *types.Product) (*types.Product, error)
}

// Extractor builds one Product per Entry.
type Extractor struct {
	sellers    []string
	imagePath  string
	assetPath  string
	downloader Downloader
	pipeline   Processor
	rng        *rand.Rand
	newID      func() string
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRand sets the random source for seller, stock and rate.
func WithRand(rng *rand.Rand) Option {
	return func(e *Extractor) { e.rng = rng }
}

// WithIDFunc overrides the product and image id generator.
func WithIDFunc(fn func() string) Option {
	return func(e *Extractor) { e.newID = fn }
}

// New creates an Extractor. pipe may be nil.
func New(cfg *config.Config, dl Downloader, pipe Processor, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		sellers:    cfg.Catalog.Sellers,
		imagePath:  cfg.Media.ImagePath,
		assetPath:  cfg.Media.AssetPath,
		downloader: dl,
		pipeline:   pipe,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		newID:      uuid.NewString,
		now:        time.Now,
		logger:     logger.With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract builds the product for entry. The price is checked before the
// image is downloaded; an image written before a later failure is kept.
func (e *Extractor) Extract(ctx context.Context, entry *types.Entry, cat types.Category) (*types.Product, error) {
	fail := func(stage string, err error) error {
		return &types.ExtractError{Stage: stage, Index: entry.Index, URL: entry.PageURL, Err: err}
	}

	if entry.Err != nil {
		return nil, fail("lookup", entry.Err)
	}

	imageID := e.newID()
	imagePath := fmt.Sprintf(e.imagePath, imageID)
	assetPath := fmt.Sprintf(e.assetPath, imageID)

	price, err := ParsePrice(entry.PriceText)
	if err != nil {
		return nil, fail("price", err)
	}

	if len(e.sellers) == 0 {
		return nil, fail("seller", errNoSellers)
	}

	if _, err := e.downloader.Download(ctx, entry.ImageURL, imagePath); err != nil {
		return nil, fail("image", err)
	}

	title := strings.TrimSpace(entry.Title)
	product := &types.Product{
		ProductID: e.newID(),
		Title:     title,
		SellerID:  e.Seller(),
		Stock:     e.Stock(),
		Category:  cat.Code,
		Price:     price,
		Rate:      e.Rate(),
		Comment:   title,
		ImageID:   imageID,
		ImagePath: imagePath,
		AssetPath: assetPath,
		SourceURL: entry.PageURL,
		ScrapedAt: e.now(),
	}

	if e.pipeline != nil {
		processed, err := e.pipeline.Process(product)
		if err != nil {
			return nil, fail("pipeline", err)
		}
		if processed == nil {
			return nil, fail("pipeline", errDropped)
		}
		product = processed
	}

	e.logger.Debug("product extracted",
		"product_id", product.ProductID,
		"category", cat.Slug,
		"price", product.Price,
		"image", imagePath,
	)
	return product, nil
}

// Seller picks a seller id from the configured list, or "" if it is empty.
func (e *Extractor) Seller() string {
	if len(e.sellers) == 0 {
		return ""
	}
	return e.sellers[e.rng.Intn(len(e.sellers))]
}

// Stock returns a stock count in [10, 100).
func (e *Extractor) Stock() int {
	return minStock + e.rng.Intn(maxStock-minStock)
}

// Rate returns a rating in [1, 6).
func (e *Extractor) Rate() int {
	return minRate + e.rng.Intn(maxRate-minRate)
}
