// Package engine drives a seeding run: every category, every listing page,
// every entry on the page, one at a time.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/types"
)

// Fetcher retrieves a listing page.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
}

// Parser splits a listing page into entries.
type Parser interface {
	Parse(resp *types.Response) ([]*types.Entry, error)
}

// Extractor turns one entry into a product, downloading its image.
type Extractor interface {
	Extract(ctx context.Context, entry *types.Entry, cat types.Category) (*types.Product, error)
}

// Storage persists products.
type Storage interface {
	Store(ctx context.Context, products []*types.Product) error
}

// Recorder receives per-page and per-item outcomes.
type Recorder interface {
	PageFetched(category string, size int, took time.Duration)
	PageFailed(category string)
	PageSkipped(category string)
	ItemWritten(category string)
	ItemFailed(category, stage string)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Stats counts what a run did.
type Stats struct {
	PagesFetched atomic.Int64
	PagesFailed  atomic.Int64
	PagesSkipped atomic.Int64
	EntriesSeen  atomic.Int64
	ItemsWritten atomic.Int64
	ItemsFailed  atomic.Int64
	StartTime    time.Time
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"pages_fetched": s.PagesFetched.Load(),
		"pages_failed":  s.PagesFailed.Load(),
		"pages_skipped": s.PagesSkipped.Load(),
		"entries_seen":  s.EntriesSeen.Load(),
		"items_written": s.ItemsWritten.Load(),
		"items_failed":  s.ItemsFailed.Load(),
		"elapsed":       time.Since(s.StartTime).Round(time.Millisecond).String(),
	}
}

var errLimitReached = errors.New("max items reached")

// Engine is the sequential driver.
type Engine struct {
	cfg       *config.Config
	fetcher   Fetcher
	parser    Parser
	extractor Extractor
	storage   Storage
	robots    *Robots
	recorder  Recorder
	sleep     Sleeper
	stats     *Stats
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder reports outcomes to r, typically observability.Metrics.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithSleeper replaces the context-aware sleep between requests.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) { e.sleep = s }
}

// WithRobots overrides the robots.txt checker.
func WithRobots(r *Robots) Option {
	return func(e *Engine) { e.robots = r }
}

// New creates an Engine.
func New(cfg *config.Config, f Fetcher, p Parser, x Extractor, s Storage, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		fetcher:   f,
		parser:    p,
		extractor: x,
		storage:   s,
		recorder:  nopRecorder{},
		sleep:     Sleep,
		stats:     &Stats{},
		logger:    logger.With("component", "engine"),
	}
	if cfg.Engine.RespectRobotsTxt {
		ua := ""
		if len(cfg.Engine.UserAgents) > 0 {
			ua = cfg.Engine.UserAgents[0]
		}
		e.robots = NewRobots(ua, logger)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats returns the run counters.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// Run walks every category and page. Page and item failures, failed sink
// writes included, are logged and skipped; only cancellation stops the run.
func (e *Engine) Run(ctx context.Context) error {
	e.stats.StartTime = time.Now()
	cats := e.cfg.Catalog.Categories

	e.logger.Info("run starting",
		"categories", len(cats),
		"first_page", e.cfg.Engine.FirstPage,
		"last_page", e.cfg.Engine.LastPage,
		"max_items", e.cfg.Engine.MaxItems,
	)

	err := e.walk(ctx, cats)
	if errors.Is(err, errLimitReached) {
		e.logger.Info("item limit reached", "max_items", e.cfg.Engine.MaxItems)
		err = nil
	}

	if err != nil {
		e.logger.Error("run aborted", "error", err, "stats", e.stats.Snapshot())
		return err
	}
	e.logger.Info("run finished", "stats", e.stats.Snapshot())
	return nil
}

func (e *Engine) walk(ctx context.Context, cats []types.Category) error {
	for i, cat := range cats {
		log := e.logger.With("category", cat.Slug, "code", cat.Code)
		log.Info("category started")

		for page := e.cfg.Engine.FirstPage; page <= e.cfg.Engine.LastPage; page++ {
			if err := e.scrapePage(ctx, cat, page, log.With("page", page)); err != nil {
				return err
			}
		}

		if i < len(cats)-1 {
			if err := e.sleep(ctx, e.cfg.Engine.CategoryDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// scrapePage returns only errors that should end the run.
func (e *Engine) scrapePage(ctx context.Context, cat types.Category, page int, log *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pageURL := e.cfg.ListingURL(cat.Slug, page)
	req, err := types.NewRequest(pageURL)
	if err != nil {
		e.pageFailed(cat, log, err)
		return nil
	}
	req.Category = cat.Slug
	req.Page = page

	if e.robots != nil {
		if err := e.robots.Check(ctx, pageURL); err != nil {
			e.stats.PagesSkipped.Add(1)
			e.recorder.PageSkipped(cat.Slug)
			log.Warn("page skipped", "url", pageURL, "error", err)
			return nil
		}
	}

	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.pageFailed(cat, log, err)
		return e.backOff(ctx, err, log)
	}
	e.stats.PagesFetched.Add(1)
	e.recorder.PageFetched(cat.Slug, len(resp.Body), resp.FetchDuration)
	log.Debug("page fetched", "url", pageURL, "status", resp.StatusCode, "bytes", len(resp.Body))

	if err := e.sleep(ctx, e.pageDelay(pageURL)); err != nil {
		return err
	}

	entries, err := e.parser.Parse(resp)
	if err != nil {
		e.pageFailed(cat, log, err)
		return nil
	}
	log.Info("page parsed", "entries", len(entries))

	for _, entry := range entries {
		if err := e.scrapeEntry(ctx, cat, entry, log); err != nil {
			return err
		}
		if err := e.sleep(ctx, e.cfg.Engine.ItemDelay); err != nil {
			return err
		}
	}
	return nil
}

// scrapeEntry returns only errors that should end the run.
func (e *Engine) scrapeEntry(ctx context.Context, cat types.Category, entry *types.Entry, log *slog.Logger) error {
	e.stats.EntriesSeen.Add(1)

	product, err := e.extractor.Extract(ctx, entry, cat)
	if err != nil {
		if types.IsFatal(err) {
			return err
		}
		e.itemFailed(cat, log, entry, stageOf(err), err)
		return nil
	}

	if err := e.storage.Store(ctx, []*types.Product{product}); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.itemFailed(cat, log, entry, "store", err)
		return nil
	}

	e.stats.ItemsWritten.Add(1)
	e.recorder.ItemWritten(cat.Slug)
	log.Debug("item written", "index", entry.Index, "product_id", product.ProductID, "title", product.Title)

	if limit := e.cfg.Engine.MaxItems; limit > 0 && e.stats.ItemsWritten.Load() >= int64(limit) {
		return errLimitReached
	}
	return nil
}

// pageDelay honours a robots.txt Crawl-delay longer than the configured one.
func (e *Engine) pageDelay(pageURL string) time.Duration {
	d := e.cfg.Engine.PageDelay
	if e.robots != nil {
		if cd := e.robots.CrawlDelay(pageURL); cd > d {
			return cd
		}
	}
	return d
}

// backOff waits out the Retry-After of a rate-limited page before moving on.
func (e *Engine) backOff(ctx context.Context, err error, log *slog.Logger) error {
	var fe *types.FetchError
	if !errors.As(err, &fe) || fe.RetryAfter <= 0 {
		return nil
	}
	log.Info("rate limited, backing off", "wait", fe.RetryAfter)
	return e.sleep(ctx, fe.RetryAfter)
}

func (e *Engine) pageFailed(cat types.Category, log *slog.Logger, err error) {
	e.stats.PagesFailed.Add(1)
	e.recorder.PageFailed(cat.Slug)
	log.Warn("page failed, skipping", "error", err)
}

func (e *Engine) itemFailed(cat types.Category, log *slog.Logger, entry *types.Entry, stage string, err error) {
	e.stats.ItemsFailed.Add(1)
	e.recorder.ItemFailed(cat.Slug, stage)
	log.Warn("item failed", "index", entry.Index, "stage", stage, "error", err)
}

func stageOf(err error) string {
	var ee *types.ExtractError
	if errors.As(err, &ee) {
		return ee.Stage
	}
	return "extract"
}

// Sleep waits for d, returning early with ctx's error when cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 || ctx.Err() != nil {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopRecorder struct{}

func (nopRecorder) PageFetched(string, int, time.Duration) {}
func (nopRecorder) PageFailed(string)                      {}
func (nopRecorder) PageSkipped(string)                     {}
func (nopRecorder) ItemWritten(string)                     {}
func (nopRecorder) ItemFailed(string, string)              {}
