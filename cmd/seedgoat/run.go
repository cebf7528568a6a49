package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/engine"
	"github.com/IshaanNene/SeedGoat/internal/extract"
	"github.com/IshaanNene/SeedGoat/internal/fetcher"
	"github.com/IshaanNene/SeedGoat/internal/media"
	"github.com/IshaanNene/SeedGoat/internal/observability"
	"github.com/IshaanNene/SeedGoat/internal/parser"
	"github.com/IshaanNene/SeedGoat/internal/pipeline"
	"github.com/IshaanNene/SeedGoat/internal/storage"
)

type runFlags struct {
	output        string
	imagePath     string
	firstPage     int
	lastPage      int
	pageDelay     time.Duration
	itemDelay     time.Duration
	categoryDelay time.Duration
	fetcherType   string
	sinks         []string
	maxItems      int
	categories    []string
	userAgent     string
	robots        bool
	rejectUnsafe  bool
	metrics       bool
}

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape every category and write the product inserts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "SQL output file (storage.sql_path)")
	fl.StringVar(&f.imagePath, "images", "", "local image path template with one %s (media.image_path)")
	fl.IntVar(&f.firstPage, "first-page", 0, "first listing page")
	fl.IntVar(&f.lastPage, "last-page", 0, "last listing page")
	fl.DurationVar(&f.pageDelay, "page-delay", 0, "wait after each listing page")
	fl.DurationVar(&f.itemDelay, "item-delay", 0, "wait after each item")
	fl.DurationVar(&f.categoryDelay, "category-delay", 0, "wait between categories")
	fl.StringVar(&f.fetcherType, "fetcher", "", "page fetcher: http or browser")
	fl.StringSliceVar(&f.sinks, "sink", nil, "output sinks: sqlfile, mysql, mongodb, amqp")
	fl.IntVarP(&f.maxItems, "max-items", "m", 0, "stop after this many products (0 = unlimited)")
	fl.StringSliceVar(&f.categories, "category", nil, "only scrape these category slugs")
	fl.StringVar(&f.userAgent, "user-agent", "", "custom User-Agent string")
	fl.BoolVar(&f.robots, "respect-robots", false, "skip pages disallowed by robots.txt")
	fl.BoolVar(&f.rejectUnsafe, "reject-unsafe-titles", false, "skip products whose title contains \" or \\")
	fl.BoolVar(&f.metrics, "metrics", false, "serve Prometheus metrics")

	return cmd
}

func runSeed(cmd *cobra.Command, f *runFlags) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyRunFlags(cmd, f, cfg); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pageFetcher, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer pageFetcher.Close()

	listingParser, err := parser.New(cfg.Parser, logger)
	if err != nil {
		return fmt.Errorf("create parser: %w", err)
	}

	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	ua := ""
	if len(cfg.Engine.UserAgents) > 0 {
		ua = cfg.Engine.UserAgents[0]
	}
	downloader := media.NewDownloader(cfg.Media.Timeout, cfg.Media.MaxSizeMB, ua, logger)
	extractor := extract.New(cfg, downloader, pipeline.FromConfig(cfg.Pipeline, logger), logger)

	var metrics *observability.Metrics
	var opts []engine.Option
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
		opts = append(opts, engine.WithRecorder(metrics))
	}

	eng := engine.New(cfg, pageFetcher, listingParser, extractor, store, logger, opts...)
	if metrics != nil {
		metrics.SetStatsSource(eng.Stats().Snapshot)
		metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path)
	}

	start := time.Now()
	runErr := eng.Run(ctx)

	stats := eng.Stats().Snapshot()
	images := downloader.Stats()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRun finished in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "   Pages:     %v fetched, %v failed, %v skipped\n", stats["pages_fetched"], stats["pages_failed"], stats["pages_skipped"])
	fmt.Fprintf(out, "   Products:  %v written, %v failed of %v entries\n", stats["items_written"], stats["items_failed"], stats["entries_seen"])
	fmt.Fprintf(out, "   Images:    %v downloaded, %v bytes\n", images["total_downloaded"], images["bytes_downloaded"])
	fmt.Fprintf(out, "   Output:    %s\n", cfg.Storage.SQLPath)

	return runErr
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command, f *runFlags, cfg *config.Config) error {
	fl := cmd.Flags()
	if fl.Changed("output") {
		cfg.Storage.SQLPath = f.output
	}
	if fl.Changed("images") {
		cfg.Media.ImagePath = f.imagePath
	}
	if fl.Changed("first-page") {
		cfg.Engine.FirstPage = f.firstPage
	}
	if fl.Changed("last-page") {
		cfg.Engine.LastPage = f.lastPage
	}
	if fl.Changed("page-delay") {
		cfg.Engine.PageDelay = f.pageDelay
	}
	if fl.Changed("item-delay") {
		cfg.Engine.ItemDelay = f.itemDelay
	}
	if fl.Changed("category-delay") {
		cfg.Engine.CategoryDelay = f.categoryDelay
	}
	if fl.Changed("fetcher") {
		cfg.Fetcher.Type = f.fetcherType
	}
	if fl.Changed("sink") {
		cfg.Storage.Sinks = f.sinks
	}
	if fl.Changed("max-items") {
		cfg.Engine.MaxItems = f.maxItems
	}
	if fl.Changed("user-agent") {
		cfg.Engine.UserAgents = []string{f.userAgent}
	}
	if fl.Changed("respect-robots") {
		cfg.Engine.RespectRobotsTxt = f.robots
	}
	if fl.Changed("reject-unsafe-titles") {
		cfg.Pipeline.RejectUnsafeTitles = f.rejectUnsafe
	}
	if fl.Changed("metrics") {
		cfg.Metrics.Enabled = f.metrics
	}
	if fl.Changed("category") {
		return cfg.SelectCategories(f.categories)
	}
	return nil
}
