package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/SeedGoat/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "seedgoat",
		Short: "SeedGoat seeds a product catalogue from best-seller listings",
		Long: `SeedGoat walks the best-seller listing of every configured category,
downloads each product thumbnail and writes one PRODUCT_INFO insert per
product. Sellers, stock and ratings are generated.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("SeedGoat %s\n", config.Version)
		},
	}
}

// categoriesCmd lists the category table in scrape order.
func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories that will be scraped",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tSLUG\tCODE")
			for i, c := range cfg.Catalog.Categories {
				fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, c.Slug, c.Code)
			}
			return w.Flush()
		},
	}
}

// configCmd prints the effective configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Site:\n")
			fmt.Fprintf(out, "  Listing URL:       %s%s\n", cfg.Site.BaseURL, cfg.Site.ListingPath)
			fmt.Fprintf(out, "  Categories:        %d\n", len(cfg.Catalog.Categories))
			fmt.Fprintf(out, "  Sellers:           %d\n", len(cfg.Catalog.Sellers))
			fmt.Fprintf(out, "\nEngine:\n")
			fmt.Fprintf(out, "  Pages:             %d-%d\n", cfg.Engine.FirstPage, cfg.Engine.LastPage)
			fmt.Fprintf(out, "  Delays:            page %s, item %s, category %s\n",
				cfg.Engine.PageDelay, cfg.Engine.ItemDelay, cfg.Engine.CategoryDelay)
			fmt.Fprintf(out, "  Request Timeout:   %s\n", cfg.Engine.RequestTimeout)
			fmt.Fprintf(out, "  Respect robots.txt: %v\n", cfg.Engine.RespectRobotsTxt)
			fmt.Fprintf(out, "  Max Items:         %d\n", cfg.Engine.MaxItems)
			fmt.Fprintf(out, "\nFetcher / Parser:\n")
			fmt.Fprintf(out, "  Fetcher:           %s\n", cfg.Fetcher.Type)
			fmt.Fprintf(out, "  Parser:            %s (item %q)\n", cfg.Parser.Type, cfg.Parser.Item)
			fmt.Fprintf(out, "\nOutput:\n")
			fmt.Fprintf(out, "  Sinks:             %s\n", strings.Join(cfg.Storage.Sinks, ", "))
			fmt.Fprintf(out, "  SQL File:          %s\n", cfg.Storage.SQLPath)
			fmt.Fprintf(out, "  Images:            %s\n", cfg.Media.ImagePath)
			fmt.Fprintf(out, "  Asset Path:        %s\n", cfg.Media.AssetPath)
			fmt.Fprintf(out, "\nMetrics:\n")
			fmt.Fprintf(out, "  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Fprintf(out, "  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// setupLogger creates a structured logger from the logging config. The
// returned closer releases a log file, if one was opened.
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closer := func() error { return nil }
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closer, nil
}
