package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url: %w", err)
	}
	if !strings.Contains(cfg.Site.ListingPath, "{category}") {
		return fmt.Errorf("site.listing_path must contain {category}")
	}
	if !strings.Contains(cfg.Site.ListingPath, "{page}") {
		return fmt.Errorf("site.listing_path must contain {page}")
	}

	if len(cfg.Catalog.Categories) == 0 {
		return fmt.Errorf("catalog.categories must not be empty")
	}
	seen := make(map[string]bool, len(cfg.Catalog.Categories))
	for _, c := range cfg.Catalog.Categories {
		if c.Slug == "" {
			return fmt.Errorf("catalog.categories: empty slug (code %d)", c.Code)
		}
		if seen[c.Slug] {
			return fmt.Errorf("catalog.categories: duplicate slug %q", c.Slug)
		}
		seen[c.Slug] = true
	}
	if len(cfg.Catalog.Sellers) == 0 {
		return fmt.Errorf("catalog.sellers must not be empty")
	}

	if cfg.Engine.FirstPage < 1 {
		return fmt.Errorf("engine.first_page must be >= 1, got %d", cfg.Engine.FirstPage)
	}
	if cfg.Engine.LastPage < cfg.Engine.FirstPage {
		return fmt.Errorf("engine.last_page (%d) must be >= engine.first_page (%d)", cfg.Engine.LastPage, cfg.Engine.FirstPage)
	}
	if cfg.Engine.RequestTimeout <= 0 {
		return fmt.Errorf("engine.request_timeout must be > 0")
	}
	if cfg.Engine.PageDelay < 0 || cfg.Engine.ItemDelay < 0 || cfg.Engine.CategoryDelay < 0 {
		return fmt.Errorf("engine delays must be >= 0")
	}
	if cfg.Engine.MaxItems < 0 {
		return fmt.Errorf("engine.max_items must be >= 0, got %d", cfg.Engine.MaxItems)
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.FollowRedirects && cfg.Fetcher.MaxRedirects < 1 {
		return fmt.Errorf("fetcher.max_redirects must be >= 1 when fetcher.follow_redirects is set")
	}
	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}

	if cfg.Parser.Type != "css" && cfg.Parser.Type != "xpath" {
		return fmt.Errorf("parser.type must be 'css' or 'xpath', got %q", cfg.Parser.Type)
	}
	if cfg.Parser.Item == "" || cfg.Parser.Title == "" || cfg.Parser.Price == "" || cfg.Parser.Image == "" {
		return fmt.Errorf("parser selectors item, title, price and image are required")
	}

	if strings.Count(cfg.Media.ImagePath, "%s") != 1 {
		return fmt.Errorf("media.image_path must contain exactly one %%s, got %q", cfg.Media.ImagePath)
	}
	if strings.Count(cfg.Media.AssetPath, "%s") != 1 {
		return fmt.Errorf("media.asset_path must contain exactly one %%s, got %q", cfg.Media.AssetPath)
	}

	if len(cfg.Storage.Sinks) == 0 {
		return fmt.Errorf("storage.sinks must name at least one sink")
	}
	for _, sink := range cfg.Storage.Sinks {
		switch sink {
		case "sqlfile":
			if cfg.Storage.SQLPath == "" {
				return fmt.Errorf("storage.sql_path is required for the sqlfile sink")
			}
		case "mysql":
			if cfg.Storage.MySQLDSN == "" {
				return fmt.Errorf("storage.mysql_dsn is required for the mysql sink")
			}
		case "mongodb":
			if cfg.Storage.MongoURI == "" {
				return fmt.Errorf("storage.mongo_uri is required for the mongodb sink")
			}
		case "amqp":
			if cfg.Storage.AMQPURL == "" || cfg.Storage.AMQPQueue == "" {
				return fmt.Errorf("storage.amqp_url and storage.amqp_queue are required for the amqp sink")
			}
		default:
			return fmt.Errorf("storage.sinks: %q is not supported (valid: sqlfile, mysql, mongodb, amqp)", sink)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is usable as a fetch target.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ListingURL builds the listing page URL for a category slug and page number.
func (c *Config) ListingURL(slug string, page int) string {
	path := strings.NewReplacer(
		"{category}", slug,
		"{page}", fmt.Sprint(page),
	).Replace(c.Site.ListingPath)
	return c.Site.BaseURL + path
}
