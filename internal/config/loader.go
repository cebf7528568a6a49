package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and a .env file.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied by the caller on top of the result.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("SEEDGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("seedgoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".seedgoat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// mapstructure decodes into existing slices element by element, so a
	// shorter list from the file would keep the tail of the default.
	// Lists registered in setDefaults always come back from viper.
	cfg.Engine.UserAgents = nil
	cfg.Storage.Sinks = nil
	if v.InConfig("catalog.categories") {
		cfg.Catalog.Categories = nil
	}
	if v.InConfig("catalog.sellers") {
		cfg.Catalog.Sellers = nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv exports variables from path into the process environment.
// A missing file is not an error; existing variables are never overwritten.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("site.base_url", cfg.Site.BaseURL)
	v.SetDefault("site.listing_path", cfg.Site.ListingPath)

	v.SetDefault("engine.first_page", cfg.Engine.FirstPage)
	v.SetDefault("engine.last_page", cfg.Engine.LastPage)
	v.SetDefault("engine.request_timeout", cfg.Engine.RequestTimeout)
	v.SetDefault("engine.page_delay", cfg.Engine.PageDelay)
	v.SetDefault("engine.item_delay", cfg.Engine.ItemDelay)
	v.SetDefault("engine.category_delay", cfg.Engine.CategoryDelay)
	v.SetDefault("engine.respect_robots_txt", cfg.Engine.RespectRobotsTxt)
	v.SetDefault("engine.user_agents", cfg.Engine.UserAgents)
	v.SetDefault("engine.max_items", cfg.Engine.MaxItems)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.stealth", cfg.Fetcher.Stealth)
	v.SetDefault("fetcher.wait_selector", cfg.Fetcher.WaitSelector)

	v.SetDefault("parser.type", cfg.Parser.Type)
	v.SetDefault("parser.item", cfg.Parser.Item)
	v.SetDefault("parser.title", cfg.Parser.Title)
	v.SetDefault("parser.price", cfg.Parser.Price)
	v.SetDefault("parser.image", cfg.Parser.Image)
	v.SetDefault("parser.image_attr", cfg.Parser.ImageAttr)

	v.SetDefault("media.image_path", cfg.Media.ImagePath)
	v.SetDefault("media.asset_path", cfg.Media.AssetPath)
	v.SetDefault("media.max_size_mb", cfg.Media.MaxSizeMB)
	v.SetDefault("media.timeout", cfg.Media.Timeout)

	v.SetDefault("pipeline.decode_entities", cfg.Pipeline.DecodeEntities)
	v.SetDefault("pipeline.reject_unsafe_titles", cfg.Pipeline.RejectUnsafeTitles)

	v.SetDefault("storage.sinks", cfg.Storage.Sinks)
	v.SetDefault("storage.sql_path", cfg.Storage.SQLPath)
	v.SetDefault("storage.sql_terminator", cfg.Storage.SQLTerminator)
	v.SetDefault("storage.mysql_dsn", cfg.Storage.MySQLDSN)
	v.SetDefault("storage.mysql_table", cfg.Storage.MySQLTable)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)
	v.SetDefault("storage.amqp_url", cfg.Storage.AMQPURL)
	v.SetDefault("storage.amqp_queue", cfg.Storage.AMQPQueue)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
