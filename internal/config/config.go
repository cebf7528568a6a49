package config

import (
	"time"

	"github.com/IshaanNene/SeedGoat/internal/types"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for SeedGoat.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"     yaml:"site"`
	Catalog  CatalogConfig  `mapstructure:"catalog"  yaml:"catalog"`
	Engine   EngineConfig   `mapstructure:"engine"   yaml:"engine"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Parser   ParserConfig   `mapstructure:"parser"   yaml:"parser"`
	Media    MediaConfig    `mapstructure:"media"    yaml:"media"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// SiteConfig describes where listing pages live.
type SiteConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// ListingPath is appended to BaseURL; {category} and {page} are substituted.
	ListingPath string `mapstructure:"listing_path" yaml:"listing_path"`
}

// CatalogConfig holds the fixed lookup tables.
type CatalogConfig struct {
	Categories []types.Category `mapstructure:"categories" yaml:"categories"`
	Sellers    []string         `mapstructure:"sellers"    yaml:"sellers"`
}

// EngineConfig controls the driver loop.
type EngineConfig struct {
	FirstPage        int           `mapstructure:"first_page"         yaml:"first_page"`
	LastPage         int           `mapstructure:"last_page"          yaml:"last_page"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"    yaml:"request_timeout"`
	PageDelay        time.Duration `mapstructure:"page_delay"         yaml:"page_delay"`
	ItemDelay        time.Duration `mapstructure:"item_delay"         yaml:"item_delay"`
	CategoryDelay    time.Duration `mapstructure:"category_delay"     yaml:"category_delay"`
	RespectRobotsTxt bool          `mapstructure:"respect_robots_txt" yaml:"respect_robots_txt"`
	UserAgents       []string      `mapstructure:"user_agents"        yaml:"user_agents"`
	MaxItems         int           `mapstructure:"max_items"          yaml:"max_items"`
}

// FetcherConfig controls the page fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	Stealth         bool          `mapstructure:"stealth"           yaml:"stealth"`
	WaitSelector    string        `mapstructure:"wait_selector"     yaml:"wait_selector"`
}

// ParserConfig holds the selectors for one listing layout.
type ParserConfig struct {
	Type      string `mapstructure:"type"       yaml:"type"` // css, xpath
	Item      string `mapstructure:"item"       yaml:"item"`
	Title     string `mapstructure:"title"      yaml:"title"`
	Price     string `mapstructure:"price"      yaml:"price"`
	Image     string `mapstructure:"image"      yaml:"image"`
	ImageAttr string `mapstructure:"image_attr" yaml:"image_attr"`
}

// MediaConfig controls thumbnail downloads.
type MediaConfig struct {
	ImagePath string        `mapstructure:"image_path"  yaml:"image_path"`
	AssetPath string        `mapstructure:"asset_path"  yaml:"asset_path"`
	MaxSizeMB int64         `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	Timeout   time.Duration `mapstructure:"timeout"     yaml:"timeout"`
}

// PipelineConfig toggles record normalisation stages.
type PipelineConfig struct {
	DecodeEntities     bool `mapstructure:"decode_entities"      yaml:"decode_entities"`
	RejectUnsafeTitles bool `mapstructure:"reject_unsafe_titles" yaml:"reject_unsafe_titles"`
}

// StorageConfig controls where products go.
type StorageConfig struct {
	Sinks           []string `mapstructure:"sinks"            yaml:"sinks"`
	SQLPath         string   `mapstructure:"sql_path"         yaml:"sql_path"`
	SQLTerminator   string   `mapstructure:"sql_terminator"   yaml:"sql_terminator"`
	MySQLDSN        string   `mapstructure:"mysql_dsn"        yaml:"mysql_dsn"`
	MySQLTable      string   `mapstructure:"mysql_table"      yaml:"mysql_table"`
	MongoURI        string   `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string   `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string   `mapstructure:"mongo_collection" yaml:"mongo_collection"`
	AMQPURL         string   `mapstructure:"amqp_url"         yaml:"amqp_url"`
	AMQPQueue       string   `mapstructure:"amqp_queue"       yaml:"amqp_queue"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config reproducing the original seeding run.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:     "https://www.amazon.co.jp/",
			ListingPath: "-/en/gp/bestsellers/{category}/ref=zg_bs_pg_2?ie=UTF8?pg={page}",
		},
		Catalog: CatalogConfig{
			Categories: DefaultCategories(),
			Sellers:    DefaultSellers(),
		},
		Engine: EngineConfig{
			FirstPage:      1,
			LastPage:       2,
			RequestTimeout: 30 * time.Second,
			PageDelay:      2 * time.Second,
			ItemDelay:      500 * time.Millisecond,
			CategoryDelay:  3 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    10,
		},
		Parser: ParserConfig{
			Type:      "css",
			Item:      "li.zg-item-immersion",
			Title:     "div.p13n-sc-truncate",
			Price:     "span.p13n-sc-price",
			Image:     "img",
			ImageAttr: "src",
		},
		Media: MediaConfig{
			ImagePath: "./img/%s.jpg",
			AssetPath: "assets/img/go-portforio-apl-file/%s.jpg",
			MaxSizeMB: 10,
			Timeout:   60 * time.Second,
		},
		Pipeline: PipelineConfig{
			DecodeEntities: false,
		},
		Storage: StorageConfig{
			Sinks:           []string{"sqlfile"},
			SQLPath:         "./productinsert.sql",
			SQLTerminator:   "\n",
			MySQLTable:      "PRODUCT_INFO",
			MongoDatabase:   "product_info",
			MongoCollection: "products",
			AMQPQueue:       "product_info.seed",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
