package types

import (
	"time"
)

// Category maps a listing slug on the source site to the catalogue's
// numeric category code.
type Category struct {
	Slug string `mapstructure:"slug" yaml:"slug" json:"slug"`
	Code int    `mapstructure:"code" yaml:"code" json:"code"`
}

// Entry is one item node found on a listing page, before any
// marketplace fields are generated for it.
type Entry struct {
	// Index is the position of the node on its page.
	Index int

	// PageURL is the listing page the node was found on.
	PageURL string

	// ImageURL is the resolved src of the first <img> in the node.
	ImageURL string

	// Title is the trimmed title text.
	Title string

	// PriceText is the raw price string, e.g. "¥12,340".
	PriceText string

	// Err is set when a field lookup failed for this node only.
	Err error
}

// Product is the record persisted for every successfully extracted entry.
type Product struct {
	ProductID string    `json:"product_id"`
	Title     string    `json:"product_name"`
	SellerID  string    `json:"seller_id"`
	Stock     int       `json:"stock"`
	Category  int       `json:"category"`
	Price     int       `json:"price"`
	Rate      int       `json:"rate"`
	Comment   string    `json:"comment"`
	ImageID   string    `json:"image_id"`
	ImagePath string    `json:"-"`
	AssetPath string    `json:"image_path"`
	SourceURL string    `json:"source_url"`
	ScrapedAt time.Time `json:"scraped_at"`
}
