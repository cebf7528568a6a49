package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/types"
)

// Parser turns a fetched listing page into one Entry per item node.
type Parser interface {
	// Parse returns the entries found on the page. A page-level failure
	// (unparseable markup) is returned as an error; a field missing from a
	// single node is reported on that Entry instead.
	Parse(resp *types.Response) ([]*types.Entry, error)
}

// New creates the parser selected by cfg.Type.
func New(cfg config.ParserConfig, logger *slog.Logger) (Parser, error) {
	switch cfg.Type {
	case "css", "":
		return NewCSSParser(cfg, logger), nil
	case "xpath":
		return NewXPathParser(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported parser type %q", cfg.Type)
	}
}

// fill sets the entry's fields and records the first missing one as Err.
func fill(entry *types.Entry, pageURL string, sel config.ParserConfig, image, title, price string) {
	entry.ImageURL = resolveURL(pageURL, image)
	entry.Title = strings.TrimSpace(title)
	entry.PriceText = strings.TrimSpace(price)

	switch {
	case entry.ImageURL == "":
		entry.Err = missing(pageURL, sel.Image)
	case entry.Title == "":
		entry.Err = missing(pageURL, sel.Title)
	case entry.PriceText == "":
		entry.Err = missing(pageURL, sel.Price)
	}
}

func missing(pageURL, selector string) error {
	return &types.ParseError{URL: pageURL, Selector: selector, Err: types.ErrMissingField}
}

// resolveURL makes src absolute against the page it was found on.
func resolveURL(base, src string) string {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "data:") {
		return ""
	}
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}
