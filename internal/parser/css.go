package parser

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/types"
)

// CSSParser extracts listing entries using CSS selectors via goquery.
type CSSParser struct {
	sel    config.ParserConfig
	logger *slog.Logger
}

// NewCSSParser creates a new CSS selector parser.
func NewCSSParser(sel config.ParserConfig, logger *slog.Logger) *CSSParser {
	if sel.ImageAttr == "" {
		sel.ImageAttr = "src"
	}
	return &CSSParser{
		sel:    sel,
		logger: logger.With("component", "css_parser"),
	}
}

// Parse implements Parser.
func (p *CSSParser) Parse(resp *types.Response) ([]*types.Entry, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{
			URL: resp.Request.URLString(),
			Err: err,
		}
	}

	pageURL := resp.BaseURL()
	var entries []*types.Entry

	doc.Find(p.sel.Item).Each(func(i int, node *goquery.Selection) {
		entry := &types.Entry{Index: i, PageURL: pageURL}

		src, _ := node.Find(p.sel.Image).First().Attr(p.sel.ImageAttr)
		title := node.Find(p.sel.Title).First().Text()
		price := node.Find(p.sel.Price).First().Text()

		fill(entry, pageURL, p.sel, src, title, price)
		entries = append(entries, entry)
	})

	p.logger.Debug("listing parsed", "url", pageURL, "entries", len(entries))
	return entries, nil
}
