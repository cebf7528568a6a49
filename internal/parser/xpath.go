package parser

import (
	"bytes"
	"log/slog"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/types"
)

// XPathParser extracts listing entries using XPath expressions. Field
// expressions are evaluated relative to each item node, e.g. ".//img".
type XPathParser struct {
	sel    config.ParserConfig
	logger *slog.Logger
}

// NewXPathParser creates a new XPath parser.
func NewXPathParser(sel config.ParserConfig, logger *slog.Logger) *XPathParser {
	if sel.ImageAttr == "" {
		sel.ImageAttr = "src"
	}
	return &XPathParser{
		sel:    sel,
		logger: logger.With("component", "xpath_parser"),
	}
}

// Parse implements Parser.
func (p *XPathParser) Parse(resp *types.Response) ([]*types.Entry, error) {
	if len(resp.Body) == 0 {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Err: types.ErrEmptyResponse}
	}
	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Err: err}
	}

	nodes, err := htmlquery.QueryAll(doc, p.sel.Item)
	if err != nil {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Selector: p.sel.Item, Err: err}
	}

	pageURL := resp.BaseURL()
	entries := make([]*types.Entry, 0, len(nodes))

	for i, node := range nodes {
		entry := &types.Entry{Index: i, PageURL: pageURL}

		var src, title, price string
		if img := p.first(node, p.sel.Image); img != nil {
			src = htmlquery.SelectAttr(img, p.sel.ImageAttr)
		}
		if n := p.first(node, p.sel.Title); n != nil {
			title = htmlquery.InnerText(n)
		}
		if n := p.first(node, p.sel.Price); n != nil {
			price = htmlquery.InnerText(n)
		}

		fill(entry, pageURL, p.sel, src, title, price)
		entries = append(entries, entry)
	}

	p.logger.Debug("listing parsed", "url", pageURL, "entries", len(entries))
	return entries, nil
}

func (p *XPathParser) first(node *html.Node, expr string) *html.Node {
	n, err := htmlquery.Query(node, expr)
	if err != nil {
		p.logger.Warn("invalid xpath", "selector", expr, "error", err)
		return nil
	}
	return n
}
