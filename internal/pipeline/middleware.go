package pipeline

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/IshaanNene/SeedGoat/internal/types"
)

// Trim strips surrounding whitespace from the title and comment.
func Trim() Middleware {
	return NewFunc("trim", func(p *types.Product) (*types.Product, error) {
		p.Title = strings.TrimSpace(p.Title)
		p.Comment = strings.TrimSpace(p.Comment)
		return p, nil
	})
}

// RequireFields drops a product that has no id, title, seller or image path.
func RequireFields() Middleware {
	return NewFunc("required_fields", func(p *types.Product) (*types.Product, error) {
		for _, v := range []string{p.ProductID, p.Title, p.SellerID, p.AssetPath} {
			if v == "" {
				return nil, nil
			}
		}
		return p, nil
	})
}

// QuoteGuard rejects a title or comment that would end the double-quoted
// literal it is written into.
func QuoteGuard() Middleware {
	return NewFunc("quote_guard", func(p *types.Product) (*types.Product, error) {
		for _, s := range []string{p.Title, p.Comment} {
			if strings.ContainsAny(s, `"\`) {
				return nil, fmt.Errorf("%w: %q", types.ErrUnsafeTitle, s)
			}
		}
		return p, nil
	})
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// HTMLSanitizer removes markup left in listing text: tags go, entities are
// decoded and runs of whitespace become one space.
type HTMLSanitizer struct{}

func NewHTMLSanitizer() *HTMLSanitizer { return &HTMLSanitizer{} }

func (*HTMLSanitizer) Name() string { return "html_sanitize" }

func (*HTMLSanitizer) Process(p *types.Product) (*types.Product, error) {
	p.Title = sanitize(p.Title)
	p.Comment = sanitize(p.Comment)
	return p, nil
}

func sanitize(s string) string {
	s = html.UnescapeString(tagRe.ReplaceAllString(s, ""))
	return strings.Join(strings.Fields(s), " ")
}
