package types

import (
	"bytes"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Response is a fetched listing page.
type Response struct {
	Request       *Request
	StatusCode    int
	Body          []byte
	FinalURL      string // after redirects; empty if unknown
	FetchDuration time.Duration

	doc *goquery.Document
}

// Document parses Body once and caches the result.
func (r *Response) Document() (*goquery.Document, error) {
	if r.doc != nil {
		return r.doc, nil
	}
	if len(r.Body) == 0 {
		return nil, ErrEmptyResponse
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	r.doc = doc
	return doc, nil
}

// BaseURL is what relative links on the page resolve against.
func (r *Response) BaseURL() string {
	if r.FinalURL != "" {
		return r.FinalURL
	}
	return r.Request.URLString()
}
