package types

import (
	"fmt"
	"net/url"
)

// Request is one listing page to fetch.
type Request struct {
	URL      *url.URL
	Category string // category slug
	Page     int    // 1-based listing page
}

// NewRequest parses rawURL, which must be absolute.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}
	return &Request{URL: u}, nil
}

// URLString returns the request URL as a string.
func (r *Request) URLString() string {
	if r == nil || r.URL == nil {
		return ""
	}
	return r.URL.String()
}
