package types

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrBlocked       = errors.New("blocked by robots.txt")
	ErrEmptyResponse = errors.New("empty response body")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrMissingField  = errors.New("selector matched nothing")
	ErrBadPrice      = errors.New("unparseable price")
	ErrUnsafeTitle   = errors.New("title contains characters unsafe for SQL text")
	ErrNoFetcher     = errors.New("no fetcher for type")
)

// FetchError is a failed page or image download. StatusCode is zero for
// transport errors. RetryAfter is set from the Retry-After header of a 429.
type FetchError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is a listing page, or one field of an entry, that could not
// be read.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("parse %s: %q: %v", e.URL, e.Selector, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractError is a listing entry that did not become a product.
type ExtractError struct {
	Stage string // lookup, price, image, pipeline
	Index int
	URL   string
	Err   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("entry %d of %s: %s: %v", e.Index, e.URL, e.Stage, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// StorageError is a sink that failed to open or write.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError is a product rejected by a middleware.
type PipelineError struct {
	Stage   string
	Product *Product
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IsFatal reports whether err should end the run instead of skipping the
// current page or item. Only cancellation of the run is fatal; a failed sink
// write costs one item.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// a request timing out is the fetch's problem, not the run's
		var fe *FetchError
		return !errors.As(err, &fe)
	}
	return false
}
