package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/types"
)

// ErrBodyTooLarge is returned when a decoded page exceeds fetcher.max_body_size.
var ErrBodyTooLarge = errors.New("page body too large")

const (
	defaultRetryAfter = 5 * time.Second
	maxRetryAfter     = 2 * time.Minute
)

// HTTPFetcher fetches listing pages with net/http. It keeps cookies across
// pages and rotates through the configured User-Agents.
type HTTPFetcher struct {
	client  *http.Client
	maxBody int64
	agents  []string
	next    atomic.Uint64
	logger  *slog.Logger
}

// NewHTTPFetcher creates an HTTPFetcher from cfg.
func NewHTTPFetcher(cfg *config.Config, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	fc := cfg.Fetcher
	client := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:        fc.MaxIdleConns,
			MaxIdleConnsPerHost: fc.MaxIdleConns,
			IdleConnTimeout:     fc.IdleConnTimeout,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: fc.TLSInsecure},
			// bodies are decoded by decode so brotli is covered too
			DisableCompression: true,
		},
		Jar:     jar,
		Timeout: cfg.Engine.RequestTimeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			switch {
			case !fc.FollowRedirects:
				return http.ErrUseLastResponse
			case len(via) >= fc.MaxRedirects:
				return fmt.Errorf("stopped after %d redirects", fc.MaxRedirects)
			}
			return nil
		},
	}

	return &HTTPFetcher{
		client:  client,
		maxBody: fc.MaxBodySize,
		agents:  cfg.Engine.UserAgents,
		logger:  logger.With("component", "http_fetcher"),
	}, nil
}

// Fetch GETs the listing page. Non-2xx statuses and empty bodies come back
// as *types.FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	target := req.URLString()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &types.FetchError{URL: target, Err: err}
	}
	hreq.Header.Set("User-Agent", f.userAgent())
	hreq.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	hreq.Header.Set("Accept-Language", "ja,en-US;q=0.8,en;q=0.6")
	hreq.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	hresp, err := f.client.Do(hreq)
	if err != nil {
		return nil, &types.FetchError{URL: target, Err: err}
	}
	defer hresp.Body.Close()

	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		return nil, statusError(target, hresp)
	}

	body, err := f.readBody(hresp)
	took := time.Since(start)
	if err != nil {
		return nil, &types.FetchError{URL: target, StatusCode: hresp.StatusCode, Err: err}
	}
	if len(body) == 0 {
		return nil, &types.FetchError{URL: target, StatusCode: hresp.StatusCode, Err: types.ErrEmptyResponse}
	}

	f.logger.Debug("fetched", "url", target, "status", hresp.StatusCode, "bytes", len(body), "took", took)

	return &types.Response{
		Request:       req,
		StatusCode:    hresp.StatusCode,
		Body:          body,
		FinalURL:      hresp.Request.URL.String(),
		FetchDuration: took,
	}, nil
}

// Close drops idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *HTTPFetcher) Type() string { return "http" }

func (f *HTTPFetcher) userAgent() string {
	if len(f.agents) == 0 {
		return "SeedGoat/" + config.Version
	}
	n := f.next.Add(1) - 1
	return f.agents[n%uint64(len(f.agents))]
}

// readBody decodes the body and enforces maxBody on the decoded bytes.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	r, err := decode(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, err
	}
	if f.maxBody <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, f.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.maxBody)
	}
	return body, nil
}

func statusError(target string, resp *http.Response) *types.FetchError {
	fe := &types.FetchError{URL: target, StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusTooManyRequests {
		fe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		fe.Err = fmt.Errorf("rate limited, retry after %s", fe.RetryAfter)
		return fe
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	fe.Err = errors.New(strings.TrimSpace(resp.Status + " " + string(snippet)))
	return fe
}

func decode(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "gzip":
		return gzip.NewReader(r)
	case "deflate":
		return flate.NewReader(r), nil
	case "br":
		return brotli.NewReader(r), nil
	}
	return r, nil
}

// parseRetryAfter reads delta-seconds or an HTTP date, capped at two minutes.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return defaultRetryAfter
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		d = time.Until(at)
		if d < time.Second {
			d = time.Second
		}
	} else {
		return defaultRetryAfter
	}
	return min(d, maxRetryAfter)
}
