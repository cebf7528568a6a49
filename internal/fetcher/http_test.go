package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Engine.RequestTimeout = 5 * time.Second
	f, err := NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatalf("create fetcher: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestHTTPFetcherPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	req, _ := types.NewRequest(srv.URL + "/list?pg=1")

	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "<html><body>ok</body></html>" {
		t.Errorf("unexpected body %q", resp.Body)
	}
	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if doc.Find("body").Text() != "ok" {
		t.Errorf("unexpected document text %q", doc.Find("body").Text())
	}
}

func TestHTTPFetcherDecompresses(t *testing.T) {
	const page = "<html><body>compressed</body></html>"

	tests := []struct {
		name     string
		encoding string
		encode   func([]byte) []byte
	}{
		{"gzip", "gzip", func(b []byte) []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			zw.Write(b)
			zw.Close()
			return buf.Bytes()
		}},
		{"brotli", "br", func(b []byte) []byte {
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			bw.Write(b)
			bw.Close()
			return buf.Bytes()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", tt.encoding)
				w.Write(tt.encode([]byte(page)))
			}))
			defer srv.Close()

			f := newTestFetcher(t)
			req, _ := types.NewRequest(srv.URL)
			resp, err := f.Fetch(context.Background(), req)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if string(resp.Body) != page {
				t.Errorf("expected decoded body, got %q", resp.Body)
			}
		})
	}
}

func TestHTTPFetcherStatusErrors(t *testing.T) {
	tests := []struct {
		status     int
		retryAfter time.Duration
	}{
		{http.StatusNotFound, 0},
		{http.StatusServiceUnavailable, 0},
		{http.StatusTooManyRequests, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			f := newTestFetcher(t)
			req, _ := types.NewRequest(srv.URL)
			_, err := f.Fetch(context.Background(), req)

			var fe *types.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *types.FetchError, got %v", err)
			}
			if fe.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, fe.StatusCode)
			}
			if fe.RetryAfter != tt.retryAfter {
				t.Errorf("expected RetryAfter %s, got %s", tt.retryAfter, fe.RetryAfter)
			}
			if types.IsFatal(err) {
				t.Error("status errors must not be fatal")
			}
		})
	}
}

func TestHTTPFetcherEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	req, _ := types.NewRequest(srv.URL)
	_, err := f.Fetch(context.Background(), req)
	if !errors.Is(err, types.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestHTTPFetcherBodyLimit(t *testing.T) {
	big := bytes.Repeat([]byte("a"), 64)

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"plain", "", big},
		{"gzip counts decoded bytes", "gzip", func() []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			zw.Write(big)
			zw.Close()
			return buf.Bytes()
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				w.Write(tt.body)
			}))
			defer srv.Close()

			cfg := config.DefaultConfig()
			cfg.Fetcher.MaxBodySize = 32
			f, err := NewHTTPFetcher(cfg, testLogger)
			if err != nil {
				t.Fatalf("create fetcher: %v", err)
			}
			defer f.Close()

			req, _ := types.NewRequest(srv.URL)
			_, err = f.Fetch(context.Background(), req)
			var fe *types.FetchError
			if !errors.As(err, &fe) || !errors.Is(err, ErrBodyTooLarge) {
				t.Fatalf("expected FetchError wrapping ErrBodyTooLarge, got %v", err)
			}
		})
	}
}

func TestHTTPFetcherBodyAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("a"), 32))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Fetcher.MaxBodySize = 32
	f, err := NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatalf("create fetcher: %v", err)
	}
	defer f.Close()

	req, _ := types.NewRequest(srv.URL)
	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(resp.Body) != 32 {
		t.Errorf("expected the full 32 bytes, got %d", len(resp.Body))
	}
}

func TestNewSelectsFetcher(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Fetcher.Type = "carrier-pigeon"
	if _, err := New(cfg, testLogger); !errors.Is(err, types.ErrNoFetcher) {
		t.Errorf("expected ErrNoFetcher, got %v", err)
	}

	cfg.Fetcher.Type = "http"
	f, err := New(cfg, testLogger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()
	if f.Type() != "http" {
		t.Errorf("expected http fetcher, got %s", f.Type())
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter(""); got != 5*time.Second {
		t.Errorf("empty: got %s", got)
	}
	if got := parseRetryAfter("600"); got != 120*time.Second {
		t.Errorf("capped: got %s", got)
	}
	if got := parseRetryAfter("garbage"); got != 5*time.Second {
		t.Errorf("garbage: got %s", got)
	}
	if got := parseRetryAfter(" 7 "); got != 7*time.Second {
		t.Errorf("padded: got %s", got)
	}
}
