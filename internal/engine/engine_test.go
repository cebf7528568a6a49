package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/extract"
	"github.com/IshaanNene/SeedGoat/internal/fetcher"
	"github.com/IshaanNene/SeedGoat/internal/media"
	"github.com/IshaanNene/SeedGoat/internal/parser"
	"github.com/IshaanNene/SeedGoat/internal/pipeline"
	"github.com/IshaanNene/SeedGoat/internal/storage"
	"github.com/IshaanNene/SeedGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// --- fakes ---

type fakeFetcher struct {
	mu   sync.Mutex
	urls []string
	fail map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, req *types.Request) (*types.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := req.URLString()
	f.urls = append(f.urls, u)
	if err := f.fail[u]; err != nil {
		return nil, err
	}
	return &types.Response{Request: req, StatusCode: 200, Body: []byte("<html></html>")}, nil
}

type fakeParser struct{ perPage int }

func (p *fakeParser) Parse(resp *types.Response) ([]*types.Entry, error) {
	entries := make([]*types.Entry, p.perPage)
	for i := range entries {
		entries[i] = &types.Entry{Index: i, PageURL: resp.Request.URLString(), Title: fmt.Sprintf("item %d", i), PriceText: "¥1,000"}
	}
	return entries, nil
}

type fakeExtractor struct {
	calls int
	fail  func(entry *types.Entry) error
}

func (x *fakeExtractor) Extract(_ context.Context, entry *types.Entry, cat types.Category) (*types.Product, error) {
	x.calls++
	if x.fail != nil {
		if err := x.fail(entry); err != nil {
			return nil, err
		}
	}
	return &types.Product{ProductID: fmt.Sprintf("%s-%d", cat.Slug, x.calls), Title: entry.Title, Category: cat.Code}, nil
}

type fakeStorage struct {
	stored []*types.Product
	err    error
	failN  int // fail only the first failN writes
	writes int
}

func (s *fakeStorage) Store(_ context.Context, products []*types.Product) error {
	s.writes++
	if s.err != nil && (s.failN == 0 || s.writes <= s.failN) {
		return s.err
	}
	s.stored = append(s.stored, products...)
	return nil
}

type countingRecorder struct {
	fetched, failed, skipped, written int
	stages                            []string
}

func (r *countingRecorder) PageFetched(string, int, time.Duration) { r.fetched++ }
func (r *countingRecorder) PageFailed(string)                      { r.failed++ }
func (r *countingRecorder) PageSkipped(string)                     { r.skipped++ }
func (r *countingRecorder) ItemWritten(string)                     { r.written++ }
func (r *countingRecorder) ItemFailed(_, stage string)             { r.stages = append(r.stages, stage) }

func testConfig(categories int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Catalog.Categories = cfg.Catalog.Categories[:categories]
	cfg.Engine.FirstPage = 1
	cfg.Engine.LastPage = 2
	return cfg
}

// --- driver ---

func TestRunVisitsEveryPageAndEntry(t *testing.T) {
	const n, k = 3, 4
	cfg := testConfig(n)
	f := &fakeFetcher{}
	x := &fakeExtractor{}
	s := &fakeStorage{}
	rec := &countingRecorder{}

	e := New(cfg, f, &fakeParser{perPage: k}, x, s, testLogger, WithSleeper(noSleep), WithRecorder(rec))
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	p := cfg.Engine.LastPage - cfg.Engine.FirstPage + 1
	if len(f.urls) != n*p {
		t.Errorf("expected %d fetches, got %d", n*p, len(f.urls))
	}
	if x.calls != n*p*k {
		t.Errorf("expected %d extraction attempts, got %d", n*p*k, x.calls)
	}
	if len(s.stored) != n*p*k || rec.written != n*p*k {
		t.Errorf("expected %d stored products, got %d", n*p*k, len(s.stored))
	}
	if got := e.Stats().EntriesSeen.Load(); got != int64(n*p*k) {
		t.Errorf("expected %d entries seen, got %d", n*p*k, got)
	}

	// category order, then page order
	want := []string{
		cfg.ListingURL("digital-text", 1),
		cfg.ListingURL("digital-text", 2),
		cfg.ListingURL("automotive", 1),
	}
	for i, u := range want {
		if f.urls[i] != u {
			t.Errorf("fetch %d: expected %s, got %s", i, u, f.urls[i])
		}
	}
}

func TestRunSkipsFailedPage(t *testing.T) {
	cfg := testConfig(2)
	bad := cfg.ListingURL(cfg.Catalog.Categories[0].Slug, 2)
	f := &fakeFetcher{fail: map[string]error{
		bad: &types.FetchError{URL: bad, StatusCode: 503, Err: errors.New("unavailable")},
	}}
	x := &fakeExtractor{}
	rec := &countingRecorder{}

	e := New(cfg, f, &fakeParser{perPage: 2}, x, &fakeStorage{}, testLogger, WithSleeper(noSleep), WithRecorder(rec))
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("a page failure must not abort the run: %v", err)
	}

	if len(f.urls) != 4 {
		t.Errorf("expected all 4 pages attempted, got %d", len(f.urls))
	}
	if e.Stats().PagesFailed.Load() != 1 || e.Stats().PagesFetched.Load() != 3 {
		t.Errorf("unexpected page stats %v", e.Stats().Snapshot())
	}
	if x.calls != 6 || rec.failed != 1 {
		t.Errorf("expected 6 extractions and 1 failed page, got %d / %d", x.calls, rec.failed)
	}
}

func TestRunBacksOffWhenRateLimited(t *testing.T) {
	cfg := testConfig(1)
	cfg.Engine.PageDelay = time.Second
	limited := cfg.ListingURL(cfg.Catalog.Categories[0].Slug, 1)
	f := &fakeFetcher{fail: map[string]error{
		limited: &types.FetchError{URL: limited, StatusCode: 429, RetryAfter: 7 * time.Second, Err: errors.New("rate limited")},
	}}

	var waits []time.Duration
	record := func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}

	e := New(cfg, f, &fakeParser{perPage: 0}, &fakeExtractor{}, &fakeStorage{}, testLogger, WithSleeper(record))
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// page 1 backs off, page 2 gets the normal page delay
	if len(waits) != 2 || waits[0] != 7*time.Second || waits[1] != time.Second {
		t.Errorf("unexpected waits %v", waits)
	}
	if len(f.urls) != 2 {
		t.Errorf("expected the next page to be attempted, got %v", f.urls)
	}
}

func TestRunSkipsFailedItem(t *testing.T) {
	cfg := testConfig(1)
	x := &fakeExtractor{fail: func(entry *types.Entry) error {
		if entry.Index == 1 {
			return &types.ExtractError{Stage: "image", Index: 1, Err: errors.New("connection reset")}
		}
		return nil
	}}
	s := &fakeStorage{}
	rec := &countingRecorder{}

	e := New(cfg, &fakeFetcher{}, &fakeParser{perPage: 3}, x, s, testLogger, WithSleeper(noSleep), WithRecorder(rec))
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(s.stored) != 4 {
		t.Errorf("expected 4 stored (2 pages x 2 good entries), got %d", len(s.stored))
	}
	if e.Stats().ItemsFailed.Load() != 2 {
		t.Errorf("expected 2 failed items, got %d", e.Stats().ItemsFailed.Load())
	}
	if len(rec.stages) != 2 || rec.stages[0] != "image" {
		t.Errorf("expected image stage failures, got %v", rec.stages)
	}
}

func TestRunSkipsFailedWrite(t *testing.T) {
	cfg := testConfig(2)
	x := &fakeExtractor{}
	s := &fakeStorage{
		err:   &types.StorageError{Backend: "sqlfile", Err: context.DeadlineExceeded},
		failN: 1,
	}
	rec := &countingRecorder{}

	e := New(cfg, &fakeFetcher{}, &fakeParser{perPage: 3}, x, s, testLogger, WithSleeper(noSleep), WithRecorder(rec))
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("a failed write must not abort the run: %v", err)
	}

	// 2 categories x 2 pages x 3 entries
	if x.calls != 12 {
		t.Errorf("expected 12 extractions, got %d", x.calls)
	}
	if len(s.stored) != 11 || e.Stats().ItemsWritten.Load() != 11 {
		t.Errorf("expected 11 stored, got %d", len(s.stored))
	}
	if e.Stats().ItemsFailed.Load() != 1 || len(rec.stages) != 1 || rec.stages[0] != "store" {
		t.Errorf("expected one store failure, got %v", rec.stages)
	}
}

func TestRunSinkDownForWholeRun(t *testing.T) {
	cfg := testConfig(1)
	x := &fakeExtractor{}
	s := &fakeStorage{err: errors.New("disk full")}

	e := New(cfg, &fakeFetcher{}, &fakeParser{perPage: 3}, x, s, testLogger, WithSleeper(noSleep))
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if x.calls != 6 || e.Stats().ItemsFailed.Load() != 6 || e.Stats().ItemsWritten.Load() != 0 {
		t.Errorf("expected every item attempted and failed, got %v", e.Stats().Snapshot())
	}
}

func TestRunMaxItems(t *testing.T) {
	cfg := testConfig(3)
	cfg.Engine.MaxItems = 5
	s := &fakeStorage{}

	e := New(cfg, &fakeFetcher{}, &fakeParser{perPage: 4}, &fakeExtractor{}, s, testLogger, WithSleeper(noSleep))
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("reaching max_items is not an error: %v", err)
	}
	if len(s.stored) != 5 {
		t.Errorf("expected 5 stored, got %d", len(s.stored))
	}
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(3)
	cfg.Engine.PageDelay = time.Millisecond
	cfg.Engine.ItemDelay = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	x := &fakeExtractor{}
	x.fail = func(*types.Entry) error {
		if x.calls == 2 {
			cancel()
		}
		return nil
	}

	e := New(cfg, &fakeFetcher{}, &fakeParser{perPage: 4}, x, &fakeStorage{}, testLogger, WithSleeper(Sleep))
	err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if x.calls != 2 {
		t.Errorf("expected the run to stop at the cancelled item, got %d calls", x.calls)
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleep should return immediately on a cancelled context")
	}
}

// --- robots ---

func TestParseRobots(t *testing.T) {
	rules := parseRobots(strings.NewReader(`
User-agent: Googlebot
Disallow: /

User-agent: *
User-agent: SeedGoat
Disallow: /-/en/gp/bestsellers/toys
Allow: /-/en/gp/bestsellers/toys/ref=allowed
Disallow: /*.pdf$
Crawl-delay: 1.5 # seconds
`))

	tests := []struct {
		path string
		want bool
	}{
		{"/-/en/gp/bestsellers/books/ref=zg_bs_pg_2?ie=UTF8?pg=1", true},
		{"/-/en/gp/bestsellers/toys/ref=zg_bs_pg_2?ie=UTF8?pg=1", false},
		{"/-/en/gp/bestsellers/toys/ref=allowed", true},
		{"/manual/guide.pdf", false},
		{"/manual/guide.pdf?x=1", true},
	}
	for _, tt := range tests {
		if got := rules.allowed(tt.path); got != tt.want {
			t.Errorf("allowed(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if rules.crawlDelay != 1500*time.Millisecond {
		t.Errorf("expected crawl delay 1.5s, got %v", rules.crawlDelay)
	}
}

func TestMatchRobotsPattern(t *testing.T) {
	tests := []struct {
		pattern, path string
		want          bool
	}{
		{"/a", "/abc", true},
		{"/a$", "/abc", false},
		{"/a$", "/a", true},
		{"/*/x", "/foo/x/y", true},
		{"/*.jpg$", "/a.jpg.jpg", true},
		{"/*.jpg$", "/a.jpg?x", false},
		{"/b*", "/a", false},
	}
	for _, tt := range tests {
		if got := matchRobotsPattern(tt.pattern, tt.path); got != tt.want {
			t.Errorf("match(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}

func TestRunRespectsRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /list/books\n")
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cfg := testConfig(2)
	cfg.Site.BaseURL = srv.URL + "/"
	cfg.Site.ListingPath = "list/{category}?pg={page}"
	cfg.Catalog.Categories = []types.Category{{Slug: "books", Code: 2}, {Slug: "toys", Code: 13}}
	cfg.Engine.RespectRobotsTxt = true
	f := &fakeFetcher{}

	e := New(cfg, f, &fakeParser{perPage: 1}, &fakeExtractor{}, &fakeStorage{}, testLogger, WithSleeper(noSleep))
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if e.Stats().PagesSkipped.Load() != 2 {
		t.Errorf("expected both books pages skipped, got %d", e.Stats().PagesSkipped.Load())
	}
	for _, u := range f.urls {
		if strings.Contains(u, "/list/books") {
			t.Errorf("blocked page fetched: %s", u)
		}
	}
}

// --- end to end ---

const listingPage = `<html><body><ol>
<li class="zg-item-immersion"><img src="/img/a.jpg"><div class="p13n-sc-truncate"> First </div><span class="p13n-sc-price">¥12,340</span></li>
<li class="zg-item-immersion"><img src="/img/missing.jpg"><div class="p13n-sc-truncate">Second</div><span class="p13n-sc-price">¥980</span></li>
<li class="zg-item-immersion"><img src="/img/c.jpg"><div class="p13n-sc-truncate">No price</div></li>
</ol></body></html>`

func TestRunEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/list/"):
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, listingPage)
		case r.URL.Path == "/img/a.jpg" || r.URL.Path == "/img/c.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("\xff\xd8\xff\xe0jpeg"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Site.BaseURL = srv.URL + "/"
	cfg.Site.ListingPath = "list/{category}?pg={page}"
	cfg.Catalog.Categories = []types.Category{{Slug: "books", Code: 2}}
	cfg.Engine.LastPage = 1
	cfg.Media.ImagePath = filepath.Join(dir, "img", "%s.jpg")
	cfg.Storage.SQLPath = filepath.Join(dir, "productinsert.sql")

	f, err := fetcher.NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	p, err := parser.New(cfg.Parser, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	dl := media.NewDownloader(cfg.Media.Timeout, cfg.Media.MaxSizeMB, "seedgoat-test", testLogger)
	x := extract.New(cfg, dl, pipeline.FromConfig(cfg.Pipeline, testLogger), testLogger)
	s, err := storage.NewSQLFileStorage(cfg.Storage.SQLPath, cfg.Storage.SQLTerminator, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	e := New(cfg, f, p, x, s, testLogger, WithSleeper(noSleep))
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(cfg.Storage.SQLPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 SQL line, got %d:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "INSERT INTO PRODUCT_INFO (") || !strings.Contains(lines[0], `,"First",`) || !strings.Contains(lines[0], ",2,1234,") {
		t.Errorf("unexpected statement %s", lines[0])
	}

	// only the first entry's image survives; the 404 and the priceless
	// entry leave nothing behind
	images, _ := os.ReadDir(filepath.Join(dir, "img"))
	if len(images) != 1 {
		t.Errorf("expected 1 image on disk, got %d", len(images))
	}
	if e.Stats().ItemsFailed.Load() != 2 {
		t.Errorf("expected 2 failed items, got %d", e.Stats().ItemsFailed.Load())
	}
}
