package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/types"
)

// BrowserFetcher renders listing pages in headless Chromium, for shops that
// build their result grid with JavaScript.
type BrowserFetcher struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
	waitFor  string
	stealth  bool

	mu     sync.Mutex
	agents []string
	next   int

	logger *slog.Logger
}

// NewBrowserFetcher launches a browser and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	f := &BrowserFetcher{
		browser:  b,
		launcher: l,
		timeout:  cfg.Engine.RequestTimeout,
		waitFor:  cfg.Fetcher.WaitSelector,
		stealth:  cfg.Fetcher.Stealth,
		agents:   cfg.Engine.UserAgents,
		logger:   logger.With("component", "browser_fetcher"),
	}
	f.logger.Info("browser ready", "stealth", f.stealth, "wait_selector", f.waitFor)
	return f, nil
}

// Fetch loads the page, waits for it to settle and returns the rendered DOM.
// The browser does not report the document status, so a loaded page is 200.
func (f *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	target := req.URLString()
	start := time.Now()

	page, err := f.open()
	if err != nil {
		return nil, &types.FetchError{URL: target, Err: err}
	}
	defer page.Close()
	page = page.Context(ctx)

	if ua := f.userAgent(); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			f.logger.Warn("set user agent", "error", err)
		}
	}

	if err := page.Timeout(f.timeout).Navigate(target); err != nil {
		return nil, &types.FetchError{URL: target, Err: err}
	}
	if err := page.Timeout(f.timeout).WaitStable(300 * time.Millisecond); err != nil {
		f.logger.Debug("page still changing, reading anyway", "url", target, "error", err)
	}
	if f.waitFor != "" {
		if _, err := page.Timeout(10 * time.Second).Element(f.waitFor); err != nil {
			f.logger.Warn("wait selector not found", "selector", f.waitFor, "url", target)
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: target, Err: err}
	}
	if html == "" {
		return nil, &types.FetchError{URL: target, Err: types.ErrEmptyResponse}
	}

	final := target
	if info, err := page.Info(); err == nil && info != nil {
		final = info.URL
	}
	took := time.Since(start)
	f.logger.Debug("rendered", "url", target, "final_url", final, "bytes", len(html), "took", took)

	return &types.Response{
		Request:       req,
		StatusCode:    200,
		Body:          []byte(html),
		FinalURL:      final,
		FetchDuration: took,
	}, nil
}

// Close shuts the browser down.
func (f *BrowserFetcher) Close() error {
	err := f.browser.Close()
	f.launcher.Kill()
	return err
}

func (f *BrowserFetcher) Type() string { return "browser" }

func (f *BrowserFetcher) open() (*rod.Page, error) {
	if f.stealth {
		return stealth.Page(f.browser)
	}
	return f.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

func (f *BrowserFetcher) userAgent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.agents) == 0 {
		return ""
	}
	ua := f.agents[f.next%len(f.agents)]
	f.next++
	return ua
}
