package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IshaanNene/SeedGoat/internal/types"
)

// robotsToken is the product token matched against User-agent lines.
const robotsToken = "seedgoat"

// Robots checks listing URLs against the site's robots.txt. Rules are
// fetched once per origin and cached for the run.
type Robots struct {
	client    *http.Client
	userAgent string
	mu        sync.Mutex
	cache     map[string]*robotsRules
	logger    *slog.Logger
}

type robotsRules struct {
	disallow   []string
	allow      []string
	crawlDelay time.Duration
}

// NewRobots creates a robots.txt checker.
func NewRobots(userAgent string, logger *slog.Logger) *Robots {
	return &Robots{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		cache:     make(map[string]*robotsRules),
		logger:    logger.With("component", "robots"),
	}
}

// Check returns ErrBlocked when rawURL is disallowed. A robots.txt that
// cannot be fetched allows everything.
func (r *Robots) Check(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %q", types.ErrInvalidURL, rawURL)
	}

	rules := r.rulesFor(ctx, u.Scheme+"://"+u.Host)
	if rules == nil {
		return nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	if !rules.allowed(path) {
		return fmt.Errorf("%w: %s", types.ErrBlocked, rawURL)
	}
	return nil
}

// CrawlDelay returns the Crawl-delay for the origin of rawURL, if cached.
func (r *Robots) CrawlDelay(rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rules := r.cache[u.Scheme+"://"+u.Host]; rules != nil {
		return rules.crawlDelay
	}
	return 0
}

func (r *Robots) rulesFor(ctx context.Context, origin string) *robotsRules {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rules, ok := r.cache[origin]; ok {
		return rules
	}
	rules, err := r.fetch(ctx, origin)
	if err != nil {
		r.logger.Warn("robots.txt unavailable, allowing all", "origin", origin, "error", err)
	}
	r.cache[origin] = rules
	return rules
}

func (r *Robots) fetch(ctx context.Context, origin string) (*robotsRules, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return parseRobots(io.LimitReader(resp.Body, 512*1024)), nil
}

// parseRobots collects the rules of the groups addressed to "*" or to us.
func parseRobots(rd io.Reader) *robotsRules {
	rules := &robotsRules{}
	applies := false
	inAgents := false

	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if key == "user-agent" {
			// consecutive User-agent lines share one group
			if !inAgents {
				applies = false
			}
			inAgents = true
			agent := strings.ToLower(value)
			if agent == "*" || strings.Contains(agent, robotsToken) {
				applies = true
			}
			continue
		}
		inAgents = false

		if !applies {
			continue
		}
		switch key {
		case "disallow":
			if value != "" {
				rules.disallow = append(rules.disallow, value)
			}
		case "allow":
			if value != "" {
				rules.allow = append(rules.allow, value)
			}
		case "crawl-delay":
			if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
				rules.crawlDelay = time.Duration(secs * float64(time.Second))
			}
		}
	}
	return rules
}

// allowed applies longest-match precedence; Allow wins a tie.
func (rr *robotsRules) allowed(path string) bool {
	best, allow := -1, true
	for _, p := range rr.disallow {
		if matchRobotsPattern(p, path) && len(p) > best {
			best, allow = len(p), false
		}
	}
	for _, p := range rr.allow {
		if matchRobotsPattern(p, path) && len(p) >= best {
			best, allow = len(p), true
		}
	}
	return allow
}

// matchRobotsPattern supports the * and trailing $ wildcards.
func matchRobotsPattern(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	pattern = strings.TrimSuffix(pattern, "$")

	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	if len(parts) == 1 {
		return !anchored || path == pattern
	}

	pos := len(parts[0])
	last := len(parts) - 1
	for _, part := range parts[1:last] {
		idx := strings.Index(path[pos:], part)
		if idx < 0 {
			return false
		}
		pos += idx + len(part)
	}

	tail := parts[last]
	if anchored {
		return strings.HasSuffix(path, tail) && len(path)-len(tail) >= pos
	}
	return strings.Contains(path[pos:], tail)
}
