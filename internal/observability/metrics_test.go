package observability

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics(testLogger)

	m.PageFetched("books", 2048, 300*time.Millisecond)
	m.PageFetched("books", 1024, 100*time.Millisecond)
	m.PageFailed("toys")
	m.PageSkipped("toys")
	m.ItemWritten("books")
	m.ItemFailed("books", "price")
	m.ItemFailed("books", "image")

	out := scrape(t, m)

	for _, want := range []string{
		`seedgoat_pages_total{category="books",outcome="fetched"} 2`,
		`seedgoat_pages_total{category="toys",outcome="failed"} 1`,
		`seedgoat_pages_total{category="toys",outcome="skipped"} 1`,
		`seedgoat_items_total{category="books",outcome="written"} 1`,
		`seedgoat_items_total{category="books",outcome="failed"} 2`,
		`seedgoat_item_failures_total{stage="price"} 1`,
		`seedgoat_page_bytes_total 3072`,
		`seedgoat_page_fetch_seconds_count 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in exposition", want)
		}
	}
}

func TestMetricsIndependentRegistries(t *testing.T) {
	a := NewMetrics(testLogger)
	b := NewMetrics(testLogger)
	a.ItemWritten("books")

	if strings.Contains(scrape(t, b), `outcome="written"`) {
		t.Error("registries should not share state")
	}
}

func TestStatsEndpoint(t *testing.T) {
	m := NewMetrics(testLogger)
	m.SetStatsSource(func() map[string]any {
		return map[string]any{"items_written": 12}
	})

	rec := httptest.NewRecorder()
	m.handleStats(rec, httptest.NewRequest("GET", "/api/stats", nil))

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["items_written"] != float64(12) {
		t.Errorf("expected items_written 12, got %v", got["items_written"])
	}
	if _, ok := got["timestamp"]; !ok {
		t.Error("expected timestamp")
	}
}
