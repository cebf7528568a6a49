// Package media saves product thumbnails to local files.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/SeedGoat/internal/types"
)

var errTooLarge = errors.New("image exceeds size limit")

// DownloadResult describes a saved image.
type DownloadResult struct {
	URL         string
	Path        string
	Size        int64
	ContentType string
	SHA256      string
	Took        time.Duration
}

// IsImage reports whether the server labelled the body as an image.
func (r *DownloadResult) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(r.ContentType), "image/")
}

// Downloader fetches one image per call, sequentially.
type Downloader struct {
	client    *http.Client
	userAgent string
	limit     int64

	files atomic.Int64
	bytes atomic.Int64

	logger *slog.Logger
}

// NewDownloader creates a Downloader. maxSizeMB <= 0 means no limit.
func NewDownloader(timeout time.Duration, maxSizeMB int64, userAgent string, logger *slog.Logger) *Downloader {
	var limit int64
	if maxSizeMB > 0 {
		limit = maxSizeMB << 20
	}
	return &Downloader{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		limit:     limit,
		logger:    logger.With("component", "downloader"),
	}
}

// Download saves the body at rawURL as dstPath, creating the directory if
// needed. The body goes to a temporary file first, so dstPath only ever
// holds a complete image.
func (d *Downloader) Download(ctx context.Context, rawURL, dstPath string) (*DownloadResult, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &types.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	if d.limit > 0 && resp.ContentLength > d.limit {
		return nil, fmt.Errorf("%w: %d bytes", errTooLarge, resp.ContentLength)
	}

	size, sum, err := d.save(resp.Body, dstPath)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", dstPath, err)
	}

	d.files.Add(1)
	d.bytes.Add(size)
	res := &DownloadResult{
		URL:         rawURL,
		Path:        dstPath,
		Size:        size,
		ContentType: resp.Header.Get("Content-Type"),
		SHA256:      sum,
		Took:        time.Since(start),
	}
	if !res.IsImage() {
		d.logger.Warn("saved body is not labelled as an image", "url", rawURL, "content_type", res.ContentType)
	}
	d.logger.Debug("image saved", "url", rawURL, "path", dstPath, "size", humanSize(size), "took", res.Took)
	return res, nil
}

func (d *Downloader) save(body io.Reader, dstPath string) (int64, string, error) {
	dir := filepath.Dir(dstPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", err
	}
	tmp, err := os.CreateTemp(dir, ".part-*")
	if err != nil {
		return 0, "", err
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if d.limit > 0 {
		body = io.LimitReader(body, d.limit+1)
	}
	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), body)
	switch {
	case err != nil:
	case size == 0:
		err = types.ErrEmptyResponse
	case d.limit > 0 && size > d.limit:
		err = errTooLarge
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, "", err
	}

	if err := os.Rename(tmp.Name(), dstPath); err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(h.Sum(nil)), nil
}

// Stats returns how many images and bytes were saved.
func (d *Downloader) Stats() map[string]int64 {
	return map[string]int64{
		"total_downloaded": d.files.Load(),
		"bytes_downloaded": d.bytes.Load(),
	}
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
