package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"hlscap/internal/logger"
	"hlscap/internal/media"
)

// Downloader fetches individual media fragments with retry logic.
type Downloader struct {
	httpClient *http.Client
	logger     logger.Logger
	userAgent  string

	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
}

// NewDownloader creates a fragment downloader sharing the given HTTP client.
func NewDownloader(client *http.Client, log logger.Logger, userAgent string) *Downloader {
	return &Downloader{
		httpClient: client,
		logger:     log,
		userAgent:  userAgent,
		maxRetries: 3,
		retryDelay: 100 * time.Millisecond,
		timeout:    10 * time.Second,
	}
}

// Download fetches one fragment, honoring its byte range, with a
// per-request timeout and bounded retries. Unavailable fragments may be
// served temporarily by live origins, so transient failures are retried
// before giving up.
func (d *Downloader) Download(ctx context.Context, frag media.Fragment) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := d.downloadOnce(ctx, frag)
		if err == nil {
			d.logger.Debugf("Downloaded fragment %s (%d bytes)", frag.URL, len(data))
			return data, nil
		}

		lastErr = err
		d.logger.Warnf("Download attempt %d/%d for %s failed: %v", attempt, d.maxRetries, frag.URL, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.retryDelay):
		}
	}

	return nil, fmt.Errorf("failed to download fragment %s after %d attempts: %w", frag.URL, d.maxRetries, lastErr)
}

func (d *Downloader) downloadOnce(ctx context.Context, frag media.Fragment) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, frag.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	if frag.ByteRange != nil {
		req.Header.Set("Range", frag.ByteRange.Header())
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("received status code %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
