// Package fetch owns all HTTP communication: manifest polling and
// fragment downloads. Retry and timeout policy lives here, not in the
// synchronization engine.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"hlscap/internal/logger"
)

// Client fetches manifests from the origin server. Redirects are handled
// manually so the final URL can be reported back for base-URL resolution.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
	userAgent  string
}

// NewClient creates a new manifest client.
func NewClient(log logger.Logger, userAgent string) *Client {
	transport := &http.Transport{
		ResponseHeaderTimeout: 3 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:    log,
		userAgent: userAgent,
	}
}

// Fetch downloads the resource at initialUrl, following at most one
// redirect, and returns the body along with the final URL.
func (c *Client) Fetch(ctx context.Context, initialUrl string) ([]byte, string, error) {
	c.logger.Debugf("Fetching manifest from URL: %s", initialUrl)

	body, finalUrl, redirect, err := c.fetchOnce(ctx, initialUrl)
	if err != nil {
		return nil, "", err
	}
	if redirect != "" {
		c.logger.Debugf("Redirected to: %s", redirect)
		body, finalUrl, _, err = c.fetchOnce(ctx, redirect)
		if err != nil {
			return nil, "", err
		}
	}

	return body, finalUrl, nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) (body []byte, finalUrl, redirect string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently {
		location, err := resp.Location()
		if err != nil {
			return nil, "", "", fmt.Errorf("redirect location error: %w", err)
		}
		return nil, "", location.String(), nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", "", fmt.Errorf("fetch of %s returned status code %d", url, resp.StatusCode)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read response body from %s: %w", url, err)
	}

	return body, url, "", nil
}

// HTTPClient returns the underlying http.Client instance.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}
