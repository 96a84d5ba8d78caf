package rsi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrHandleNotFound is returned when the RSI site reports that a handle does
// not exist. It is never cached and never treated as a transient failure.
var ErrHandleNotFound = errors.New("rsi: handle not found")

const baseURL = "https://robertsspaceindustries.com"

// Fetcher retrieves raw page text for a URL. Implementations must surface a
// missing page as ErrHandleNotFound (wrapped or bare) so callers can
// distinguish it from transient failures.
type Fetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// HTTPFetcher fetches RSI pages over plain HTTP.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher with a request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: "test-squadron-verification-bot",
	}
}

// FetchHTML retrieves one page. A 404 from the site means the handle does not
// exist and maps to ErrHandleNotFound; any other non-200 status is transient.
func (f *HTTPFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%s: %w", pageURL, ErrHandleNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", pageURL, err)
	}
	return string(body), nil
}

// CitizenURL is the profile page for a handle.
func CitizenURL(handle string) string {
	return baseURL + "/citizens/" + url.PathEscape(handle)
}

// OrganizationsURL is the organizations page for a handle.
func OrganizationsURL(handle string) string {
	return baseURL + "/citizens/" + url.PathEscape(handle) + "/organizations"
}
