package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	fetchTimeout = 30 * time.Second
	userAgent    = "job-import-backend/1.0"
	maxBodyBytes = 10 << 20 // refuse pathological feeds beyond 10 MiB
)

// FetchError marks a feed as unreachable, timed out, or serving a
// non-success status. Fetch failures terminate a job attempt but are not
// retried by the queue; the next scheduled cycle tries the feed again.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves raw feed payloads over plain HTTP with a bounded
// timeout and a shared client.
type Fetcher struct {
	client *http.Client
}

// NewFetcher constructs a Fetcher with a shared HTTP client.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = fetchTimeout
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch performs an HTTP GET against the feed URL and returns the raw body.
// Network errors, timeouts and non-2xx statuses all surface as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}
